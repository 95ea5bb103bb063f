// Package internal holds helpers private to the module: token id
// generation, token digests and bounded random delays.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators behind every Engine operation
//   - rate: Redis-backed fixed-window throttles
//   - stores: Redis token record store
//   - tokens: revocable refresh and reset token managers
//   - logging: slog construction and trace correlation
//   - repository, accounts, fleet: Postgres persistence and the device/record ownership cascade
//   - mailer: SMTP, AMQP and log mail transports
//   - config: process configuration loading
//   - httpapi: chi HTTP surface
//
// # What this package must NOT do
//
//   - Export types that appear in the public pmscanauth API.
//   - Log token strings or passwords.
package internal
