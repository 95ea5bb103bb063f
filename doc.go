// Package pmscanauth is the credential and token-lifecycle engine of the
// PMScan backend: login, refresh, logout, password reset and stateless access
// token authentication.
//
// Every revocable credential is a signed token paired with a server-side
// record holding the token's digest. A token is usable only while its
// record exists and matches, so logout and one-time reset redemption are a
// single record delete.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// pmscanauth is the public surface. It exposes [Engine], [Builder], [Config],
// the consumed interfaces ([UserDirectory], [TokenStore], [PasswordHasher],
// [Mailer]) and value types. Flow orchestration, record encoding, throttling
// and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Put refresh or reset tokens in logs, audit events or metrics labels.
//   - Reveal through Login or ForgotPassword whether an email is registered.
//   - Perform I/O outside of Engine methods.
//
// # Performance contract
//
// Authenticate is the hot path: signature verification only, no store
// round-trip. Login, Refresh and ResetPassword make a bounded number of
// store calls each.
package pmscanauth
