// Package stores persists revocable token records in Redis.
//
// # Design
//
// Records are opaque byte values under caller-chosen keys with a per-key TTL.
// Expiry is left to Redis; there is no sweeper. Absent keys surface as
// ErrRecordNotFound and every transport failure is wrapped in
// ErrStoreUnavailable so callers can tell "revoked" from "cannot tell".
//
// # Architecture boundaries
//
// This package owns persistence only. Encoding records, minting tokens and
// deciding what a missing record means belong to internal/tokens and
// internal/flows.
//
// # What this package must NOT do
//
//   - Import the root package or any sibling internal package.
//   - Log stored values.
package stores
