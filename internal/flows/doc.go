// Package flows contains the orchestration behind every Engine operation.
//
// Each Run function takes a typed dependency struct and returns a result
// carrying a FailureKind instead of a public error. The root package maps
// kinds to its error taxonomy, metrics and audit events, so the security
// ordering (verify, then look up, then compare digests, then touch the user)
// lives here and the public surface stays thin.
//
// # Architecture boundaries
//
// Flows coordinate the signer, the token managers, the user directory and the
// throttles. They do NOT own any of them; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package.
//   - Log; diagnostics go through the Warn hook supplied by the caller.
package flows
