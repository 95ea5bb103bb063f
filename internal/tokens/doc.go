// Package tokens pairs signed tokens with server-side revocable records.
//
// A token is usable only while its record exists and the record's digest
// matches the presented token. Records live under "<purpose>_token:<jti>"
// with the purpose TTL, so revocation is a single DEL and expiry is left to
// the store.
//
// The same Manager type serves refresh tokens and reset tokens; the
// constructors fix the purpose. Reset issuance is split into Mint and Persist
// so the caller can write the record concurrently with delivering the token.
package tokens
