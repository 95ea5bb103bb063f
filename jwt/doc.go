// Package jwt signs and verifies the purpose-scoped tokens used by the
// authentication engine: short-lived access tokens, refresh tokens and
// password-reset tokens.
//
// Every token carries a purpose claim. Verify rejects a token presented for
// a purpose other than the one it was minted for, so a reset token can never
// be replayed as an access token and vice versa.
package jwt
