// Package rate implements Redis-backed fixed-window throttles for login and
// forgot-password requests.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit. Key prefixes:
//   - pl:  failed logins per email
//   - pli: failed logins per client IP
//   - pf:  forgot-password requests per email
//
// Emails are trimmed and lower-cased before keying.
//
// # What this package must NOT do
//
//   - Decide what a throttled request returns to the client; that is the
//     engine's job (forgot-password stays enumeration-safe).
package rate
