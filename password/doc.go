// Package password hashes and verifies account passwords and enforces the
// account password policy.
//
// # Output format
//
// New digests are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] also verifies bcrypt digests ($2a$, $2b$, $2y$) inherited from
// older accounts. [Hasher.NeedsUpgrade] reports true for them so the caller
// can rehash after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification and the policy check only.
// Deciding when to rehash belongs to the engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive digests.
//   - Import any other package of this module.
//   - Log plaintext passwords.
package password
