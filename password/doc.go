// Package password implements password hashing, verification and the
// strength policy.
//
// # Output format
//
// Argon2id digests use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Bcrypt digests use the standard $2a$/$2b$ encoding. Both hashers report
// through [Hasher.NeedsUpgrade] when a stored digest was produced with weaker
// parameters, so callers can re-hash after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification and [Policy]. Deciding when the
// policy applies (reset, change password) belongs to the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other package of this module.
//   - Log plaintext passwords or digests.
package password
