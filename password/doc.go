// Package password hashes and verifies passwords with Argon2id.
//
// # Output format
//
// A [Digest] keeps the salt apart from the hash, matching the users table
// which stores them in separate columns:
//
//	Hash: $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<hash>
//	Salt: <base64 salt>
//
// [Hasher.NeedsRehash] reports digests produced with weaker parameters so the
// caller can re-hash on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive digests.
//   - Import any other authcache package.
//   - Log plaintext passwords.
package password
