// Package secrets holds the credential primitives of the auth core:
// bcrypt password hashing and verification, the password strength policy,
// and CSPRNG-backed generation of opaque tokens, API key pairs, backup
// codes, and numeric one-time codes.
//
// # Architecture boundaries
//
// This package owns no state and performs no I/O beyond crypto/rand. It
// does not persist anything and does not decide auth policy; callers own
// where hashes are stored and when codes are issued.
//
// # What this package must NOT do
//
//   - Use a seeded or non-cryptographic random source for any output.
//   - Persist or log plaintext passwords, secrets, or codes.
package secrets
