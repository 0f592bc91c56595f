// Package session provides the session model and Redis-backed session
// persistence for the auth core.
//
// # Rotation
//
// Refresh-token rotation runs inside a Redis WATCH transaction keyed on
// the session record, so exactly one concurrent refresh against the same
// token wins; losers observe the rotated state. The previous refresh hash
// is retained for one generation so replay of a rotated-out token is
// recognized as reuse rather than a generic mismatch.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session]
// model. It does not mint or parse JWTs and does not enforce auth policy;
// those responsibilities belong to the engine.
//
// # What this package must NOT do
//
//   - Import authcore (no upward imports).
//   - Store raw refresh secrets; only SHA-256 hashes are persisted.
package session
