// Package authcore is the authentication and session core of the Meridian
// dashboard: account signup and login, one-time-password issuance and
// verification, password-reset lifecycle, access/refresh token management
// with rotation and reuse detection, and request-level rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the credential-store and notifier interfaces, and value types
// (SignupResult, LoginResult, SessionInfo, etc.). All internal coordination
// (flow orchestration, one-time-code lifecycle, rate limiting, audit
// dispatch) lives under internal/ and is never exported.
//
// Durable persistence is an external collaborator reached through
// [AccountStore], [SessionStore], and [CodeStore]. Outbound email is an
// external collaborator reached through [Notifier]; notification failures
// never roll back the auth state change that triggered them.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or token encoding details in
//     its public API.
//   - Render UI, route HTTP, or deliver mail itself.
//   - Retry store failures; those surface as store-unavailable errors and
//     are the calling infrastructure's responsibility.
//
// # Performance contract
//
// VerifyAccess is the hot path. It is a stateless token check and must
// complete without a store round-trip. Login, Refresh, and the OTP
// operations are allowed one store round-trip per call; password hashing
// is the only CPU-bound step.
package authcore
