// Package otp owns the one-time-code lifecycle. Each (account, purpose)
// pair moves through an explicit state machine:
//
//	none -> issued -> verified
//	               -> expired     (TTL elapsed)
//	               -> superseded  (a newer code was issued for the pair)
//
// At most one unconsumed, unexpired code per pair is ever active: issuing
// supersedes the prior code atomically with respect to a concurrent verify,
// so there is no window where both codes validate. Codes are persisted as
// SHA-256 hashes; the plaintext exists only in the issue return value.
//
// Delivery of codes (email, SMS) is an external collaborator's job.
// Attempt budgets are the rate limiter's job, not this package's.
package otp
