package authcore

import (
	"errors"
	"time"
)

var (
	// ErrEngineNotReady is returned when Engine methods are called before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidInput is returned for malformed request shapes (missing email, bad code format).
	ErrInvalidInput = errors.New("invalid input")
	// ErrWeakPassword is returned when a password fails the strength policy.
	ErrWeakPassword = errors.New("password policy violation")
	// ErrInvalidCredentials collapses unknown-account and wrong-password failures
	// into one answer so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned when signup hits a duplicate email or phone.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is a store-level miss. Engine methods never return
	// it for credential checks; it collapses into ErrInvalidCredentials.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountUnverified is returned on login before email verification.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountDisabled is returned for soft-disabled accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrRateLimited is returned when the rate limiter rejects a request.
	ErrRateLimited = errors.New("rate limited")
	// ErrCodeNotFound is returned when no active one-time code exists for the
	// (account, purpose) pair, including replay of an already consumed code.
	ErrCodeNotFound = errors.New("one-time code not found")
	// ErrCodeExpired is returned when the submitted code is past its TTL.
	ErrCodeExpired = errors.New("one-time code expired")
	// ErrCodeMismatch is returned when the submitted code value differs.
	ErrCodeMismatch = errors.New("one-time code mismatch")
	// ErrTokenInvalid is returned for malformed or badly signed access tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for well-formed but expired access tokens.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionNotFound is returned when a refresh token resolves to no session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRevoked is returned when the session exists but was revoked.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrRefreshReuse signals replay of an already-rotated refresh token.
	// It is a security event: all sessions of the account are revoked.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrPermissionDenied is returned for a valid identity with insufficient rights.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStoreUnavailable wraps credential-store connectivity failures.
	// Retry and backoff belong to the calling infrastructure, not this core.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Kind classifies an engine error for transport mapping. The classes mirror
// the HTTP families the dashboard API uses, but nothing in this package
// depends on net/http.
type Kind uint8

const (
	// KindInternal covers store connectivity and unexpected failures.
	KindInternal Kind = iota
	// KindValidation covers malformed, user-correctable input.
	KindValidation
	// KindAuthentication covers bad credentials and invalid or expired tokens.
	KindAuthentication
	// KindAuthorization covers valid identities with insufficient rights.
	KindAuthorization
	// KindConflict covers duplicate-account signup.
	KindConflict
	// KindRateLimited covers throttled requests; see [RetryAfter].
	KindRateLimited
	// KindNotFound covers missing sessions and one-time codes.
	KindNotFound
	// KindSecurityEvent covers refresh-token reuse detection.
	KindSecurityEvent
)

// KindOf maps an error returned by Engine methods to its [Kind].
// Unrecognized errors classify as KindInternal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrWeakPassword):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrCodeExpired),
		errors.Is(err, ErrCodeMismatch),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrSessionRevoked):
		return KindAuthentication
	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrAccountUnverified),
		errors.Is(err, ErrAccountDisabled):
		return KindAuthorization
	case errors.Is(err, ErrAccountExists):
		return KindConflict
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrCodeNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, ErrRefreshReuse):
		return KindSecurityEvent
	default:
		return KindInternal
	}
}

// RateLimitError carries the retry-after hint alongside [ErrRateLimited].
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

// Unwrap makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfter extracts the throttling hint from a rate-limit error.
// It returns zero when err carries no hint.
func RetryAfter(err error) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter
	}
	return 0
}
