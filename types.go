package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/meridianpay/authcore/internal/audit"
	internalmetrics "github.com/meridianpay/authcore/internal/metrics"
	"github.com/meridianpay/authcore/internal/otp"
	"github.com/meridianpay/authcore/internal/rate"
	"github.com/meridianpay/authcore/secrets"
	"github.com/meridianpay/authcore/session"
)

// AccountStatus is the lifecycle state of an account. Accounts are never
// hard-deleted; retirement is a soft disable.
type AccountStatus uint8

const (
	// AccountUnverified is the state between signup and email verification.
	AccountUnverified AccountStatus = iota
	// AccountVerified is the normal active state.
	AccountVerified
	// AccountDisabled is the soft-deleted state; login is refused.
	AccountDisabled
)

// Account is the root identity record. Email is unique; Phone is optional
// and unique when present.
type Account struct {
	ID           string
	Email        string
	Phone        string
	PasswordHash string
	Status       AccountStatus
	CreatedAt    time.Time
}

// AccountStore is the durable account repository. Implementations must
// enforce email and phone uniqueness in Create and must return
// [ErrAccountNotFound] (not a zero Account) on misses.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Update(ctx context.Context, account *Account) error
}

// SessionStore persists session records. Rotate must be atomic per
// session: exactly one concurrent caller may observe
// [session.RotateOK] for the same presented hash.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session) error
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Rotate(ctx context.Context, sessionID string, presentedHash, newHash [32]byte, newExpiry time.Time) (session.RotateOutcome, *session.Session, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForAccount(ctx context.Context, accountID, exceptSessionID string) error
	ListActive(ctx context.Context, accountID string, now time.Time) ([]*session.Session, error)
}

// CodeStore persists one-time codes; see [otp.Store] for the atomicity
// contract on Put and Consume.
type CodeStore = otp.Store

// OneTimeCode is the persisted one-time-code record.
type OneTimeCode = otp.Code

// CredentialStore is the full persistence surface the engine requires.
// Composed stores may live in different backends (accounts in SQL,
// sessions and codes in Redis); the engine does not care.
type CredentialStore interface {
	AccountStore
	SessionStore
	CodeStore
}

// Purpose binds a one-time code to the flow that issued it.
type Purpose = otp.Purpose

const (
	// PurposeLogin gates OTP-required logins.
	PurposeLogin = otp.PurposeLogin
	// PurposeSignup verifies a new account's email.
	PurposeSignup = otp.PurposeSignup
	// PurposeReset authorizes a password reset.
	PurposeReset = otp.PurposeReset
)

// RateLimiter is the admit/reject contract guarding sensitive endpoints.
// The in-process implementation is one policy; a shared-store counter can
// be swapped in without touching caller logic.
type RateLimiter = rate.Limiter

// RateDecision is the outcome of one rate-limit check.
type RateDecision = rate.Decision

// Notification templates passed to [Notifier.Send].
const (
	// TemplateVerifyEmail delivers the signup verification code.
	TemplateVerifyEmail = "verify-email"
	// TemplateWelcome is sent once the account is verified.
	TemplateWelcome = "welcome"
	// TemplateLoginCode delivers the second-factor login code.
	TemplateLoginCode = "login-code"
	// TemplateResetCode delivers the password-reset code.
	TemplateResetCode = "reset-code"
	// TemplatePasswordChanged confirms a completed reset.
	TemplatePasswordChanged = "password-changed"
)

// Notifier delivers account mail. Delivery is fire-and-forget: the engine
// logs failures and never rolls back auth state because a send failed.
type Notifier interface {
	Send(ctx context.Context, template, recipient string, data map[string]string) error
}

// ClientMeta is optional request metadata recorded on sessions and audit
// events.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// TokenPair is an access/refresh token set. The access token is a signed
// JWT; the refresh token is opaque and single-use.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SignupResult is returned by [Engine.Signup]. The account starts
// unverified; tokens are only issued after login.
type SignupResult struct {
	AccountID string
	Status    AccountStatus
}

// LoginResult is returned by [Engine.Login]. When the OTP-gated login
// policy is active, Tokens is empty and OTPRequired is set; the caller
// completes the flow with [Engine.CompleteLoginOTP].
type LoginResult struct {
	Tokens      TokenPair
	OTPRequired bool
	AccountID   string
}

// AuthResult is the outcome of a successful access-token verification.
type AuthResult struct {
	AccountID string
	SessionID string
}

// SessionInfo is the session record shape returned by listing operations.
type SessionInfo = session.Session

// APIKeyPair is a generated key/secret credential pair.
type APIKeyPair = secrets.APIKeyPair

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricSignupSuccess        = internalmetrics.SignupSuccess
	MetricSignupDuplicate      = internalmetrics.SignupDuplicate
	MetricSignupRejected       = internalmetrics.SignupRejected
	MetricVerifyEmailSuccess   = internalmetrics.VerifyEmailSuccess
	MetricVerifyEmailFailure   = internalmetrics.VerifyEmailFailure
	MetricLoginSuccess         = internalmetrics.LoginSuccess
	MetricLoginFailure         = internalmetrics.LoginFailure
	MetricLoginOTPRequired     = internalmetrics.LoginOTPRequired
	MetricLoginRateLimited     = internalmetrics.LoginRateLimited
	MetricOTPIssued            = internalmetrics.OTPIssued
	MetricOTPVerified          = internalmetrics.OTPVerified
	MetricOTPRejected          = internalmetrics.OTPRejected
	MetricRefreshSuccess       = internalmetrics.RefreshSuccess
	MetricRefreshFailure       = internalmetrics.RefreshFailure
	MetricRefreshReuseDetected = internalmetrics.RefreshReuseDetected
	MetricResetRequested       = internalmetrics.PasswordResetRequested
	MetricResetConfirmed       = internalmetrics.PasswordResetConfirmed
	MetricResetRejected        = internalmetrics.PasswordResetRejected
	MetricSessionCreated       = internalmetrics.SessionCreated
	MetricSessionRevoked       = internalmetrics.SessionRevoked
	MetricLogout               = internalmetrics.Logout
	MetricLogoutAll            = internalmetrics.LogoutAll
	MetricRateLimitHit         = internalmetrics.RateLimitHit
	MetricNotifyFailure        = internalmetrics.NotifyFailure
)

// Metrics holds the engine's atomic counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot
