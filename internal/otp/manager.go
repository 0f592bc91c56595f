package otp

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/authcore/internal"
)

// Purpose binds a code to the flow that issued it. Codes never validate
// across purposes.
type Purpose string

const (
	// PurposeLogin gates OTP-required logins.
	PurposeLogin Purpose = "login"
	// PurposeSignup verifies a new account's email.
	PurposeSignup Purpose = "signup"
	// PurposeReset authorizes a password reset.
	PurposeReset Purpose = "reset"
)

// Valid reports whether p is a recognized purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeSignup, PurposeReset:
		return true
	}
	return false
}

var (
	// ErrNotFound covers the none state: no active code, a consumed code,
	// or a superseded one.
	ErrNotFound = errors.New("no active code")
	// ErrExpired covers codes strictly past issuedAt+TTL.
	ErrExpired = errors.New("code expired")
	// ErrMismatch covers a live code with a different value.
	ErrMismatch = errors.New("code mismatch")
)

// Code is the persisted form of a one-time code. The value itself is
// stored only as a SHA-256 hash.
type Code struct {
	ID        string
	AccountID string
	Purpose   Purpose
	Hash      [32]byte
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// Store is the durable backing for codes. Implementations must make Put
// supersede the prior active (accountID, purpose) code atomically with
// respect to a concurrent Consume, and must make Consume succeed at most
// once per code.
type Store interface {
	// Put stores code as the sole active code for its (account, purpose)
	// pair, invalidating any prior one.
	Put(ctx context.Context, code *Code) error
	// GetActive returns the current unconsumed code for the pair, or
	// ErrNotFound. Expiry is the manager's judgement, not the store's.
	GetActive(ctx context.Context, accountID string, purpose Purpose) (*Code, error)
	// Consume marks the code consumed iff it is still the active code for
	// the pair. It returns false when another issue or verify won the race.
	Consume(ctx context.Context, accountID string, purpose Purpose, codeID string) (bool, error)
}

// Manager issues and verifies codes against a [Store].
type Manager struct {
	store  Store
	digits int
	ttl    time.Duration
	now    func() time.Time
}

// NewManager wires a manager. digits and ttl must already be validated by
// the caller's config layer.
func NewManager(store Store, digits int, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		digits: digits,
		ttl:    ttl,
		now:    time.Now,
	}
}

// HashCode is the persisted form of a plaintext code.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// Issue generates a fresh numeric code for the pair, supersedes any prior
// active code, and returns the plaintext for delivery by the caller.
func (m *Manager) Issue(ctx context.Context, accountID string, purpose Purpose) (string, error) {
	if accountID == "" || !purpose.Valid() {
		return "", errors.New("invalid issue request")
	}

	plain, err := internal.NewOTP(m.digits)
	if err != nil {
		return "", err
	}

	now := m.now()
	code := &Code{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Purpose:   purpose,
		Hash:      HashCode(plain),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.Put(ctx, code); err != nil {
		return "", err
	}
	return plain, nil
}

// Verify checks submitted against the active code for the pair and
// consumes it on success. Replay of a consumed code reports ErrNotFound.
func (m *Manager) Verify(ctx context.Context, accountID string, purpose Purpose, submitted string) error {
	if accountID == "" || !purpose.Valid() || submitted == "" {
		return ErrNotFound
	}

	code, err := m.store.GetActive(ctx, accountID, purpose)
	if err != nil {
		return err
	}

	// Rejected strictly after issuedAt+TTL; the final instant still counts.
	if m.now().After(code.ExpiresAt) {
		return ErrExpired
	}

	submittedHash := HashCode(submitted)
	if subtle.ConstantTimeCompare(submittedHash[:], code.Hash[:]) != 1 {
		return ErrMismatch
	}

	ok, err := m.store.Consume(ctx, accountID, purpose, code.ID)
	if err != nil {
		return err
	}
	if !ok {
		// A concurrent issue or verify invalidated the code first.
		return ErrNotFound
	}
	return nil
}
