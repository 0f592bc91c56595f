package session

import "time"

// Session is one access grant for an account. Multiple sessions per
// account run concurrently; each is bounded by expiry or revocation.
type Session struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`

	// RefreshHash is the SHA-256 of the current refresh secret.
	// RotatedHashes keeps every rotated-out generation so a replayed
	// token trips reuse detection no matter how stale it is.
	RefreshHash   [32]byte   `json:"refresh_hash"`
	RotatedHashes [][32]byte `json:"rotated_hashes,omitempty"`

	Revoked bool `json:"revoked"`

	// Client metadata captured at login, optional.
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// RotateOutcome is the result of a conditional refresh rotation.
type RotateOutcome uint8

const (
	// RotateNotFound means no session record exists for the ID.
	RotateNotFound RotateOutcome = iota
	// RotateExpired means the session exists but its lifetime elapsed.
	RotateExpired
	// RotateRevoked means the session was explicitly revoked.
	RotateRevoked
	// RotateMismatch means the presented secret matches no known generation.
	RotateMismatch
	// RotateReuse means the presented secret matches a rotated-out
	// generation: a replay, treated as a security event by the caller.
	RotateReuse
	// RotateOK means this caller won the rotation.
	RotateOK
)
