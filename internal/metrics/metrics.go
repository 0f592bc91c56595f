// Package metrics provides atomic in-process counters for auth outcomes.
// Increments are lock-free; Snapshot produces a point-in-time copy for
// exposition by the host process.
//
// This package owns storage only. It performs no I/O and imports no
// sibling package.
package metrics

import "sync/atomic"

// MetricID identifies one counter slot.
type MetricID int

const (
	SignupSuccess MetricID = iota
	SignupDuplicate
	SignupRejected
	VerifyEmailSuccess
	VerifyEmailFailure
	LoginSuccess
	LoginFailure
	LoginOTPRequired
	LoginRateLimited
	OTPIssued
	OTPVerified
	OTPRejected
	RefreshSuccess
	RefreshFailure
	RefreshReuseDetected
	PasswordResetRequested
	PasswordResetConfirmed
	PasswordResetRejected
	SessionCreated
	SessionRevoked
	Logout
	LogoutAll
	RateLimitHit
	NotifyFailure

	idCount
)

// Metrics holds one atomic counter per MetricID. A nil *Metrics is a
// valid no-op receiver, so disabled metrics cost nothing at call sites.
type Metrics struct {
	counters [idCount]atomic.Uint64
}

// New allocates an enabled metrics set. Pass enabled=false to get a nil
// no-op receiver.
func New(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	return &Metrics{}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id < 0 || id >= idCount {
		return
	}
	m.counters[id].Add(1)
}

// Get reads one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id < 0 || id >= idCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot deep-copies the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: make(map[MetricID]uint64, int(idCount))}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < idCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
