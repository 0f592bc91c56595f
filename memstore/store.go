// Package memstore is an in-memory CredentialStore for development and
// tests. It honors the same atomicity contracts as the production
// backends: rotation is compare-and-swap, code consumption happens at
// most once, and uniqueness checks are race-free under the store mutex.
// Nothing here is durable.
package memstore

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/meridianpay/authcore"
	"github.com/meridianpay/authcore/internal/otp"
	"github.com/meridianpay/authcore/session"
)

type codeKey struct {
	accountID string
	purpose   otp.Purpose
}

// Store implements authcore.CredentialStore entirely in process memory.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*authcore.Account
	byEmail  map[string]string
	byPhone  map[string]string
	sessions map[string]*session.Session
	codes    map[codeKey]*otp.Code
	backup   map[string][][32]byte
}

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*authcore.Account),
		byEmail:  make(map[string]string),
		byPhone:  make(map[string]string),
		sessions: make(map[string]*session.Session),
		codes:    make(map[codeKey]*otp.Code),
		backup:   make(map[string][][32]byte),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

/*
====================================
ACCOUNTS
====================================
*/

func (s *Store) FindByEmail(_ context.Context, email string) (*authcore.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	out := *s.accounts[id]
	return &out, nil
}

func (s *Store) FindByID(_ context.Context, id string) (*authcore.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	out := *acct
	return &out, nil
}

func (s *Store) Create(_ context.Context, account *authcore.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(account.Email)
	if _, exists := s.byEmail[email]; exists {
		return authcore.ErrAccountExists
	}
	if account.Phone != "" {
		if _, exists := s.byPhone[account.Phone]; exists {
			return authcore.ErrAccountExists
		}
	}

	cp := *account
	cp.Email = email
	s.accounts[cp.ID] = &cp
	s.byEmail[email] = cp.ID
	if cp.Phone != "" {
		s.byPhone[cp.Phone] = cp.ID
	}
	return nil
}

func (s *Store) Update(_ context.Context, account *authcore.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[account.ID]
	if !ok {
		return authcore.ErrAccountNotFound
	}

	cp := *account
	cp.Email = normalizeEmail(cp.Email)
	if cp.Email != current.Email {
		if _, exists := s.byEmail[cp.Email]; exists {
			return authcore.ErrAccountExists
		}
		delete(s.byEmail, current.Email)
		s.byEmail[cp.Email] = cp.ID
	}
	if cp.Phone != current.Phone {
		if cp.Phone != "" {
			if _, exists := s.byPhone[cp.Phone]; exists {
				return authcore.ErrAccountExists
			}
		}
		delete(s.byPhone, current.Phone)
		if cp.Phone != "" {
			s.byPhone[cp.Phone] = cp.ID
		}
	}
	s.accounts[cp.ID] = &cp
	return nil
}

/*
====================================
SESSIONS
====================================
*/

// cloneSession deep-copies a record so callers never share the rotated
// hash history with the stored one.
func cloneSession(sess *session.Session) *session.Session {
	out := *sess
	out.RotatedHashes = append([][32]byte(nil), sess.RotatedHashes...)
	return &out
}

func (s *Store) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *Store) Get(_ context.Context, sessionID string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *Store) Rotate(
	_ context.Context,
	sessionID string,
	presentedHash, newHash [32]byte,
	newExpiry time.Time,
) (session.RotateOutcome, *session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return session.RotateNotFound, nil, nil
	}

	now := time.Now()
	switch {
	case sess.Revoked:
		return session.RotateRevoked, nil, nil
	case !now.Before(sess.ExpiresAt):
		return session.RotateExpired, nil, nil
	}

	if subtle.ConstantTimeCompare(presentedHash[:], sess.RefreshHash[:]) != 1 {
		for _, prev := range sess.RotatedHashes {
			if subtle.ConstantTimeCompare(presentedHash[:], prev[:]) == 1 {
				return session.RotateReuse, cloneSession(sess), nil
			}
		}
		return session.RotateMismatch, nil, nil
	}

	sess.RotatedHashes = append(sess.RotatedHashes, sess.RefreshHash)
	sess.RefreshHash = newHash
	sess.LastSeenAt = now
	sess.ExpiresAt = newExpiry
	return session.RotateOK, cloneSession(sess), nil
}

func (s *Store) Revoke(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		sess.Revoked = true
	}
	return nil
}

func (s *Store) RevokeAllForAccount(_ context.Context, accountID, exceptSessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.AccountID == accountID && sess.ID != exceptSessionID {
			sess.Revoked = true
		}
	}
	return nil
}

func (s *Store) ListActive(_ context.Context, accountID string, now time.Time) ([]*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*session.Session
	for _, sess := range s.sessions {
		if sess.AccountID == accountID && sess.Active(now) {
			out = append(out, cloneSession(sess))
		}
	}
	return out, nil
}

/*
====================================
ONE-TIME CODES
====================================
*/

func (s *Store) Put(_ context.Context, code *otp.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Storing under the pair key supersedes any prior active code.
	cp := *code
	s.codes[codeKey{code.AccountID, code.Purpose}] = &cp
	return nil
}

func (s *Store) GetActive(_ context.Context, accountID string, purpose otp.Purpose) (*otp.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[codeKey{accountID, purpose}]
	if !ok || code.Consumed {
		return nil, otp.ErrNotFound
	}
	out := *code
	return &out, nil
}

func (s *Store) Consume(_ context.Context, accountID string, purpose otp.Purpose, codeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[codeKey{accountID, purpose}]
	if !ok || code.Consumed || code.ID != codeID {
		return false, nil
	}
	code.Consumed = true
	return true, nil
}

// ReplaceBackupCodes swaps the account's recovery-code hash set
// wholesale.
func (s *Store) ReplaceBackupCodes(_ context.Context, accountID string, hashes [][32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return authcore.ErrAccountNotFound
	}
	s.backup[accountID] = append([][32]byte(nil), hashes...)
	return nil
}

// BackupCodeCount reports how many recovery codes the account holds.
func (s *Store) BackupCodeCount(accountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backup[accountID])
}

var (
	_ authcore.CredentialStore = (*Store)(nil)
	_ authcore.BackupCodeStore = (*Store)(nil)
)
