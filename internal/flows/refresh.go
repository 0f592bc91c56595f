package flows

import (
	"context"
	"time"

	"github.com/meridianpay/authcore/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level
// mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureNextSecret
	RefreshFailureStore
	RefreshFailureNotFound
	RefreshFailureExpired
	RefreshFailureRevoked
	RefreshFailureMismatch
	RefreshFailureReuse
	RefreshFailureIssueAccess
	RefreshFailureEncode
)

// RefreshResult carries either the rotated token pair or failure
// metadata. SessionID and AccountID are set whenever they are known, so
// the caller can attribute failures in its audit trail.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	SessionID    string
	AccountID    string
	AccessToken  string
	RefreshToken string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	RefreshTTL time.Duration
	Now        func() time.Time

	DecodeRefreshToken func(token string) (sessionID string, secret [32]byte, err error)
	NewRefreshSecret   func() ([32]byte, error)
	HashRefreshSecret  func(secret [32]byte) [32]byte
	EncodeRefreshToken func(sessionID string, secret [32]byte) (string, error)

	Rotate func(
		ctx context.Context,
		sessionID string,
		presentedHash, newHash [32]byte,
		newExpiry time.Time,
	) (session.RotateOutcome, *session.Session, error)

	// RevokeAll is invoked on reuse detection, before the failure is
	// reported, so a stolen token cannot outlive its discovery.
	RevokeAll func(ctx context.Context, accountID, exceptSessionID string) error

	IssueAccess func(accountID, sessionID string) (string, error)

	Warn func(msg string, args ...any)
}

// RunRefresh rotates a refresh token. Exactly one concurrent caller
// presenting the same token observes success; the rest see a mismatch or
// reuse failure, depending on whether the winner's rotation already
// landed.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	sessionID, presentedSecret, err := deps.DecodeRefreshToken(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	nextSecret, err := deps.NewRefreshSecret()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureNextSecret, Err: err, SessionID: sessionID}
	}

	outcome, sess, err := deps.Rotate(
		ctx,
		sessionID,
		deps.HashRefreshSecret(presentedSecret),
		deps.HashRefreshSecret(nextSecret),
		deps.Now().Add(deps.RefreshTTL),
	)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, SessionID: sessionID}
	}

	switch outcome {
	case session.RotateOK:
	case session.RotateReuse:
		result := RefreshResult{Failure: RefreshFailureReuse, SessionID: sessionID}
		if sess != nil {
			result.AccountID = sess.AccountID
			if err := deps.RevokeAll(ctx, sess.AccountID, ""); err != nil && deps.Warn != nil {
				deps.Warn("revoke-all after reuse detection failed", "account_id", sess.AccountID)
			}
		}
		return result
	case session.RotateNotFound:
		return RefreshResult{Failure: RefreshFailureNotFound, SessionID: sessionID}
	case session.RotateExpired:
		return RefreshResult{Failure: RefreshFailureExpired, SessionID: sessionID}
	case session.RotateRevoked:
		return RefreshResult{Failure: RefreshFailureRevoked, SessionID: sessionID}
	default:
		return RefreshResult{Failure: RefreshFailureMismatch, SessionID: sessionID}
	}

	access, err := deps.IssueAccess(sess.AccountID, sess.ID)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureIssueAccess,
			Err:       err,
			SessionID: sessionID,
			AccountID: sess.AccountID,
		}
	}

	encoded, err := deps.EncodeRefreshToken(sessionID, nextSecret)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureEncode,
			Err:       err,
			SessionID: sessionID,
			AccountID: sess.AccountID,
		}
	}

	return RefreshResult{
		SessionID:    sessionID,
		AccountID:    sess.AccountID,
		AccessToken:  access,
		RefreshToken: encoded,
	}
}
