package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/meridianpay/authcore/internal"
	"github.com/meridianpay/authcore/internal/flows"
	"github.com/meridianpay/authcore/jwt"
	"github.com/meridianpay/authcore/session"
)

func matchesKnownGeneration(sess *session.Session, presented [32]byte) bool {
	if subtle.ConstantTimeCompare(presented[:], sess.RefreshHash[:]) == 1 {
		return true
	}
	for _, prev := range sess.RotatedHashes {
		if subtle.ConstantTimeCompare(presented[:], prev[:]) == 1 {
			return true
		}
	}
	return false
}

// Refresh rotates a refresh token and returns a new token pair. The
// presented token is single-use: under concurrent presentation exactly
// one caller wins. A token that was already rotated out trips reuse
// detection, which revokes every session of the account and returns
// [ErrRefreshReuse].
func (e *Engine) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.allow(ctx, "refresh", rateIdentity(meta, refreshToken)); err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	result := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		RefreshTTL:         e.config.Session.RefreshTTL,
		Now:                time.Now,
		DecodeRefreshToken: internal.DecodeRefreshToken,
		NewRefreshSecret:   internal.NewRefreshSecret,
		HashRefreshSecret:  internal.HashRefreshSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
		Rotate:             e.sessions.Rotate,
		RevokeAll:          e.sessions.RevokeAllForAccount,
		IssueAccess:        e.jwtManager.CreateAccess,
		Warn:               e.logger.Warn,
	})

	switch result.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.emitSecurity("refresh.reuse_detected", result.AccountID, result.SessionID, meta.IP)
		e.logger.Warn("refresh token reuse detected, account sessions revoked",
			"account_id", result.AccountID, "session_id", result.SessionID)
		return nil, ErrRefreshReuse
	case flows.RefreshFailureDecode, flows.RefreshFailureMismatch:
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	case flows.RefreshFailureNotFound:
		e.metricInc(MetricRefreshFailure)
		return nil, ErrSessionNotFound
	case flows.RefreshFailureExpired:
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenExpired
	case flows.RefreshFailureRevoked:
		e.metricInc(MetricRefreshFailure)
		return nil, ErrSessionRevoked
	default:
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emit(AuditEvent{
		EventType: "refresh.success",
		AccountID: result.AccountID,
		SessionID: result.SessionID,
		IP:        meta.IP,
		Success:   true,
	})
	return &TokenPair{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, nil
}

// VerifyAccess checks an access token statelessly: signature, expiry,
// issuer, and audience. No store round-trip happens on this path, so a
// revoked session's access token stays valid until it expires. That is
// the documented trade for keeping request authentication O(1).
func (e *Engine) VerifyAccess(_ context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return &AuthResult{
		AccountID: claims.AID,
		SessionID: claims.SID,
	}, nil
}

// Logout revokes the session the refresh token identifies. The token's
// secret half must match a known generation; a well-formed token that
// merely names a session ID does not get to revoke it. Revoking an
// already-revoked or missing session is not an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string, meta ClientMeta) error {
	if e == nil {
		return ErrEngineNotReady
	}

	sessionID, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrTokenInvalid
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// A rotated-out generation still proves past ownership; revoking on
	// it is the safe response.
	if !matchesKnownGeneration(sess, internal.HashRefreshSecret(secret)) {
		return ErrTokenInvalid
	}

	if err := e.sessions.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionRevoked)
	e.emit(AuditEvent{
		EventType: "logout.success",
		SessionID: sessionID,
		IP:        meta.IP,
		Success:   true,
	})
	return nil
}

// LogoutAll revokes every session of the account.
func (e *Engine) LogoutAll(ctx context.Context, accountID string, meta ClientMeta) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.sessions.RevokeAllForAccount(ctx, accountID, ""); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogoutAll)
	e.emit(AuditEvent{
		EventType: "logout.all",
		AccountID: accountID,
		IP:        meta.IP,
		Success:   true,
	})
	return nil
}

// RevokeSession revokes one session by ID, for admin tooling and the
// session-list UI. Idempotent.
func (e *Engine) RevokeSession(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.sessions.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricSessionRevoked)
	return nil
}

// ListSessions returns the account's active sessions, most recent
// activity first. Refresh hashes are scrubbed before the records leave
// the engine.
func (e *Engine) ListSessions(ctx context.Context, accountID string) ([]*SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sessions, err := e.sessions.ListActive(ctx, accountID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for _, sess := range sessions {
		sess.RefreshHash = [32]byte{}
		sess.RotatedHashes = nil
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastSeenAt.After(sessions[j].LastSeenAt)
	})
	return sessions, nil
}
