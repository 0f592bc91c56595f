package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridianpay/authcore/internal"
	"github.com/meridianpay/authcore/internal/flows"
	"github.com/meridianpay/authcore/session"
)

// Login verifies an email/password pair. Depending on the login policy
// the result carries either a fresh token pair or an OTP challenge to be
// answered with [Engine.CompleteLoginOTP]. Unknown accounts and wrong
// passwords both surface as [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, email, password string, meta ClientMeta) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if err := e.allow(ctx, "login", rateIdentity(meta, email)); err != nil {
		e.metricInc(MetricLoginRateLimited)
		return nil, err
	}

	result := flows.RunLogin(ctx, email, password, e.loginDeps(meta))

	switch result.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureNotFound:
		if result.Err != nil && !errors.Is(result.Err, ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
		}
		fallthrough
	case flows.LoginFailureBadPassword:
		e.metricInc(MetricLoginFailure)
		e.emit(AuditEvent{
			EventType: "login.failure",
			AccountID: result.AccountID,
			IP:        meta.IP,
		})
		return nil, ErrInvalidCredentials
	case flows.LoginFailureUnverified:
		e.metricInc(MetricLoginFailure)
		return nil, ErrAccountUnverified
	case flows.LoginFailureDisabled:
		e.metricInc(MetricLoginFailure)
		e.emit(AuditEvent{
			EventType: "login.disabled_account",
			AccountID: result.AccountID,
			IP:        meta.IP,
		})
		return nil, ErrAccountDisabled
	default:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}

	if result.OTPRequired {
		e.metricInc(MetricLoginOTPRequired)
		e.emit(AuditEvent{
			EventType: "login.otp_challenge",
			AccountID: result.AccountID,
			IP:        meta.IP,
			Success:   true,
		})
		return &LoginResult{OTPRequired: true, AccountID: result.AccountID}, nil
	}

	e.metricInc(MetricLoginSuccess)
	e.emit(AuditEvent{
		EventType: "login.success",
		AccountID: result.AccountID,
		IP:        meta.IP,
		Success:   true,
	})
	return &LoginResult{
		AccountID: result.AccountID,
		Tokens: TokenPair{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
		},
	}, nil
}

// CompleteLoginOTP answers the second-factor challenge and mints the
// session the challenge deferred.
func (e *Engine) CompleteLoginOTP(ctx context.Context, email, code string, meta ClientMeta) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if err := e.allow(ctx, "login_otp", rateIdentity(meta, email)); err != nil {
		return nil, err
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricOTPRejected)
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.otpManager.Verify(ctx, account.ID, PurposeLogin, code); err != nil {
		e.metricInc(MetricOTPRejected)
		e.emit(AuditEvent{
			EventType: "login.otp_rejected",
			AccountID: account.ID,
			IP:        meta.IP,
		})
		return nil, mapOTPError(err)
	}
	e.metricInc(MetricOTPVerified)

	pair, _, err := e.createSession(ctx, account.ID, meta)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emit(AuditEvent{
		EventType: "login.success",
		AccountID: account.ID,
		IP:        meta.IP,
		Success:   true,
		Metadata:  map[string]string{"second_factor": "otp"},
	})
	return &pair, nil
}

func (e *Engine) loginDeps(meta ClientMeta) flows.LoginDeps {
	return flows.LoginDeps{
		RequireOTP: e.config.Login.RequireOTP,
		FindByEmail: func(ctx context.Context, email string) (flows.AccountRecord, error) {
			account, err := e.accounts.FindByEmail(ctx, email)
			if err != nil {
				return flows.AccountRecord{}, err
			}
			return flows.AccountRecord{
				ID:           account.ID,
				Email:        account.Email,
				Phone:        account.Phone,
				PasswordHash: account.PasswordHash,
				Status:       uint8(account.Status),
			}, nil
		},
		VerifyPassword: func(password, hash string) bool {
			return e.hasher.Verify(password, hash)
		},
		NeedsUpgrade: e.hasher.NeedsUpgrade,
		HashPassword: e.hasher.Hash,
		UpdatePasswordHash: func(ctx context.Context, accountID, hash string) error {
			account, err := e.accounts.FindByID(ctx, accountID)
			if err != nil {
				return err
			}
			account.PasswordHash = hash
			return e.accounts.Update(ctx, account)
		},
		IssueLoginOTP: func(ctx context.Context, record flows.AccountRecord) error {
			return e.issueAndSendCode(ctx, &Account{
				ID:    record.ID,
				Email: record.Email,
			}, PurposeLogin, TemplateLoginCode)
		},
		CreateSession: func(ctx context.Context, record flows.AccountRecord) (string, string, error) {
			pair, _, err := e.createSession(ctx, record.ID, meta)
			if err != nil {
				return "", "", err
			}
			return pair.AccessToken, pair.RefreshToken, nil
		},
		Warn: e.logger.Warn,
	}
}

// createSession mints a session record, its access JWT, and the opaque
// refresh token. Only the SHA-256 of the refresh secret is persisted.
func (e *Engine) createSession(ctx context.Context, accountID string, meta ClientMeta) (TokenPair, string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:          sid.String(),
		AccountID:   accountID,
		RefreshHash: internal.HashRefreshSecret(secret),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.config.Session.RefreshTTL),
		LastSeenAt:  now,
	}
	if err := e.sessions.Save(ctx, sess); err != nil {
		return TokenPair{}, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	access, err := e.jwtManager.CreateAccess(accountID, sess.ID)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	refresh, err := internal.EncodeRefreshToken(sess.ID, secret)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSessionCreated)
	return TokenPair{AccessToken: access, RefreshToken: refresh}, sess.ID, nil
}
