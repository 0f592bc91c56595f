package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/authcore/secrets"
)

// Signup registers a new account. The account starts unverified; a
// signup one-time code is issued and delivered, and the caller completes
// the flow with [Engine.VerifyEmail]. Tokens are never issued here.
func (e *Engine) Signup(ctx context.Context, email, phone, password string, meta ClientMeta) (*SignupResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}

	if err := e.allow(ctx, "signup", rateIdentity(meta, email)); err != nil {
		return nil, err
	}

	if err := secrets.ValidateStrength(password); err != nil {
		e.metricInc(MetricSignupRejected)
		return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	account := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Status:       AccountUnverified,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricSignupDuplicate)
			e.emit(AuditEvent{
				EventType: "signup.duplicate",
				IP:        meta.IP,
			})
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.issueAndSendCode(ctx, account, PurposeSignup, TemplateVerifyEmail); err != nil {
		// The account exists either way; the caller can request a new
		// code with ResendVerification.
		e.logger.Warn("signup verification code issuance failed",
			"account_id", account.ID, "error", err)
	}

	e.metricInc(MetricSignupSuccess)
	e.emit(AuditEvent{
		EventType: "signup.success",
		AccountID: account.ID,
		IP:        meta.IP,
		Success:   true,
	})

	return &SignupResult{
		AccountID: account.ID,
		Status:    AccountUnverified,
	}, nil
}

// VerifyEmail consumes the signup one-time code and marks the account
// verified. A welcome notification is sent on success.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string, meta ClientMeta) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if err := e.allow(ctx, "verify_email", rateIdentity(meta, email)); err != nil {
		return err
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Same error as a wrong code, so probes learn nothing.
			e.metricInc(MetricVerifyEmailFailure)
			return ErrCodeNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.otpManager.Verify(ctx, account.ID, PurposeSignup, code); err != nil {
		e.metricInc(MetricVerifyEmailFailure)
		e.metricInc(MetricOTPRejected)
		return mapOTPError(err)
	}
	e.metricInc(MetricOTPVerified)

	if account.Status == AccountUnverified {
		account.Status = AccountVerified
		if err := e.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	e.metricInc(MetricVerifyEmailSuccess)
	e.emit(AuditEvent{
		EventType: "signup.verified",
		AccountID: account.ID,
		IP:        meta.IP,
		Success:   true,
	})
	e.notify(ctx, TemplateWelcome, account.Email, nil)
	return nil
}

// ResendVerification issues a fresh signup code, superseding any prior
// active one. Unknown addresses report success so the endpoint cannot be
// used to enumerate accounts.
func (e *Engine) ResendVerification(ctx context.Context, email string, meta ClientMeta) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if err := e.allow(ctx, "resend_verification", rateIdentity(meta, email)); err != nil {
		return err
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account.Status != AccountUnverified {
		return nil
	}

	return e.issueAndSendCode(ctx, account, PurposeSignup, TemplateVerifyEmail)
}

func (e *Engine) issueAndSendCode(ctx context.Context, account *Account, purpose Purpose, template string) error {
	code, err := e.otpManager.Issue(ctx, account.ID, purpose)
	if err != nil {
		return err
	}
	e.metricInc(MetricOTPIssued)
	e.notify(ctx, template, account.Email, map[string]string{"code": code})
	return nil
}

// rateIdentity prefers the client IP and falls back to the account
// identifier, so unauthenticated scrapers without stable addresses still
// hit a budget.
func rateIdentity(meta ClientMeta, fallback string) string {
	if meta.IP != "" {
		return meta.IP
	}
	if fallback != "" {
		return fallback
	}
	return "unknown"
}
