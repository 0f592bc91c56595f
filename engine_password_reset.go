package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridianpay/authcore/secrets"
)

// ForgotPassword starts the reset flow. The return value is identical
// whether or not the address has an account, so the endpoint cannot be
// used to enumerate customers. When the account exists a reset code is
// issued and delivered.
func (e *Engine) ForgotPassword(ctx context.Context, email string, meta ClientMeta) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if err := e.allow(ctx, "forgot_password", rateIdentity(meta, email)); err != nil {
		return err
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emit(AuditEvent{
				EventType: "password_reset.unknown_email",
				IP:        meta.IP,
			})
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account.Status == AccountDisabled {
		return nil
	}

	e.metricInc(MetricResetRequested)
	e.emit(AuditEvent{
		EventType: "password_reset.requested",
		AccountID: account.ID,
		IP:        meta.IP,
		Success:   true,
	})

	if err := e.issueAndSendCode(ctx, account, PurposeReset, TemplateResetCode); err != nil {
		e.logger.Warn("reset code issuance failed",
			"account_id", account.ID, "error", err)
	}
	return nil
}

// ResetPassword completes the flow: the reset code is consumed, the new
// password replaces the old hash, and every session of the account is
// revoked so a stolen refresh token dies with the old credential.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPassword string, meta ClientMeta) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if err := e.allow(ctx, "reset_password", rateIdentity(meta, email)); err != nil {
		return err
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricResetRejected)
			return ErrCodeNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Strength is checked before the code is consumed, so a typo in the
	// new password does not burn the single-use code.
	if err := secrets.ValidateStrength(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	if err := e.otpManager.Verify(ctx, account.ID, PurposeReset, code); err != nil {
		e.metricInc(MetricResetRejected)
		e.metricInc(MetricOTPRejected)
		e.emit(AuditEvent{
			EventType: "password_reset.rejected",
			AccountID: account.ID,
			IP:        meta.IP,
		})
		return mapOTPError(err)
	}
	e.metricInc(MetricOTPVerified)

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	account.PasswordHash = hash
	if err := e.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.sessions.RevokeAllForAccount(ctx, account.ID, ""); err != nil {
		// The password already changed; report the store problem rather
		// than pretending the reset failed.
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricResetConfirmed)
	e.emit(AuditEvent{
		EventType: "password_reset.confirmed",
		AccountID: account.ID,
		IP:        meta.IP,
		Success:   true,
	})
	e.notify(ctx, TemplatePasswordChanged, account.Email, nil)
	return nil
}
