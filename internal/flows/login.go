package flows

import (
	"context"
)

// Account lifecycle states mirrored from the host package. The flow only
// needs to branch on them, never to interpret them.
const (
	StatusUnverified uint8 = iota
	StatusVerified
	StatusDisabled
)

// AccountRecord is the flow-local account shape.
type AccountRecord struct {
	ID           string
	Email        string
	Phone        string
	PasswordHash string
	Status       uint8
}

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureNotFound
	LoginFailureBadPassword
	LoginFailureUnverified
	LoginFailureDisabled
	LoginFailureIssueOTP
	LoginFailureCreateSession
)

// LoginResult carries either issued tokens, an OTP challenge, or failure
// metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	AccountID    string
	OTPRequired  bool
	AccessToken  string
	RefreshToken string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	RequireOTP bool

	FindByEmail        func(ctx context.Context, email string) (AccountRecord, error)
	VerifyPassword     func(password, hash string) bool
	NeedsUpgrade       func(hash string) (bool, error)
	HashPassword       func(password string) (string, error)
	UpdatePasswordHash func(ctx context.Context, accountID, hash string) error

	IssueLoginOTP func(ctx context.Context, account AccountRecord) error
	CreateSession func(ctx context.Context, account AccountRecord) (access, refresh string, err error)

	Warn func(msg string, args ...any)
}

// RunLogin verifies credentials and either mints a session or issues a
// second-factor challenge, per the RequireOTP policy. Account misses and
// wrong passwords produce distinct failure kinds; collapsing them into
// one public error is the caller's job.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	account, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{Failure: LoginFailureNotFound, Err: err}
	}

	if !deps.VerifyPassword(password, account.PasswordHash) {
		return LoginResult{Failure: LoginFailureBadPassword, AccountID: account.ID}
	}

	switch account.Status {
	case StatusUnverified:
		return LoginResult{Failure: LoginFailureUnverified, AccountID: account.ID}
	case StatusDisabled:
		return LoginResult{Failure: LoginFailureDisabled, AccountID: account.ID}
	}

	// Opportunistic cost upgrade. The password just verified, so rehash
	// under the current cost and store it. Failures here never fail the
	// login.
	if deps.NeedsUpgrade != nil {
		if upgrade, err := deps.NeedsUpgrade(account.PasswordHash); err == nil && upgrade {
			if newHash, err := deps.HashPassword(password); err == nil {
				if err := deps.UpdatePasswordHash(ctx, account.ID, newHash); err != nil && deps.Warn != nil {
					deps.Warn("password hash upgrade failed", "account_id", account.ID)
				}
			}
		}
	}

	if deps.RequireOTP {
		if err := deps.IssueLoginOTP(ctx, account); err != nil {
			return LoginResult{Failure: LoginFailureIssueOTP, Err: err, AccountID: account.ID}
		}
		return LoginResult{AccountID: account.ID, OTPRequired: true}
	}

	access, refresh, err := deps.CreateSession(ctx, account)
	if err != nil {
		return LoginResult{Failure: LoginFailureCreateSession, Err: err, AccountID: account.ID}
	}
	return LoginResult{
		AccountID:    account.ID,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
