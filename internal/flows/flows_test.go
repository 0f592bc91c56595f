package flows

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianpay/authcore/session"
)

func baseLoginDeps(account AccountRecord) LoginDeps {
	return LoginDeps{
		FindByEmail: func(_ context.Context, email string) (AccountRecord, error) {
			if email != account.Email {
				return AccountRecord{}, errors.New("not found")
			}
			return account, nil
		},
		VerifyPassword: func(password, hash string) bool {
			return hash == "hash:"+password
		},
		CreateSession: func(context.Context, AccountRecord) (string, string, error) {
			return "access", "refresh", nil
		},
		IssueLoginOTP: func(context.Context, AccountRecord) error {
			return nil
		},
	}
}

func TestRunLoginDirect(t *testing.T) {
	account := AccountRecord{ID: "a1", Email: "a@b.co", PasswordHash: "hash:pw", Status: StatusVerified}

	result := RunLogin(context.Background(), "a@b.co", "pw", baseLoginDeps(account))

	require.Equal(t, LoginFailureNone, result.Failure)
	assert.False(t, result.OTPRequired)
	assert.Equal(t, "access", result.AccessToken)
	assert.Equal(t, "refresh", result.RefreshToken)
	assert.Equal(t, "a1", result.AccountID)
}

func TestRunLoginOTPGated(t *testing.T) {
	account := AccountRecord{ID: "a1", Email: "a@b.co", PasswordHash: "hash:pw", Status: StatusVerified}
	deps := baseLoginDeps(account)
	deps.RequireOTP = true

	issued := false
	deps.IssueLoginOTP = func(context.Context, AccountRecord) error {
		issued = true
		return nil
	}
	deps.CreateSession = func(context.Context, AccountRecord) (string, string, error) {
		t.Fatal("session must not be created before the challenge is answered")
		return "", "", nil
	}

	result := RunLogin(context.Background(), "a@b.co", "pw", deps)

	require.Equal(t, LoginFailureNone, result.Failure)
	assert.True(t, result.OTPRequired)
	assert.True(t, issued)
	assert.Empty(t, result.AccessToken)
}

func TestRunLoginFailures(t *testing.T) {
	account := AccountRecord{ID: "a1", Email: "a@b.co", PasswordHash: "hash:pw", Status: StatusVerified}

	t.Run("unknown email", func(t *testing.T) {
		result := RunLogin(context.Background(), "x@b.co", "pw", baseLoginDeps(account))
		assert.Equal(t, LoginFailureNotFound, result.Failure)
	})

	t.Run("wrong password", func(t *testing.T) {
		result := RunLogin(context.Background(), "a@b.co", "nope", baseLoginDeps(account))
		assert.Equal(t, LoginFailureBadPassword, result.Failure)
	})

	t.Run("unverified", func(t *testing.T) {
		pending := account
		pending.Status = StatusUnverified
		result := RunLogin(context.Background(), "a@b.co", "pw", baseLoginDeps(pending))
		assert.Equal(t, LoginFailureUnverified, result.Failure)
	})

	t.Run("disabled", func(t *testing.T) {
		disabled := account
		disabled.Status = StatusDisabled
		result := RunLogin(context.Background(), "a@b.co", "pw", baseLoginDeps(disabled))
		assert.Equal(t, LoginFailureDisabled, result.Failure)
	})
}

func TestRunLoginHashUpgrade(t *testing.T) {
	account := AccountRecord{ID: "a1", Email: "a@b.co", PasswordHash: "hash:pw", Status: StatusVerified}
	deps := baseLoginDeps(account)

	var stored string
	deps.NeedsUpgrade = func(string) (bool, error) { return true, nil }
	deps.HashPassword = func(password string) (string, error) { return "newhash:" + password, nil }
	deps.UpdatePasswordHash = func(_ context.Context, _, hash string) error {
		stored = hash
		return nil
	}

	result := RunLogin(context.Background(), "a@b.co", "pw", deps)

	require.Equal(t, LoginFailureNone, result.Failure)
	assert.Equal(t, "newhash:pw", stored)
}

func refreshDeps(rotate func(context.Context, string, [32]byte, [32]byte, time.Time) (session.RotateOutcome, *session.Session, error)) RefreshDeps {
	return RefreshDeps{
		RefreshTTL: time.Hour,
		Now:        time.Now,
		DecodeRefreshToken: func(token string) (string, [32]byte, error) {
			if token == "bad" {
				return "", [32]byte{}, errors.New("malformed")
			}
			return "s1", sha256.Sum256([]byte(token)), nil
		},
		NewRefreshSecret: func() ([32]byte, error) {
			return sha256.Sum256([]byte("next")), nil
		},
		HashRefreshSecret: func(secret [32]byte) [32]byte {
			return sha256.Sum256(secret[:])
		},
		EncodeRefreshToken: func(sessionID string, _ [32]byte) (string, error) {
			return sessionID + ".rotated", nil
		},
		Rotate: rotate,
		RevokeAll: func(context.Context, string, string) error {
			return nil
		},
		IssueAccess: func(accountID, sessionID string) (string, error) {
			return accountID + "." + sessionID + ".jwt", nil
		},
	}
}

func TestRunRefreshHappyPath(t *testing.T) {
	deps := refreshDeps(func(_ context.Context, sessionID string, _, _ [32]byte, _ time.Time) (session.RotateOutcome, *session.Session, error) {
		return session.RotateOK, &session.Session{ID: sessionID, AccountID: "a1"}, nil
	})

	result := RunRefresh(context.Background(), "tok", deps)

	require.Equal(t, RefreshFailureNone, result.Failure)
	assert.Equal(t, "a1.s1.jwt", result.AccessToken)
	assert.Equal(t, "s1.rotated", result.RefreshToken)
	assert.Equal(t, "a1", result.AccountID)
}

func TestRunRefreshDecodeFailure(t *testing.T) {
	deps := refreshDeps(func(context.Context, string, [32]byte, [32]byte, time.Time) (session.RotateOutcome, *session.Session, error) {
		t.Fatal("rotation must not run for malformed tokens")
		return 0, nil, nil
	})

	result := RunRefresh(context.Background(), "bad", deps)
	assert.Equal(t, RefreshFailureDecode, result.Failure)
}

func TestRunRefreshReuseRevokesAllSessions(t *testing.T) {
	deps := refreshDeps(func(_ context.Context, sessionID string, _, _ [32]byte, _ time.Time) (session.RotateOutcome, *session.Session, error) {
		return session.RotateReuse, &session.Session{ID: sessionID, AccountID: "a1"}, nil
	})

	var revokedAccount string
	deps.RevokeAll = func(_ context.Context, accountID, except string) error {
		revokedAccount = accountID
		assert.Empty(t, except)
		return nil
	}

	result := RunRefresh(context.Background(), "stolen", deps)

	assert.Equal(t, RefreshFailureReuse, result.Failure)
	assert.Equal(t, "a1", revokedAccount)
	assert.Equal(t, "a1", result.AccountID)
}

func TestRunRefreshOutcomeMapping(t *testing.T) {
	cases := []struct {
		outcome session.RotateOutcome
		want    RefreshFailureKind
	}{
		{session.RotateNotFound, RefreshFailureNotFound},
		{session.RotateExpired, RefreshFailureExpired},
		{session.RotateRevoked, RefreshFailureRevoked},
		{session.RotateMismatch, RefreshFailureMismatch},
	}
	for _, tc := range cases {
		deps := refreshDeps(func(context.Context, string, [32]byte, [32]byte, time.Time) (session.RotateOutcome, *session.Session, error) {
			return tc.outcome, nil, nil
		})
		result := RunRefresh(context.Background(), "tok", deps)
		assert.Equal(t, tc.want, result.Failure)
	}
}
