package authcore_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianpay/authcore"
	"github.com/meridianpay/authcore/memstore"
)

// captureNotifier records delivered codes per recipient and template.
type captureNotifier struct {
	mu        sync.Mutex
	codes     map[string]string
	templates []string
}

func (n *captureNotifier) Send(_ context.Context, template, recipient string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = make(map[string]string)
	}
	n.templates = append(n.templates, template)
	if code, ok := data["code"]; ok {
		n.codes[recipient] = code
	}
	return nil
}

func (n *captureNotifier) lastCode(recipient string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[recipient]
}

func (n *captureNotifier) sent(template string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.templates {
		if t == template {
			return true
		}
	}
	return false
}

type testEnv struct {
	engine   *authcore.Engine
	store    *memstore.Store
	notifier *captureNotifier
	sink     *authcore.ChannelSink
}

func newTestEnv(t *testing.T, mutate func(*authcore.Config)) *testEnv {
	t.Helper()

	cfg := authcore.Config{}
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	// bcrypt at the minimum cost keeps the suite fast; production cost
	// is covered in the secrets package tests.
	cfg.Password.Cost = 4
	if mutate != nil {
		mutate(&cfg)
	}

	store := memstore.New()
	notifier := &captureNotifier{}
	sink := authcore.NewChannelSink(128)

	engine, err := authcore.New().
		WithConfig(cfg).
		WithStore(store).
		WithNotifier(notifier).
		WithAuditSink(sink).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, notifier: notifier, sink: sink}
}

func (env *testEnv) signupVerified(t *testing.T, email, password string) string {
	t.Helper()
	ctx := context.Background()

	result, err := env.engine.Signup(ctx, email, "", password, authcore.ClientMeta{})
	require.NoError(t, err)

	code := env.notifier.lastCode(email)
	require.NotEmpty(t, code)
	require.NoError(t, env.engine.VerifyEmail(ctx, email, code, authcore.ClientMeta{}))
	return result.AccountID
}

// securityEvents drains the audit channel after Close and returns the
// security-flagged event types.
func (env *testEnv) securityEvents() []string {
	env.engine.Close()
	var out []string
	for {
		select {
		case event := <-env.sink.Events():
			if event.Security {
				out = append(out, event.EventType)
			}
		default:
			return out
		}
	}
}

// TestAccountLifecycle walks the canonical journey: weak password
// rejected, signup pending, verification, login, access verification,
// refresh rotation, and reuse detection killing every session.
func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	meta := authcore.ClientMeta{IP: "203.0.113.9", UserAgent: "lifecycle-test"}

	_, err := env.engine.Signup(ctx, "user@example.com", "", "weak", meta)
	require.ErrorIs(t, err, authcore.ErrWeakPassword)
	assert.Equal(t, authcore.KindValidation, authcore.KindOf(err))

	signup, err := env.engine.Signup(ctx, "user@example.com", "", "Str0ng!Pass", meta)
	require.NoError(t, err)
	assert.Equal(t, authcore.AccountUnverified, signup.Status)

	_, err = env.engine.Login(ctx, "user@example.com", "Str0ng!Pass", meta)
	require.ErrorIs(t, err, authcore.ErrAccountUnverified)

	code := env.notifier.lastCode("user@example.com")
	require.NotEmpty(t, code)
	require.NoError(t, env.engine.VerifyEmail(ctx, "user@example.com", code, meta))
	assert.True(t, env.notifier.sent(authcore.TemplateWelcome))

	login, err := env.engine.Login(ctx, "user@example.com", "Str0ng!Pass", meta)
	require.NoError(t, err)
	require.False(t, login.OTPRequired)

	auth, err := env.engine.VerifyAccess(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signup.AccountID, auth.AccountID)

	rotated, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken, meta)
	require.NoError(t, err)
	assert.NotEqual(t, login.Tokens.RefreshToken, rotated.RefreshToken)

	// The rotated-out token is now an attack signal.
	_, err = env.engine.Refresh(ctx, login.Tokens.RefreshToken, meta)
	require.ErrorIs(t, err, authcore.ErrRefreshReuse)
	assert.Equal(t, authcore.KindSecurityEvent, authcore.KindOf(err))

	// Collateral: the legitimate holder's fresh token died too.
	_, err = env.engine.Refresh(ctx, rotated.RefreshToken, meta)
	require.Error(t, err)

	events := env.securityEvents()
	assert.Contains(t, events, "refresh.reuse_detected")
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.engine.Signup(ctx, "dup@example.com", "", "Str0ng!Pass", authcore.ClientMeta{})
	require.NoError(t, err)

	_, err = env.engine.Signup(ctx, "DUP@example.com", "", "Other!Pass1", authcore.ClientMeta{})
	require.ErrorIs(t, err, authcore.ErrAccountExists)
	assert.Equal(t, authcore.KindConflict, authcore.KindOf(err))
}

func TestSignupRejectsMalformedEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, email := range []string{"", "nodomain", "@example.com", "x@", "x@nodot"} {
		_, err := env.engine.Signup(context.Background(), email, "", "Str0ng!Pass", authcore.ClientMeta{})
		assert.ErrorIs(t, err, authcore.ErrInvalidInput, email)
	}
}

func TestLoginCollapsesCredentialFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.signupVerified(t, "user@example.com", "Str0ng!Pass")

	_, unknownErr := env.engine.Login(ctx, "ghost@example.com", "Str0ng!Pass", authcore.ClientMeta{})
	_, wrongErr := env.engine.Login(ctx, "user@example.com", "Wrong!Pass1", authcore.ClientMeta{})

	require.ErrorIs(t, unknownErr, authcore.ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, authcore.ErrInvalidCredentials)
	// Identical error values, so responses cannot be told apart.
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	accountID := env.signupVerified(t, "gone@example.com", "Str0ng!Pass")

	account, err := env.store.FindByID(ctx, accountID)
	require.NoError(t, err)
	account.Status = authcore.AccountDisabled
	require.NoError(t, env.store.Update(ctx, account))

	_, err = env.engine.Login(ctx, "gone@example.com", "Str0ng!Pass", authcore.ClientMeta{})
	require.ErrorIs(t, err, authcore.ErrAccountDisabled)
}

func TestOTPGatedLoginFlow(t *testing.T) {
	env := newTestEnv(t, func(cfg *authcore.Config) {
		cfg.Login.RequireOTP = true
	})
	ctx := context.Background()
	env.signupVerified(t, "mfa@example.com", "Str0ng!Pass")

	login, err := env.engine.Login(ctx, "mfa@example.com", "Str0ng!Pass", authcore.ClientMeta{})
	require.NoError(t, err)
	require.True(t, login.OTPRequired)
	assert.Empty(t, login.Tokens.AccessToken)

	code := env.notifier.lastCode("mfa@example.com")
	require.NotEmpty(t, code)

	_, err = env.engine.CompleteLoginOTP(ctx, "mfa@example.com", "000000", authcore.ClientMeta{})
	require.Error(t, err)

	pair, err := env.engine.CompleteLoginOTP(ctx, "mfa@example.com", code, authcore.ClientMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	// The code was consumed by the successful completion.
	_, err = env.engine.CompleteLoginOTP(ctx, "mfa@example.com", code, authcore.ClientMeta{})
	require.ErrorIs(t, err, authcore.ErrCodeNotFound)
}

func TestRateLimitedLogin(t *testing.T) {
	env := newTestEnv(t, func(cfg *authcore.Config) {
		cfg.RateLimit.Threshold = 3
	})
	ctx := context.Background()
	meta := authcore.ClientMeta{IP: "198.51.100.1"}

	var err error
	for i := 0; i < 4; i++ {
		_, err = env.engine.Login(ctx, "ghost@example.com", "Wrong!Pass1", meta)
	}
	require.ErrorIs(t, err, authcore.ErrRateLimited)
	assert.Equal(t, authcore.KindRateLimited, authcore.KindOf(err))
	assert.Greater(t, authcore.RetryAfter(err).Seconds(), 0.0)
}
