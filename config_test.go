package authcore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianpay/authcore"
	"github.com/meridianpay/authcore/memstore"
)

func validConfig() authcore.Config {
	cfg := authcore.Config{}
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestBuildFillsDefaults(t *testing.T) {
	engine, err := authcore.New().
		WithConfig(validConfig()).
		WithStore(memstore.New()).
		Build()
	require.NoError(t, err)
	defer engine.Close()
}

func TestBuildRequiresStores(t *testing.T) {
	_, err := authcore.New().WithConfig(validConfig()).Build()
	require.Error(t, err)

	_, err = authcore.New().
		WithConfig(validConfig()).
		WithAccountStore(memstore.New()).
		Build()
	require.Error(t, err, "sessions need a backend when no redis client is given")
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := authcore.New().WithConfig(validConfig()).WithStore(memstore.New())

	engine, err := b.Build()
	require.NoError(t, err)
	defer engine.Close()

	_, err = b.Build()
	assert.Error(t, err)
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*authcore.Config)
	}{
		{"missing jwt key", func(cfg *authcore.Config) { cfg.JWT.PrivateKey = nil }},
		{"bad signing method", func(cfg *authcore.Config) { cfg.JWT.SigningMethod = "rs256" }},
		{"refresh shorter than access", func(cfg *authcore.Config) {
			cfg.JWT.AccessTTL = time.Hour
			cfg.Session.RefreshTTL = time.Minute
		}},
		{"otp digits out of range", func(cfg *authcore.Config) { cfg.OTP.Digits = 3 }},
		{"negative rate window", func(cfg *authcore.Config) { cfg.RateLimit.Window = -time.Second }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			_, err := authcore.New().
				WithConfig(cfg).
				WithStore(memstore.New()).
				Build()
			assert.Error(t, err)
		})
	}
}

func TestMetricsSnapshotCounts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signupVerified(t, "metrics@example.com", "Str0ng!Pass")

	snap := env.engine.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[authcore.MetricSignupSuccess])
	assert.Equal(t, uint64(1), snap.Counters[authcore.MetricVerifyEmailSuccess])
	assert.Equal(t, uint64(1), snap.Counters[authcore.MetricOTPVerified])
}

func TestMetricsDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Disabled = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithStore(memstore.New()).
		Build()
	require.NoError(t, err)
	defer engine.Close()

	snap := engine.MetricsSnapshot()
	assert.Empty(t, snap.Counters)
}
