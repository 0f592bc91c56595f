package authcore

import (
	"errors"
	"time"

	"github.com/meridianpay/authcore/secrets"
)

// Config defines the tuning surface of the auth core.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	Login     LoginConfig
	Backup    BackupCodeConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token minting and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh-token and session-record lifetime.
type SessionConfig struct {
	RefreshTTL time.Duration
	// RedisPrefix namespaces session keys when the Redis store is used.
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls the bcrypt cost factor.
type PasswordConfig struct {
	Cost int
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls one-time-code issuance.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls the per-identifier request budget on sensitive
// endpoints.
type RateLimitConfig struct {
	Threshold int
	Window    time.Duration
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig selects the login policy.
type LoginConfig struct {
	// RequireOTP gates logins behind a second-factor one-time code.
	// Defaults to false: correct password yields tokens directly.
	RequireOTP bool
}

/*
====================================
BACKUP CODE CONFIG
====================================
*/

// BackupCodeConfig controls generated recovery credentials.
type BackupCodeConfig struct {
	Count int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	BufferSize int
}

// MetricsConfig toggles in-process counters. Counters are on unless
// explicitly disabled.
type MetricsConfig struct {
	Disabled bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "authcore",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RefreshTTL:  7 * 24 * time.Hour,
			RedisPrefix: "as",
		},
		Password: PasswordConfig{
			Cost: secrets.DefaultCost,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Threshold: 100,
			Window:    time.Minute,
		},
		Login: LoginConfig{
			RequireOTP: false,
		},
		Backup: BackupCodeConfig{
			Count: 10,
		},
		Audit: AuditConfig{
			BufferSize: 256,
		},
		Metrics: MetricsConfig{},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	return out
}

// Validate rejects configurations the engine cannot run with. Zero values
// that have safe defaults are filled by [Builder.Build] before this runs.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.Session.RefreshTTL <= 0 {
		return errors.New("Session RefreshTTL must be > 0")
	}
	if c.Session.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("Session RefreshTTL must be >= JWT AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("JWT SigningMethod must be hs256 or ed25519")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT PrivateKey is required")
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 4 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.RateLimit.Threshold <= 0 {
		return errors.New("RateLimit Threshold must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}
	if c.Backup.Count <= 0 {
		return errors.New("Backup Count must be > 0")
	}
	return nil
}
