package authcore

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/meridianpay/authcore/internal/audit"
	internalmetrics "github.com/meridianpay/authcore/internal/metrics"
	"github.com/meridianpay/authcore/internal/otp"
	"github.com/meridianpay/authcore/internal/rate"
	"github.com/meridianpay/authcore/jwt"
	"github.com/meridianpay/authcore/secrets"
	"github.com/meridianpay/authcore/session"
)

// Builder assembles an [Engine]. A Builder is single-use: Build returns
// an error on the second call.
type Builder struct {
	config Config
	redis  *redis.Client

	accounts AccountStore
	sessions SessionStore
	codes    CodeStore

	notifier  Notifier
	auditSink AuditSink
	logger    *slog.Logger
	limiter   RateLimiter

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the full configuration. Zero-valued sections keep
// their defaults; Build fills them in before validation.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the session store, the
// one-time-code store, and the rate limiter, unless explicit stores
// override one of those.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithStore wires one [CredentialStore] implementation for accounts,
// sessions, and codes at once.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.accounts = store
	b.sessions = store
	b.codes = store
	return b
}

// WithAccountStore overrides the account repository.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithSessionStore overrides the session repository.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

// WithCodeStore overrides the one-time-code repository.
func (b *Builder) WithCodeStore(store CodeStore) *Builder {
	b.codes = store
	return b
}

// WithNotifier supplies the outbound mail channel. Without one the
// engine logs deliveries instead of sending them.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink enables the async audit trail.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger replaces the default slog logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRateLimiter overrides the limiter chosen by Build.
func (b *Builder) WithRateLimiter(limiter RateLimiter) *Builder {
	b.limiter = limiter
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Disabled = !enabled
	return b
}

func fillDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = def.JWT.AccessTTL
	}
	if cfg.JWT.SigningMethod == "" {
		cfg.JWT.SigningMethod = def.JWT.SigningMethod
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = def.JWT.Issuer
	}
	// Leeway zero is a legitimate setting (exact expiry), so it is not
	// defaulted here.
	if cfg.Session.RefreshTTL == 0 {
		cfg.Session.RefreshTTL = def.Session.RefreshTTL
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = def.Session.RedisPrefix
	}
	if cfg.Password.Cost == 0 {
		cfg.Password.Cost = def.Password.Cost
	}
	if cfg.OTP.Digits == 0 {
		cfg.OTP.Digits = def.OTP.Digits
	}
	if cfg.OTP.TTL == 0 {
		cfg.OTP.TTL = def.OTP.TTL
	}
	if cfg.RateLimit.Threshold == 0 {
		cfg.RateLimit.Threshold = def.RateLimit.Threshold
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = def.RateLimit.Window
	}
	if cfg.Backup.Count == 0 {
		cfg.Backup.Count = def.Backup.Count
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
}

// Build validates the configuration, resolves store backends, and
// returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	fillDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	}

	codes := b.codes
	if codes == nil {
		if b.redis == nil {
			return nil, errors.New("code store or redis client required")
		}
		codes = otp.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	}

	limiter := b.limiter
	var memLimiter *rate.MemoryLimiter
	rateCfg := rate.Config{
		Threshold: cfg.RateLimit.Threshold,
		Window:    cfg.RateLimit.Window,
	}
	if limiter == nil {
		if b.redis != nil {
			limiter = rate.NewRedisLimiter(b.redis, cfg.Session.RedisPrefix, rateCfg)
		} else {
			memLimiter = rate.NewMemoryLimiter(rateCfg)
			limiter = memLimiter
		}
	}

	hasher, err := secrets.NewHasher(cfg.Password.Cost)
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    append([]byte(nil), cfg.JWT.PrivateKey...),
		PublicKey:     append([]byte(nil), cfg.JWT.PublicKey...),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:     cfg,
		logger:     logger,
		accounts:   b.accounts,
		sessions:   sessions,
		codes:      codes,
		otpManager: otp.NewManager(codes, cfg.OTP.Digits, cfg.OTP.TTL),
		hasher:     hasher,
		jwtManager: jwtManager,
		limiter:    limiter,
		memLimiter: memLimiter,
		notifier:   b.notifier,
		audit:      internalaudit.NewDispatcher(b.auditSink, cfg.Audit.BufferSize),
		metrics:    internalmetrics.New(!cfg.Metrics.Disabled),
	}

	b.built = true
	return engine, nil
}
