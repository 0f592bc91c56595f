package authcore

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	internalaudit "github.com/meridianpay/authcore/internal/audit"
	internalmetrics "github.com/meridianpay/authcore/internal/metrics"
	"github.com/meridianpay/authcore/internal/otp"
	"github.com/meridianpay/authcore/internal/rate"
	"github.com/meridianpay/authcore/jwt"
	"github.com/meridianpay/authcore/secrets"
)

// Engine is the auth core facade. All methods are safe for concurrent
// use once Build returns.
type Engine struct {
	config     Config
	logger     *slog.Logger
	accounts   AccountStore
	sessions   SessionStore
	codes      CodeStore
	otpManager *otp.Manager
	hasher     *secrets.Hasher
	jwtManager *jwt.Manager
	limiter    RateLimiter
	memLimiter *rate.MemoryLimiter
	notifier   Notifier
	audit      *internalaudit.Dispatcher
	metrics    *internalmetrics.Metrics
}

// Close flushes the audit dispatcher and stops background goroutines.
// The engine must not be used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.memLimiter != nil {
		e.memLimiter.Stop()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

/*
====================================
INTERNAL HELPERS
====================================
*/

func (e *Engine) emit(event AuditEvent) {
	if e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.audit.Emit(event)
}

func (e *Engine) emitSecurity(eventType, accountID, sessionID, ip string) {
	e.emit(AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        ip,
		Security:  true,
	})
}

// allow runs the rate limiter for one logical endpoint and identifier.
// A limiter backend outage fails open with a warning rather than locking
// every caller out.
func (e *Engine) allow(ctx context.Context, scope, identifier string) error {
	if e.limiter == nil {
		return nil
	}
	decision, err := e.limiter.Allow(ctx, scope+":"+identifier)
	if err != nil {
		e.logger.Warn("rate limiter unavailable, failing open",
			"scope", scope, "error", err)
		return nil
	}
	if !decision.Allowed {
		e.metricInc(MetricRateLimitHit)
		e.emit(AuditEvent{
			EventType: "rate_limit." + scope,
			IP:        identifier,
		})
		return &RateLimitError{RetryAfter: decision.RetryAfter}
	}
	return nil
}

// notify delivers best-effort. Auth state never rolls back because a
// send failed.
func (e *Engine) notify(ctx context.Context, template, recipient string, data map[string]string) {
	if e.notifier == nil {
		e.logger.Debug("notification skipped, no notifier configured",
			"template", template)
		return
	}
	if err := e.notifier.Send(ctx, template, recipient, data); err != nil {
		e.metricInc(MetricNotifyFailure)
		e.logger.Warn("notification delivery failed",
			"template", template, "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	return len(email) <= 254
}

// mapOTPError lifts otp package sentinels into the public taxonomy.
func mapOTPError(err error) error {
	switch {
	case errors.Is(err, otp.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, otp.ErrExpired):
		return ErrCodeExpired
	case errors.Is(err, otp.ErrMismatch):
		return ErrCodeMismatch
	default:
		return err
	}
}
