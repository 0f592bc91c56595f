// Command authd serves the authentication API. Configuration comes from
// the environment; see the envXxx helpers for the full list of knobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridianpay/authcore"
	"github.com/meridianpay/authcore/httpapi"
	"github.com/meridianpay/authcore/memstore"
	"github.com/meridianpay/authcore/notify"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: envLogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("authd exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	jwtKey := os.Getenv("AUTHD_JWT_KEY")
	if jwtKey == "" {
		return errors.New("AUTHD_JWT_KEY is required")
	}

	cfg := engineConfig()
	cfg.JWT.PrivateKey = []byte(jwtKey)

	builder := authcore.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithAuditSink(authcore.NewJSONWriterSink(os.Stdout))

	var redisClient *redis.Client
	if addr := os.Getenv("AUTHD_REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("AUTHD_REDIS_PASSWORD"),
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder = builder.WithRedis(redisClient)
		// Accounts still need a durable home; in-memory is only
		// acceptable for the demo deployment.
		builder = builder.WithAccountStore(memstore.New())
		logger.Info("sessions and codes backed by redis", "addr", addr)
	} else {
		builder = builder.WithStore(memstore.New())
		logger.Warn("AUTHD_REDIS_ADDR unset, all state is in-memory and volatile")
	}

	if host := os.Getenv("AUTHD_SMTP_HOST"); host != "" {
		notifier, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     host,
			Port:     envInt("AUTHD_SMTP_PORT", 587),
			Username: os.Getenv("AUTHD_SMTP_USERNAME"),
			Password: os.Getenv("AUTHD_SMTP_PASSWORD"),
			From:     envString("AUTHD_SMTP_FROM", "no-reply@meridianpay.io"),
		})
		if err != nil {
			return fmt.Errorf("smtp notifier: %w", err)
		}
		builder = builder.WithNotifier(notifier)
	} else {
		builder = builder.WithNotifier(notify.NewLogNotifier(logger))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	server, err := httpapi.NewServer(engine, logger, httpapi.Config{
		TrustedProxies: envList("AUTHD_TRUSTED_PROXIES"),
		AllowedOrigins: envList("AUTHD_ALLOWED_ORIGINS"),
	})
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	addr := envString("AUTHD_LISTEN_ADDR", ":8080")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authd listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

/*
====================================
ENVIRONMENT
====================================
*/

// engineConfig assembles the tuning knobs from AUTHD_* variables. The
// signing key is handled separately because it has no safe default.
func engineConfig() authcore.Config {
	cfg := authcore.Config{}
	cfg.JWT.Issuer = envString("AUTHD_JWT_ISSUER", "authd")
	cfg.JWT.AccessTTL = envDuration("AUTHD_ACCESS_TTL", 15*time.Minute)
	cfg.Session.RefreshTTL = envDuration("AUTHD_REFRESH_TTL", 7*24*time.Hour)
	cfg.OTP.TTL = envDuration("AUTHD_OTP_TTL", 10*time.Minute)
	cfg.Password.Cost = envInt("AUTHD_BCRYPT_COST", 0)
	cfg.RateLimit.Threshold = envInt("AUTHD_RATE_THRESHOLD", 100)
	cfg.RateLimit.Window = envDuration("AUTHD_RATE_WINDOW", time.Minute)
	cfg.Login.RequireOTP = envBool("AUTHD_LOGIN_REQUIRE_OTP")
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envLogLevel() slog.Level {
	switch strings.ToLower(os.Getenv("AUTHD_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
