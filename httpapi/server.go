package httpapi

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/gorilla/mux"

	"github.com/meridianpay/authcore"
)

// Config carries transport settings.
type Config struct {
	// TrustedProxies are CIDR ranges whose X-Forwarded-For headers are
	// believed. Empty means headers are ignored entirely.
	TrustedProxies []string
	// AllowedOrigins is the CORS allow-list. Empty disables CORS
	// handling; "*" allows any origin.
	AllowedOrigins []string
}

// Server wires the engine into an HTTP router.
type Server struct {
	engine  *authcore.Engine
	logger  *slog.Logger
	proxies []netip.Prefix
	origins map[string]bool
	anyOrig bool
}

// NewServer validates the transport config and returns a Server.
func NewServer(engine *authcore.Engine, logger *slog.Logger, cfg Config) (*Server, error) {
	proxies, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:  engine,
		logger:  logger,
		proxies: proxies,
		origins: make(map[string]bool, len(cfg.AllowedOrigins)),
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			s.anyOrig = true
			continue
		}
		s.origins[origin] = true
	}
	return s, nil
}

// Router builds the route table. The CORS handler wraps the router
// itself, not a mux middleware, so preflight OPTIONS requests are
// answered even though no route registers them.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1/auth").Subrouter()
	v1.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	v1.HandleFunc("/verify-email", s.handleVerifyEmail).Methods(http.MethodPost)
	v1.HandleFunc("/resend-verification", s.handleResendVerification).Methods(http.MethodPost)
	v1.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/otp", s.handleLoginOTP).Methods(http.MethodPost)
	v1.HandleFunc("/forgot-password", s.handleForgotPassword).Methods(http.MethodPost)
	v1.HandleFunc("/reset-password", s.handleResetPassword).Methods(http.MethodPost)
	v1.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	v1.HandleFunc("/logout-all", s.handleLogoutAll).Methods(http.MethodPost)
	v1.HandleFunc("/verify", s.handleVerify).Methods(http.MethodGet)
	v1.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)

	return s.cors(r)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (s.anyOrig || s.origins[origin]) {
			allowed := origin
			if s.anyOrig {
				allowed = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) meta(r *http.Request) authcore.ClientMeta {
	return authcore.ClientMeta{
		IP:        clientIP(r, s.proxies),
		UserAgent: r.UserAgent(),
	}
}
