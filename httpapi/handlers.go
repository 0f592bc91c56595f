package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/meridianpay/authcore"
)

const maxBodyBytes = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", authcore.ErrInvalidInput)
	}
	return nil
}

// bearerToken extracts the access token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

type signupRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type signupResponse struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.Signup(r.Context(), req.Email, req.Phone, req.Password, s.meta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, signupResponse{
		AccountID: result.AccountID,
		Status:    "pending_verification",
	})
}

type emailCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.VerifyEmail(r.Context(), req.Email, req.Code, s.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.ResendVerification(r.Context(), req.Email, s.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type loginResponse struct {
	OTPRequired bool           `json:"otp_required"`
	Tokens      *tokenResponse `json:"tokens,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.Login(r.Context(), req.Email, req.Password, s.meta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := loginResponse{OTPRequired: result.OTPRequired}
	if !result.OTPRequired {
		resp.Tokens = &tokenResponse{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
			TokenType:    "Bearer",
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	pair, err := s.engine.CompleteLoginOTP(r.Context(), req.Email, req.Code, s.meta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.ForgotPassword(r.Context(), req.Email, s.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	// Identical response whether or not the account exists.
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword, s.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	pair, err := s.engine.Refresh(r.Context(), req.RefreshToken, s.meta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.Logout(r.Context(), req.RefreshToken, s.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	auth, err := s.engine.VerifyAccess(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.LogoutAll(r.Context(), auth.AccountID, s.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

type verifyResponse struct {
	AccountID string `json:"account_id"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	auth, err := s.engine.VerifyAccess(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		AccountID: auth.AccountID,
		SessionID: auth.SessionID,
	})
}

type sessionInfoResponse struct {
	SessionID  string    `json:"session_id"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Current    bool      `json:"current"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	auth, err := s.engine.VerifyAccess(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}

	sessions, err := s.engine.ListSessions(r.Context(), auth.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]sessionInfoResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionInfoResponse{
			SessionID:  sess.ID,
			IP:         sess.IP,
			UserAgent:  sess.UserAgent,
			CreatedAt:  sess.CreatedAt,
			LastSeenAt: sess.LastSeenAt,
			Current:    sess.ID == auth.SessionID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
