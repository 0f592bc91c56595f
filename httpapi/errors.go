package httpapi

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/meridianpay/authcore"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the engine taxonomy onto HTTP. Authentication
// failures stay generic on the wire; the audit trail carries the
// detail.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch authcore.KindOf(err) {
	case authcore.KindValidation:
		status = http.StatusBadRequest
		message = err.Error()
	case authcore.KindAuthentication:
		status = http.StatusUnauthorized
		message = "authentication failed"
	case authcore.KindAuthorization:
		status = http.StatusForbidden
		message = "forbidden"
	case authcore.KindConflict:
		status = http.StatusConflict
		message = "account already exists"
	case authcore.KindNotFound:
		status = http.StatusNotFound
		message = "not found"
	case authcore.KindRateLimited:
		status = http.StatusTooManyRequests
		message = "too many requests"
		if retry := authcore.RetryAfter(err); retry > 0 {
			seconds := int(math.Ceil(retry.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
	case authcore.KindSecurityEvent:
		// Reuse detection: the caller holds a dead token. Same shape as
		// any other authentication failure.
		status = http.StatusUnauthorized
		message = "authentication failed"
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
