package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-api-accounts/internal/domain"
)

// writeServiceError maps a service error onto the HTTP error taxonomy.
// Dependency and internal details are logged, never returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, domain.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, clientMessage(err, domain.ErrBadRequest))
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "Account not verified")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrTooManyRequests):
		writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
	case errors.Is(err, domain.ErrDependency):
		slog.ErrorContext(r.Context(), "dependency failure", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, MessageEnvelope{
			Error:     "Service temporarily unavailable",
			Retryable: true,
		})
	default:
		slog.ErrorContext(r.Context(), "internal error", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// clientMessage strips the trailing sentinel text from a wrapped error.
func clientMessage(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" || msg == sentinel.Error() {
		return "Bad request"
	}
	return msg
}
