package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/internal/accounts"
	"github.com/MrEthical07/pmscanauth/internal/fleet"
	"github.com/MrEthical07/pmscanauth/internal/logging"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

// requestError is a client error raised while reading a request.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(message string) error {
	return &requestError{status: http.StatusBadRequest, message: message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}

// fail maps err onto a status and a generic message. Unexpected errors are
// logged and reported as 500.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), a.logger).ErrorContext(r.Context(), "http: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, message)
}

func errorStatus(err error) (int, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.status, reqErr.message
	}

	switch {
	case errors.Is(err, pmscanauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, pmscanauth.ErrMissingRefreshToken):
		return http.StatusUnauthorized, "Refresh token not found"
	case errors.Is(err, pmscanauth.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "Invalid refresh token"
	case errors.Is(err, pmscanauth.ErrInvalidOrExpiredResetToken):
		return http.StatusUnauthorized, "Invalid or expired reset token"
	case errors.Is(err, pmscanauth.ErrInvalidResetToken):
		return http.StatusBadRequest, "Invalid reset token"
	case errors.Is(err, pmscanauth.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, pmscanauth.ErrLoginRateLimited):
		return http.StatusTooManyRequests, "Too many login attempts"
	case errors.Is(err, pmscanauth.ErrPasswordPolicy):
		return http.StatusBadRequest, passwordPolicyMessage

	case errors.Is(err, pmscanauth.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, fleet.ErrDeviceNotFound):
		return http.StatusNotFound, "PMScan not found"
	case errors.Is(err, fleet.ErrRecordNotFound):
		return http.StatusNotFound, "Record not found"
	case errors.Is(err, fleet.ErrForbidden):
		return http.StatusForbidden, "You are not allowed to access this resource"
	case errors.Is(err, fleet.ErrDeviceExists):
		return http.StatusForbidden, "PMScan already exists"

	case errors.Is(err, accounts.ErrEmailTaken):
		return http.StatusConflict, "Email already registered"
	case errors.Is(err, accounts.ErrInvalidName), errors.Is(err, accounts.ErrInvalidEmail):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, pmscanauth.ErrStoreUnavailable),
		errors.Is(err, pmscanauth.ErrDirectoryUnavailable),
		errors.Is(err, pmscanauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	}
	return http.StatusInternalServerError, "Internal server error"
}
