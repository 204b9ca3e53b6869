package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authcache"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Message  string         `json:"message,omitempty"`
	Data     any            `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WriteJSON writes env with status.
func WriteJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{authcache.ErrMissingToken, http.StatusUnauthorized, "Missing token"},
	{authcache.ErrTokenExpired, http.StatusUnauthorized, "Token expired"},
	{authcache.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
	{authcache.ErrInvalidRefreshToken, http.StatusUnauthorized, "Invalid refresh token"},
	{authcache.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{authcache.ErrPasswordResetInvalid, http.StatusUnauthorized, "Invalid or expired reset token"},
	{authcache.ErrOTPInvalid, http.StatusUnauthorized, "Invalid code"},
	{authcache.ErrOTPReplay, http.StatusUnauthorized, "Code already used"},
	{authcache.ErrAccountExists, http.StatusConflict, "Account already exists"},
	{authcache.ErrInvalidSignup, http.StatusBadRequest, "Name, email and password are required"},
	{authcache.ErrPasswordPolicy, http.StatusBadRequest, "Password does not meet the length requirements"},
	{authcache.ErrOTPNotConfigured, http.StatusBadRequest, "One-time codes are not enabled"},
	{authcache.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{authcache.ErrSourceUnavailable, http.StatusServiceUnavailable, "Service unavailable"},
	{authcache.ErrStoreUnavailable, http.StatusServiceUnavailable, "Service unavailable"},
	{authcache.ErrEngineNotReady, http.StatusServiceUnavailable, "Service unavailable"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "Service unavailable"},
	{context.Canceled, http.StatusServiceUnavailable, "Service unavailable"},
}

// StatusFor maps an Engine error to an HTTP status and a client message.
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// WriteError writes the envelope for err. Expired access tokens carry
// "refresh": true in the metadata so clients know to rotate.
func WriteError(w http.ResponseWriter, err error) {
	status, message := StatusFor(err)
	env := Envelope{Message: message}
	if errors.Is(err, authcache.ErrTokenExpired) {
		env.Metadata = map[string]any{"refresh": true}
	}
	WriteJSON(w, status, env)
}
