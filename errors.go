package authcore

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials covers unknown usernames, wrong passwords and
	// inactive accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound may be returned by a [CredentialStore] instead of a nil
	// identity. It never leaves the engine.
	ErrUserNotFound      = errors.New("user not found")
	ErrEmptyCredentials  = errors.New("username and password are required")
	ErrAccountLocked     = errors.New("account locked")
	ErrTokenInvalid      = errors.New("token invalid")
	ErrTokenExpired      = errors.New("token expired")
	ErrSessionExpired    = errors.New("session expired")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrWeakPassword      = errors.New("password does not meet policy")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrPasswordReused    = errors.New("new password must differ from current password")
	ErrResetTokenInvalid = errors.New("reset token expired or invalid")
	// ErrStoreUnavailable wraps failures of the credential store or of a
	// tracker backend. It is never retried inside the engine.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrEngineNotReady   = errors.New("engine not ready")
)

// StatusCode maps an engine error to the HTTP status a handler should send.
// Unknown errors map to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrEmptyCredentials),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrPasswordReused),
		errors.Is(err, ErrResetTokenInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message safe to show to the caller. It never says
// which of username or password was wrong, and collapses internal faults
// into one generic message.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, ErrAccountLocked):
		return "Account temporarily locked due to too many failed attempts"
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrSessionExpired):
		return "Session expired, please log in again"
	case errors.Is(err, ErrTokenInvalid):
		return "Could not validate credentials"
	case errors.Is(err, ErrPermissionDenied):
		return "Insufficient permissions"
	case errors.Is(err, ErrRateLimitExceeded):
		return "Too many requests"
	case errors.Is(err, ErrEmptyCredentials):
		return "Username and password are required"
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 8 characters and contain uppercase, lowercase and a digit"
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, ErrPasswordReused):
		return "New password must differ from the current password"
	case errors.Is(err, ErrResetTokenInvalid):
		return "Invalid or expired reset token"
	default:
		return "Internal server error"
	}
}
