package authcore

import (
	"context"
	"errors"
	"time"
)

type auditErrorCode string

const (
	auditErrInvalidCredentials auditErrorCode = "invalid_credentials"
	auditErrEmptyCredentials   auditErrorCode = "empty_credentials"
	auditErrAccountLocked      auditErrorCode = "account_locked"
	auditErrRateLimited        auditErrorCode = "rate_limited"
	auditErrInvalidToken       auditErrorCode = "invalid_token"
	auditErrExpiredToken       auditErrorCode = "expired_token"
	auditErrSessionExpired     auditErrorCode = "session_expired"
	auditErrPermissionDenied   auditErrorCode = "permission_denied"
	auditErrPasswordPolicy     auditErrorCode = "password_policy"
	auditErrPasswordMismatch   auditErrorCode = "password_mismatch"
	auditErrPasswordReuse      auditErrorCode = "password_reuse"
	auditErrResetInvalid       auditErrorCode = "reset_token_invalid"
	auditErrUnavailable        auditErrorCode = "backend_unavailable"
	auditErrInternal           auditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	username string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Severity:  severityFor(eventType, success),
		UserID:    userID,
		Username:  username,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := errorCodeFor(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func severityFor(eventType string, success bool) Severity {
	switch eventType {
	case EventAccountLocked:
		return SeverityHigh
	case EventPasswordResetConfirm, EventPasswordChange:
		if success {
			return SeverityWarning
		}
		return SeverityHigh
	}
	if success {
		return SeverityInfo
	}
	return SeverityWarning
}

func errorCodeFor(err error) auditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrEmptyCredentials):
		return auditErrEmptyCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrRateLimitExceeded):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrWeakPassword):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, ErrPasswordReused):
		return auditErrPasswordReuse
	case errors.Is(err, ErrResetTokenInvalid):
		return auditErrResetInvalid
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
