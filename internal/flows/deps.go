package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each request method to the matching Run function.
type Deps struct {
	Login          LoginDeps
	Authorize      AuthorizeDeps
	PasswordReset  PasswordResetDeps
	ChangePassword ChangePasswordDeps
	Logout         LogoutDeps
}

// UserRecord is the flow-local view of a stored identity.
type UserRecord struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	Role             string
	Active           bool
	ResetTokenExpiry time.Time
}

// AuditFunc emits one security event:
// (ctx, eventType, success, userID, username, sessionID, err, metadata).
// metadata is evaluated only when the event is actually recorded.
type AuditFunc func(context.Context, string, bool, string, string, string, error, func() map[string]string)

func noAudit(context.Context, string, bool, string, string, string, error, func() map[string]string) {}

func noMetric(int) {}

func noWarn(string, ...any) {}
