package authcore

import (
	"io"

	"github.com/MrTornister/Work-Flow-app/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security event as delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives security events from the engine's dispatcher goroutine.
// Emit must not block for long; the dispatcher drops events when its buffer
// is full and DropIfFull is set.
type AuditSink = audit.Sink

type Severity = audit.Severity

const (
	SeverityInfo    = audit.SeverityInfo
	SeverityWarning = audit.SeverityWarning
	SeverityHigh    = audit.SeverityHigh
)

type NoOpSink = audit.NoOpSink

type ChannelSink = audit.ChannelSink

type MultiSink = audit.MultiSink

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) AuditSink { return audit.NewJSONWriterSink(w) }

// NewZapSink logs each event as one structured entry, at a level derived
// from its severity.
func NewZapSink(logger *zap.Logger) AuditSink { return audit.NewZapSink(logger) }

// Security event names.
const (
	EventLoginSuccess         = "login_success"
	EventLoginFailure         = "login_failure"
	EventAccountLocked        = "account_locked"
	EventRateLimited          = "rate_limit_triggered"
	EventTokenRejected        = "token_rejected"
	EventSessionExpired       = "session_expired"
	EventPermissionDenied     = "permission_denied"
	EventLogout               = "logout"
	EventPasswordResetRequest = "password_reset_request"
	EventPasswordResetConfirm = "password_reset_confirm"
	EventPasswordChange       = "password_change"
)
