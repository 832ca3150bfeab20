package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	RateLimitHit                int
}

type PasswordResetEvents struct {
	PasswordResetRequest string
	PasswordResetConfirm string
	RateLimited          string
}

type PasswordResetErrors struct {
	EngineNotReady    error
	ResetTokenInvalid error
	WeakPassword      error
	PasswordMismatch  error
	RateLimited       error
	StoreUnavailable  error
}

// IssuedReset is a freshly minted reset token. Token is the plaintext; only
// its digest is stored.
type IssuedReset struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
	Email     string
}

// PasswordResetDeps captures request and completion of a password reset.
type PasswordResetDeps struct {
	TTL time.Duration
	Now func() time.Time

	CheckRequestLimiter func(context.Context, string, string) error
	CheckConfirmLimiter func(context.Context, string) error
	MapLimiterError     func(error) error

	FindByEmail      func(context.Context, string) (*UserRecord, error)
	FindByResetToken func(context.Context, string) (*UserRecord, error)
	SetResetToken    func(context.Context, string, string, time.Time) error
	ClearResetToken  func(context.Context, string) error
	ClaimResetToken  func(ctx context.Context, userID, digest string) (bool, error)

	NewResetToken      func() (token, digest string, err error)
	HashResetToken     func(string) string
	ValidatePassword   func(string) error
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, string, string) error

	Deliver            func(context.Context, IssuedReset) error
	ClearLockout       func(context.Context, string) error
	DeleteUserSessions func(context.Context, string) (int, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TTL <= 0 {
		deps.TTL = 24 * time.Hour
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return deps.Errors.RateLimited }
	}
}

// RunRequestPasswordReset mints a reset token for the account owning email.
// Unknown, empty or inactive addresses return (nil, nil) so callers cannot
// tell them apart from real ones.
func RunRequestPasswordReset(ctx context.Context, email, clientID string, deps PasswordResetDeps) (*IssuedReset, error) {
	normalizePasswordResetDeps(&deps)
	if deps.FindByEmail == nil || deps.SetResetToken == nil || deps.NewResetToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email = strings.TrimSpace(email)
	if deps.CheckRequestLimiter != nil {
		if err := deps.CheckRequestLimiter(ctx, email, clientID); err != nil {
			return nil, resetLimited(ctx, err, deps.Events.PasswordResetRequest, clientID, deps)
		}
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	if email == "" {
		return nil, nil
	}

	user, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	if user == nil || !user.Active {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", "", "", nil, func() map[string]string {
			return map[string]string{"reason": "unknown_email", "client": clientID}
		})
		return nil, nil
	}

	token, digest, err := deps.NewResetToken()
	if err != nil {
		return nil, err
	}
	expiresAt := deps.Now().Add(deps.TTL)
	if err := deps.SetResetToken(ctx, user.ID, digest, expiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	issued := &IssuedReset{Token: token, ExpiresAt: expiresAt, UserID: user.ID, Email: user.Email}
	if deps.Deliver != nil {
		if err := deps.Deliver(ctx, *issued); err != nil {
			deps.Warn("authcore: reset token delivery failed", "user_id", user.ID, "error", err)
		}
	}

	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, user.ID, user.Username, "", nil, func() map[string]string {
		return map[string]string{"client": clientID}
	})
	return issued, nil
}

// RunCompletePasswordReset sets a new password through a reset token.
// The token is single-use; a policy failure leaves it usable.
func RunCompletePasswordReset(ctx context.Context, token, newPassword, confirm, clientID string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.FindByResetToken == nil ||
		deps.HashResetToken == nil ||
		deps.ClearResetToken == nil ||
		deps.ClaimResetToken == nil ||
		deps.HashPassword == nil ||
		deps.UpdatePasswordHash == nil {
		return deps.Errors.EngineNotReady
	}

	if deps.CheckConfirmLimiter != nil {
		if err := deps.CheckConfirmLimiter(ctx, clientID); err != nil {
			return resetLimited(ctx, err, deps.Events.PasswordResetConfirm, clientID, deps)
		}
	}

	fail := func(userID, username, reason string, err error) error {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, userID, username, "", err, func() map[string]string {
			return map[string]string{"reason": reason, "client": clientID}
		})
		return err
	}

	if token == "" {
		return fail("", "", "empty_token", deps.Errors.ResetTokenInvalid)
	}
	if newPassword != confirm {
		return fail("", "", "confirm_mismatch", deps.Errors.PasswordMismatch)
	}

	digest := deps.HashResetToken(token)
	user, err := deps.FindByResetToken(ctx, digest)
	if err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	if user == nil {
		return fail("", "", "unknown_token", deps.Errors.ResetTokenInvalid)
	}
	if user.ResetTokenExpiry.IsZero() || !deps.Now().Before(user.ResetTokenExpiry) {
		if err := deps.ClearResetToken(ctx, user.ID); err != nil {
			deps.Warn("authcore: expired reset token clear failed", "user_id", user.ID, "error", err)
		}
		return fail(user.ID, user.Username, "expired_token", deps.Errors.ResetTokenInvalid)
	}

	if deps.ValidatePassword != nil {
		if err := deps.ValidatePassword(newPassword); err != nil {
			return fail(user.ID, user.Username, "weak_password", fmt.Errorf("%w: %w", deps.Errors.WeakPassword, err))
		}
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return err
	}

	// The claim precedes the write and only one concurrent completion wins
	// it, so a token never sets two passwords.
	claimed, err := deps.ClaimResetToken(ctx, user.ID, digest)
	if err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	if !claimed {
		return fail(user.ID, user.Username, "token_already_used", deps.Errors.ResetTokenInvalid)
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	afterCredentialChange(ctx, *user, deps.ClearLockout, deps.DeleteUserSessions, deps.Warn)

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, user.ID, user.Username, "", nil, func() map[string]string {
		return map[string]string{"client": clientID}
	})
	return nil
}

func resetLimited(ctx context.Context, err error, event, clientID string, deps PasswordResetDeps) error {
	mapped := deps.MapLimiterError(err)
	if errors.Is(mapped, deps.Errors.RateLimited) {
		deps.MetricInc(deps.Metrics.RateLimitHit)
	}
	deps.EmitAudit(ctx, event, false, "", "", "", mapped, func() map[string]string {
		return map[string]string{"client": clientID, "reason": "rate_limited"}
	})
	if deps.Events.RateLimited != "" && errors.Is(mapped, deps.Errors.RateLimited) {
		deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", "", "", mapped, func() map[string]string {
			return map[string]string{"client": clientID, "scope": event}
		})
	}
	return mapped
}

// afterCredentialChange drops lockout history and every session of user.
// Both are best-effort: the password has already changed.
func afterCredentialChange(ctx context.Context, user UserRecord, clearLockout func(context.Context, string) error, deleteSessions func(context.Context, string) (int, error), warn func(string, ...any)) {
	if clearLockout != nil {
		if err := clearLockout(ctx, user.Username); err != nil {
			warn("authcore: lockout reset failed", "user_id", user.ID, "error", err)
		}
	}
	if deleteSessions != nil {
		if _, err := deleteSessions(ctx, user.ID); err != nil {
			warn("authcore: session revocation failed", "user_id", user.ID, "error", err)
		}
	}
}
