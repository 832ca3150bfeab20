package flows

import (
	"context"
	"fmt"
)

type ChangePasswordMetrics struct {
	PasswordChangeSuccess int
	PasswordChangeFailure int
}

type ChangePasswordEvents struct {
	PasswordChange string
}

type ChangePasswordErrors struct {
	EngineNotReady     error
	EmptyCredentials   error
	InvalidCredentials error
	AccountLocked      error
	PasswordMismatch   error
	PasswordReused     error
	WeakPassword       error
	StoreUnavailable   error
}

// ChangePasswordDeps captures an authenticated password change.
type ChangePasswordDeps struct {
	IsLocked      func(context.Context, string) (bool, error)
	RecordFailure func(context.Context, string) error

	FindUser           func(context.Context, string) (*UserRecord, error)
	VerifyPassword     func(password, digest string) bool
	ValidatePassword   func(string) error
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, string, string) error

	ClearLockout       func(context.Context, string) error
	DeleteUserSessions func(context.Context, string) (int, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics ChangePasswordMetrics
	Events  ChangePasswordEvents
	Errors  ChangePasswordErrors
}

// RunChangePassword replaces username's password after re-checking the
// current one. A wrong current password counts toward lockout like a failed
// login. On success every session of the user is revoked.
func RunChangePassword(ctx context.Context, username, current, next, confirm string, deps ChangePasswordDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.FindUser == nil || deps.VerifyPassword == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(userID, reason string, err error) error {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, userID, username, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	if username == "" || current == "" || next == "" {
		return fail("", "empty_credentials", deps.Errors.EmptyCredentials)
	}
	if next != confirm {
		return fail("", "confirm_mismatch", deps.Errors.PasswordMismatch)
	}

	if deps.IsLocked != nil {
		locked, err := deps.IsLocked(ctx, username)
		if err != nil {
			return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		}
		if locked {
			return fail("", "locked", deps.Errors.AccountLocked)
		}
	}

	user, err := deps.FindUser(ctx, username)
	if err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	digest := ""
	if user != nil {
		digest = user.PasswordHash
	}
	if !deps.VerifyPassword(current, digest) || user == nil || !user.Active {
		if deps.RecordFailure != nil {
			if err := deps.RecordFailure(ctx, username); err != nil {
				deps.Warn("authcore: lockout record failed", "error", err)
			}
		}
		userID := ""
		if user != nil {
			userID = user.ID
		}
		return fail(userID, "invalid_current", deps.Errors.InvalidCredentials)
	}

	if deps.ValidatePassword != nil {
		if err := deps.ValidatePassword(next); err != nil {
			return fail(user.ID, "weak_password", fmt.Errorf("%w: %w", deps.Errors.WeakPassword, err))
		}
	}
	if next == current {
		return fail(user.ID, "reused", deps.Errors.PasswordReused)
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return err
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	afterCredentialChange(ctx, *user, deps.ClearLockout, deps.DeleteUserSessions, deps.Warn)

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChange, true, user.ID, user.Username, "", nil, nil)
	return nil
}
