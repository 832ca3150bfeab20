package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	SessionID string
	UserID    string
	Username  string
	Role      string
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginLocked      int
	LoginRateLimited int
	RateLimitHit     int
	SessionCreated   int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess  string
	LoginFailure  string
	AccountLocked string
	RateLimited   string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	EmptyCredentials   error
	InvalidCredentials error
	AccountLocked      error
	RateLimited        error
	StoreUnavailable   error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	PasswordUpgradeOnLogin bool

	// SkipRequestGate is set when the caller already charged the general
	// per-client window for this request.
	SkipRequestGate func(context.Context) bool
	CheckRate       func(context.Context, string) error
	CheckLoginRate  func(context.Context, string) error
	MapRateError    func(error) error

	IsLocked      func(context.Context, string) (bool, error)
	RecordFailure func(context.Context, string) error
	RecordSuccess func(context.Context, string) error

	FindUser             func(context.Context, string) (*UserRecord, error)
	VerifyPassword       func(password, digest string) bool
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	UpdatePasswordHash   func(context.Context, string, string) error

	CreateSession func(context.Context, UserRecord) (string, error)
	DeleteSession func(context.Context, string) error
	IssueToken    func(UserRecord, string) (string, time.Time, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.SkipRequestGate == nil {
		deps.SkipRequestGate = func(context.Context) bool { return false }
	}
	if deps.MapRateError == nil {
		deps.MapRateError = func(error) error { return deps.Errors.RateLimited }
	}
}

// RunLogin authenticates username/password for clientID.
//
// Order: per-client rate gate, lockout check, credential lookup, password
// verification, then session and token issuance. Unknown usernames, wrong
// passwords and inactive accounts all return InvalidCredentials.
func RunLogin(ctx context.Context, username, password, clientID string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.FindUser == nil ||
		deps.VerifyPassword == nil ||
		deps.CreateSession == nil ||
		deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if err := loginGate(ctx, username, clientID, deps); err != nil {
		return nil, err
	}

	if username == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", username, "", deps.Errors.EmptyCredentials, func() map[string]string {
			return map[string]string{"reason": "empty_credentials"}
		})
		return nil, deps.Errors.EmptyCredentials
	}

	if deps.IsLocked != nil {
		locked, err := deps.IsLocked(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		}
		if locked {
			deps.MetricInc(deps.Metrics.LoginLocked)
			deps.EmitAudit(ctx, deps.Events.AccountLocked, false, "", username, "", deps.Errors.AccountLocked, func() map[string]string {
				return map[string]string{"client": clientID}
			})
			return nil, deps.Errors.AccountLocked
		}
	}

	user, err := deps.FindUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	if user == nil {
		// Spend a verification anyway so unknown names cost the same.
		_ = deps.VerifyPassword(password, "")
		return nil, loginFailed(ctx, username, "", clientID, "user_not_found", deps)
	}

	if !deps.VerifyPassword(password, user.PasswordHash) {
		return nil, loginFailed(ctx, username, user.ID, clientID, "password_mismatch", deps)
	}

	if !user.Active {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, username, "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "inactive", "client": clientID}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	if deps.RecordSuccess != nil {
		if err := deps.RecordSuccess(ctx, username); err != nil {
			deps.Warn("authcore: lockout reset failed", "user_id", user.ID, "error", err)
		}
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if needsUpgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgraded, err := deps.HashPassword(password); err == nil {
				if err := deps.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
					deps.Warn("authcore: password hash upgrade update failed", "user_id", user.ID, "error", err)
				}
			} else {
				deps.Warn("authcore: password hash upgrade generation failed", "user_id", user.ID, "error", err)
			}
		}
	}
	password = ""

	sessionID, err := deps.CreateSession(ctx, *user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	deps.MetricInc(deps.Metrics.SessionCreated)

	token, expiresAt, err := deps.IssueToken(*user, sessionID)
	if err != nil {
		if deps.DeleteSession != nil {
			if delErr := deps.DeleteSession(ctx, sessionID); delErr != nil {
				deps.Warn("authcore: orphaned session cleanup failed", "session_id", sessionID, "error", delErr)
			}
		}
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.ID, user.Username, sessionID, nil, func() map[string]string {
		return map[string]string{"client": clientID}
	})

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		SessionID: sessionID,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
	}, nil
}

func loginGate(ctx context.Context, username, clientID string, deps LoginDeps) error {
	check := func(fn func(context.Context, string) error) error {
		if fn == nil {
			return nil
		}
		err := fn(ctx, clientID)
		if err == nil {
			return nil
		}
		mapped := deps.MapRateError(err)
		if errors.Is(mapped, deps.Errors.RateLimited) {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.MetricInc(deps.Metrics.RateLimitHit)
			deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", username, "", mapped, func() map[string]string {
				return map[string]string{"client": clientID, "scope": "login"}
			})
		}
		return mapped
	}

	if !deps.SkipRequestGate(ctx) {
		if err := check(deps.CheckRate); err != nil {
			return err
		}
	}
	return check(deps.CheckLoginRate)
}

func loginFailed(ctx context.Context, username, userID, clientID, reason string, deps LoginDeps) error {
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, username, "", deps.Errors.InvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason, "client": clientID}
	})

	if deps.RecordFailure == nil {
		return deps.Errors.InvalidCredentials
	}
	if err := deps.RecordFailure(ctx, username); err != nil {
		deps.Warn("authcore: lockout record failed", "error", err)
		return deps.Errors.InvalidCredentials
	}
	if deps.IsLocked != nil {
		if locked, err := deps.IsLocked(ctx, username); err == nil && locked {
			deps.EmitAudit(ctx, deps.Events.AccountLocked, false, userID, username, "", deps.Errors.AccountLocked, func() map[string]string {
				return map[string]string{"client": clientID, "reason": "threshold_reached"}
			})
		}
	}
	return deps.Errors.InvalidCredentials
}
