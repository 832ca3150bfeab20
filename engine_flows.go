package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrTornister/Work-Flow-app/internal"
	"github.com/MrTornister/Work-Flow-app/internal/flows"
	"github.com/MrTornister/Work-Flow-app/internal/limiters"
	"github.com/MrTornister/Work-Flow-app/internal/rate"
	"github.com/MrTornister/Work-Flow-app/jwt"
	"github.com/MrTornister/Work-Flow-app/password"
	gojwt "github.com/golang-jwt/jwt/v5"
)

func (e *Engine) buildFlowDeps() flows.Deps {
	metricInc := func(id int) { e.metricInc(MetricID(id)) }

	return flows.Deps{
		Login: flows.LoginDeps{
			PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
			SkipRequestGate:        rateCheckedFromContext,
			CheckRate:              e.limiter.Check,
			CheckLoginRate:         e.limiter.CheckLogin,
			MapRateError:           mapRateError,
			IsLocked:               e.lockout.IsLocked,
			RecordFailure:          e.lockout.RecordFailure,
			RecordSuccess:          e.lockout.RecordSuccess,
			FindUser:               e.findByUsername,
			VerifyPassword:         e.verifyPassword,
			PasswordNeedsUpgrade:   e.hasher.NeedsUpgrade,
			HashPassword:           e.hasher.Hash,
			UpdatePasswordHash:     e.store.UpdatePasswordHash,
			CreateSession:          e.createSession,
			DeleteSession:          e.sessions.Delete,
			IssueToken:             e.issueToken,
			MetricInc:              metricInc,
			EmitAudit:              e.emitAudit,
			Warn:                   e.warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess:     int(MetricLoginSuccess),
				LoginFailure:     int(MetricLoginFailure),
				LoginLocked:      int(MetricLoginLocked),
				LoginRateLimited: int(MetricLoginRateLimited),
				RateLimitHit:     int(MetricRateLimitHit),
				SessionCreated:   int(MetricSessionCreated),
			},
			Events: flows.LoginEvents{
				LoginSuccess:  EventLoginSuccess,
				LoginFailure:  EventLoginFailure,
				AccountLocked: EventAccountLocked,
				RateLimited:   EventRateLimited,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				EmptyCredentials:   ErrEmptyCredentials,
				InvalidCredentials: ErrInvalidCredentials,
				AccountLocked:      ErrAccountLocked,
				RateLimited:        ErrRateLimitExceeded,
				StoreUnavailable:   ErrStoreUnavailable,
			},
		},
		Authorize: flows.AuthorizeDeps{
			VerifyToken:   e.tokens.Verify,
			TouchSession:  e.sessions.Touch,
			HasPermission: e.perms.HasPermission,
			MetricInc:     metricInc,
			EmitAudit:     e.emitAudit,
			Metrics: flows.AuthorizeMetrics{
				AuthorizeSuccess: int(MetricAuthorizeSuccess),
				AuthorizeDenied:  int(MetricAuthorizeDenied),
				TokenInvalid:     int(MetricTokenInvalid),
				TokenExpired:     int(MetricTokenExpired),
				SessionExpired:   int(MetricSessionExpired),
			},
			Events: flows.AuthorizeEvents{
				TokenRejected:    EventTokenRejected,
				SessionExpired:   EventSessionExpired,
				PermissionDenied: EventPermissionDenied,
			},
			Errors: flows.AuthorizeErrors{
				EngineNotReady:   ErrEngineNotReady,
				TokenInvalid:     ErrTokenInvalid,
				TokenExpired:     ErrTokenExpired,
				SessionExpired:   ErrSessionExpired,
				PermissionDenied: ErrPermissionDenied,
				StoreUnavailable: ErrStoreUnavailable,
			},
		},
		PasswordReset: flows.PasswordResetDeps{
			TTL:                 e.config.PasswordReset.TokenTTL,
			Now:                 e.now,
			CheckRequestLimiter: e.resetLimiter.CheckRequest,
			CheckConfirmLimiter: e.resetLimiter.CheckConfirm,
			MapLimiterError:     mapResetLimiterError,
			FindByEmail:         e.findByEmail,
			FindByResetToken:    e.findByResetToken,
			SetResetToken:       e.store.SetResetToken,
			ClearResetToken:     e.store.ClearResetToken,
			ClaimResetToken:     e.store.ClaimResetToken,
			NewResetToken:       internal.NewResetToken,
			HashResetToken:      internal.HashResetToken,
			ValidatePassword:    e.policy.Validate,
			HashPassword:        e.hasher.Hash,
			UpdatePasswordHash:  e.store.UpdatePasswordHash,
			Deliver:             e.deliverReset,
			ClearLockout:        e.lockout.RecordSuccess,
			DeleteUserSessions:  e.sessions.DeleteUser,
			MetricInc:           metricInc,
			EmitAudit:           e.emitAudit,
			Warn:                e.warn,
			Metrics: flows.PasswordResetMetrics{
				PasswordResetRequest:        int(MetricPasswordResetRequest),
				PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
				PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
				RateLimitHit:                int(MetricRateLimitHit),
			},
			Events: flows.PasswordResetEvents{
				PasswordResetRequest: EventPasswordResetRequest,
				PasswordResetConfirm: EventPasswordResetConfirm,
				RateLimited:          EventRateLimited,
			},
			Errors: flows.PasswordResetErrors{
				EngineNotReady:    ErrEngineNotReady,
				ResetTokenInvalid: ErrResetTokenInvalid,
				WeakPassword:      ErrWeakPassword,
				PasswordMismatch:  ErrPasswordMismatch,
				RateLimited:       ErrRateLimitExceeded,
				StoreUnavailable:  ErrStoreUnavailable,
			},
		},
		ChangePassword: flows.ChangePasswordDeps{
			IsLocked:           e.lockout.IsLocked,
			RecordFailure:      e.lockout.RecordFailure,
			FindUser:           e.findByUsername,
			VerifyPassword:     e.verifyPassword,
			ValidatePassword:   e.policy.Validate,
			HashPassword:       e.hasher.Hash,
			UpdatePasswordHash: e.store.UpdatePasswordHash,
			ClearLockout:       e.lockout.RecordSuccess,
			DeleteUserSessions: e.sessions.DeleteUser,
			MetricInc:          metricInc,
			EmitAudit:          e.emitAudit,
			Warn:               e.warn,
			Metrics: flows.ChangePasswordMetrics{
				PasswordChangeSuccess: int(MetricPasswordChangeSuccess),
				PasswordChangeFailure: int(MetricPasswordChangeFailure),
			},
			Events: flows.ChangePasswordEvents{
				PasswordChange: EventPasswordChange,
			},
			Errors: flows.ChangePasswordErrors{
				EngineNotReady:     ErrEngineNotReady,
				EmptyCredentials:   ErrEmptyCredentials,
				InvalidCredentials: ErrInvalidCredentials,
				AccountLocked:      ErrAccountLocked,
				PasswordMismatch:   ErrPasswordMismatch,
				PasswordReused:     ErrPasswordReused,
				WeakPassword:       ErrWeakPassword,
				StoreUnavailable:   ErrStoreUnavailable,
			},
		},
		Logout: flows.LogoutDeps{
			GetSession:       e.sessions.Get,
			DeleteSession:    e.sessions.Delete,
			MetricInc:        metricInc,
			EmitAudit:        e.emitAudit,
			LogoutMetric:     int(MetricLogout),
			LogoutEvent:      EventLogout,
			StoreUnavailable: ErrStoreUnavailable,
		},
	}
}

func (e *Engine) findByUsername(ctx context.Context, username string) (*flows.UserRecord, error) {
	return toUserRecord(e.store.FindByUsername(ctx, username))
}

func (e *Engine) findByEmail(ctx context.Context, email string) (*flows.UserRecord, error) {
	return toUserRecord(e.store.FindByEmail(ctx, email))
}

func (e *Engine) findByResetToken(ctx context.Context, digest string) (*flows.UserRecord, error) {
	return toUserRecord(e.store.FindByResetToken(ctx, digest))
}

func toUserRecord(id *Identity, err error) (*flows.UserRecord, error) {
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, nil
	}
	return &flows.UserRecord{
		ID:               id.ID,
		Username:         id.Username,
		Email:            id.Email,
		PasswordHash:     id.PasswordHash,
		Role:             string(id.Role),
		Active:           id.Active,
		ResetTokenExpiry: id.ResetTokenExpiry,
	}, nil
}

// verifyPassword runs a full verification even for an empty digest, against
// a digest built at startup, so unknown usernames take as long as real ones.
// Digests from the other algorithm are checked by prefix; login then
// rehashes them through NeedsUpgrade.
func (e *Engine) verifyPassword(pw, digest string) bool {
	if digest == "" {
		_ = e.hasher.Verify(pw, e.dummyHash)
		return false
	}
	if password.AlgorithmOf(digest) != e.hashAlgorithm {
		return password.Verify(pw, digest)
	}
	return e.hasher.Verify(pw, digest)
}

func (e *Engine) createSession(ctx context.Context, u flows.UserRecord) (string, error) {
	rec, err := e.sessions.Create(ctx, u.ID, u.Username, u.Role)
	if err != nil {
		return "", err
	}
	return rec.SessionID, nil
}

func (e *Engine) issueToken(u flows.UserRecord, sessionID string) (string, time.Time, error) {
	return e.tokens.IssueWith(jwt.Claims{
		UID:              u.ID,
		Role:             u.Role,
		SID:              sessionID,
		RegisteredClaims: gojwt.RegisteredClaims{Subject: u.Username},
	}, e.config.JWT.AccessTTL)
}

func (e *Engine) deliverReset(ctx context.Context, issued flows.IssuedReset) error {
	if e.config.PasswordReset.Deliver == nil {
		return nil
	}
	return e.config.PasswordReset.Deliver(ctx, issued.Email, ResetToken{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	})
}

func (e *Engine) warn(msg string, keysAndValues ...any) {
	e.logger.Sugar().Warnw(msg, keysAndValues...)
}

func mapRateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited), errors.Is(err, rate.ErrOverloaded):
		return ErrRateLimitExceeded
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func mapResetLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrResetRateLimited):
		return ErrRateLimitExceeded
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
