package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrTornister/Work-Flow-app/jwt"
	"github.com/MrTornister/Work-Flow-app/permission"
	"github.com/MrTornister/Work-Flow-app/session"
)

type AuthorizeMetrics struct {
	AuthorizeSuccess int
	AuthorizeDenied  int
	TokenInvalid     int
	TokenExpired     int
	SessionExpired   int
}

type AuthorizeEvents struct {
	TokenRejected    string
	SessionExpired   string
	PermissionDenied string
}

type AuthorizeErrors struct {
	EngineNotReady   error
	TokenInvalid     error
	TokenExpired     error
	SessionExpired   error
	PermissionDenied error
	StoreUnavailable error
}

// AuthorizeDeps captures token, session and permission checks.
type AuthorizeDeps struct {
	VerifyToken   func(string) (*jwt.Claims, error)
	TouchSession  func(context.Context, string) (*session.Record, error)
	HasPermission func(permission.Role, permission.Permission) bool

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics AuthorizeMetrics
	Events  AuthorizeEvents
	Errors  AuthorizeErrors
}

// AuthorizeResult is what a request may act as once authorized.
type AuthorizeResult struct {
	Claims  *jwt.Claims
	Session *session.Record
}

// RunAuthorize verifies tokenStr and checks perm against the role it
// carries. An empty perm only authenticates.
func RunAuthorize(ctx context.Context, tokenStr string, perm permission.Permission, deps AuthorizeDeps) (*AuthorizeResult, error) {
	normalizeAuthorizeDeps(&deps)
	if deps.VerifyToken == nil || deps.HasPermission == nil {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := verifyToken(ctx, tokenStr, deps)
	if err != nil {
		return nil, err
	}
	if err := checkPermission(ctx, permission.Role(claims.Role), perm, claims.UID, claims.Subject, claims.SID, deps); err != nil {
		return nil, err
	}
	return &AuthorizeResult{Claims: claims}, nil
}

// RunAuthorizeSession is RunAuthorize plus an idle-timeout check on the
// session. sessionID defaults to the token's sid claim. The permission check
// uses the session's role snapshot.
func RunAuthorizeSession(ctx context.Context, tokenStr, sessionID string, perm permission.Permission, deps AuthorizeDeps) (*AuthorizeResult, error) {
	normalizeAuthorizeDeps(&deps)
	if deps.VerifyToken == nil || deps.HasPermission == nil || deps.TouchSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := verifyToken(ctx, tokenStr, deps)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = claims.SID
	}
	if claims.SID != "" && claims.SID != sessionID {
		deps.MetricInc(deps.Metrics.TokenInvalid)
		deps.EmitAudit(ctx, deps.Events.TokenRejected, false, claims.UID, claims.Subject, sessionID, deps.Errors.TokenInvalid, func() map[string]string {
			return map[string]string{"reason": "session_mismatch"}
		})
		return nil, deps.Errors.TokenInvalid
	}

	rec, err := deps.TouchSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrExpired) || errors.Is(err, session.ErrNotFound) {
			deps.MetricInc(deps.Metrics.SessionExpired)
			deps.EmitAudit(ctx, deps.Events.SessionExpired, false, claims.UID, claims.Subject, sessionID, deps.Errors.SessionExpired, func() map[string]string {
				if errors.Is(err, session.ErrExpired) {
					return map[string]string{"reason": "idle"}
				}
				return map[string]string{"reason": "unknown_session"}
			})
			return nil, deps.Errors.SessionExpired
		}
		return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	if rec.Username != claims.Subject {
		deps.MetricInc(deps.Metrics.TokenInvalid)
		deps.EmitAudit(ctx, deps.Events.TokenRejected, false, claims.UID, claims.Subject, sessionID, deps.Errors.TokenInvalid, func() map[string]string {
			return map[string]string{"reason": "subject_mismatch"}
		})
		return nil, deps.Errors.TokenInvalid
	}

	if err := checkPermission(ctx, permission.Role(rec.Role), perm, rec.UserID, rec.Username, rec.SessionID, deps); err != nil {
		return nil, err
	}
	return &AuthorizeResult{Claims: claims, Session: rec}, nil
}

func normalizeAuthorizeDeps(deps *AuthorizeDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
}

func verifyToken(ctx context.Context, tokenStr string, deps AuthorizeDeps) (*jwt.Claims, error) {
	if tokenStr == "" {
		deps.MetricInc(deps.Metrics.TokenInvalid)
		return nil, deps.Errors.TokenInvalid
	}
	claims, err := deps.VerifyToken(tokenStr)
	if err == nil {
		return claims, nil
	}

	reason := "invalid"
	mapped := deps.Errors.TokenInvalid
	metric := deps.Metrics.TokenInvalid
	switch {
	case errors.Is(err, jwt.ErrExpired):
		reason, mapped, metric = "expired", deps.Errors.TokenExpired, deps.Metrics.TokenExpired
	case errors.Is(err, jwt.ErrMalformed):
		reason = "malformed"
	}
	deps.MetricInc(metric)
	// Expiry is routine; only forged or broken tokens are security events.
	if reason != "expired" {
		deps.EmitAudit(ctx, deps.Events.TokenRejected, false, "", "", "", mapped, func() map[string]string {
			return map[string]string{"reason": reason}
		})
	}
	return nil, mapped
}

func checkPermission(ctx context.Context, role permission.Role, perm permission.Permission, userID, username, sessionID string, deps AuthorizeDeps) error {
	if perm != "" && !deps.HasPermission(role, perm) {
		deps.MetricInc(deps.Metrics.AuthorizeDenied)
		deps.EmitAudit(ctx, deps.Events.PermissionDenied, false, userID, username, sessionID, deps.Errors.PermissionDenied, func() map[string]string {
			return map[string]string{"role": string(role), "permission": string(perm)}
		})
		return deps.Errors.PermissionDenied
	}
	deps.MetricInc(deps.Metrics.AuthorizeSuccess)
	return nil
}
