package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrTornister/Work-Flow-app/internal/audit"
	"github.com/MrTornister/Work-Flow-app/internal/flows"
	"github.com/MrTornister/Work-Flow-app/internal/limiters"
	"github.com/MrTornister/Work-Flow-app/internal/rate"
	"github.com/MrTornister/Work-Flow-app/jwt"
	"github.com/MrTornister/Work-Flow-app/password"
	"github.com/MrTornister/Work-Flow-app/permission"
	"github.com/MrTornister/Work-Flow-app/session"
	"go.uber.org/zap"
)

// Engine is the authentication and authorization facade. It is safe for
// concurrent use once returned by [Builder.Build].
type Engine struct {
	config       Config
	store        CredentialStore
	hasher       password.Hasher
	dummyHash    string
	policy       password.Policy
	tokens       *jwt.Manager
	perms        *permission.Model
	lockout      *limiters.AttemptTracker
	limiter      *rate.Limiter
	resetLimiter *limiters.PasswordResetLimiter
	sessions     *session.Tracker
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *zap.Logger
	clock        func() time.Time
	flows        flows.Deps

	// hashAlgorithm is what hasher produces; see [password.AlgorithmOf].
	hashAlgorithm string
}

// Close flushes pending security events. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	_ = e.logger.Sync()
}

// AuditDropped returns how many security events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, e.now().Sub(start))
}

// Login authenticates username and password for clientID and opens a
// session. An empty clientID falls back to the address set by
// [WithClientIP].
//
// Checks run in a fixed order: the per-client rate gate, the lockout check,
// the credential lookup and the password verification. Unknown usernames,
// wrong passwords and inactive accounts all return [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, username, password, clientID string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := e.now()
	defer e.observe(MetricLoginLatency, start)

	if clientID == "" {
		clientID = clientIPFromContext(ctx)
	}
	res, err := flows.RunLogin(ctx, username, password, clientID, e.flows.Login)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: res.Token,
		TokenType:   "bearer",
		ExpiresAt:   res.ExpiresAt,
		SessionID:   res.SessionID,
		UserID:      res.UserID,
		Username:    res.Username,
		Role:        permission.Role(res.Role),
	}, nil
}

// Authorize verifies token and checks perm against the role it carries.
// An empty perm only authenticates.
func (e *Engine) Authorize(ctx context.Context, token string, perm permission.Permission) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := e.now()
	defer e.observe(MetricAuthorizeLatency, start)

	res, err := flows.RunAuthorize(ctx, token, perm, e.flows.Authorize)
	if err != nil {
		return nil, err
	}
	return authResult(res), nil
}

// AuthorizeSession is [Engine.Authorize] plus the session idle check. An
// empty sessionID uses the token's sid claim. The session's role snapshot
// decides the permission check, and a successful call refreshes the
// session's last activity.
func (e *Engine) AuthorizeSession(ctx context.Context, token, sessionID string, perm permission.Permission) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := e.now()
	defer e.observe(MetricAuthorizeLatency, start)

	res, err := flows.RunAuthorizeSession(ctx, token, sessionID, perm, e.flows.Authorize)
	if err != nil {
		return nil, err
	}
	return authResult(res), nil
}

func authResult(res *flows.AuthorizeResult) *AuthResult {
	out := &AuthResult{
		UserID:   res.Claims.UID,
		Username: res.Claims.Subject,
		Role:     permission.Role(res.Claims.Role),
		Claims:   res.Claims,
		Session:  res.Session,
	}
	out.SessionID = res.Claims.SID
	if res.Claims.ExpiresAt != nil {
		out.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	if res.Session != nil {
		out.SessionID = res.Session.SessionID
		out.Role = permission.Role(res.Session.Role)
	}
	return out
}

// CheckRate charges one request from clientID against its window.
func (e *Engine) CheckRate(ctx context.Context, clientID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	err := mapRateError(e.limiter.Check(ctx, clientID))
	if errors.Is(err, ErrRateLimitExceeded) {
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, EventRateLimited, false, "", "", "", err, func() map[string]string {
			return map[string]string{"client": clientID, "scope": "request"}
		})
	}
	return err
}

// RateRemaining returns how many requests clientID may still make in the
// current window.
func (e *Engine) RateRemaining(ctx context.Context, clientID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.limiter.Remaining(ctx, clientID)
	if err != nil {
		return 0, mapRateError(err)
	}
	return n, nil
}

// RateLimit is the per-client budget for one window.
func (e *Engine) RateLimit() int {
	return e.limiter.Limit()
}

// RetryAfter is the longest a rate-limited client has to wait.
func (e *Engine) RetryAfter() time.Duration {
	return e.limiter.RetryAfter()
}

// Logout ends sessionID. Unknown and already expired sessions succeed.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunLogout(ctx, sessionID, e.flows.Logout)
}

// TouchSession refreshes the last activity of sessionID without a token.
// Idle and unknown sessions return [ErrSessionExpired].
func (e *Engine) TouchSession(ctx context.Context, sessionID string) (*session.Record, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	rec, err := e.sessions.Touch(ctx, sessionID)
	if err != nil {
		err = mapSessionError(err)
		if errors.Is(err, ErrSessionExpired) {
			e.metricInc(MetricSessionExpired)
		}
		return nil, err
	}
	return rec, nil
}

// LogoutAll ends every session of userID and returns how many were removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.sessions.DeleteUser(ctx, userID)
	if err != nil {
		return 0, mapSessionError(err)
	}
	e.emitAudit(ctx, EventLogout, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"scope": "all"}
	})
	return n, nil
}

// IssueTestToken signs a token for the synthetic user "test_user" holding
// role. It opens no session, so it passes [Engine.Authorize] but not
// [Engine.AuthorizeSession]. Intended for development tooling.
func (e *Engine) IssueTestToken(role permission.Role) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if _, err := permission.ParseRole(string(role)); err != nil {
		return "", err
	}
	token, _, err := e.tokens.Issue(testSubject, string(role), 0)
	return token, err
}

// HasPermission reports whether role grants perm.
func (e *Engine) HasPermission(role permission.Role, perm permission.Permission) bool {
	if e == nil {
		return false
	}
	return e.perms.HasPermission(role, perm)
}

// HashPassword hashes pw with the configured algorithm, after checking it
// against the password policy.
func (e *Engine) HashPassword(pw string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if err := e.ValidatePassword(pw); err != nil {
		return "", err
	}
	return e.hasher.Hash(pw)
}

// ValidatePassword checks pw against the password policy. The error wraps
// both [ErrWeakPassword] and a *password.PolicyError listing the failures.
func (e *Engine) ValidatePassword(pw string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.policy.Validate(pw); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}
	return nil
}

const testSubject = "test_user"

func mapSessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrNotFound):
		return ErrSessionExpired
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
