package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrTornister/Work-Flow-app/internal/window"
	xrate "golang.org/x/time/rate"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	RequestsPerMinute      int
	Window                 time.Duration
	LoginRequestsPerMinute int     // 0 disables the login-specific window
	GlobalRPS              float64 // 0 disables the process-wide bucket
	GlobalBurst            int
}

// Limiter enforces per-client sliding-window budgets.
type Limiter struct {
	store  window.Store
	config Config
	global *xrate.Limiter
	now    func() time.Time
}

const unknownClient = "unknown"

// New creates a rate [Limiter] over store. A nil now uses time.Now.
func New(store window.Store, cfg Config, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	l := &Limiter{
		store:  store,
		config: cfg,
		now:    now,
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS) + 1
		}
		l.global = xrate.NewLimiter(xrate.Limit(cfg.GlobalRPS), burst)
	}
	return l
}

// Check admits one request from clientID or returns [ErrRateLimited].
// A rejected request is not counted against the client.
func (l *Limiter) Check(ctx context.Context, clientID string) error {
	if l == nil {
		return nil
	}
	if l.global != nil && !l.global.AllowN(l.now(), 1) {
		return ErrOverloaded
	}
	return l.admit(ctx, requestKey(clientID), l.config.RequestsPerMinute)
}

// CheckLogin admits one login attempt from clientID against the login window.
// It is independent of [Limiter.Check] so that credential guessing is bounded
// more tightly than ordinary traffic.
func (l *Limiter) CheckLogin(ctx context.Context, clientID string) error {
	if l == nil || l.config.LoginRequestsPerMinute <= 0 {
		return nil
	}
	return l.admit(ctx, loginKey(clientID), l.config.LoginRequestsPerMinute)
}

// Remaining returns how many requests clientID may still make in the
// current window.
func (l *Limiter) Remaining(ctx context.Context, clientID string) (int, error) {
	if l == nil {
		return 0, nil
	}
	n, err := l.store.Count(ctx, requestKey(clientID), l.now(), l.config.Window)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	left := l.config.RequestsPerMinute - n
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Limit returns the per-client budget for one window.
func (l *Limiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.config.RequestsPerMinute
}

// RetryAfter is the longest a rejected client has to wait.
func (l *Limiter) RetryAfter() time.Duration {
	if l == nil {
		return 0
	}
	return l.config.Window
}

func (l *Limiter) admit(ctx context.Context, key string, limit int) error {
	if limit <= 0 {
		return nil
	}
	ok, _, err := l.store.AddBelow(ctx, key, l.now(), l.config.Window, limit)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

func requestKey(clientID string) string {
	if clientID == "" {
		clientID = unknownClient
	}
	return "arl:" + clientID
}

func loginKey(clientID string) string {
	if clientID == "" {
		clientID = unknownClient
	}
	return "arll:" + clientID
}
