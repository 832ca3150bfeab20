package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrTornister/Work-Flow-app/internal/window"
)

var (
	ErrResetRateLimited = errors.New("reset rate limited")
	ErrResetUnavailable = errors.New("reset limiter unavailable")
)

// PasswordResetConfig bounds reset requests and confirmations. Zero
// MaxRequests or MaxConfirms disables the matching throttle.
type PasswordResetConfig struct {
	MaxRequests int
	MaxConfirms int
	Window      time.Duration
}

// PasswordResetLimiter throttles reset requests per email and per client, and
// confirmations per client, so the reset endpoints cannot be used to flood a
// mailbox or to guess tokens.
type PasswordResetLimiter struct {
	store  window.Store
	config PasswordResetConfig
	now    func() time.Time
}

func NewPasswordResetLimiter(store window.Store, cfg PasswordResetConfig, now func() time.Time) *PasswordResetLimiter {
	if now == nil {
		now = time.Now
	}
	return &PasswordResetLimiter{store: store, config: cfg, now: now}
}

func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, clientID string) error {
	if l == nil || l.config.MaxRequests <= 0 {
		return nil
	}
	if email != "" {
		if err := l.admit(ctx, "arr:"+strings.ToLower(strings.TrimSpace(email)), l.config.MaxRequests); err != nil {
			return err
		}
	}
	if clientID != "" {
		if err := l.admit(ctx, "arri:"+clientID, l.config.MaxRequests); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) CheckConfirm(ctx context.Context, clientID string) error {
	if l == nil || l.config.MaxConfirms <= 0 || clientID == "" {
		return nil
	}
	return l.admit(ctx, "arci:"+clientID, l.config.MaxConfirms)
}

func (l *PasswordResetLimiter) admit(ctx context.Context, key string, limit int) error {
	ok, _, err := l.store.AddBelow(ctx, key, l.now(), l.config.Window, limit)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResetUnavailable, err)
	}
	if !ok {
		return ErrResetRateLimited
	}
	return nil
}
