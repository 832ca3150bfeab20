package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrTornister/Work-Flow-app/internal/window"
)

// LockoutConfig holds configuration for the per-identity attempt tracker.
type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

const lockoutKeyPrefix = "alo:"

// AttemptTracker counts failed logins per identity inside a sliding window.
//
// An identity is locked while it has at least MaxAttempts failures in the
// trailing Window; it unlocks on its own as those failures age out, or at once
// after [AttemptTracker.RecordSuccess].
type AttemptTracker struct {
	store  window.Store
	config LockoutConfig
	now    func() time.Time
}

// NewAttemptTracker creates a tracker over store. A nil now uses time.Now.
func NewAttemptTracker(store window.Store, cfg LockoutConfig, now func() time.Time) *AttemptTracker {
	if now == nil {
		now = time.Now
	}
	return &AttemptTracker{store: store, config: cfg, now: now}
}

func (t *AttemptTracker) key(identity string) string {
	return lockoutKeyPrefix + strings.ToLower(strings.TrimSpace(identity))
}

// RecordFailure appends a failure timestamp for identity. It does not decide
// lockout; callers query [AttemptTracker.IsLocked].
func (t *AttemptTracker) RecordFailure(ctx context.Context, identity string) error {
	if t == nil || identity == "" {
		return nil
	}
	if _, err := t.store.Add(ctx, t.key(identity), t.now(), t.config.Window); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// IsLocked reports whether identity has reached MaxAttempts failures inside
// the trailing window. Unknown identities are never locked.
func (t *AttemptTracker) IsLocked(ctx context.Context, identity string) (bool, error) {
	n, err := t.Failures(ctx, identity)
	if err != nil {
		return false, err
	}
	return t != nil && n >= t.config.MaxAttempts, nil
}

// RecordSuccess clears the failure history of identity.
func (t *AttemptTracker) RecordSuccess(ctx context.Context, identity string) error {
	if t == nil || identity == "" {
		return nil
	}
	if err := t.store.Clear(ctx, t.key(identity)); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// Failures returns the number of failures for identity inside the window.
func (t *AttemptTracker) Failures(ctx context.Context, identity string) (int, error) {
	if t == nil || identity == "" {
		return 0, nil
	}
	n, err := t.store.Count(ctx, t.key(identity), t.now(), t.config.Window)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return n, nil
}
