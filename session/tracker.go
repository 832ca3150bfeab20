package session

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/ksuid"
)

// Config holds session tracker settings.
type Config struct {
	IdleTimeout time.Duration
	MaxLifetime time.Duration
}

// Tracker creates sessions at login and enforces the idle timeout on every
// authenticated request.
type Tracker struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// NewTracker returns a Tracker over store. A nil now uses time.Now.
func NewTracker(store Store, cfg Config, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store:  store,
		policy: Policy{IdleTimeout: cfg.IdleTimeout, MaxLifetime: cfg.MaxLifetime},
		now:    now,
	}
}

// Create records a new session for a successful login.
func (t *Tracker) Create(ctx context.Context, userID, username, role string) (*Record, error) {
	if userID == "" {
		return nil, errors.New("session user id is required")
	}
	nowMs := t.now().UnixMilli()
	r := &Record{
		SessionID:    ksuid.New().String(),
		UserID:       userID,
		Username:     username,
		Role:         role,
		CreatedAt:    nowMs,
		LastActivity: nowMs,
	}
	if err := t.store.Save(ctx, r, t.policy.keyTTL()); err != nil {
		return nil, err
	}
	return r, nil
}

// Touch refreshes the session's last activity, or returns ErrExpired once
// it has been idle longer than IdleTimeout.
func (t *Tracker) Touch(ctx context.Context, sessionID string) (*Record, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	return t.store.Touch(ctx, sessionID, t.now(), t.policy)
}

// Get returns the stored record without refreshing it.
func (t *Tracker) Get(ctx context.Context, sessionID string) (*Record, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	return t.store.Get(ctx, sessionID)
}

// Delete ends a session. Deleting an unknown session is not an error.
func (t *Tracker) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return t.store.Delete(ctx, sessionID)
}

// DeleteUser ends every session of userID.
func (t *Tracker) DeleteUser(ctx context.Context, userID string) (int, error) {
	return t.store.DeleteUser(ctx, userID)
}

func (t *Tracker) IdleTimeout() time.Duration {
	return t.policy.IdleTimeout
}
