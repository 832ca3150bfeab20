package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown or already deleted sessions.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when a session exceeded its idle timeout or
	// maximum lifetime. The record is removed before returning.
	ErrExpired = errors.New("session expired")
	// ErrUnavailable indicates the backing store is unreachable.
	ErrUnavailable = errors.New("session store unavailable")
)

// Policy bounds how long a session may live.
type Policy struct {
	IdleTimeout time.Duration
	MaxLifetime time.Duration // 0 means no absolute bound
}

func (p Policy) expired(r *Record, now time.Time) bool {
	if r.Idle(now) > p.IdleTimeout {
		return true
	}
	return p.MaxLifetime > 0 && r.Age(now) > p.MaxLifetime
}

// keyTTL is how long a backend may keep a record after its last write.
func (p Policy) keyTTL() time.Duration {
	ttl := p.IdleTimeout + time.Minute
	if p.MaxLifetime > 0 && p.MaxLifetime+time.Minute > ttl {
		ttl = p.MaxLifetime + time.Minute
	}
	return ttl
}

// Store persists session records. Implementations serialize Touch per
// session so concurrent requests cannot resurrect an expired record.
type Store interface {
	Save(ctx context.Context, r *Record, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*Record, error)
	// Touch checks r against policy at now and either refreshes
	// LastActivity or deletes the record and returns ErrExpired.
	Touch(ctx context.Context, sessionID string, now time.Time, policy Policy) (*Record, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteUser(ctx context.Context, userID string) (int, error)
}
