package session

import (
	"errors"
	"strconv"
	"time"
)

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

// Record is the server-side view of one login. Role is a snapshot taken at
// login and is never refreshed during the session's lifetime.
//
// Timestamps are unix milliseconds.
type Record struct {
	SessionID    string
	UserID       string
	Username     string
	Role         string
	CreatedAt    int64
	LastActivity int64
}

// Idle returns how long the session has been inactive at now.
func (r *Record) Idle(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-r.LastActivity) * time.Millisecond
}

// Age returns the time since the session was created.
func (r *Record) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-r.CreatedAt) * time.Millisecond
}

// ToMap renders r as flat string fields, the layout used for Redis hashes.
func (r *Record) ToMap() map[string]string {
	return map[string]string{
		"session_id":    r.SessionID,
		"user_id":       r.UserID,
		"username":      r.Username,
		"role":          r.Role,
		"created_at":    strconv.FormatInt(r.CreatedAt, 10),
		"last_activity": strconv.FormatInt(r.LastActivity, 10),
	}
}

// FromMap is the inverse of [Record.ToMap].
func FromMap(m map[string]string) (*Record, error) {
	r := &Record{
		SessionID: m["session_id"],
		UserID:    m["user_id"],
		Username:  m["username"],
		Role:      m["role"],
	}
	if r.SessionID == "" || r.UserID == "" {
		return nil, ErrCorrupt
	}

	var err error
	if r.CreatedAt, err = strconv.ParseInt(m["created_at"], 10, 64); err != nil {
		return nil, ErrCorrupt
	}
	if r.LastActivity, err = strconv.ParseInt(m["last_activity"], 10, 64); err != nil {
		return nil, ErrCorrupt
	}
	return r, nil
}

func (r *Record) clone() *Record {
	c := *r
	return &c
}
