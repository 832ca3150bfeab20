package session

import (
	"errors"
	"testing"
	"time"
)

func TestRecordMapCodec(t *testing.T) {
	in := &Record{
		SessionID:    "2Dq8f0x9Kq3VnZ3y0k2c8hQ1a4B",
		UserID:       "u1",
		Username:     "alice",
		Role:         "manager",
		CreatedAt:    1_700_000_000_000,
		LastActivity: 1_700_000_060_000,
	}
	out, err := FromMap(in.ToMap())
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	if *out != *in {
		t.Fatalf("codec mismatch: %+v vs %+v", out, in)
	}
}

func TestFromMapRejectsCorrupt(t *testing.T) {
	good := (&Record{SessionID: "s", UserID: "u", CreatedAt: 1, LastActivity: 1}).ToMap()

	for _, mutate := range []func(map[string]string){
		func(m map[string]string) { delete(m, "session_id") },
		func(m map[string]string) { delete(m, "user_id") },
		func(m map[string]string) { m["created_at"] = "yesterday" },
		func(m map[string]string) { delete(m, "last_activity") },
	} {
		m := make(map[string]string, len(good))
		for k, v := range good {
			m[k] = v
		}
		mutate(m)
		if _, err := FromMap(m); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("expected ErrCorrupt for %v, got %v", m, err)
		}
	}
}

func TestRecordIdleAndAge(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	r := &Record{CreatedAt: now.Add(-time.Hour).UnixMilli(), LastActivity: now.Add(-5 * time.Minute).UnixMilli()}
	if r.Idle(now) != 5*time.Minute {
		t.Fatalf("unexpected idle %v", r.Idle(now))
	}
	if r.Age(now) != time.Hour {
		t.Fatalf("unexpected age %v", r.Age(now))
	}
}
