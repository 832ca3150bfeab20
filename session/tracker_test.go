package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	_, client := newTestRedis(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, "ts"),
	}
}

func TestTrackerIdleExpiry(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			tr := NewTracker(store, Config{IdleTimeout: 30 * time.Minute}, clock.Now)

			rec, err := tr.Create(ctx, "u1", "alice", "admin")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if len(rec.SessionID) != 27 {
				t.Fatalf("expected ksuid session id, got %q", rec.SessionID)
			}

			clock.Advance(29 * time.Minute)
			touched, err := tr.Touch(ctx, rec.SessionID)
			if err != nil {
				t.Fatalf("Touch failed inside idle timeout: %v", err)
			}
			if touched.LastActivity != clock.Now().UnixMilli() {
				t.Fatalf("expected last activity refresh, got %d", touched.LastActivity)
			}
			if touched.Role != "admin" || touched.Username != "alice" {
				t.Fatalf("unexpected snapshot: %+v", touched)
			}

			// Activity keeps the session alive well beyond one timeout.
			clock.Advance(29 * time.Minute)
			if _, err := tr.Touch(ctx, rec.SessionID); err != nil {
				t.Fatalf("Touch failed after refresh: %v", err)
			}

			clock.Advance(30*time.Minute + time.Millisecond)
			if _, err := tr.Touch(ctx, rec.SessionID); !errors.Is(err, ErrExpired) {
				t.Fatalf("expected ErrExpired, got %v", err)
			}
			if _, err := tr.Touch(ctx, rec.SessionID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected expired record to be gone, got %v", err)
			}
		})
	}
}

func TestTrackerExactTimeoutStillValid(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			tr := NewTracker(store, Config{IdleTimeout: time.Minute}, clock.Now)

			rec, _ := tr.Create(ctx, "u1", "alice", "user")
			clock.Advance(time.Minute)
			if _, err := tr.Touch(ctx, rec.SessionID); err != nil {
				t.Fatalf("idle == timeout must not expire: %v", err)
			}
		})
	}
}

func TestTrackerMaxLifetime(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			tr := NewTracker(store, Config{IdleTimeout: time.Hour, MaxLifetime: 2 * time.Hour}, clock.Now)

			rec, _ := tr.Create(ctx, "u1", "alice", "user")
			for i := 0; i < 4; i++ {
				clock.Advance(30 * time.Minute)
				if _, err := tr.Touch(ctx, rec.SessionID); err != nil {
					t.Fatalf("touch %d failed: %v", i, err)
				}
			}
			clock.Advance(time.Second)
			if _, err := tr.Touch(ctx, rec.SessionID); !errors.Is(err, ErrExpired) {
				t.Fatalf("expected ErrExpired past max lifetime, got %v", err)
			}
		})
	}
}

func TestTrackerDeleteIdempotent(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tr := NewTracker(store, Config{IdleTimeout: time.Minute}, nil)

			rec, _ := tr.Create(ctx, "u1", "alice", "user")
			if err := tr.Delete(ctx, rec.SessionID); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := tr.Delete(ctx, rec.SessionID); err != nil {
				t.Fatalf("second Delete failed: %v", err)
			}
			if _, err := tr.Get(ctx, rec.SessionID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestTrackerDeleteUser(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tr := NewTracker(store, Config{IdleTimeout: time.Minute}, nil)

			a, _ := tr.Create(ctx, "u1", "alice", "user")
			b, _ := tr.Create(ctx, "u1", "alice", "user")
			other, _ := tr.Create(ctx, "u2", "bob", "user")

			n, err := tr.DeleteUser(ctx, "u1")
			if err != nil {
				t.Fatalf("DeleteUser failed: %v", err)
			}
			if n != 2 {
				t.Fatalf("expected 2 deleted sessions, got %d", n)
			}
			for _, id := range []string{a.SessionID, b.SessionID} {
				if _, err := tr.Get(ctx, id); !errors.Is(err, ErrNotFound) {
					t.Fatalf("expected %s deleted, got %v", id, err)
				}
			}
			if _, err := tr.Get(ctx, other.SessionID); err != nil {
				t.Fatalf("other user's session must survive: %v", err)
			}
		})
	}
}

func TestTrackerConcurrentTouch(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tr := NewTracker(store, Config{IdleTimeout: time.Minute}, nil)
			rec, _ := tr.Create(ctx, "u1", "alice", "user")

			var wg sync.WaitGroup
			errs := make(chan error, 50)
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := tr.Touch(ctx, rec.SessionID); err != nil {
						errs <- err
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("concurrent touch failed: %v", err)
			}
		})
	}
}

func TestUnknownAndEmptySession(t *testing.T) {
	tr := NewTracker(NewMemoryStore(), Config{IdleTimeout: time.Minute}, nil)
	ctx := context.Background()

	if _, err := tr.Touch(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
	if _, err := tr.Touch(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := tr.Create(ctx, "", "x", "user"); err == nil {
		t.Fatal("expected empty user id to be rejected")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	tr := NewTracker(NewRedisStore(client, "ts"), Config{IdleTimeout: time.Minute}, nil)
	mr.Close()

	if _, err := tr.Create(context.Background(), "u1", "alice", "user"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRedisStoreKeyTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	tr := NewTracker(NewRedisStore(client, "ts"), Config{IdleTimeout: 10 * time.Minute}, nil)

	rec, err := tr.Create(context.Background(), "u1", "alice", "user")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ttl := mr.TTL("ts:" + rec.SessionID); ttl != 11*time.Minute {
		t.Fatalf("expected key ttl of 11m, got %v", ttl)
	}
}

func TestRedisUserIndexExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	tr := NewTracker(NewRedisStore(client, "ts"), Config{IdleTimeout: 10 * time.Minute}, nil)
	ctx := context.Background()

	rec, err := tr.Create(ctx, "u1", "alice", "user")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ttl := mr.TTL("tsu:u1"); ttl != 11*time.Minute {
		t.Fatalf("expected user index ttl of 11m, got %v", ttl)
	}

	mr.FastForward(5 * time.Minute)
	if _, err := tr.Touch(ctx, rec.SessionID); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if ttl := mr.TTL("tsu:u1"); ttl != 11*time.Minute {
		t.Fatalf("expected touch to refresh user index ttl, got %v", ttl)
	}

	// Abandoned sessions take their index with them.
	mr.FastForward(12 * time.Minute)
	if mr.Exists("tsu:u1") || mr.Exists("ts:"+rec.SessionID) {
		t.Fatal("expected session and user index to expire")
	}
}

func TestMemoryStoreLenAndIndexCleanup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr := NewTracker(store, Config{IdleTimeout: time.Minute}, clock.Now)

	rec, _ := tr.Create(ctx, "u1", "alice", "user")
	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}
	clock.Advance(2 * time.Minute)
	_, _ = tr.Touch(ctx, rec.SessionID)
	if store.Len() != 0 {
		t.Fatalf("expected expired record removed, got %d", store.Len())
	}
	store.idxMu.Lock()
	defer store.idxMu.Unlock()
	if len(store.byUser) != 0 {
		t.Fatalf("expected user index cleaned up, got %v", store.byUser)
	}
}
