package rate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrTornister/Work-Flow-app/internal/window"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *stepClock {
	return &stepClock{now: time.Unix(1_700_000_000, 0)}
}

func TestCheckAdmitsExactlyLimitPerWindow(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	l := New(window.NewMemoryStore(), Config{RequestsPerMinute: 60, Window: time.Minute}, clock.Now)

	for i := 0; i < 60; i++ {
		if err := l.Check(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
		clock.Advance(500 * time.Millisecond)
	}
	if err := l.Check(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected 61st request to be rate limited, got %v", err)
	}
	if err := l.Check(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("other client must be unaffected: %v", err)
	}
}

func TestCheckReleasesAsWindowSlides(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	l := New(window.NewMemoryStore(), Config{RequestsPerMinute: 3, Window: time.Minute}, clock.Now)

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "c"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
		clock.Advance(10 * time.Second)
	}
	// t=30s: window still holds t=0,10,20.
	if err := l.Check(ctx, "c"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rejection, got %v", err)
	}

	// t=60s: the t=0 entry has aged out, exactly one slot frees up.
	clock.Advance(30 * time.Second)
	if err := l.Check(ctx, "c"); err != nil {
		t.Fatalf("expected admission after oldest entry expired, got %v", err)
	}
	if err := l.Check(ctx, "c"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rejection with a full window, got %v", err)
	}
}

func TestRejectedRequestsAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	l := New(window.NewMemoryStore(), Config{RequestsPerMinute: 2, Window: time.Minute}, clock.Now)

	_ = l.Check(ctx, "c")
	_ = l.Check(ctx, "c")
	for i := 0; i < 20; i++ {
		_ = l.Check(ctx, "c")
	}

	remaining, err := l.Remaining(ctx, "c")
	if err != nil {
		t.Fatalf("Remaining failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}

	clock.Advance(time.Minute)
	remaining, err = l.Remaining(ctx, "c")
	if err != nil {
		t.Fatalf("Remaining failed: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("rejections must not extend the window, remaining=%d", remaining)
	}
}

func TestCheckLoginIndependentBudget(t *testing.T) {
	ctx := context.Background()
	l := New(window.NewMemoryStore(), Config{
		RequestsPerMinute:      60,
		Window:                 time.Minute,
		LoginRequestsPerMinute: 4,
	}, newClock().Now)

	for i := 0; i < 4; i++ {
		if err := l.CheckLogin(ctx, "c"); err != nil {
			t.Fatalf("login %d rejected: %v", i+1, err)
		}
	}
	if err := l.CheckLogin(ctx, "c"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected 5th login to be rate limited, got %v", err)
	}
	if err := l.Check(ctx, "c"); err != nil {
		t.Fatalf("general budget must be separate: %v", err)
	}
}

func TestGlobalBucketSheds(t *testing.T) {
	ctx := context.Background()
	l := New(window.NewMemoryStore(), Config{
		RequestsPerMinute: 1000,
		Window:            time.Minute,
		GlobalRPS:         1,
		GlobalBurst:       2,
	}, newClock().Now)

	if err := l.Check(ctx, "a"); err != nil {
		t.Fatalf("first request rejected: %v", err)
	}
	if err := l.Check(ctx, "b"); err != nil {
		t.Fatalf("second request rejected: %v", err)
	}
	if err := l.Check(ctx, "c"); !errors.Is(err, ErrOverloaded) {
		t.Fatalf("expected ErrOverloaded once the bucket is empty, got %v", err)
	}
}

func TestEmptyClientSharesUnknownBucket(t *testing.T) {
	ctx := context.Background()
	l := New(window.NewMemoryStore(), Config{RequestsPerMinute: 1, Window: time.Minute}, newClock().Now)

	if err := l.Check(ctx, ""); err != nil {
		t.Fatalf("first anonymous request rejected: %v", err)
	}
	if err := l.Check(ctx, ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected anonymous clients to share one window, got %v", err)
	}
}

func TestLimiterRedisBackend(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	l := New(window.NewRedisStore(client, "r:"), Config{RequestsPerMinute: 5, Window: time.Minute}, newClock().Now)

	for i := 0; i < 5; i++ {
		if err := l.Check(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}
	if err := l.Check(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit on redis backend, got %v", err)
	}

	mr.Close()
	if err := l.Check(ctx, "10.0.0.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
