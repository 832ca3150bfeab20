package authcore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/MrTornister/Work-Flow-app/password"
	"github.com/MrTornister/Work-Flow-app/permission"
	"github.com/MrTornister/Work-Flow-app/stores/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *authcore.Engine
	store  *memstore.Store
	clock  *testClock
	ids    map[string]string
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Hasher = password.Config{Algorithm: password.AlgorithmBcrypt, BcryptCost: 4}
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEnv(t *testing.T, cfg authcore.Config, opts ...func(*authcore.Builder)) *testEnv {
	t.Helper()
	clock := newTestClock()
	store := memstore.New()

	b := authcore.New().WithConfig(cfg).WithStore(store).WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	env := &testEnv{engine: engine, store: store, clock: clock, ids: map[string]string{}}
	env.addUser(t, "alice", "alice@example.com", "Secret123", permission.RoleUser, true)
	env.addUser(t, "boss", "boss@example.com", "Admin1234", permission.RoleAdmin, true)
	env.addUser(t, "ghost", "ghost@example.com", "Ghost1234", permission.RoleUser, false)
	return env
}

func (env *testEnv) addUser(t *testing.T, username, email, pw string, role permission.Role, active bool) {
	t.Helper()
	hash, err := env.engine.HashPassword(pw)
	if err != nil {
		t.Fatalf("HashPassword(%s): %v", username, err)
	}
	id, err := env.store.Add(authcore.Identity{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	})
	if err != nil {
		t.Fatalf("Add(%s): %v", username, err)
	}
	env.ids[username] = id
}

func TestLoginAndAuthorize(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	res, err := env.engine.Login(ctx, "alice", "Secret123", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.SessionID == "" || res.TokenType != "bearer" {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if res.Role != permission.RoleUser || res.UserID != env.ids["alice"] {
		t.Fatalf("unexpected identity in result: %+v", res)
	}
	if want := env.clock.Now().Add(30 * time.Minute); !res.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, res.ExpiresAt)
	}

	auth, err := env.engine.Authorize(ctx, res.AccessToken, permission.ViewOrders)
	if err != nil {
		t.Fatalf("Authorize view_orders: %v", err)
	}
	if auth.Username != "alice" || auth.SessionID != res.SessionID {
		t.Fatalf("unexpected auth result: %+v", auth)
	}

	if _, err := env.engine.Authorize(ctx, res.AccessToken, permission.ManageUsers); !errors.Is(err, authcore.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	sess, err := env.engine.AuthorizeSession(ctx, res.AccessToken, "", permission.ViewOrders)
	if err != nil {
		t.Fatalf("AuthorizeSession: %v", err)
	}
	if sess.Session == nil || sess.Session.SessionID != res.SessionID {
		t.Fatalf("expected session attached, got %+v", sess)
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	_, errUnknown := env.engine.Login(ctx, "mallory", "Secret123", "c1")
	_, errWrong := env.engine.Login(ctx, "alice", "wrong-Pass1", "c2")
	_, errInactive := env.engine.Login(ctx, "ghost", "Ghost1234", "c3")

	for _, err := range []error{errUnknown, errWrong, errInactive} {
		if !errors.Is(err, authcore.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if authcore.StatusCode(err) != 401 {
			t.Fatalf("expected 401, got %d", authcore.StatusCode(err))
		}
		if authcore.PublicMessage(err) != authcore.PublicMessage(errUnknown) {
			t.Fatal("public messages must not differ between failure causes")
		}
	}
}

func TestLoginUpgradesLegacyBcryptDigest(t *testing.T) {
	cfg := testConfig()
	cfg.Password.Hasher = password.DefaultConfig()
	cfg.Password.Hasher.Argon2 = password.Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	id, err := env.store.Add(authcore.Identity{
		Username:     "legacy",
		Email:        "legacy@example.com",
		PasswordHash: string(legacy),
		Role:         permission.RoleUser,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := env.engine.Login(ctx, "legacy", "Wrong1234", "c1"); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for a wrong password, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "legacy", "Secret123", "c2"); err != nil {
		t.Fatalf("Login against bcrypt digest: %v", err)
	}
	stored, _ := env.store.Get(id)
	if got := password.AlgorithmOf(stored.PasswordHash); got != password.AlgorithmArgon2id {
		t.Fatalf("expected digest rehashed to argon2id, got %q (%s)", got, stored.PasswordHash)
	}
	if _, err := env.engine.Login(ctx, "legacy", "Secret123", "c3"); err != nil {
		t.Fatalf("Login after upgrade: %v", err)
	}
}

func TestLoginEmptyCredentials(t *testing.T) {
	env := newTestEnv(t, testConfig())
	if _, err := env.engine.Login(context.Background(), "", "x", "c"); !errors.Is(err, authcore.ErrEmptyCredentials) {
		t.Fatalf("expected ErrEmptyCredentials, got %v", err)
	}
}

func TestLockoutAfterMaxAttemptsAndRelease(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.LoginRequestsPerMinute = 0
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	for i := 0; i < cfg.Lockout.MaxAttempts; i++ {
		if _, err := env.engine.Login(ctx, "alice", "wrong-Pass1", "c"); !errors.Is(err, authcore.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := env.engine.Login(ctx, "alice", "Secret123", "c")
	if !errors.Is(err, authcore.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with the correct password, got %v", err)
	}
	if authcore.StatusCode(err) != 423 {
		t.Fatalf("expected 423, got %d", authcore.StatusCode(err))
	}

	env.clock.Advance(cfg.Lockout.Window + time.Second)
	if _, err := env.engine.Login(ctx, "alice", "Secret123", "c"); err != nil {
		t.Fatalf("expected lockout to lapse after the window, got %v", err)
	}
}

func TestSuccessfulLoginClearsFailures(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.LoginRequestsPerMinute = 0
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	for round := 0; round < 2; round++ {
		for i := 0; i < cfg.Lockout.MaxAttempts-1; i++ {
			_, _ = env.engine.Login(ctx, "alice", "wrong-Pass1", "c")
		}
		if _, err := env.engine.Login(ctx, "alice", "Secret123", "c"); err != nil {
			t.Fatalf("round %d: expected success to reset the counter, got %v", round, err)
		}
	}
}

func TestLoginLimiterPrecedesIdentityLookup(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if _, err := env.engine.Login(ctx, "nobody", "Whatever1", "203.0.113.9"); !errors.Is(err, authcore.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	_, err := env.engine.Login(ctx, "nobody", "Whatever1", "203.0.113.9")
	if !errors.Is(err, authcore.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded on the fifth attempt, got %v", err)
	}

	// Another client is unaffected.
	if _, err := env.engine.Login(ctx, "alice", "Secret123", "203.0.113.10"); err != nil {
		t.Fatalf("expected other client admitted, got %v", err)
	}
}

func TestCheckRateAdmitsExactlyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerMinute = 10
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := env.engine.CheckRate(ctx, "c"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}
	if err := env.engine.CheckRate(ctx, "c"); !errors.Is(err, authcore.ErrRateLimitExceeded) {
		t.Fatalf("expected 11th request rejected, got %v", err)
	}
	if n, err := env.engine.RateRemaining(ctx, "c"); err != nil || n != 0 {
		t.Fatalf("expected 0 remaining, got %d (%v)", n, err)
	}

	env.clock.Advance(time.Minute + time.Second)
	if err := env.engine.CheckRate(ctx, "c"); err != nil {
		t.Fatalf("expected window to roll over, got %v", err)
	}
}

func TestLoginSkipsRequestWindowWhenAlreadyCharged(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerMinute = 1
	env := newTestEnv(t, cfg)

	ctx := authcore.WithRateChecked(context.Background())
	if err := env.engine.CheckRate(ctx, "c"); err != nil {
		t.Fatalf("CheckRate: %v", err)
	}
	if _, err := env.engine.Login(ctx, "alice", "Secret123", "c"); err != nil {
		t.Fatalf("expected login not to be charged twice, got %v", err)
	}
	if _, err := env.engine.Login(context.Background(), "alice", "Secret123", "c"); !errors.Is(err, authcore.ErrRateLimitExceeded) {
		t.Fatalf("expected uncharged login to hit the window, got %v", err)
	}
}

func TestTokenExpiryAndTampering(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	res, err := env.engine.Login(ctx, "alice", "Secret123", "c")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	tampered := []byte(res.AccessToken)
	last := len(tampered) - 2
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}
	if _, err := env.engine.Authorize(ctx, string(tampered), ""); !errors.Is(err, authcore.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for altered signature, got %v", err)
	}

	env.clock.Advance(30*time.Minute + time.Second)
	if _, err := env.engine.Authorize(ctx, res.AccessToken, ""); !errors.Is(err, authcore.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestIdleSessionExpiresBeforeToken(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.AccessTTL = 2 * time.Hour
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	res, err := env.engine.Login(ctx, "alice", "Secret123", "c")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Activity inside the idle timeout keeps the session alive.
	env.clock.Advance(20 * time.Minute)
	if _, err := env.engine.AuthorizeSession(ctx, res.AccessToken, res.SessionID, permission.ViewOrders); err != nil {
		t.Fatalf("expected active session, got %v", err)
	}

	env.clock.Advance(31 * time.Minute)
	if _, err := env.engine.Authorize(ctx, res.AccessToken, permission.ViewOrders); err != nil {
		t.Fatalf("token itself should still be valid, got %v", err)
	}
	_, err = env.engine.AuthorizeSession(ctx, res.AccessToken, res.SessionID, permission.ViewOrders)
	if !errors.Is(err, authcore.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after idle timeout, got %v", err)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	res, err := env.engine.Login(ctx, "alice", "Secret123", "c")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := env.engine.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := env.engine.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("second Logout should succeed, got %v", err)
	}
	if _, err := env.engine.AuthorizeSession(ctx, res.AccessToken, "", ""); !errors.Is(err, authcore.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after logout, got %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	first, _ := env.engine.Login(ctx, "alice", "Secret123", "c1")
	second, _ := env.engine.Login(ctx, "alice", "Secret123", "c2")

	n, err := env.engine.LogoutAll(ctx, env.ids["alice"])
	if err != nil || n != 2 {
		t.Fatalf("expected 2 sessions removed, got %d (%v)", n, err)
	}
	for _, res := range []*authcore.LoginResult{first, second} {
		if _, err := env.engine.AuthorizeSession(ctx, res.AccessToken, "", ""); !errors.Is(err, authcore.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
	}
}

func TestIssueTestToken(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	token, err := env.engine.IssueTestToken(permission.RoleAdmin)
	if err != nil {
		t.Fatalf("IssueTestToken: %v", err)
	}
	auth, err := env.engine.Authorize(ctx, token, permission.ManageUsers)
	if err != nil {
		t.Fatalf("admin test token should pass, got %v", err)
	}
	if auth.Username != "test_user" {
		t.Fatalf("unexpected subject %q", auth.Username)
	}
	if _, err := env.engine.AuthorizeSession(ctx, token, "", ""); !errors.Is(err, authcore.ErrSessionExpired) {
		t.Fatalf("test tokens carry no session, got %v", err)
	}
	if _, err := env.engine.IssueTestToken("root"); err == nil {
		t.Fatal("expected unknown role rejected")
	}
}

func TestPermissionModel(t *testing.T) {
	env := newTestEnv(t, testConfig())
	for _, p := range permission.All() {
		if !env.engine.HasPermission(permission.RoleAdmin, p) {
			t.Fatalf("admin should hold %s", p)
		}
	}
	if env.engine.HasPermission(permission.RoleUser, permission.ManageUsers) {
		t.Fatal("user must not hold manage_users")
	}
}

func TestMetricsCountLogins(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	_, _ = env.engine.Login(ctx, "alice", "Secret123", "c")
	_, _ = env.engine.Login(ctx, "alice", "nope-Nope1", "c")

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[authcore.MetricLoginSuccess] != 1 || snap.Counters[authcore.MetricLoginFailure] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
	if snap.Counters[authcore.MetricSessionCreated] != 1 {
		t.Fatalf("expected one session created, got %d", snap.Counters[authcore.MetricSessionCreated])
	}
	if _, ok := snap.Histograms[authcore.MetricLoginLatency]; !ok {
		t.Fatal("expected login latency histogram")
	}
}

func TestAuditEventsCarryClientIP(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	sink := authcore.NewChannelSink(64)
	env := newTestEnv(t, cfg, func(b *authcore.Builder) { b.WithAuditSink(sink) })

	ctx := authcore.WithClientIP(context.Background(), "198.51.100.7")
	_, _ = env.engine.Login(ctx, "alice", "wrong-Pass1", "")

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType != authcore.EventLoginFailure {
				continue
			}
			if ev.IP != "198.51.100.7" || ev.Username != "alice" || ev.Success {
				t.Fatalf("unexpected event: %+v", ev)
			}
			if ev.ID == "" || ev.Severity != authcore.SeverityWarning {
				t.Fatalf("expected id and warning severity, got %+v", ev)
			}
			return
		case <-timeout:
			t.Fatal("timed out waiting for login_failure event")
		}
	}
}

func TestBuilderValidation(t *testing.T) {
	if _, err := authcore.New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected missing store rejected")
	}

	b := authcore.New().WithConfig(testConfig()).WithStore(memstore.New())
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build rejected")
	}

	bad := testConfig()
	bad.Lockout.MaxAttempts = 0
	if _, err := authcore.New().WithConfig(bad).WithStore(memstore.New()).Build(); err == nil {
		t.Fatal("expected invalid config rejected")
	}
}

func TestRedisBackedEngine(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnv(t, testConfig(), func(b *authcore.Builder) { b.WithRedis(client) })
	ctx := context.Background()

	res, err := env.engine.Login(ctx, "alice", "Secret123", "c")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := env.engine.AuthorizeSession(ctx, res.AccessToken, "", permission.ViewOrders); err != nil {
		t.Fatalf("AuthorizeSession: %v", err)
	}

	mr.Close()
	_, err = env.engine.Login(ctx, "alice", "Secret123", "c")
	if !errors.Is(err, authcore.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable with Redis down, got %v", err)
	}
	if authcore.StatusCode(err) != 500 {
		t.Fatalf("expected 500, got %d", authcore.StatusCode(err))
	}
}
