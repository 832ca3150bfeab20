package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/MrTornister/Work-Flow-app/password"
	"github.com/MrTornister/Work-Flow-app/permission"
	"github.com/MrTornister/Work-Flow-app/stores/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	clients     int
	redisAddr   string
}

func newLoadtestCmd() *cobra.Command {
	opts := loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive concurrent logins through the limiter and lockout",
		Long: `Seed users in memory, then run three phases: valid logins followed by an
authorize call, wrong-password logins that trip the lockout, and a burst from
a single client that trips the rate limiter. Trackers use --redis-addr,
REDIS_ADDR, or an embedded miniredis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.clients <= 0 {
				return errors.New("users, concurrency, ops and clients must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.users, "users", 1000, "number of users to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 20000, "operations per phase")
	cmd.Flags().IntVar(&opts.clients, "clients", 5000, "distinct client addresses for the valid-login phase")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authcore.DefaultConfig()
	// Cheap hashes keep the run about the trackers, not the KDF.
	cfg.Password.Hasher = password.Config{Algorithm: password.AlgorithmBcrypt, BcryptCost: 4}
	cfg.Password.UpgradeOnLogin = false
	cfg.Audit.Enabled = false
	cfg.RateLimit.RequestsPerMinute = 1_000_000
	cfg.RedisPrefix = fmt.Sprintf("authctl-loadtest:%d:", time.Now().UnixNano())

	store := memstore.New()
	engine, err := authcore.New().WithConfig(cfg).WithStore(store).WithRedis(client).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(out, "seeding %d users...\n", opts.users)
	startSeed := time.Now()
	hash, err := engine.HashPassword("Loadtest123")
	if err != nil {
		return err
	}
	for i := 0; i < opts.users; i++ {
		if _, err := store.Add(authcore.Identity{
			Username:     userName(i),
			PasswordHash: hash,
			Role:         permission.RoleUser,
			Active:       true,
		}); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	valid := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, i int) error {
		res, err := engine.Login(ctx, userName(r.Intn(opts.users)), "Loadtest123", clientName(i%opts.clients))
		if err != nil {
			return err
		}
		_, err = engine.AuthorizeSession(ctx, res.AccessToken, res.SessionID, permission.ViewOrders)
		return err
	})

	var locked, limited atomic.Int64
	guess := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, i int) error {
		_, err := engine.Login(ctx, userName(r.Intn(opts.users)), "wrong-Guess1", clientName(opts.clients+i))
		switch {
		case errors.Is(err, authcore.ErrAccountLocked):
			locked.Add(1)
			return nil
		case errors.Is(err, authcore.ErrInvalidCredentials):
			return nil
		}
		return err
	})

	burst := runPhase(opts.ops, opts.concurrency, func(*rand.Rand, int) error {
		err := engine.CheckRate(ctx, "burst-client")
		if errors.Is(err, authcore.ErrRateLimitExceeded) {
			limited.Add(1)
			return nil
		}
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "login+authorize", valid)
	printStats(out, "wrong-password", guess)
	printStats(out, "single-client", burst)
	fmt.Fprintf(out, "locked=%d rate_limited=%d\n", locked.Load(), limited.Load())

	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "metrics: login_success=%d login_failure=%d login_locked=%d sessions=%d\n",
		snap.Counters[authcore.MetricLoginSuccess],
		snap.Counters[authcore.MetricLoginFailure],
		snap.Counters[authcore.MetricLoginLocked],
		snap.Counters[authcore.MetricSessionCreated],
	)
	return nil
}

func userName(i int) string   { return fmt.Sprintf("user-%d", i) }
func clientName(i int) string { return fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xff, (i>>8)&0xff, i&0xff) }

// runPhase runs op ops times across concurrency workers and records the
// latency of every call. Errors returned by op count as failures.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
