package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/MrTornister/Work-Flow-app/internal/httpapi"
	promexport "github.com/MrTornister/Work-Flow-app/metrics/export/prometheus"
	"github.com/MrTornister/Work-Flow-app/middleware"
	"github.com/MrTornister/Work-Flow-app/permission"
	"github.com/MrTornister/Work-Flow-app/stores/memstore"
	"github.com/MrTornister/Work-Flow-app/stores/pgstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	addr         string
	redisAddr    string
	ensureSchema bool
	demoPassword string
	auditFile    string
	csrf         bool
	secure       bool
	nodeID       int64
	proxies      []string
}

func newServeCmd(a *app) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo HTTP API",
		Long: `Serve login, logout, password reset, /orders, /users, /metrics and /health.

Users come from PostgreSQL when DATABASE_URL is set, otherwise from an
in-memory store seeded with admin, manager and user accounts. Trackers live
in Redis when --redis-addr or REDIS_ADDR is set, otherwise in memory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a.logger, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address; REDIS_ADDR when empty")
	cmd.Flags().BoolVar(&opts.ensureSchema, "ensure-schema", false, "create the users table when missing")
	cmd.Flags().StringVar(&opts.demoPassword, "demo-password", "Workflow123", "password of the seeded in-memory accounts")
	cmd.Flags().StringVar(&opts.auditFile, "audit-file", "", "append security events as JSON lines to this file")
	cmd.Flags().BoolVar(&opts.csrf, "csrf", false, "require X-CSRF-Token on unsafe methods")
	cmd.Flags().BoolVar(&opts.secure, "secure-cookies", false, "mark cookies Secure")
	cmd.Flags().Int64Var(&opts.nodeID, "node-id", 1, "snowflake node id for request ids (0..1023)")
	cmd.Flags().StringSliceVar(&opts.proxies, "trusted-proxies", nil, "CIDRs or addresses of reverse proxies whose X-Forwarded-For is believed")
	return cmd
}

func runServe(ctx context.Context, logger *zap.Logger, opts serveOptions) error {
	cfg, err := authcore.ConfigFromEnv()
	if err != nil {
		return err
	}
	trust, err := middleware.TrustProxies(opts.proxies...)
	if err != nil {
		return err
	}
	if len(cfg.JWT.Secret) == 0 {
		logger.Warn("JWT_SECRET not set, tokens will not survive a restart")
	}

	if cfg.PasswordReset.Deliver == nil {
		// No mailer in the demo; record that a token would have gone out.
		cfg.PasswordReset.Deliver = func(_ context.Context, email string, tok authcore.ResetToken) error {
			logger.Info("password reset ready for delivery",
				zap.String("email", email),
				zap.Time("expires_at", tok.ExpiresAt))
			return nil
		}
	}

	b := authcore.New().WithConfig(cfg).WithLogger(logger)

	var sinks authcore.MultiSink
	sinks = append(sinks, authcore.NewZapSink(logger.Named("audit")))
	if opts.auditFile != "" {
		f, err := os.OpenFile(opts.auditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		defer f.Close()
		sinks = append(sinks, authcore.NewJSONWriterSink(f))
	}
	b.WithAuditSink(sinks)

	redisAddr := opts.redisAddr
	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_ADDR")
	}
	if redisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{redisAddr}})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		b.WithRedis(client)
		logger.Info("trackers backed by redis", zap.String("addr", redisAddr))
	}

	// Seeding needs a built engine for hashing, so the memory store is
	// filled after Build.
	var mem *memstore.Store
	if pgCfg := pgstore.ConfigFromEnv(); pgCfg.DSN != "" {
		store, err := pgstore.Open(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer store.Close()
		if opts.ensureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		b.WithStore(store)
		logger.Info("users backed by postgres", zap.String("driver", pgCfg.Driver))
	} else {
		mem = memstore.New()
		b.WithStore(mem)
	}

	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if mem != nil {
		if err := seedDemoUsers(engine, mem, opts.demoPassword); err != nil {
			return err
		}
		logger.Info("in-memory users seeded", zap.Strings("usernames", []string{"admin", "manager", "user"}))
	}

	handler := httpapi.New(engine, httpapi.Options{
		Logger:         logger,
		Metrics:        promexport.NewExporter(engine).Handler(),
		CSRF:           opts.csrf,
		SecureCookies:  opts.secure,
		NodeID:         opts.nodeID,
		TrustedProxies: trust,
	})

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", opts.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if dropped := engine.AuditDropped(); dropped > 0 {
		logger.Warn("security events dropped", zap.Uint64("count", dropped))
	}
	return nil
}

func seedDemoUsers(engine *authcore.Engine, store *memstore.Store, pw string) error {
	hash, err := engine.HashPassword(pw)
	if err != nil {
		return fmt.Errorf("demo password: %w", err)
	}
	for _, role := range permission.Roles() {
		name := string(role)
		if _, err := store.Add(authcore.Identity{
			Username:     name,
			Email:        name + "@workflow.local",
			PasswordHash: hash,
			Role:         role,
			Active:       true,
		}); err != nil {
			return err
		}
	}
	return nil
}
