package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrTornister/Work-Flow-app/internal/audit"
	"github.com/MrTornister/Work-Flow-app/internal/limiters"
	"github.com/MrTornister/Work-Flow-app/internal/rate"
	"github.com/MrTornister/Work-Flow-app/internal/window"
	"github.com/MrTornister/Work-Flow-app/jwt"
	"github.com/MrTornister/Work-Flow-app/password"
	"github.com/MrTornister/Work-Flow-app/permission"
	"github.com/MrTornister/Work-Flow-app/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	store  CredentialStore
	redis  redis.UniversalClient

	model     *permission.Model
	logger    *zap.Logger
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithRedis moves the attempt tracker, rate limiter and session tracker onto
// Redis so that several processes share them. Without it every tracker is
// in memory and local to the process.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPermissions replaces the default role grants.
func (b *Builder) WithPermissions(model *permission.Model) *Builder {
	b.model = model
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where security events go. The default logs them
// through the engine's logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for every time-dependent component. Tests use
// it to step through windows and timeouts.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model := b.model
	if model == nil {
		model = permission.Default()
	}

	// -------- BACKENDS --------
	var (
		windows  window.Store
		sessions session.Store
	)
	if b.redis != nil {
		windows = window.NewRedisStore(b.redis, cfg.RedisPrefix)
		sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	} else {
		windows = window.NewMemoryStore()
		sessions = session.NewMemoryStore()
	}

	// -------- CREDENTIALS --------
	hasher, err := password.New(cfg.Password.Hasher)
	if err != nil {
		return nil, err
	}
	// Unknown usernames are verified against this digest so that they cost
	// as much as a wrong password.
	dummyHash, err := hasher.Hash("authcore-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:    cloneBytes(cfg.JWT.Secret),
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		Leeway:    cfg.JWT.Leeway,
		Now:       clock,
	})
	if err != nil {
		return nil, err
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NewZapSink(logger.Named("audit"))
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		store:     b.store,
		hasher:    hasher,
		dummyHash: dummyHash,
		policy:    cfg.PasswordPolicy,

		hashAlgorithm: password.AlgorithmOf(dummyHash),
		tokens:    tokens,
		perms:     model,
		lockout: limiters.NewAttemptTracker(windows, limiters.LockoutConfig{
			MaxAttempts: cfg.Lockout.MaxAttempts,
			Window:      cfg.Lockout.Window,
		}, clock),
		limiter: rate.New(windows, rate.Config{
			RequestsPerMinute:      cfg.RateLimit.RequestsPerMinute,
			Window:                 cfg.RateLimit.Window,
			LoginRequestsPerMinute: cfg.RateLimit.LoginRequestsPerMinute,
			GlobalRPS:              cfg.RateLimit.GlobalRPS,
			GlobalBurst:            cfg.RateLimit.GlobalBurst,
		}, clock),
		resetLimiter: limiters.NewPasswordResetLimiter(windows, limiters.PasswordResetConfig{
			MaxRequests: cfg.PasswordReset.MaxRequests,
			MaxConfirms: cfg.PasswordReset.MaxConfirms,
			Window:      cfg.PasswordReset.Window,
		}, clock),
		sessions: session.NewTracker(sessions, session.Config{
			IdleTimeout: cfg.Session.IdleTimeout,
			MaxLifetime: cfg.Session.MaxLifetime,
		}, clock),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		clock:   clock,
	}
	engine.flows = engine.buildFlowDeps()

	if cfg.PasswordReset.Deliver == nil && !cfg.PasswordReset.ReturnToken {
		logger.Warn("authcore: no reset delivery configured, reset tokens will be discarded")
	}

	b.built = true
	return engine, nil
}
