package authcore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrTornister/Work-Flow-app/password"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override fields; [Config.Validate] runs again in [Builder.Build].
type Config struct {
	JWT            JWTConfig
	Password       PasswordConfig
	PasswordPolicy password.Policy
	Lockout        LockoutConfig
	RateLimit      RateLimitConfig
	Session        SessionConfig
	PasswordReset  PasswordResetConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	// RedisPrefix namespaces the sliding-window keys when a Redis client is
	// configured.
	RedisPrefix string
}

// JWTConfig configures bearer tokens. An empty Secret makes the engine
// generate a random key at Build, so tokens do not survive a restart.
type JWTConfig struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

type PasswordConfig struct {
	Hasher password.Config
	// UpgradeOnLogin rehashes a password with the current parameters after
	// a successful login when the stored digest is weaker.
	UpgradeOnLogin bool
}

// LockoutConfig drives the per-identity attempt tracker.
type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// RateLimitConfig drives the per-client admission gate.
type RateLimitConfig struct {
	RequestsPerMinute int
	Window            time.Duration
	// LoginRequestsPerMinute is a tighter per-client budget for Login only.
	// Zero disables it.
	LoginRequestsPerMinute int
	// GlobalRPS caps the whole process ahead of the per-client windows.
	// Zero disables it.
	GlobalRPS   float64
	GlobalBurst int
}

type SessionConfig struct {
	IdleTimeout time.Duration
	// MaxLifetime bounds a session regardless of activity. Zero means no bound.
	MaxLifetime time.Duration
	RedisPrefix string
}

type PasswordResetConfig struct {
	TokenTTL time.Duration
	// ReturnToken makes RequestPasswordReset hand the token back to the
	// caller. Development only.
	ReturnToken bool
	Deliver     ResetDelivery
	MaxRequests int
	MaxConfirms int
	Window      time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults: 30 minute tokens, 5 failures
// per 15 minutes, 60 requests per minute per client and a 30 minute idle
// timeout.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 30 * time.Minute,
			Issuer:    "work-flow",
		},
		Password: PasswordConfig{
			Hasher:         password.DefaultConfig(),
			UpgradeOnLogin: true,
		},
		PasswordPolicy: password.DefaultPolicy(),
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:      60,
			Window:                 time.Minute,
			LoginRequestsPerMinute: 4,
		},
		Session: SessionConfig{
			IdleTimeout: 30 * time.Minute,
			RedisPrefix: "as",
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:    24 * time.Hour,
			MaxRequests: 5,
			MaxConfirms: 10,
			Window:      time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		RedisPrefix: "authcore:",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if len(c.JWT.Secret) > 0 && len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	switch strings.ToLower(c.Password.Hasher.Algorithm) {
	case "", password.AlgorithmArgon2id, password.AlgorithmBcrypt:
	default:
		return errors.New("Password Hasher.Algorithm must be argon2id or bcrypt")
	}
	if c.PasswordPolicy.MinLength < 1 {
		return errors.New("PasswordPolicy MinLength must be >= 1")
	}

	// Lockout
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("Lockout MaxAttempts must be >= 1")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}

	// Rate limit
	if c.RateLimit.RequestsPerMinute < 1 {
		return errors.New("RateLimit RequestsPerMinute must be >= 1")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}
	if c.RateLimit.LoginRequestsPerMinute < 0 {
		return errors.New("RateLimit LoginRequestsPerMinute must be >= 0")
	}
	if c.RateLimit.GlobalRPS < 0 || c.RateLimit.GlobalBurst < 0 {
		return errors.New("RateLimit GlobalRPS and GlobalBurst must be >= 0")
	}

	// Session
	if c.Session.IdleTimeout <= 0 {
		return errors.New("Session IdleTimeout must be > 0")
	}
	if c.Session.MaxLifetime < 0 {
		return errors.New("Session MaxLifetime must be >= 0")
	}
	if c.Session.MaxLifetime > 0 && c.Session.MaxLifetime < c.Session.IdleTimeout {
		return errors.New("Session MaxLifetime must be >= IdleTimeout when set")
	}

	// Password reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if c.PasswordReset.MaxRequests < 0 || c.PasswordReset.MaxConfirms < 0 {
		return errors.New("PasswordReset MaxRequests and MaxConfirms must be >= 0")
	}
	if (c.PasswordReset.MaxRequests > 0 || c.PasswordReset.MaxConfirms > 0) && c.PasswordReset.Window <= 0 {
		return errors.New("PasswordReset Window must be > 0 when throttling is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

// ConfigFromEnv overlays environment variables on [DefaultConfig]. Unset
// variables keep their defaults; malformed ones are an error.
//
//	JWT_SECRET, ACCESS_TOKEN_TTL, LOCKOUT_MAX_ATTEMPTS, LOCKOUT_WINDOW,
//	RATE_LIMIT_RPM, LOGIN_RATE_LIMIT_RPM, SESSION_IDLE_TIMEOUT,
//	PASSWORD_HASHER, RESET_TOKEN_TTL, RESET_RETURN_TOKEN
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = []byte(v)
	}
	if v := os.Getenv("PASSWORD_HASHER"); v != "" {
		cfg.Password.Hasher.Algorithm = v
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", &cfg.JWT.AccessTTL},
		{"LOCKOUT_WINDOW", &cfg.Lockout.Window},
		{"SESSION_IDLE_TIMEOUT", &cfg.Session.IdleTimeout},
		{"RESET_TOKEN_TTL", &cfg.PasswordReset.TokenTTL},
	}
	for _, d := range durations {
		v := os.Getenv(d.name)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"LOCKOUT_MAX_ATTEMPTS", &cfg.Lockout.MaxAttempts},
		{"RATE_LIMIT_RPM", &cfg.RateLimit.RequestsPerMinute},
		{"LOGIN_RATE_LIMIT_RPM", &cfg.RateLimit.LoginRequestsPerMinute},
	}
	for _, n := range ints {
		v := os.Getenv(n.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", n.name, err)
		}
		*n.dst = parsed
	}

	if v := os.Getenv("RESET_RETURN_TOKEN"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("RESET_RETURN_TOKEN: %w", err)
		}
		cfg.PasswordReset.ReturnToken = parsed
	}

	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
