// Package pgstore is a PostgreSQL [authcore.CredentialStore] over the
// application's users table.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/MrTornister/Work-Flow-app/permission"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Driver names accepted by [Open].
const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

type Config struct {
	Driver   string
	DSN      string
	MaxConns int
	Timeout  time.Duration
}

// ConfigFromEnv reads DATABASE_URL and DATABASE_DRIVER.
func ConfigFromEnv() Config {
	cfg := Config{
		Driver:   os.Getenv("DATABASE_DRIVER"),
		DSN:      os.Getenv("DATABASE_URL"),
		MaxConns: 10,
		Timeout:  5 * time.Second,
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverPQ
	}
	return cfg
}

// Store reads and updates identities in the users table.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store { return &Store{db: db} }

// Open connects with cfg and verifies the connection with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case "":
		cfg.Driver = DriverPQ
	case DriverPQ, DriverPGX:
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return New(db), nil
}

func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the users table when it does not exist. Prefer
// migrations in production.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  hashed_password TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  is_active BOOLEAN NOT NULL DEFAULT true,
  reset_token TEXT,
  reset_token_expiry TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email));
CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users (reset_token);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

type userRow struct {
	ID               string         `db:"id"`
	Username         string         `db:"username"`
	Email            string         `db:"email"`
	HashedPassword   string         `db:"hashed_password"`
	Role             string         `db:"role"`
	IsActive         bool           `db:"is_active"`
	ResetToken       sql.NullString `db:"reset_token"`
	ResetTokenExpiry sql.NullTime   `db:"reset_token_expiry"`
}

func (r *userRow) identity() *authcore.Identity {
	id := &authcore.Identity{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.HashedPassword,
		Role:         permission.Role(r.Role),
		Active:       r.IsActive,
		ResetToken:   r.ResetToken.String,
	}
	if r.ResetTokenExpiry.Valid {
		id.ResetTokenExpiry = r.ResetTokenExpiry.Time
	}
	return id
}

const selectUser = `SELECT id, username, email, hashed_password, role, is_active, reset_token, reset_token_expiry FROM users`

func (s *Store) FindByUsername(ctx context.Context, username string) (*authcore.Identity, error) {
	return s.findOne(ctx, selectUser+` WHERE username = $1`, username)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Identity, error) {
	return s.findOne(ctx, selectUser+` WHERE lower(email) = lower($1)`, email)
}

func (s *Store) FindByResetToken(ctx context.Context, digest string) (*authcore.Identity, error) {
	if digest == "" {
		return nil, nil
	}
	return s.findOne(ctx, selectUser+` WHERE reset_token = $1`, digest)
}

func (s *Store) findOne(ctx context.Context, q string, arg string) (*authcore.Identity, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return row.identity(), nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.execOne(ctx, `UPDATE users SET hashed_password = $1 WHERE id = $2`, hash, id)
}

func (s *Store) SetResetToken(ctx context.Context, id, digest string, expiry time.Time) error {
	return s.execOne(ctx, `UPDATE users SET reset_token = $1, reset_token_expiry = $2 WHERE id = $3`, digest, expiry.UTC(), id)
}

func (s *Store) ClearResetToken(ctx context.Context, id string) error {
	return s.execOne(ctx, `UPDATE users SET reset_token = NULL, reset_token_expiry = NULL WHERE id = $1`, id)
}

// ClaimResetToken clears the token in a single conditional UPDATE, so the
// row lock decides between concurrent claims.
func (s *Store) ClaimResetToken(ctx context.Context, id, digest string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET reset_token = NULL, reset_token_expiry = NULL WHERE id = $1 AND reset_token = $2`,
		id, digest)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// execOne runs an update that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

var _ authcore.CredentialStore = (*Store)(nil)
