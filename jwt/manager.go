package jwt

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 32

var (
	// ErrInvalidSignature is returned for tokens not signed by the current key,
	// including tokens using any algorithm other than HS256.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned once the current time reaches the exp claim.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for undecodable tokens and tokens missing sub or exp.
	ErrMalformed = errors.New("token malformed")
)

// Config holds token signing and validation settings.
type Config struct {
	// Secret is the HS256 key. When empty a random key is generated once per
	// Manager, so tokens do not survive a process restart.
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
	Now       func() time.Time
}

// Manager issues and verifies HS256 bearer tokens.
type Manager struct {
	config Config
	key    atomic.Pointer[[]byte]
}

// Claims is the token payload. Subject carries the username.
type Claims struct {
	UID  string `json:"uid,omitempty"`
	Role string `json:"role"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager holding its signing key.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.Secret) > 0 && len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{config: cfg}
	key := append([]byte(nil), cfg.Secret...)
	if len(key) == 0 {
		var err error
		if key, err = randomKey(); err != nil {
			return nil, err
		}
	}
	m.key.Store(&key)
	return m, nil
}

// Rotate replaces the signing key with a fresh random one. Every token
// issued before the call stops verifying.
func (m *Manager) Rotate() error {
	key, err := randomKey()
	if err != nil {
		return err
	}
	m.key.Store(&key)
	return nil
}

// Issue signs a token for subject and role valid for ttl. A non-positive ttl
// uses the configured AccessTTL.
func (m *Manager) Issue(subject, role string, ttl time.Duration) (string, time.Time, error) {
	return m.IssueWith(Claims{Role: role, RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}, ttl)
}

// IssueWith signs claims, overwriting iat, exp, iss and aud.
func (m *Manager) IssueWith(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(claims.Subject) == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	if ttl <= 0 {
		ttl = m.config.AccessTTL
	}

	now := m.config.Now()
	expiresAt := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	claims.Issuer = m.config.Issuer
	claims.Audience = nil
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(*m.key.Load())
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// Verify checks the signature and expiry of tokenStr and returns its claims.
// The error is always one of ErrInvalidSignature, ErrExpired or ErrMalformed.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	key := *m.key.Load()
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrMalformed)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}

func randomKey() ([]byte, error) {
	key := make([]byte, minSecretBytes)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
