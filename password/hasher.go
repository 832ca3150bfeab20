package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm names accepted by [New].
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Hasher hashes and verifies passwords.
//
// Verify never reports an error: an unusable digest is simply a mismatch.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password string, digest string) bool
	NeedsUpgrade(digest string) (bool, error)
}

// Config selects and tunes a [Hasher].
type Config struct {
	Algorithm  string
	Argon2     Argon2Config
	BcryptCost int
}

// DefaultConfig returns Argon2id with 64 MiB memory, 3 passes and 2 lanes.
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmArgon2id,
		Argon2: Argon2Config{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		BcryptCost: 12,
	}
}

// New builds the hasher named by cfg.Algorithm. An empty name means Argon2id.
func New(cfg Config) (Hasher, error) {
	switch strings.ToLower(cfg.Algorithm) {
	case "", AlgorithmArgon2id:
		return NewArgon2(cfg.Argon2)
	case AlgorithmBcrypt:
		return NewBcrypt(cfg.BcryptCost)
	default:
		return nil, errors.New("password algorithm must be argon2id or bcrypt")
	}
}

// AlgorithmOf names the algorithm that produced digest, judging by its
// prefix, or returns "" when it is neither.
func AlgorithmOf(digest string) string {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return AlgorithmArgon2id
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return AlgorithmBcrypt
	}
	return ""
}

// Verify checks password against a digest produced by either algorithm,
// picking the verifier from the digest prefix.
func Verify(password, digest string) bool {
	if AlgorithmOf(digest) != AlgorithmArgon2id {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	}
	h, err := NewArgon2(DefaultConfig().Argon2)
	if err != nil {
		return false
	}
	return h.Verify(password, digest)
}
