package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes passwords with bcrypt at a fixed cost.
type Bcrypt struct {
	cost  int
	dummy []byte
}

// NewBcrypt returns a bcrypt hasher. Cost must lie within
// [bcrypt.MinCost, bcrypt.MaxCost].
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("password bcrypt cost out of range")
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password"), cost)
	if err != nil {
		return nil, err
	}
	return &Bcrypt{cost: cost, dummy: dummy}, nil
}

// Hash returns a bcrypt digest of password. Passwords longer than 72 bytes
// are rejected by bcrypt itself.
func (b *Bcrypt) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. A malformed digest is
// checked against a dummy digest of the same cost before returning false.
func (b *Bcrypt) Verify(password string, digest string) bool {
	if _, err := bcrypt.Cost([]byte(digest)); err != nil {
		_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// NeedsUpgrade reports whether digest was produced with a lower cost, or by
// Argon2id.
func (b *Bcrypt) NeedsUpgrade(digest string) (bool, error) {
	if AlgorithmOf(digest) == AlgorithmArgon2id {
		return true, nil
	}
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false, err
	}
	return cost < b.cost, nil
}
