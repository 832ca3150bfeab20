// Package memstore is an in-memory [authcore.CredentialStore] for tests,
// local development and the demo server.
package memstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/google/uuid"
)

var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already taken")
)

// Store holds identities keyed by ID with case-insensitive username and
// email indexes. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*authcore.Identity
	byUsername map[string]string
	byEmail    map[string]string
	byReset    map[string]string
}

func New() *Store {
	return &Store{
		byID:       make(map[string]*authcore.Identity),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		byReset:    make(map[string]string),
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Add stores a copy of id. An empty ID is replaced by a random UUID. The
// stored ID is returned.
func (s *Store) Add(id authcore.Identity) (string, error) {
	if strings.TrimSpace(id.Username) == "" {
		return "", errors.New("username is required")
	}
	if id.ID == "" {
		id.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[normalize(id.Username)]; ok {
		return "", ErrDuplicateUsername
	}
	if id.Email != "" {
		if _, ok := s.byEmail[normalize(id.Email)]; ok {
			return "", ErrDuplicateEmail
		}
		s.byEmail[normalize(id.Email)] = id.ID
	}
	s.byUsername[normalize(id.Username)] = id.ID
	if id.ResetToken != "" {
		s.byReset[id.ResetToken] = id.ID
	}
	cp := id
	s.byID[id.ID] = &cp
	return id.ID, nil
}

// Get returns a copy of the identity with the given ID.
func (s *Store) Get(id string) (*authcore.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// SetActive flips the active flag of id.
func (s *Store) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	rec.Active = active
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) FindByUsername(_ context.Context, username string) (*authcore.Identity, error) {
	return s.lookup(s.byUsername, normalize(username)), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*authcore.Identity, error) {
	return s.lookup(s.byEmail, normalize(email)), nil
}

func (s *Store) FindByResetToken(_ context.Context, digest string) (*authcore.Identity, error) {
	if digest == "" {
		return nil, nil
	}
	return s.lookup(s.byReset, digest), nil
}

func (s *Store) lookup(index map[string]string, key string) *authcore.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := index[key]
	if !ok {
		return nil
	}
	cp := *s.byID[id]
	return &cp
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	rec.PasswordHash = hash
	return nil
}

// SetResetToken replaces any outstanding reset token of id.
func (s *Store) SetResetToken(_ context.Context, id, digest string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	if rec.ResetToken != "" {
		delete(s.byReset, rec.ResetToken)
	}
	rec.ResetToken = digest
	rec.ResetTokenExpiry = expiry
	s.byReset[digest] = id
	return nil
}

func (s *Store) ClearResetToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	if rec.ResetToken != "" {
		delete(s.byReset, rec.ResetToken)
	}
	rec.ResetToken = ""
	rec.ResetTokenExpiry = time.Time{}
	return nil
}

func (s *Store) ClaimResetToken(_ context.Context, id, digest string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return false, authcore.ErrUserNotFound
	}
	if digest == "" || rec.ResetToken != digest {
		return false, nil
	}
	delete(s.byReset, digest)
	rec.ResetToken = ""
	rec.ResetTokenExpiry = time.Time{}
	return true, nil
}

var _ authcore.CredentialStore = (*Store)(nil)
