package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShards = 64

type memoryShard struct {
	mu      sync.Mutex
	records map[string]*Record
}

// MemoryStore is a process-local [Store]. Records are sharded by session ID;
// the per-user index sits behind its own lock and is never held together
// with a shard lock.
type MemoryStore struct {
	shards [memoryShards]*memoryShard

	idxMu  sync.Mutex
	byUser map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{byUser: make(map[string]map[string]struct{})}
	for i := range s.shards {
		s.shards[i] = &memoryShard{records: make(map[string]*Record)}
	}
	return s
}

func (s *MemoryStore) shardFor(id string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%memoryShards]
}

// Save stores r. The ttl is ignored: expiry is decided by Touch.
func (s *MemoryStore) Save(_ context.Context, r *Record, _ time.Duration) error {
	sh := s.shardFor(r.SessionID)
	sh.mu.Lock()
	sh.records[r.SessionID] = r.clone()
	sh.mu.Unlock()

	s.idxMu.Lock()
	ids := s.byUser[r.UserID]
	if ids == nil {
		ids = make(map[string]struct{})
		s.byUser[r.UserID] = ids
	}
	ids[r.SessionID] = struct{}{}
	s.idxMu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Record, error) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	r, ok := sh.records[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.clone(), nil
}

func (s *MemoryStore) Touch(_ context.Context, sessionID string, now time.Time, policy Policy) (*Record, error) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	r, ok := sh.records[sessionID]
	if !ok {
		sh.mu.Unlock()
		return nil, ErrNotFound
	}
	if policy.expired(r, now) {
		delete(sh.records, sessionID)
		sh.mu.Unlock()
		s.unindex(r.UserID, sessionID)
		return nil, ErrExpired
	}
	r.LastActivity = now.UnixMilli()
	out := r.clone()
	sh.mu.Unlock()
	return out, nil
}

// Delete is idempotent.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	r, ok := sh.records[sessionID]
	delete(sh.records, sessionID)
	sh.mu.Unlock()
	if ok {
		s.unindex(r.UserID, sessionID)
	}
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID string) (int, error) {
	s.idxMu.Lock()
	ids := s.byUser[userID]
	delete(s.byUser, userID)
	s.idxMu.Unlock()

	n := 0
	for id := range ids {
		sh := s.shardFor(id)
		sh.mu.Lock()
		if _, ok := sh.records[id]; ok {
			delete(sh.records, id)
			n++
		}
		sh.mu.Unlock()
	}
	return n, nil
}

// Len returns the number of stored records, expired ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}

func (s *MemoryStore) unindex(userID, sessionID string) {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	ids := s.byUser[userID]
	delete(ids, sessionID)
	if len(ids) == 0 {
		delete(s.byUser, userID)
	}
}
