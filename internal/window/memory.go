package window

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

type shard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// MemoryStore keeps windows in process memory behind a striped mutex.
//
// Keys are hashed onto a fixed set of shards; each shard lock covers only the
// prune/append of keys that land on it, so unrelated identities rarely contend.
type MemoryStore struct {
	shards [shardCount]shard
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{}
	for i := range m.shards {
		m.shards[i].windows = make(map[string][]time.Time)
	}
	return m
}

func (m *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%shardCount]
}

// Add implements [Store].
func (m *MemoryStore) Add(_ context.Context, key string, now time.Time, span time.Duration) (int, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(prune(s.windows[key], now, span), now)
	s.windows[key] = entries
	return len(entries), nil
}

// AddBelow implements [Store].
func (m *MemoryStore) AddBelow(_ context.Context, key string, now time.Time, span time.Duration, limit int) (bool, int, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := prune(s.windows[key], now, span)
	if len(entries) >= limit {
		s.store(key, entries)
		return false, len(entries), nil
	}

	entries = append(entries, now)
	s.windows[key] = entries
	return true, len(entries), nil
}

// Count implements [Store].
func (m *MemoryStore) Count(_ context.Context, key string, now time.Time, span time.Duration) (int, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.windows[key]
	if !ok {
		return 0, nil
	}
	entries = prune(entries, now, span)
	s.store(key, entries)
	return len(entries), nil
}

// Clear implements [Store].
func (m *MemoryStore) Clear(_ context.Context, key string) error {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.windows, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live keys across all shards.
func (m *MemoryStore) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}

func (s *shard) store(key string, entries []time.Time) {
	if len(entries) == 0 {
		delete(s.windows, key)
		return
	}
	s.windows[key] = entries
}

// prune drops entries for which now-t >= span, filtering in place. Entries may
// be out of order since now is captured before the shard lock is taken.
func prune(entries []time.Time, now time.Time, span time.Duration) []time.Time {
	kept := entries[:0]
	for _, t := range entries {
		if now.Sub(t) < span {
			kept = append(kept, t)
		}
	}
	return kept
}
