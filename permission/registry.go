package permission

import (
	"errors"
	"sync"
)

// Registry maps permission names to bit positions within a [Mask].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[Permission]int
	bitToName map[int]Permission
	frozen    bool
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[Permission]int),
		bitToName: make(map[int]Permission),
	}
}

// Register assigns the next available bit to p and returns it. Must be
// called before [Registry.Freeze].
func (r *Registry) Register(p Permission) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if p == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if _, exists := r.nameToBit[p]; exists {
		return -1, errors.New("permission already registered")
	}

	next := len(r.nameToBit)
	if next >= 64 {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[p] = next
	r.bitToName[next] = p
	return next, nil
}

// Bit returns the bit index for p, or false if not registered.
func (r *Registry) Bit(p Permission) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[p]
	return bit, ok
}

// Name returns the permission for bit, or false if unassigned.
func (r *Registry) Name(bit int) (Permission, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.bitToName[bit]
	return p, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// Full returns the mask with every registered bit set.
func (r *Registry) Full() Mask {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var m Mask
	for bit := range r.bitToName {
		m.Set(bit)
	}
	return m
}
