package permission

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPermissionDenied is returned by [Model.Require] when the role lacks the
// permission.
var ErrPermissionDenied = errors.New("permission denied")

// Model is an immutable role to permission map.
type Model struct {
	registry *Registry
	roles    map[Role]Mask
}

// DefaultGrants is the built-in role to permission map.
func DefaultGrants() map[Role][]Permission {
	return map[Role][]Permission{
		RoleAdmin:   All(),
		RoleManager: {CreateProduct, EditProduct, ViewOrders, ManageOrders},
		RoleUser:    {ViewOrders},
	}
}

// NewModel builds a Model from grants. Every role must be known, every
// permission registered, and admin must hold the full set.
func NewModel(grants map[Role][]Permission) (*Model, error) {
	registry := NewRegistry()
	for _, p := range All() {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	m := &Model{registry: registry, roles: make(map[Role]Mask, len(grants))}
	for role, perms := range grants {
		if _, err := ParseRole(string(role)); err != nil {
			return nil, fmt.Errorf("%w: %q", err, role)
		}
		var mask Mask
		for _, p := range perms {
			bit, ok := registry.Bit(p)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownPermission, p)
			}
			mask.Set(bit)
		}
		m.roles[role] = mask
	}

	if !m.roles[RoleAdmin].Contains(registry.Full()) {
		return nil, errors.New("admin role must hold every permission")
	}
	return m, nil
}

var defaultModel = sync.OnceValue(func() *Model {
	m, err := NewModel(DefaultGrants())
	if err != nil {
		panic(err)
	}
	return m
})

// Default returns the process-wide model built from [DefaultGrants].
func Default() *Model {
	return defaultModel()
}

// HasPermission reports whether role holds p in the default model.
func HasPermission(role Role, p Permission) bool {
	return Default().HasPermission(role, p)
}

// HasPermission reports whether role holds p. Unknown roles and permissions
// hold nothing.
func (m *Model) HasPermission(role Role, p Permission) bool {
	if m == nil {
		return false
	}
	bit, ok := m.registry.Bit(p)
	if !ok {
		return false
	}
	return m.roles[role].Has(bit)
}

// Require runs action only when role holds p, and returns ErrPermissionDenied
// otherwise.
func (m *Model) Require(role Role, p Permission, action func() error) error {
	if !m.HasPermission(role, p) {
		return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, role, p)
	}
	if action == nil {
		return nil
	}
	return action()
}

// Permissions lists the permissions role holds, in registration order.
func (m *Model) Permissions(role Role) []Permission {
	if m == nil {
		return nil
	}
	mask := m.roles[role]
	var out []Permission
	for bit := 0; bit < m.registry.Count(); bit++ {
		if mask.Has(bit) {
			p, _ := m.registry.Name(bit)
			out = append(out, p)
		}
	}
	return out
}

// Mask returns the raw permission mask of role.
func (m *Model) Mask(role Role) Mask {
	if m == nil {
		return 0
	}
	return m.roles[role]
}
