package permission

import (
	"errors"
	"strings"
)

// Role is a closed set of account roles.
type Role string

// Permission is a closed set of fine-grained capabilities.
type Permission string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

const (
	CreateProduct Permission = "create_product"
	EditProduct   Permission = "edit_product"
	DeleteProduct Permission = "delete_product"
	ViewOrders    Permission = "view_orders"
	ManageOrders  Permission = "manage_orders"
	ManageUsers   Permission = "manage_users"
)

var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrUnknownPermission = errors.New("unknown permission")
)

// Roles returns every defined role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleUser}
}

// All returns every defined permission in registration order.
func All() []Permission {
	return []Permission{CreateProduct, EditProduct, DeleteProduct, ViewOrders, ManageOrders, ManageUsers}
}

// ParseRole accepts a role name in any letter case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles() {
		if r == known {
			return r, nil
		}
	}
	return "", ErrUnknownRole
}

// ParsePermission accepts a permission name in any letter case.
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All() {
		if p == known {
			return p, nil
		}
	}
	return "", ErrUnknownPermission
}
