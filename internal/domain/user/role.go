package user

import (
	"errors"
	"strings"
)

// Role is the caller role carried in access tokens.
type Role string

const (
	RoleRider      Role = "RIDER"
	RoleDispatcher Role = "DISPATCHER"
	RoleAdmin      Role = "ADMIN"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleRider, RoleDispatcher, RoleAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

// CanObserveOthers reports whether the role may act on or watch riders other than itself.
func (role Role) CanObserveOthers() bool {
	return role == RoleDispatcher || role == RoleAdmin
}

func (role Role) IsRider() bool { return role == RoleRider }
func (role Role) IsAdmin() bool { return role == RoleAdmin }
