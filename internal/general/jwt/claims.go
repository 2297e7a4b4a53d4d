package jwt

import (
	"time"

	"rider-tracking/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims defines our canonical JWT claims payload.
type Claims struct {
	Role user.Role `json:"role"` // caller role for RBAC (RIDER/DISPATCHER/ADMIN)
	jwtlib.RegisteredClaims
}

// ensure Claims implements jwtlib.Claims interface
var _ jwtlib.Claims = (*Claims)(nil)

// NewUserClaims constructs caller claims. For riders the subject is their employee id.
func NewUserClaims(userID string, role user.Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}

// ActorEmployeeID returns the employee id a caller is restricted to, or "" when the role may act
// on any rider.
func (c *Claims) ActorEmployeeID() string {
	if c == nil || c.Role.CanObserveOthers() {
		return ""
	}
	return c.Subject
}
