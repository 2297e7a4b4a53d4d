package cli

import (
	"fmt"
	"time"

	"rider-tracking/internal/domain/user"
	"rider-tracking/internal/general/jwt"
)

// GenerateUserToken mints a JWT for a rider, dispatcher or admin.
//
// Typical use (dev-only):
//
//	token, _, err := cli.GenerateUserToken(secret, "E1", "RIDER", 2*time.Hour)
//
// Keep this package dev/internal only. Do not call it from production code paths.
func GenerateUserToken(secret, subject, roleStr string, ttl time.Duration) (string, jwt.Claims, error) {
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	mgr := jwt.NewManager(secret, ttl)
	token, claims, err := mgr.IssueUserToken(subject, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
