package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"rider-tracking/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken   = errors.New("bearer token missing")
	ErrBadTokenWrap   = errors.New("token must be 'Bearer <token>'")
	ErrRoleForbidden  = errors.New("role not allowed")
	errSigningMethod  = errors.New("unexpected signing method")
	errTokenNotActive = errors.New("token is not valid")
)

// Manager signs and verifies HS256 access tokens for riders, dispatchers and admins.
type Manager struct {
	secret []byte
	ttl    time.Duration
	parser *jwtlib.Parser
}

// NewManager panics on an empty secret; config always supplies one.
func NewManager(secret string, ttl time.Duration) *Manager {
	s := strings.TrimSpace(secret)
	if s == "" {
		panic("jwt: empty secret key")
	}
	return &Manager{
		secret: []byte(s),
		ttl:    ttl,
		parser: jwtlib.NewParser(jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()})),
	}
}

// IssueUserToken signs a token whose subject is userID. For riders that is the employee id.
func (m *Manager) IssueUserToken(userID string, role user.Role) (string, *Claims, error) {
	if !role.Valid() {
		return "", nil, fmt.Errorf("invalid role: %s", role)
	}
	claims := NewUserClaims(userID, role, m.ttl)
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	return signed, claims, err
}

// Verify checks the signature and expiry of a bare token and returns its claims.
func (m *Manager) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		if t.Method != jwtlib.SigningMethodHS256 {
			return nil, errSigningMethod
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errTokenNotActive
	}
	return claims, nil
}

// VerifyBearer unwraps "Bearer <jwt>", verifies it and enforces the allowed roles.
func (m *Manager) VerifyBearer(value string, allowed ...user.Role) (*Claims, error) {
	raw, err := unwrapBearer(value)
	if err != nil {
		return nil, err
	}
	claims, err := m.Verify(raw)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, claims.Role) {
		return nil, ErrRoleForbidden
	}
	return claims, nil
}

func unwrapBearer(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "Bearer") {
		return "", ErrMissingToken
	}
	scheme, raw, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrBadTokenWrap
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingToken
	}
	return raw, nil
}

type ctxKey struct{}

// InjectClaims stores the caller's claims on ctx.
func InjectClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the caller's claims stored by the middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// RequireClaims is FromContext for handlers mounted behind AuthMiddlewareFunc.
func RequireClaims(r *http.Request) *Claims {
	c, _ := FromContext(r.Context())
	return c
}
