package jwt

import (
	"encoding/json"
	"errors"
	"net/http"

	"rider-tracking/internal/domain/user"
)

// AuthMiddlewareFunc admits requests carrying a valid bearer token for one of allowedRoles.
// Failures answer 401, or 403 for a valid token with the wrong role, as {"error": "..."}.
func AuthMiddlewareFunc(mgr *Manager, allowedRoles ...user.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, err := mgr.VerifyBearer(r.Header.Get("Authorization"), allowedRoles...)
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, ErrRoleForbidden) {
					status = http.StatusForbidden
				}
				deny(w, status, err)
				return
			}
			next(w, r.WithContext(InjectClaims(r.Context(), claims)))
		}
	}
}

func deny(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="rider-tracking"`)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
