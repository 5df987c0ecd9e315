package auth

import (
	"log/slog"
	"net/http"

	"github.com/alsubhan/versal/internal/platform/httpx"
	"github.com/alsubhan/versal/internal/shared"
)

// Middleware wires permission checks for HTTP handlers.
type Middleware struct {
	Cache  *PermissionCache
	Logger *slog.Logger
}

// Require ensures the current principal's role holds the permission.
func (m Middleware) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			granted, err := m.Cache.Has(r.Context(), principal.Role, permission)
			if err != nil {
				m.Logger.Error("permission check failed", "role", principal.Role, "permission", permission, "error", err)
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "internal server error")
				return
			}
			if !granted {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the role holds at least one of the permissions.
func (m Middleware) RequireAny(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(permissions) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			for _, permission := range permissions {
				granted, err := m.Cache.Has(r.Context(), principal.Role, permission)
				if err != nil {
					m.Logger.Error("permission check failed", "role", principal.Role, "permission", permission, "error", err)
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "internal server error")
					return
				}
				if granted {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "permission denied")
		})
	}
}
