package authz

import (
	"log/slog"
	"net/http"

	"github.com/campassistant/campassistant/internal/platform/httpx"
	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
)

// Middleware wires coarse role guards for HTTP handlers. Fine-grained
// per-target decisions go through the Gate inside the handlers instead.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAuthenticated rejects requests without a resolved principal.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shared.PrincipalFromContext(r.Context()) == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole ensures the principal holds at least one of the given roles.
// The denial body never states which role was missing.
func (m Middleware) RequireRole(names ...roles.Name) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			for _, name := range names {
				if principal.HasRole(string(name)) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if m.Logger != nil {
				m.Logger.Warn("role guard denied request",
					slog.String("path", r.URL.Path),
					slog.Int64("principal", principal.ID))
			}
			httpx.Forbidden(w)
		})
	}
}
