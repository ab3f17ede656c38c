// Package rbac wires role-based authorization helpers for HTTP handlers.
// Route groups declare which application roles may reach a handler, while
// per-entity transition checks live in the workflow table.
package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/procureflow/procureflow/internal/platform/httpx"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

// Middleware gates routes by application role.
type Middleware struct {
	Logger *slog.Logger
}

// RequireRole ensures the current principal holds one of the given roles.
// Admin passes every gate: the admin surface manages users across roles.
func (m Middleware) RequireRole(roles ...workflow.Role) func(http.Handler) http.Handler {
	allowed := make(map[workflow.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[workflow.Role(strings.ToLower(string(r)))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := shared.PrincipalFromContext(r.Context())
			if p == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(shared.ErrTokenExpired))
				return
			}
			if len(allowed) == 0 || p.Role == workflow.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[p.Role]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("role denied", slog.String("role", string(p.Role)), slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "Your role does not permit this action.")
		})
	}
}

// RequireAuthenticated only checks that a principal is present.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.RequireRole()
}
