package shared

import (
	"context"

	"github.com/procureflow/procureflow/internal/workflow"
)

// Principal describes the authenticated actor attached to a request.
type Principal struct {
	UserID int64         `json:"user_id"`
	Name   string        `json:"name"`
	Email  string        `json:"email"`
	Role   workflow.Role `json:"role"`
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when absent.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
