// ABOUTME: Principal type and context helpers for tracking identity through request handlers
// ABOUTME: Provides WithPrincipal/FromContext for propagating the decoded session via context

package auth

import (
	"context"

	"github.com/2389/shelf-gateway/internal/store"
)

// Principal is the identity decoded from a session token. It lives for one
// request (or one live-update connection) and is never persisted.
type Principal struct {
	ID          string     `json:"id"`
	Role        store.Role `json:"role"`
	DisplayName string     `json:"displayName"`
}

// IsAdmin returns true if the principal has the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == store.RoleAdmin
}

// principalKey is the key type for storing a Principal in context.Context.
type principalKey struct{}

// WithPrincipal returns a new context with the principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the Principal from the context, returning nil if not present.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
