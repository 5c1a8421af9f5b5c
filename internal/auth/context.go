package auth

import "context"

// Identity is the authenticated caller attached to a request context after
// the middleware has validated the bearer token.
type Identity struct {
	TenantID string
	Role     Role
	Subject  string
}

type contextKey struct{}

var identityKey contextKey

// WithIdentity attaches an identity to the context.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFromContext returns the caller identity, if any. Handlers behind
// the middleware always find one; exempt paths and direct test invocations
// do not.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok
}

// TenantIDFromContext returns the caller's tenant, or "" when unauthenticated.
func TenantIDFromContext(ctx context.Context) string {
	ident, _ := IdentityFromContext(ctx)
	return ident.TenantID
}

// RoleFromContext returns the caller's role, or "" when unauthenticated.
func RoleFromContext(ctx context.Context) Role {
	ident, _ := IdentityFromContext(ctx)
	return ident.Role
}

// SubjectFromContext returns the caller's subject, or "" when unauthenticated.
func SubjectFromContext(ctx context.Context) string {
	ident, _ := IdentityFromContext(ctx)
	return ident.Subject
}
