package access

import (
	"context"
	"strings"
)

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal identifier
// to the context. An empty identifier leaves the context untouched.
func ContextWithPrincipal(ctx context.Context, principalID string) context.Context {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return ctx
	}
	return context.WithValue(ctx, principalContextKey{}, principalID)
}

// PrincipalFromContext extracts the principal identifier, if any.
// Anonymous requests simply have none.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(principalContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
