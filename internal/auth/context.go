package auth

import (
	"context"

	"github.com/portalo/portalo/internal/model"
)

type contextKey struct{}

// ContextWithAuth attaches the caller identity resolved from an API key.
func ContextWithAuth(ctx context.Context, ac *model.AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// AuthFromContext returns the caller identity, or nil on unauthenticated
// routes such as /public/track.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	ac, _ := ctx.Value(contextKey{}).(*model.AuthContext)
	return ac
}

// UserIDFromContext returns the owner whose pages the request may read, or
// "" when unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if ac := AuthFromContext(ctx); ac != nil {
		return ac.UserID
	}
	return ""
}
