package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/authz"
)

// UserIDFromContext returns the authenticated user id, or "" for anonymous
// requests.
func UserIDFromContext(ctx context.Context) string {
	if p, ok := authz.PrincipalFrom(ctx); ok {
		return p.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if p, ok := authz.PrincipalFrom(ctx); ok {
		return string(p.Role)
	}
	return ""
}

// AccessIDFromContext returns the session id (jti) of the current token.
func AccessIDFromContext(ctx context.Context) string {
	if p, ok := authz.PrincipalFrom(ctx); ok {
		return p.AccessID
	}
	return ""
}
