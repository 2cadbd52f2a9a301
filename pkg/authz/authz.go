// Package authz holds the authenticated principal and the predicates routes
// use to gate access.
package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Principal is the caller resolved from a verified access token.
type Principal struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	AccessID string
}

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}

// Predicate decides whether the caller on ctx may proceed.
type Predicate func(ctx context.Context) bool

// Authenticated admits any caller with a principal.
func Authenticated(ctx context.Context) bool {
	_, ok := PrincipalFrom(ctx)
	return ok
}

// RoleIn admits callers holding one of roles.
func RoleIn(roles ...enums.UserRole) Predicate {
	allowed := make(map[enums.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(ctx context.Context) bool {
		p, ok := PrincipalFrom(ctx)
		if !ok {
			return false
		}
		_, ok = allowed[p.Role]
		return ok
	}
}

// IsAdmin admits administrators only.
var IsAdmin = RoleIn(enums.UserRoleAdmin)

// All admits the caller only when every predicate does.
func All(preds ...Predicate) Predicate {
	return func(ctx context.Context) bool {
		for _, pred := range preds {
			if pred == nil || !pred(ctx) {
				return false
			}
		}
		return true
	}
}
