package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/pkg/authz"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func principalFrom(r *http.Request) (authz.Principal, error) {
	p, ok := authz.PrincipalFrom(r.Context())
	if !ok {
		return authz.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return p, nil
}
