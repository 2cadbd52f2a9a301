package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// tokenHeader mirrors the access token from the body for clients that only
// read headers.
const tokenHeader = "X-Storefront-Token"

var errAuthUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")

// issueToken decodes Req, runs call and writes the token pair with status.
func issueToken[Req any](logg *logger.Logger, status int, call func(context.Context, Req) (*auth.TokenResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := call(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.Header().Set(tokenHeader, result.AccessToken)
		responses.WriteSuccessStatus(w, status, result)
	}
}

func unavailable(logg *logger.Logger, err error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, err)
	}
}

// AuthRegister opens a customer account and signs it in.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return issueToken(logg, http.StatusCreated, svc.Register)
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return issueToken(logg, http.StatusOK, svc.Login)
}

// AuthRefresh rotates the refresh token; the presented one stops working.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return issueToken(logg, http.StatusOK, svc.Refresh)
}

// AuthLogout revokes the session behind the presented access token.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		principal, err := principalFrom(r)
		if err == nil {
			err = svc.Logout(ctx, principal.AccessID)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
