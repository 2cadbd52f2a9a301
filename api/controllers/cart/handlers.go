package cart

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/authz"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CartFetch returns the caller's cart, creating it on first access.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		return svc.GetCart(r.Context(), userID)
	})
}

func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), userID, cartsvc.AddItemInput{
			LineRef:  toLineRef(payload.LineRequest),
			Quantity: payload.Quantity,
		})
	})
}

func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		var payload cartdto.UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdateItemQuantity(r.Context(), userID, cartsvc.UpdateItemInput{
			LineRef:  toLineRef(payload.LineRequest),
			Quantity: payload.Quantity,
		})
	})
}

// CartRemoveItem removes a line identified by its variant in the body.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		var payload cartdto.RemoveItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.RemoveItem(r.Context(), userID, toLineRef(payload.LineRequest))
	})
}

// CartRemoveItemByID removes a line by its id from the path.
func CartRemoveItemByID(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			return nil, err
		}
		return svc.RemoveItemByID(r.Context(), userID, itemID)
	})
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		return svc.ClearCart(r.Context(), userID)
	})
}

func CartApplyDiscount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		var payload cartdto.DiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.ApplyDiscount(r.Context(), userID, cartsvc.DiscountInput{
			Code:        strings.TrimSpace(payload.Code),
			AmountCents: payload.AmountCents,
			Percentage:  payload.Percentage,
		})
	})
}

func CartRemoveDiscount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		return svc.RemoveDiscount(r.Context(), userID)
	})
}

func CartUpdateShipping(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		var payload cartdto.ShippingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		method, err := enums.ParseShippingMethod(strings.TrimSpace(payload.Method))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method")
		}
		return svc.UpdateShippingMethod(r.Context(), userID, method)
	})
}

type cartAction func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error)

func cartHandler(svc cartsvc.Service, logg *logger.Logger, action cartAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := action(r, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	p, ok := authz.PrincipalFrom(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return p.UserID, nil
}

func toLineRef(line cartdto.LineRequest) cartsvc.LineRef {
	return cartsvc.LineRef{
		ProductID: line.ProductID,
		Size:      line.Size,
		Color:     line.Color,
	}
}
