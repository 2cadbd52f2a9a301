package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ListProducts returns active products, optionally filtered by category.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListProducts(r.Context(), productsvc.ListProductsInput{
			Category:   validators.SanitizeString(r.URL.Query().Get("category"), 64),
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

type variantRequest struct {
	Size     string `json:"size" validate:"required,max=32"`
	Color    string `json:"color" validate:"required,max=32"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

type createProductRequest struct {
	SKU                 string           `json:"sku" validate:"required,max=64,sku"`
	Title               string           `json:"title" validate:"required,max=200"`
	Description         *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category            string           `json:"category" validate:"required,max=64"`
	Tags                []string         `json:"tags,omitempty" validate:"omitempty,dive,required,max=40"`
	PriceCents          int64            `json:"price_cents" validate:"gte=0"`
	CompareAtPriceCents *int64           `json:"compare_at_price_cents,omitempty" validate:"omitempty,gte=0"`
	IsActive            *bool            `json:"is_active,omitempty"`
	Variants            []variantRequest `json:"variants" validate:"required,min=1,dive"`
}

func (r createProductRequest) toInput() productsvc.CreateProductInput {
	variants := make([]productsvc.VariantInput, 0, len(r.Variants))
	for _, v := range r.Variants {
		variants = append(variants, productsvc.VariantInput{
			Size:     strings.TrimSpace(v.Size),
			Color:    strings.TrimSpace(v.Color),
			Quantity: v.Quantity,
		})
	}
	return productsvc.CreateProductInput{
		SKU:                 strings.TrimSpace(r.SKU),
		Title:               strings.TrimSpace(r.Title),
		Description:         r.Description,
		Category:            strings.TrimSpace(r.Category),
		Tags:                r.Tags,
		PriceCents:          r.PriceCents,
		CompareAtPriceCents: r.CompareAtPriceCents,
		IsActive:            r.IsActive,
		Variants:            variants,
	}
}

type updateProductRequest struct {
	SKU                 *string   `json:"sku,omitempty" validate:"omitempty,max=64,sku"`
	Title               *string   `json:"title,omitempty" validate:"omitempty,max=200"`
	Description         *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category            *string   `json:"category,omitempty" validate:"omitempty,max=64"`
	Tags                *[]string `json:"tags,omitempty"`
	PriceCents          *int64    `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	CompareAtPriceCents *int64    `json:"compare_at_price_cents,omitempty" validate:"omitempty,gte=0"`
	IsActive            *bool     `json:"is_active,omitempty"`
}

type stockRequest struct {
	Size     string `json:"size" validate:"required,max=32"`
	Color    string `json:"color" validate:"required,max=32"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// AdminCreateProduct authors a product with its size/color matrix.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, productsvc.UpdateProductInput{
			SKU:                 payload.SKU,
			Title:               payload.Title,
			Description:         payload.Description,
			Category:            payload.Category,
			Tags:                payload.Tags,
			PriceCents:          payload.PriceCents,
			CompareAtPriceCents: payload.CompareAtPriceCents,
			IsActive:            payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminSetProductStock sets the on-hand quantity of one variant.
func AdminSetProductStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.SetStock(r.Context(), productID, productsvc.StockInput{
			Size:     strings.TrimSpace(payload.Size),
			Color:    strings.TrimSpace(payload.Color),
			Quantity: payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}
