// Package wishlist keeps the products a shopper saved for later.
package wishlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes business rules for wishlist management.
type Service interface {
	GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[WishlistItemDTO], error)
	AddItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
}

type wishlistStore interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	ListItems(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.WishlistItem], error)
}

type productStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type service struct {
	wishlist wishlistStore
	products productStore
}

// NewService builds a wishlist service with the required dependencies.
func NewService(wishlist wishlistStore, products productStore) (Service, error) {
	if wishlist == nil {
		return nil, fmt.Errorf("wishlist repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{wishlist: wishlist, products: products}, nil
}

// GetWishlist returns the user's saved products, newest first.
func (s *service) GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[WishlistItemDTO], error) {
	if userID == uuid.Nil {
		return pagination.Page[WishlistItemDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	page, err := s.wishlist.ListItems(ctx, userID, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return pagination.Page[WishlistItemDTO]{}, err
		}
		return pagination.Page[WishlistItemDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}

	ids := make([]uuid.UUID, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.ProductID)
	}
	rows, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return pagination.Page[WishlistItemDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist products")
	}
	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	return pagination.Map(page, func(item models.WishlistItem) WishlistItemDTO {
		dto := WishlistItemDTO{ProductID: item.ProductID, CreatedAt: item.CreatedAt}
		if p, ok := byID[item.ProductID]; ok && p.IsActive {
			view := product.NewProductDTO(p)
			dto.Product = &view
			dto.Available = view.AvailableStock > 0
		}
		return dto
	}), nil
}

// AddItem ensures the product exists and is active, then saves it. Saving twice is a no-op.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !p.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := s.wishlist.AddItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wishlist item")
	}
	return nil
}

// RemoveItem drops the entry regardless of prior state.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil || productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and product id are required")
	}
	if err := s.wishlist.RemoveItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
	}
	return nil
}
