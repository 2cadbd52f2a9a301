// Package product manages the catalog and each product's size/color stock matrix.
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/cache"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const defaultCacheTTL = 5 * time.Minute

// Service exposes catalog reads and admin product management.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (pagination.Page[ProductDTO], error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	SetStock(ctx context.Context, id uuid.UUID, input StockInput) (*ProductDTO, error)
}

// ListProductsInput captures the public browse filters.
type ListProductsInput struct {
	Category   string
	Pagination pagination.Params
}

// VariantInput is one cell of the size/color matrix.
type VariantInput struct {
	Size     string
	Color    string
	Quantity int
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU                 string
	Title               string
	Description         *string
	Category            string
	Tags                []string
	PriceCents          int64
	CompareAtPriceCents *int64
	IsActive            *bool
	Variants            []VariantInput
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	SKU                 *string
	Title               *string
	Description         *string
	Category            *string
	Tags                *[]string
	PriceCents          *int64
	CompareAtPriceCents *int64
	IsActive            *bool
}

// StockInput sets the on-hand quantity of one variant, creating it if needed.
type StockInput struct {
	Size     string
	Color    string
	Quantity int
}

type stockSetter interface {
	SetQuantity(ctx context.Context, v inventory.Variant, qty int) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     ProductRepository
	stock    stockSetter
	tx       txRunner
	cache    cache.Cache
	cacheTTL time.Duration
	logg     *logger.Logger
}

// NewService constructs a product service instance.
func NewService(repo ProductRepository, stock stockSetter, tx txRunner, c cache.Cache, cacheTTL time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if c == nil {
		c = cache.Noop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &service{repo: repo, stock: stock, tx: tx, cache: c, cacheTTL: cacheTTL, logg: logg}, nil
}

// GetProduct returns an active product. Inactive products are hidden.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	dto, err := cache.Fetch(ctx, s.cache, s.logg, cache.ProductKey(id), s.cacheTTL, func(ctx context.Context) (*ProductDTO, error) {
		return s.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if !dto.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return dto, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (pagination.Page[ProductDTO], error) {
	category := strings.ToLower(strings.TrimSpace(input.Category))
	key := cache.ProductListKey(category, input.Pagination.Cursor, pagination.NormalizeLimit(input.Pagination.Limit))
	return cache.Fetch(ctx, s.cache, s.logg, key, s.cacheTTL, func(ctx context.Context) (pagination.Page[ProductDTO], error) {
		page, err := s.repo.List(ctx, ListQuery{Category: category, ActiveOnly: true, Pagination: input.Pagination})
		if err != nil {
			if pkgerrors.As(err) != nil {
				return pagination.Page[ProductDTO]{}, err
			}
			return pagination.Page[ProductDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
		}
		return pagination.Map(page, NewProductDTO), nil
	})
}

// CreateProduct creates the product with its full variant matrix.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	product, err := buildProduct(input)
	if err != nil {
		return nil, err
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, product)
	}); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	s.invalidate(ctx)
	s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID.String()), "product created")
	return s.load(ctx, product.ID)
}

// UpdateProduct updates an existing product's catalog fields. Prices changed here
// never reach lines already in carts.
func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if err := applyUpdateToProduct(product, input); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sku already exists")
		}
		return nil, mapLoadError(err)
	}
	s.invalidate(ctx)
	return s.load(ctx, id)
}

// DeleteProduct removes a product that has no outstanding reservations. The
// reservation check and the delete share one transaction.
func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Delete(ctx, id)
	}); err != nil {
		return mapLoadError(err)
	}
	s.invalidate(ctx)
	return nil
}

// SetStock overwrites one variant's on-hand quantity. The quantity may not drop
// below what carts currently hold.
func (s *service) SetStock(ctx context.Context, id uuid.UUID, input StockInput) (*ProductDTO, error) {
	size, color := strings.TrimSpace(input.Size), strings.TrimSpace(input.Color)
	if size == "" || color == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "size and color are required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, mapLoadError(err)
	}

	v := inventory.Variant{ProductID: id, Size: size, Color: color}
	err := s.stock.SetQuantity(ctx, v, input.Quantity)
	if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		err = s.repo.CreateVariant(ctx, &models.InventoryRecord{ProductID: id, Size: size, Color: color, Quantity: input.Quantity})
		if db.IsUniqueViolation(err, "") {
			err = s.stock.SetQuantity(ctx, v, input.Quantity)
		}
	}
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set stock")
	}
	s.invalidate(ctx)
	return s.load(ctx, id)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	dto := NewProductDTO(*product)
	return &dto, nil
}

func (s *service) invalidate(ctx context.Context) {
	cache.Invalidate(ctx, s.cache, s.logg, cache.ProductsPrefix)
}

func buildProduct(input CreateProductInput) (*models.Product, error) {
	product := &models.Product{
		ID:                  uuid.New(),
		SKU:                 strings.TrimSpace(input.SKU),
		Title:               strings.TrimSpace(input.Title),
		Description:         input.Description,
		Category:            strings.ToLower(strings.TrimSpace(input.Category)),
		Tags:                pq.StringArray(normalizeTags(input.Tags)),
		PriceCents:          input.PriceCents,
		CompareAtPriceCents: input.CompareAtPriceCents,
		IsActive:            true,
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	seen := map[[2]string]bool{}
	for _, variant := range input.Variants {
		size, color := strings.TrimSpace(variant.Size), strings.TrimSpace(variant.Color)
		if size == "" || color == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant size and color are required")
		}
		if variant.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant quantity must not be negative")
		}
		key := [2]string{size, color}
		if seen[key] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant").
				WithDetails(map[string]any{"size": size, "color": color})
		}
		seen[key] = true
		product.Inventory = append(product.Inventory, models.InventoryRecord{
			ProductID: product.ID,
			Size:      size,
			Color:     color,
			Quantity:  variant.Quantity,
		})
	}
	return product, nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) error {
	if input.SKU != nil {
		product.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Title != nil {
		product.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.Category != nil {
		product.Category = strings.ToLower(strings.TrimSpace(*input.Category))
	}
	if input.Tags != nil {
		product.Tags = pq.StringArray(normalizeTags(*input.Tags))
	}
	if input.PriceCents != nil {
		product.PriceCents = *input.PriceCents
	}
	if input.CompareAtPriceCents != nil {
		product.CompareAtPriceCents = input.CompareAtPriceCents
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	return validateProduct(product)
}

func validateProduct(product *models.Product) error {
	switch {
	case product.SKU == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	case product.Title == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case product.Category == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	case product.PriceCents < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	case product.CompareAtPriceCents != nil && *product.CompareAtPriceCents < product.PriceCents:
		return pkgerrors.New(pkgerrors.CodeValidation, "compare-at price must not be below price")
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}
