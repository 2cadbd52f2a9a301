package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ProductRepository defines catalog persistence.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, query ListQuery) (pagination.Page[models.Product], error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	CreateVariant(ctx context.Context, record *models.InventoryRecord) error
}

// ListQuery narrows a catalog listing.
type ListQuery struct {
	Category   string
	ActiveOnly bool
	Pagination pagination.Params
}

// Repository wires together product and variant persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// GetByID loads the product with its size/color matrix.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Inventory", variantOrder).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// List pages through products newest first.
func (r *Repository) List(ctx context.Context, query ListQuery) (pagination.Page[models.Product], error) {
	keyset, err := pagination.Keyset("", query.Pagination)
	if err != nil {
		return pagination.Page[models.Product]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	q := r.db.WithContext(ctx).Model(&models.Product{})
	if category := strings.TrimSpace(query.Category); category != "" {
		q = q.Where("category = ?", category)
	}
	if query.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var rows []models.Product
	if err := q.Preload("Inventory", variantOrder).Scopes(keyset).Find(&rows).Error; err != nil {
		return pagination.Page[models.Product]{}, err
	}
	return pagination.Trim(rows, query.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

// ListByIDs loads the given products with their variants. Missing ids are skipped.
func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Inventory", variantOrder).
		Where("id IN ?", ids).
		Find(&rows).Error
	return rows, err
}

// Create inserts the product together with its variants.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update writes the editable product columns. Variants are managed separately.
func (r *Repository) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"sku":                    product.SKU,
			"title":                  product.Title,
			"description":            product.Description,
			"category":               product.Category,
			"tags":                   product.Tags,
			"price_cents":            product.PriceCents,
			"compare_at_price_cents": product.CompareAtPriceCents,
			"is_active":              product.IsActive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the product and its inventory records unless a cart still
// holds reserved units, which yields STATE_CONFLICT. It must run inside a
// transaction: the variant rows stay locked until commit so no reservation can
// land between the check and the delete.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	var records []models.InventoryRecord
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", id).
		Order("size ASC, color ASC").
		Find(&records).Error
	if err != nil {
		return err
	}
	for _, record := range records {
		if record.Reserved > 0 {
			return reservedStock(record)
		}
	}

	if err := db.Where("product_id = ? AND reserved = 0", id).Delete(&models.InventoryRecord{}).Error; err != nil {
		return err
	}
	res := db.Exec(
		"DELETE FROM products WHERE id = ? AND NOT EXISTS (SELECT 1 FROM inventory_records WHERE product_id = ? AND reserved > 0)",
		id, id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var remaining int64
	if err := db.Model(&models.Product{}).Where("id = ?", id).Count(&remaining).Error; err != nil {
		return err
	}
	if remaining == 0 {
		return gorm.ErrRecordNotFound
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "product has reserved stock")
}

func reservedStock(record models.InventoryRecord) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "product has reserved stock").
		WithDetails(map[string]any{"size": record.Size, "color": record.Color, "reserved": record.Reserved})
}

// CreateVariant adds a new size/color combination to a product.
func (r *Repository) CreateVariant(ctx context.Context, record *models.InventoryRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func variantOrder(db *gorm.DB) *gorm.DB {
	return db.Order("size ASC").Order("color ASC")
}
