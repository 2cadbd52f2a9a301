package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// ProductDTO represents the catalog payload returned to clients.
type ProductDTO struct {
	ID                  uuid.UUID    `json:"id"`
	SKU                 string       `json:"sku"`
	Title               string       `json:"title"`
	Description         *string      `json:"description,omitempty"`
	Category            string       `json:"category"`
	Tags                []string     `json:"tags"`
	PriceCents          int64        `json:"price_cents"`
	CompareAtPriceCents *int64       `json:"compare_at_price_cents,omitempty"`
	IsActive            bool         `json:"is_active"`
	Variants            []VariantDTO `json:"variants"`
	TotalStock          int          `json:"total_stock"`
	AvailableStock      int          `json:"available_stock"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// VariantDTO exposes stock for one size/color combination.
type VariantDTO struct {
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
	Available int    `json:"available"`
	InStock   bool   `json:"in_stock"`
}

// NewProductDTO maps a product and its variants.
func NewProductDTO(p models.Product) ProductDTO {
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	dto := ProductDTO{
		ID:                  p.ID,
		SKU:                 p.SKU,
		Title:               p.Title,
		Description:         p.Description,
		Category:            p.Category,
		Tags:                tags,
		PriceCents:          p.PriceCents,
		CompareAtPriceCents: p.CompareAtPriceCents,
		IsActive:            p.IsActive,
		Variants:            make([]VariantDTO, 0, len(p.Inventory)),
		TotalStock:          inventory.TotalStock(p.Inventory),
		AvailableStock:      inventory.AvailableStock(p.Inventory),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	for _, record := range p.Inventory {
		available := inventory.Available(record)
		dto.Variants = append(dto.Variants, VariantDTO{
			Size:      record.Size,
			Color:     record.Color,
			Quantity:  record.Quantity,
			Available: available,
			InStock:   available > 0,
		})
	}
	return dto
}
