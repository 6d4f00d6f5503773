package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. The back office core only reads it.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// ProductVariation is a color/style variant of a product with its own price.
type ProductVariation struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Name      string          `gorm:"column:name;not null"`
	Color     string          `gorm:"column:color;not null"`
	ImageURL  *string         `gorm:"column:image_url"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductVariation) TableName() string { return "product_variations" }

// VariationSize is the sellable size of a variation; each has at most one stock unit.
type VariationSize struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VariationID uuid.UUID `gorm:"column:variation_id;type:uuid;not null;index"`
	Size        string    `gorm:"column:size;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (VariationSize) TableName() string { return "variation_sizes" }
