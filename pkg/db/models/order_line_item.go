package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLineItem snapshots the catalog data of an ordered stock unit at
// creation time. Later catalog edits never change it.
type OrderLineItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	StockUnitPublicID string          `gorm:"column:stock_unit_public_id;not null"`
	ProductName       string          `gorm:"column:product_name;not null"`
	VariationName     string          `gorm:"column:variation_name;not null"`
	Color             string          `gorm:"column:color;not null"`
	Size              string          `gorm:"column:size;not null"`
	ImageURL          *string         `gorm:"column:image_url"`
	Quantity          int             `gorm:"column:quantity;not null"`
	UnitPrice         decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal         decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }

func (i *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
