package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
)

// Order is the aggregate root of the order lifecycle. Notes holds only the
// latest status annotation.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PublicID           string              `gorm:"column:public_id;not null;uniqueIndex"`
	OwnerID            uuid.UUID           `gorm:"column:owner_id;type:uuid;not null;index"`
	Status             enums.OrderStatus   `gorm:"column:status;not null;default:'PENDING'"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	PaymentReferenceID *string             `gorm:"column:payment_reference_id"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ShippingCost       decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	ShippingAddress    string              `gorm:"column:shipping_address;not null"`
	Notes              *string             `gorm:"column:notes"`
	Items              []OrderLineItem     `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt          gorm.DeletedAt      `gorm:"column:deleted_at;index"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	ensurePublicID(&o.PublicID, time.Now())
	return nil
}
