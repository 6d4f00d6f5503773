package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
)

// StockMovement is an immutable ledger entry describing one quantity change.
type StockMovement struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	StockUnitID    uuid.UUID          `gorm:"column:stock_unit_id;type:uuid;not null;index"`
	Kind           enums.MovementKind `gorm:"column:kind;not null"`
	Amount         int                `gorm:"column:amount;not null"`
	QuantityBefore int                `gorm:"column:quantity_before;not null"`
	QuantityAfter  int                `gorm:"column:quantity_after;not null"`
	Reason         string             `gorm:"column:reason;not null"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (StockMovement) TableName() string { return "stock_movements" }

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// SignedAmount returns the amount with the sign implied by the kind.
func (m StockMovement) SignedAmount() int {
	if m.Kind == enums.MovementOut {
		return -m.Amount
	}
	return m.Amount
}
