package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockUnit holds the live quantity for one variation size.
type StockUnit struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	PublicID        string     `gorm:"column:public_id;not null;uniqueIndex"`
	VariationSizeID uuid.UUID  `gorm:"column:variation_size_id;type:uuid;not null;uniqueIndex"`
	Quantity        int        `gorm:"column:quantity;not null;default:0"`
	RetiredAt       *time.Time `gorm:"column:retired_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockUnit) TableName() string { return "stock_units" }

// BeforeCreate assigns identifiers the caller left empty.
func (u *StockUnit) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	ensurePublicID(&u.PublicID, time.Now())
	return nil
}

// IsRetired reports whether the unit has been taken out of circulation.
func (u StockUnit) IsRetired() bool {
	return u.RetiredAt != nil
}
