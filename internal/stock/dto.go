package stock

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
)

// AdjustInput describes one signed quantity change.
type AdjustInput struct {
	UnitID string
	Delta  int
	Reason string
}

// AdjustResult is the post-adjustment unit plus the movement appended, if any.
type AdjustResult struct {
	Unit     StockUnitDTO      `json:"unit"`
	Movement *StockMovementDTO `json:"movement,omitempty"`
}

// CreateStockInput opens a stock unit for a variation size.
type CreateStockInput struct {
	VariationSizeID uuid.UUID
	InitialQuantity int
}

// CreateStockResult is the new unit and its opening movement.
type CreateStockResult struct {
	Unit     StockUnitDTO     `json:"unit"`
	Movement StockMovementDTO `json:"movement"`
}

// ValidateRequest asks whether Quantity units of UnitID are available.
type ValidateRequest struct {
	UnitID   string `json:"unitId"`
	Quantity int    `json:"quantity"`
}

// ItemAvailability is the per-item outcome of a validation.
type ItemAvailability struct {
	UnitID      string `json:"unitId"`
	IsAvailable bool   `json:"isAvailable"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// ValidationResult summarizes an advisory availability check.
type ValidationResult struct {
	IsValid bool               `json:"isValid"`
	Items   []ItemAvailability `json:"items"`
	Message string             `json:"message"`
}

// AuditReport compares the live quantity with the quantity rebuilt from the ledger.
type AuditReport struct {
	UnitID           string `json:"unitId"`
	LiveQuantity     int    `json:"liveQuantity"`
	LedgerQuantity   int    `json:"ledgerQuantity"`
	MovementCount    int    `json:"movementCount"`
	Consistent       bool   `json:"consistent"`
	InconsistencyMsg string `json:"inconsistency,omitempty"`
}

// StockUnitDTO is the API view of a stock unit. ID is the public id.
type StockUnitDTO struct {
	ID              string     `json:"id"`
	VariationSizeID uuid.UUID  `json:"variationSizeId"`
	Quantity        int        `json:"quantity"`
	Retired         bool       `json:"retired"`
	RetiredAt       *time.Time `json:"retiredAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// StockMovementDTO is one immutable ledger entry.
type StockMovementDTO struct {
	ID             uuid.UUID          `json:"id"`
	Kind           enums.MovementKind `json:"kind"`
	Amount         int                `json:"amount"`
	QuantityBefore int                `json:"quantityBefore"`
	QuantityAfter  int                `json:"quantityAfter"`
	Reason         string             `json:"reason"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// NewStockUnitDTO maps a stock unit row to its API shape.
func NewStockUnitDTO(unit models.StockUnit) StockUnitDTO {
	return StockUnitDTO{
		ID:              unit.PublicID,
		VariationSizeID: unit.VariationSizeID,
		Quantity:        unit.Quantity,
		Retired:         unit.IsRetired(),
		RetiredAt:       unit.RetiredAt,
		CreatedAt:       unit.CreatedAt,
		UpdatedAt:       unit.UpdatedAt,
	}
}

// NewStockMovementDTO maps a movement row to its API shape.
func NewStockMovementDTO(m models.StockMovement) StockMovementDTO {
	return StockMovementDTO{
		ID:             m.ID,
		Kind:           m.Kind,
		Amount:         m.Amount,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Reason:         m.Reason,
		CreatedAt:      m.CreatedAt,
	}
}
