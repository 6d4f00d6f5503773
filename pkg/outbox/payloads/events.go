package payloads

import (
	"time"

	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
)

// OrderCreatedEvent is emitted when checkout produces a new PENDING order.
type OrderCreatedEvent struct {
	OrderID     string `json:"order_id"`
	OwnerID     string `json:"owner_id"`
	ItemCount   int    `json:"item_count"`
	TotalAmount string `json:"total_amount"`
}

// OrderStatusChangedEvent is emitted for every accepted lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID            string              `json:"order_id"`
	From               enums.OrderStatus   `json:"from"`
	To                 enums.OrderStatus   `json:"to"`
	PaymentStatus      enums.PaymentStatus `json:"payment_status"`
	PaymentReferenceID *string             `json:"payment_reference_id,omitempty"`
	Notes              *string             `json:"notes,omitempty"`
	ChangedAt          time.Time           `json:"changed_at"`
}

// StockCreatedEvent is emitted when a stock unit is opened with its initial quantity.
type StockCreatedEvent struct {
	StockUnitID     string `json:"stock_unit_id"`
	VariationSizeID string `json:"variation_size_id"`
	Quantity        int    `json:"quantity"`
}

// StockAdjustedEvent mirrors the movement appended to the ledger.
type StockAdjustedEvent struct {
	StockUnitID    string             `json:"stock_unit_id"`
	MovementID     string             `json:"movement_id"`
	Kind           enums.MovementKind `json:"kind"`
	Amount         int                `json:"amount"`
	QuantityBefore int                `json:"quantity_before"`
	QuantityAfter  int                `json:"quantity_after"`
	Reason         string             `json:"reason"`
}

// StockRetiredEvent is emitted when a unit is taken out of circulation.
type StockRetiredEvent struct {
	StockUnitID string    `json:"stock_unit_id"`
	Quantity    int       `json:"quantity"`
	RetiredAt   time.Time `json:"retired_at"`
}
