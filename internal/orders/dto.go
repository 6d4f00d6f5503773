package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
)

// CreateOrderItem references one stock unit to purchase.
type CreateOrderItem struct {
	StockUnitID string
	Quantity    int
	VariationID *uuid.UUID
}

// CreateOrderInput is the checkout payload handed to CreateOrder.
type CreateOrderInput struct {
	OwnerID         uuid.UUID
	Items           []CreateOrderItem
	ShippingAddress string
	ShippingCost    decimal.Decimal
	// CheckAvailability runs the advisory stock check before persisting.
	CheckAvailability bool
}

// ListFilters narrows the order listing.
type ListFilters struct {
	OwnerID *uuid.UUID
	Status  *enums.OrderStatus
}

// OrderLineItemDTO is the catalog snapshot stored on an order line.
type OrderLineItemDTO struct {
	ID            uuid.UUID       `json:"id"`
	StockUnitID   string          `json:"stockUnitId"`
	ProductName   string          `json:"productName"`
	VariationName string          `json:"variationName"`
	Color         string          `json:"color"`
	Size          string          `json:"size"`
	ImageURL      *string         `json:"imageUrl,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	LineTotal     decimal.Decimal `json:"lineTotal"`
}

// OrderDTO is the API view of an order with its allowed next statuses.
type OrderDTO struct {
	ID                 string              `json:"id"`
	OwnerID            uuid.UUID           `json:"ownerId"`
	Status             enums.OrderStatus   `json:"status"`
	PaymentStatus      enums.PaymentStatus `json:"paymentStatus"`
	PaymentReferenceID *string             `json:"paymentReferenceId,omitempty"`
	TotalAmount        decimal.Decimal     `json:"totalAmount"`
	ShippingCost       decimal.Decimal     `json:"shippingCost"`
	ShippingAddress    string              `json:"shippingAddress"`
	Notes              *string             `json:"notes,omitempty"`
	AllowedNext        []enums.OrderStatus `json:"allowedNext"`
	Items              []OrderLineItemDTO  `json:"items,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// NewOrderDTO maps the aggregate to its API shape. The ID is the public id.
func NewOrderDTO(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                 order.PublicID,
		OwnerID:            order.OwnerID,
		Status:             order.Status,
		PaymentStatus:      order.PaymentStatus,
		PaymentReferenceID: order.PaymentReferenceID,
		TotalAmount:        order.TotalAmount,
		ShippingCost:       order.ShippingCost,
		ShippingAddress:    order.ShippingAddress,
		Notes:              order.Notes,
		AllowedNext:        AllowedTransitions(order.Status),
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	if len(order.Items) > 0 {
		dto.Items = make([]OrderLineItemDTO, 0, len(order.Items))
		for _, item := range order.Items {
			dto.Items = append(dto.Items, OrderLineItemDTO{
				ID:            item.ID,
				StockUnitID:   item.StockUnitPublicID,
				ProductName:   item.ProductName,
				VariationName: item.VariationName,
				Color:         item.Color,
				Size:          item.Size,
				ImageURL:      item.ImageURL,
				Quantity:      item.Quantity,
				UnitPrice:     item.UnitPrice,
				LineTotal:     item.LineTotal,
			})
		}
	}
	return dto
}
