package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backoffice/api/middleware"
	"github.com/angelmondragon/storefront-backoffice/api/responses"
	"github.com/angelmondragon/storefront-backoffice/api/validators"
	internalorders "github.com/angelmondragon/storefront-backoffice/internal/orders"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
)

const (
	maxAddressLength = 500
	maxNotesLength   = 1000
)

type createOrderItem struct {
	StockUnitID string     `json:"stockUnitId" validate:"required,max=64"`
	Quantity    int        `json:"quantity" validate:"required,min=1"`
	VariationID *uuid.UUID `json:"variationId,omitempty"`
}

type createOrderRequest struct {
	Items             []createOrderItem `json:"items" validate:"required,min=1,dive"`
	ShippingAddress   string            `json:"shippingAddress" validate:"required,max=500"`
	ShippingCost      *decimal.Decimal  `json:"shippingCost,omitempty" validate:"omitempty,money"`
	CheckAvailability bool              `json:"checkAvailability,omitempty"`
}

type confirmOrderRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=255"`
}

type notesRequest struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type statusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Create places a PENDING order for the calling owner.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := requireOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.CreateOrderInput{
			OwnerID:           ownerID,
			ShippingAddress:   validators.SanitizeString(req.ShippingAddress, maxAddressLength),
			CheckAvailability: req.CheckAvailability,
		}
		if req.ShippingCost != nil {
			input.ShippingCost = *req.ShippingCost
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.CreateOrderItem{
				StockUnitID: strings.TrimSpace(item.StockUnitID),
				Quantity:    item.Quantity,
				VariationID: item.VariationID,
			})
		}

		order, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// List pages orders newest first, scoped to the caller when an owner is sent.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryEnum(r, "status", enums.ParseOrderStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := internalorders.ListFilters{Status: status}
		if raw := middleware.OwnerIDFromContext(r.Context()); raw != "" {
			ownerID, err := uuid.Parse(raw)
			if err == nil {
				filters.OwnerID = &ownerID
			}
		}

		page, err := svc.ListOrders(r.Context(), filters, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Confirm verifies the payment session and moves the order to CONFIRMED.
func Confirm(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req confirmOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		order, err := svc.ConfirmOrder(ctx, orderID, strings.TrimSpace(req.SessionID))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return notesAction(logg, svc.CancelOrder)
}

func Ship(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return notesAction(logg, svc.ShipOrder)
}

// UpdateStatus applies any transition allowed by the lifecycle table.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{"status": req.Status}))
			return
		}

		order, err := svc.ChangeStatus(r.Context(), orderID, target, validators.SanitizeOptional(req.Notes, maxNotesLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type notesFn func(ctx context.Context, orderID string, notes *string) (*internalorders.OrderDTO, error)

func notesAction(logg *logger.Logger, action notesFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req notesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := action(r.Context(), orderID, validators.SanitizeOptional(req.Notes, maxNotesLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func orderIDParam(r *http.Request) (string, error) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return orderID, nil
}

func requireOwner(r *http.Request) (uuid.UUID, error) {
	raw := middleware.OwnerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, middleware.OwnerHeader+" header is required")
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid owner id")
	}
	return ownerID, nil
}
