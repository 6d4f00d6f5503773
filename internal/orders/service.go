package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/internal/catalog"
	"github.com/angelmondragon/storefront-backoffice/internal/payments"
	"github.com/angelmondragon/storefront-backoffice/internal/stock"
	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
)

const maxShippingAddressLength = 500

var tracer = otel.Tracer("github.com/angelmondragon/storefront-backoffice/internal/orders")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AvailabilityChecker is the advisory stock check run at checkout when requested.
type AvailabilityChecker interface {
	Validate(ctx context.Context, requests []stock.ValidateRequest) (*stock.ValidationResult, error)
}

// Service coordinates the order lifecycle: creation with catalog snapshots,
// payment confirmation and operator-driven transitions. It never moves stock.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	ConfirmOrder(ctx context.Context, orderID, sessionRef string) (*OrderDTO, error)
	ChangeStatus(ctx context.Context, orderID string, target enums.OrderStatus, notes *string) (*OrderDTO, error)
	CancelOrder(ctx context.Context, orderID string, notes *string) (*OrderDTO, error)
	ShipOrder(ctx context.Context, orderID string, notes *string) (*OrderDTO, error)
	GetOrder(ctx context.Context, orderID string) (*OrderDTO, error)
	ListOrders(ctx context.Context, filters ListFilters, params pagination.Params) (*pagination.Page[OrderDTO], error)
}

type ServiceParams struct {
	Repo           Repository
	Tx             txRunner
	Outbox         outboxPublisher
	Catalog        catalog.Lookup
	Gateway        payments.Gateway
	Availability   AvailabilityChecker
	Metrics        *metrics.OrderMetrics
	Logger         *logger.Logger
	PaymentTimeout time.Duration
	Clock          func() time.Time
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	catalog      catalog.Lookup
	gateway      payments.Gateway
	availability AvailabilityChecker
	metrics      *metrics.OrderMetrics
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the order coordinator with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:         params.Repo,
		tx:           params.Tx,
		outbox:       params.Outbox,
		catalog:      params.Catalog,
		gateway:      payments.WithTimeout(params.Gateway, params.PaymentTimeout),
		availability: params.Availability,
		metrics:      params.Metrics,
		logg:         params.Logger,
		now:          clock,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	if input.CheckAvailability && s.availability != nil {
		if err := s.checkAvailability(ctx, input.Items); err != nil {
			return nil, err
		}
	}

	items := make([]models.OrderLineItem, 0, len(input.Items))
	total := decimal.Zero
	for _, item := range input.Items {
		unitID := strings.TrimSpace(item.StockUnitID)
		snapshot, err := s.catalog.ResolveStockUnit(ctx, unitID)
		if err != nil {
			if errors.Is(err, catalog.ErrStockUnitNotFound) {
				return nil, productNotFound(unitID)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve stock unit")
		}
		if item.VariationID != nil && *item.VariationID != snapshot.VariationID {
			return nil, productNotFound(unitID)
		}
		// snapshots may come from a cache; price and retirement must be current
		terms, err := s.catalog.CurrentTerms(ctx, unitID)
		if err != nil {
			if errors.Is(err, catalog.ErrStockUnitNotFound) {
				return nil, productNotFound(unitID)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read current catalog terms")
		}
		if terms.Retired {
			return nil, productNotFound(unitID)
		}

		lineTotal := terms.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(lineTotal)
		items = append(items, models.OrderLineItem{
			StockUnitPublicID: snapshot.StockUnitID,
			ProductName:       snapshot.ProductName,
			VariationName:     snapshot.VariationName,
			Color:             snapshot.Color,
			Size:              snapshot.Size,
			ImageURL:          snapshot.ImageURL,
			Quantity:          item.Quantity,
			UnitPrice:         terms.UnitPrice,
			LineTotal:         lineTotal,
		})
	}

	now := s.now()
	order := &models.Order{
		ID:              uuid.New(),
		PublicID:        models.NewPublicID(now),
		OwnerID:         input.OwnerID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		TotalAmount:     total,
		ShippingCost:    input.ShippingCost,
		ShippingAddress: strings.TrimSpace(input.ShippingAddress),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range items {
			items[i].ID = uuid.New()
			items[i].OrderID = order.ID
		}
		if err := repo.CreateOrderLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order line items")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{OwnerID: order.OwnerID},
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.PublicID,
				OwnerID:     order.OwnerID.String(),
				ItemCount:   len(items),
				TotalAmount: order.TotalAmount.StringFixed(2),
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
		}
		return nil, err
	}

	s.metrics.IncCreated()
	order.Items = items
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) ConfirmOrder(ctx context.Context, orderID, sessionRef string) (*OrderDTO, error) {
	ctx, span := tracer.Start(ctx, "orders.ConfirmOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	dto, err := s.confirm(ctx, orderID, sessionRef)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return dto, nil
}

func (s *service) confirm(ctx context.Context, orderID, sessionRef string) (*OrderDTO, error) {
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	order, err := s.repo.FindByPublicID(ctx, orderID)
	if err != nil {
		return nil, orderLookupError(err, orderID)
	}
	if alreadyConfirmed(order, sessionRef) {
		dto := NewOrderDTO(*order)
		return &dto, nil
	}
	if err := checkTransition(order.Status, enums.OrderStatusConfirmed); err != nil {
		s.metrics.ObserveTransition(string(order.Status), string(enums.OrderStatusConfirmed), false)
		return nil, err
	}

	if _, err := s.verify(ctx, sessionRef); err != nil {
		return nil, err
	}

	var (
		confirmed *models.Order
		from      enums.OrderStatus
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindByPublicIDForUpdate(ctx, orderID)
		if err != nil {
			return orderLookupError(err, orderID)
		}
		if alreadyConfirmed(locked, sessionRef) {
			confirmed = locked
			return nil
		}

		from = locked.Status
		now := s.now()
		if err := Transition(locked, enums.OrderStatusConfirmed, nil, now); err != nil {
			return err
		}
		locked.PaymentStatus = enums.PaymentStatusPaid
		// stored as supplied so the unlocked retry check compares the same value
		locked.PaymentReferenceID = &sessionRef
		if err := repo.SaveLifecycle(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		if err := s.emitStatusChanged(ctx, tx, locked, from, now); err != nil {
			return err
		}
		confirmed = locked
		return nil
	})
	if err != nil {
		if from != "" {
			s.metrics.ObserveTransition(string(from), string(enums.OrderStatusConfirmed), false)
		}
		return nil, err
	}
	if from != "" {
		s.metrics.ObserveTransition(string(from), string(enums.OrderStatusConfirmed), true)
	}

	confirmed.Items = order.Items
	dto := NewOrderDTO(*confirmed)
	return &dto, nil
}

func (s *service) verify(ctx context.Context, sessionRef string) (*payments.Verification, error) {
	start := time.Now()
	verification, err := s.gateway.VerifySession(ctx, sessionRef)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, payments.ErrVerificationTimeout):
		s.metrics.ObserveVerification("timeout", elapsed)
	case err != nil:
		s.metrics.ObserveVerification("error", elapsed)
	case verification == nil || !verification.Success:
		s.metrics.ObserveVerification("declined", elapsed)
	default:
		s.metrics.ObserveVerification("verified", elapsed)
	}

	if err != nil {
		s.warn(ctx, sessionRef, "payment verification call failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentVerification, err, "payment verification failed").
			WithDetails(map[string]any{"sessionId": sessionRef, "message": err.Error()})
	}
	if verification == nil || !verification.Success {
		details := map[string]any{"sessionId": sessionRef}
		if verification != nil {
			details["paymentStatus"] = verification.PaymentStatus
			details["message"] = verification.Message
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment verification failed").WithDetails(details)
	}
	return verification, nil
}

func (s *service) ChangeStatus(ctx context.Context, orderID string, target enums.OrderStatus, notes *string) (*OrderDTO, error) {
	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByPublicIDForUpdate(ctx, orderID)
		if err != nil {
			return orderLookupError(err, orderID)
		}

		from = order.Status
		now := s.now()
		if err := Transition(order, target, notes, now); err != nil {
			return err
		}
		if err := repo.SaveLifecycle(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		if err := s.emitStatusChanged(ctx, tx, order, from, now); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		if from != "" {
			s.metrics.ObserveTransition(string(from), string(target), false)
		}
		return nil, err
	}
	s.metrics.ObserveTransition(string(from), string(target), true)

	return s.GetOrder(ctx, updated.PublicID)
}

// CancelOrder requires a reason before touching storage.
func (s *service) CancelOrder(ctx context.Context, orderID string, notes *string) (*OrderDTO, error) {
	if normalizeNotes(notes) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}
	return s.ChangeStatus(ctx, orderID, enums.OrderStatusCancelled, notes)
}

// ShipOrder requires shipping notes before touching storage.
func (s *service) ShipOrder(ctx context.Context, orderID string, notes *string) (*OrderDTO, error) {
	if normalizeNotes(notes) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping notes are required")
	}
	return s.ChangeStatus(ctx, orderID, enums.OrderStatusShipped, notes)
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*OrderDTO, error) {
	order, err := s.repo.FindByPublicID(ctx, orderID)
	if err != nil {
		return nil, orderLookupError(err, orderID)
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) ListOrders(ctx context.Context, filters ListFilters, params pagination.Params) (*pagination.Page[OrderDTO], error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", *filters.Status))
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filters, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	type keyed struct {
		dto    OrderDTO
		cursor pagination.Cursor
	}
	keyedRows := make([]keyed, 0, len(rows))
	for _, row := range rows {
		keyedRows = append(keyedRows, keyed{
			dto:    NewOrderDTO(row),
			cursor: pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID},
		})
	}
	page := pagination.BuildPage(keyedRows, params.Limit, func(k keyed) pagination.Cursor { return k.cursor })

	out := &pagination.Page[OrderDTO]{
		Items:      make([]OrderDTO, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for _, k := range page.Items {
		out.Items = append(out.Items, k.dto)
	}
	return out, nil
}

func (s *service) checkAvailability(ctx context.Context, items []CreateOrderItem) error {
	requests := make([]stock.ValidateRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, stock.ValidateRequest{UnitID: item.StockUnitID, Quantity: item.Quantity})
	}
	result, err := s.availability.Validate(ctx, requests)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(pkgerrors.As(err).Details())
		}
		return err
	}
	if !result.IsValid {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, result.Message).
			WithDetails(map[string]any{"items": result.Items})
	}
	return nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus, now time.Time) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{OwnerID: order.OwnerID},
		OccurredAt:    now,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:            order.PublicID,
			From:               from,
			To:                 order.Status,
			PaymentStatus:      order.PaymentStatus,
			PaymentReferenceID: order.PaymentReferenceID,
			Notes:              order.Notes,
			ChangedAt:          now,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}
	return nil
}

func (s *service) warn(ctx context.Context, sessionRef, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "payment_reference", sessionRef), msg)
}

func validateCreateInput(input CreateOrderInput) error {
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.StockUnitID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].stockUnitId is required", i))
		}
		if item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].quantity must be at least 1", i))
		}
	}
	address := strings.TrimSpace(input.ShippingAddress)
	if address == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if utf8.RuneCountInString(address) > maxShippingAddressLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("shipping address must be at most %d characters", maxShippingAddressLength))
	}
	if input.ShippingCost.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping cost cannot be negative")
	}
	return nil
}

func alreadyConfirmed(order *models.Order, paymentRef string) bool {
	return order.Status == enums.OrderStatusConfirmed &&
		order.PaymentStatus == enums.PaymentStatusPaid &&
		order.PaymentReferenceID != nil &&
		*order.PaymentReferenceID == paymentRef
}

func orderLookupError(err error, orderID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"orderId": orderID})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func productNotFound(unitID string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"stockUnitId": unitID})
}
