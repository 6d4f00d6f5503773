package stock

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/storefront-backoffice/pkg/db"
	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
)

const (
	initialStockReason   = "Initial stock"
	maxReasonLength      = 255
	defaultLedgerPage    = 50
	uniqueVariationIndex = "ux_stock_units_variation_size"
	// quantity and amount columns are INTEGER
	maxQuantity = math.MaxInt32
)

var tracer = otel.Tracer("github.com/angelmondragon/storefront-backoffice/internal/stock")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CatalogCache drops cached catalog snapshots of a unit once its state changes.
type CatalogCache interface {
	Invalidate(ctx context.Context, unitPublicID string) error
}

// Service is the stock ledger: the only writer of stock unit quantities.
type Service interface {
	CreateInitialStock(ctx context.Context, input CreateStockInput) (*CreateStockResult, error)
	Adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error)
	GetUnit(ctx context.Context, unitID string) (*StockUnitDTO, error)
	RetireUnit(ctx context.Context, unitID string) (*StockUnitDTO, error)
	ListMovements(ctx context.Context, unitID string) iter.Seq2[models.StockMovement, error]
	ListMovementsPage(ctx context.Context, unitID string, params pagination.Params) (*pagination.Page[StockMovementDTO], error)
	Audit(ctx context.Context, unitID string) (*AuditReport, error)
}

type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Outbox       outboxPublisher
	CatalogCache CatalogCache
	Metrics      *metrics.LedgerMetrics
	Logger       *logger.Logger
	PageSize     int
	Clock        func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	cache    CatalogCache
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
	pageSize int
	now      func() time.Time
}

// NewService builds the stock ledger with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultLedgerPage
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		cache:    params.CatalogCache,
		metrics:  params.Metrics,
		logg:     params.Logger,
		pageSize: pageSize,
		now:      clock,
	}, nil
}

func (s *service) CreateInitialStock(ctx context.Context, input CreateStockInput) (*CreateStockResult, error) {
	if input.VariationSizeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variation size id is required")
	}
	if input.InitialQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial quantity cannot be negative")
	}
	if input.InitialQuantity > maxQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("initial quantity must be at most %d", maxQuantity))
	}

	var result CreateStockResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindUnitByVariationSize(ctx, input.VariationSizeID); err == nil {
			return alreadyExists(input.VariationSizeID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing stock unit")
		}

		now := s.now()
		unit := &models.StockUnit{
			ID:              uuid.New(),
			PublicID:        models.NewPublicID(now),
			VariationSizeID: input.VariationSizeID,
			Quantity:        input.InitialQuantity,
		}
		if err := repo.CreateUnit(ctx, unit); err != nil {
			if dbpkg.IsUniqueViolation(err, uniqueVariationIndex) {
				return alreadyExists(input.VariationSizeID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock unit")
		}

		movement := &models.StockMovement{
			ID:             uuid.New(),
			StockUnitID:    unit.ID,
			Kind:           enums.MovementIn,
			Amount:         input.InitialQuantity,
			QuantityBefore: 0,
			QuantityAfter:  input.InitialQuantity,
			Reason:         initialStockReason,
		}
		if err := repo.CreateMovement(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record initial movement")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockCreated,
			AggregateType: enums.AggregateStockUnit,
			AggregateID:   unit.ID,
			OccurredAt:    now,
			Data: payloads.StockCreatedEvent{
				StockUnitID:     unit.PublicID,
				VariationSizeID: unit.VariationSizeID.String(),
				Quantity:        unit.Quantity,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock created event")
		}

		result = CreateStockResult{
			Unit:     NewStockUnitDTO(*unit),
			Movement: NewStockMovementDTO(*movement),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveMovement(string(enums.MovementIn), input.InitialQuantity)
	return &result, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error) {
	ctx, span := tracer.Start(ctx, "stock.Adjust")
	defer span.End()
	span.SetAttributes(
		attribute.String("stock.unit_id", input.UnitID),
		attribute.Int("stock.delta", input.Delta),
	)

	result, err := s.adjust(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (s *service) adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error) {
	unitID := strings.TrimSpace(input.UnitID)
	if unitID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock unit id is required")
	}
	reason := strings.TrimSpace(input.Reason)
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}
	if input.Delta > maxQuantity || input.Delta < -maxQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("delta must be between %d and %d", -maxQuantity, maxQuantity))
	}

	var (
		result   AdjustResult
		movement *models.StockMovement
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		unit, err := repo.FindUnitByPublicIDForUpdate(ctx, unitID)
		if err != nil {
			return unitLookupError(err, unitID)
		}
		if unit.IsRetired() {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock unit is retired")
		}

		if input.Delta == 0 {
			result.Unit = NewStockUnitDTO(*unit)
			return nil
		}

		before := unit.Quantity
		after := before + input.Delta
		if after > maxQuantity {
			return pkgerrors.New(pkgerrors.CodeValidation, "adjusted quantity exceeds the maximum").
				WithDetails(map[string]any{
					"delta":     input.Delta,
					"available": before,
					"maximum":   maxQuantity,
				})
		}
		if after < 0 {
			s.metrics.IncRejected("insufficient_stock")
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"requested": -input.Delta,
					"available": before,
				})
		}

		updated, err := repo.UpdateQuantity(ctx, unit.ID, before, after)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock quantity")
		}
		if !updated {
			s.metrics.IncRejected("concurrent_update")
			return pkgerrors.New(pkgerrors.CodeConflict, "stock unit was modified concurrently")
		}

		kind := enums.MovementIn
		amount := input.Delta
		if input.Delta < 0 {
			kind = enums.MovementOut
			amount = -input.Delta
		}
		if reason == "" {
			reason = kind.DefaultReason()
		}

		now := s.now()
		movement = &models.StockMovement{
			ID:             uuid.New(),
			StockUnitID:    unit.ID,
			Kind:           kind,
			Amount:         amount,
			QuantityBefore: before,
			QuantityAfter:  after,
			Reason:         reason,
		}
		if err := repo.CreateMovement(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateStockUnit,
			AggregateID:   unit.ID,
			OccurredAt:    now,
			Data: payloads.StockAdjustedEvent{
				StockUnitID:    unit.PublicID,
				MovementID:     movement.ID.String(),
				Kind:           kind,
				Amount:         amount,
				QuantityBefore: before,
				QuantityAfter:  after,
				Reason:         reason,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock adjusted event")
		}

		unit.Quantity = after
		unit.UpdatedAt = now
		result.Unit = NewStockUnitDTO(*unit)
		dto := NewStockMovementDTO(*movement)
		result.Movement = &dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	if movement != nil {
		s.metrics.ObserveMovement(string(movement.Kind), movement.Amount)
	}
	return &result, nil
}

func (s *service) GetUnit(ctx context.Context, unitID string) (*StockUnitDTO, error) {
	unit, err := s.repo.FindUnitByPublicID(ctx, unitID)
	if err != nil {
		return nil, unitLookupError(err, unitID)
	}
	dto := NewStockUnitDTO(*unit)
	return &dto, nil
}

// RetireUnit takes the unit out of circulation. Units are never deleted so
// their ledger stays auditable.
func (s *service) RetireUnit(ctx context.Context, unitID string) (*StockUnitDTO, error) {
	var dto StockUnitDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		unit, err := repo.FindUnitByPublicIDForUpdate(ctx, unitID)
		if err != nil {
			return unitLookupError(err, unitID)
		}
		if unit.IsRetired() {
			dto = NewStockUnitDTO(*unit)
			return nil
		}

		now := s.now()
		if _, err := repo.RetireUnit(ctx, unit.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire stock unit")
		}
		unit.RetiredAt = &now
		unit.UpdatedAt = now

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockRetired,
			AggregateType: enums.AggregateStockUnit,
			AggregateID:   unit.ID,
			OccurredAt:    now,
			Data: payloads.StockRetiredEvent{
				StockUnitID: unit.PublicID,
				Quantity:    unit.Quantity,
				RetiredAt:   now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock retired event")
		}
		dto = NewStockUnitDTO(*unit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx, dto.ID)
	return &dto, nil
}

func (s *service) invalidateCatalog(ctx context.Context, unitPublicID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, unitPublicID); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "stock_unit_id", unitPublicID), "catalog cache invalidation failed")
	}
}

// ListMovements yields the unit's movements newest first, fetching pages
// lazily. Every range starts over from the most recent movement.
func (s *service) ListMovements(ctx context.Context, unitID string) iter.Seq2[models.StockMovement, error] {
	return func(yield func(models.StockMovement, error) bool) {
		unit, err := s.repo.FindUnitByPublicID(ctx, unitID)
		if err != nil {
			yield(models.StockMovement{}, unitLookupError(err, unitID))
			return
		}

		var cursor *pagination.Cursor
		for {
			rows, err := s.repo.ListMovements(ctx, unit.ID, cursor, s.pageSize)
			if err != nil {
				yield(models.StockMovement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements"))
				return
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
			if len(rows) < s.pageSize {
				return
			}
			last := rows[len(rows)-1]
			cursor = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

func (s *service) ListMovementsPage(ctx context.Context, unitID string, params pagination.Params) (*pagination.Page[StockMovementDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	unit, err := s.repo.FindUnitByPublicID(ctx, unitID)
	if err != nil {
		return nil, unitLookupError(err, unitID)
	}
	rows, err := s.repo.ListMovements(ctx, unit.ID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}

	dtos := make([]StockMovementDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, NewStockMovementDTO(row))
	}
	page := pagination.BuildPage(dtos, params.Limit, func(m StockMovementDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return &page, nil
}

// Audit rebuilds the quantity from the full ledger and compares it with the
// live counter.
func (s *service) Audit(ctx context.Context, unitID string) (*AuditReport, error) {
	unit, err := s.repo.FindUnitByPublicID(ctx, unitID)
	if err != nil {
		return nil, unitLookupError(err, unitID)
	}

	var newestFirst []models.StockMovement
	for movement, err := range s.ListMovements(ctx, unitID) {
		if err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, movement)
	}

	chronological := make([]models.StockMovement, len(newestFirst))
	for i, m := range newestFirst {
		chronological[len(newestFirst)-1-i] = m
	}

	report := &AuditReport{
		UnitID:        unit.PublicID,
		LiveQuantity:  unit.Quantity,
		MovementCount: len(chronological),
	}
	ledgerQty, replayErr := Replay(chronological)
	report.LedgerQuantity = ledgerQty
	switch {
	case replayErr != nil:
		report.InconsistencyMsg = replayErr.Error()
	case ledgerQty != unit.Quantity:
		report.InconsistencyMsg = fmt.Sprintf("ledger quantity %d does not match live quantity %d", ledgerQty, unit.Quantity)
	default:
		report.Consistent = true
	}
	return report, nil
}

func unitLookupError(err error, unitID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("stock unit %s not found", unitID)).
			WithDetails(map[string]any{"unitId": unitID})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock unit")
}

func alreadyExists(variationSizeID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "stock unit already exists for variation size").
		WithDetails(map[string]any{"variationSizeId": variationSizeID.String()})
}
