package stock

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/internal/testutil"
	dbpkg "github.com/angelmondragon/storefront-backoffice/pkg/db"
	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
)

type ledgerHarness struct {
	db   *gorm.DB
	repo Repository
	svc  Service
}

func newLedgerHarness(t *testing.T, pageSize int) *ledgerHarness {
	t.Helper()
	conn := testutil.OpenSQLite(t)
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Tx:       dbpkg.NewFromGorm(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Metrics:  metrics.NewLedgerMetrics(prometheus.NewRegistry()),
		PageSize: pageSize,
	})
	require.NoError(t, err)
	return &ledgerHarness{db: conn, repo: repo, svc: svc}
}

func (h *ledgerHarness) openUnit(t *testing.T, qty int) string {
	t.Helper()
	created, err := h.svc.CreateInitialStock(context.Background(), CreateStockInput{
		VariationSizeID: uuid.New(),
		InitialQuantity: qty,
	})
	require.NoError(t, err)
	return created.Unit.ID
}

func (h *ledgerHarness) movementCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&models.StockMovement{}).Count(&count).Error)
	return count
}

func (h *ledgerHarness) eventCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateInitialStockRecordsOpeningMovement(t *testing.T) {
	h := newLedgerHarness(t, 0)

	created, err := h.svc.CreateInitialStock(context.Background(), CreateStockInput{
		VariationSizeID: uuid.New(),
		InitialQuantity: 37,
	})
	require.NoError(t, err)

	assert.Equal(t, 37, created.Unit.Quantity)
	assert.NotEmpty(t, created.Unit.ID)
	assert.Equal(t, enums.MovementIn, created.Movement.Kind)
	assert.Equal(t, 37, created.Movement.Amount)
	assert.Equal(t, 0, created.Movement.QuantityBefore)
	assert.Equal(t, 37, created.Movement.QuantityAfter)
	assert.Equal(t, "Initial stock", created.Movement.Reason)
	assert.EqualValues(t, 1, h.eventCount(t, enums.EventStockCreated))
}

func TestCreateInitialStockRejectsDuplicateAndNegative(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	sizeID := uuid.New()

	_, err := h.svc.CreateInitialStock(ctx, CreateStockInput{VariationSizeID: sizeID, InitialQuantity: 5})
	require.NoError(t, err)

	_, err = h.svc.CreateInitialStock(ctx, CreateStockInput{VariationSizeID: sizeID, InitialQuantity: 9})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
	assert.EqualValues(t, 1, h.movementCount(t))

	_, err = h.svc.CreateInitialStock(ctx, CreateStockInput{VariationSizeID: uuid.New(), InitialQuantity: -1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = h.svc.CreateInitialStock(ctx, CreateStockInput{InitialQuantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestAdjustRestockThenSell(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	unitID := h.openUnit(t, 37)

	restock, err := h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: 5, Reason: "restock"})
	require.NoError(t, err)
	assert.Equal(t, 42, restock.Unit.Quantity)
	require.NotNil(t, restock.Movement)
	assert.Equal(t, enums.MovementIn, restock.Movement.Kind)
	assert.Equal(t, 5, restock.Movement.Amount)
	assert.Equal(t, 37, restock.Movement.QuantityBefore)
	assert.Equal(t, 42, restock.Movement.QuantityAfter)
	assert.Equal(t, "restock", restock.Movement.Reason)

	sale, err := h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: -4})
	require.NoError(t, err)
	assert.Equal(t, 38, sale.Unit.Quantity)
	require.NotNil(t, sale.Movement)
	assert.Equal(t, enums.MovementOut, sale.Movement.Kind)
	assert.Equal(t, 4, sale.Movement.Amount)
	assert.Equal(t, 42, sale.Movement.QuantityBefore)
	assert.Equal(t, 38, sale.Movement.QuantityAfter)
	assert.Equal(t, "Stock outbound", sale.Movement.Reason)

	unit, err := h.svc.GetUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, 38, unit.Quantity)
	assert.EqualValues(t, 2, h.eventCount(t, enums.EventStockAdjusted))
}

func TestAdjustDefaultsInboundReason(t *testing.T) {
	h := newLedgerHarness(t, 0)
	unitID := h.openUnit(t, 0)

	res, err := h.svc.Adjust(context.Background(), AdjustInput{UnitID: unitID, Delta: 3, Reason: "   "})
	require.NoError(t, err)
	assert.Equal(t, "Stock inbound", res.Movement.Reason)
}

func TestAdjustUnderflowLeavesQuantityUnchanged(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	unitID := h.openUnit(t, 3)

	_, err := h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: -5})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	assert.Equal(t, map[string]any{"requested": 5, "available": 3}, typed.Details())

	unit, err := h.svc.GetUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, 3, unit.Quantity)
	assert.EqualValues(t, 1, h.movementCount(t))
	assert.EqualValues(t, 0, h.eventCount(t, enums.EventStockAdjusted))
}

func TestAdjustToExactlyZeroSucceeds(t *testing.T) {
	h := newLedgerHarness(t, 0)
	unitID := h.openUnit(t, 4)

	res, err := h.svc.Adjust(context.Background(), AdjustInput{UnitID: unitID, Delta: -4})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Unit.Quantity)
}

func TestAdjustZeroDeltaIsNoop(t *testing.T) {
	h := newLedgerHarness(t, 0)
	unitID := h.openUnit(t, 10)

	res, err := h.svc.Adjust(context.Background(), AdjustInput{UnitID: unitID, Delta: 0})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Unit.Quantity)
	assert.Nil(t, res.Movement)
	assert.EqualValues(t, 1, h.movementCount(t))
}

func TestAdjustUnknownAndRetiredUnits(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()

	_, err := h.svc.Adjust(ctx, AdjustInput{UnitID: "01JUNKNOWNUNIT", Delta: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = h.svc.Adjust(ctx, AdjustInput{UnitID: " ", Delta: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	unitID := h.openUnit(t, 2)
	retired, err := h.svc.RetireUnit(ctx, unitID)
	require.NoError(t, err)
	assert.True(t, retired.Retired)

	again, err := h.svc.RetireUnit(ctx, unitID)
	require.NoError(t, err)
	assert.True(t, again.Retired)
	assert.EqualValues(t, 1, h.eventCount(t, enums.EventStockRetired))

	_, err = h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
}

type racingRepository struct {
	Repository
}

func (r racingRepository) WithTx(tx *gorm.DB) Repository {
	return racingRepository{Repository: r.Repository.WithTx(tx)}
}

func (r racingRepository) UpdateQuantity(context.Context, uuid.UUID, int, int) (bool, error) {
	return false, nil
}

func TestAdjustReportsConcurrentModification(t *testing.T) {
	h := newLedgerHarness(t, 0)
	unitID := h.openUnit(t, 10)

	svc, err := NewService(ServiceParams{
		Repo:   racingRepository{Repository: h.repo},
		Tx:     dbpkg.NewFromGorm(h.db),
		Outbox: outbox.NewService(outbox.NewRepository(h.db), nil),
	})
	require.NoError(t, err)

	_, err = svc.Adjust(context.Background(), AdjustInput{UnitID: unitID, Delta: -1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
	assert.EqualValues(t, 1, h.movementCount(t))
}

func TestListMovementsNewestFirstAndRestartable(t *testing.T) {
	h := newLedgerHarness(t, 2)
	ctx := context.Background()
	unitID := h.openUnit(t, 1)
	for _, delta := range []int{2, -1, 4, -3} {
		_, err := h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: delta})
		require.NoError(t, err)
	}

	collect := func() []models.StockMovement {
		var out []models.StockMovement
		for m, err := range h.svc.ListMovements(ctx, unitID) {
			require.NoError(t, err)
			out = append(out, m)
		}
		return out
	}

	first := collect()
	require.Len(t, first, 5)
	afters := make([]int, 0, len(first))
	for _, m := range first {
		afters = append(afters, m.QuantityAfter)
	}
	assert.Equal(t, []int{3, 6, 2, 3, 1}, afters)

	second := collect()
	assert.Equal(t, first, second)

	taken := 0
	for _, err := range h.svc.ListMovements(ctx, unitID) {
		require.NoError(t, err)
		taken++
		if taken == 3 {
			break
		}
	}
	assert.Equal(t, 3, taken)
}

func TestListMovementsUnknownUnitYieldsNotFound(t *testing.T) {
	h := newLedgerHarness(t, 0)

	calls := 0
	for _, err := range h.svc.ListMovements(context.Background(), "missing") {
		calls++
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
	}
	assert.Equal(t, 1, calls)
}

func TestListMovementsPage(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	unitID := h.openUnit(t, 5)
	for i := 0; i < 3; i++ {
		_, err := h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: 1})
		require.NoError(t, err)
	}

	page, err := h.svc.ListMovementsPage(ctx, unitID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, 8, page.Items[0].QuantityAfter)
	require.NotEmpty(t, page.NextCursor)

	rest, err := h.svc.ListMovementsPage(ctx, unitID, pagination.Params{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "Initial stock", rest.Items[0].Reason)
	assert.Empty(t, rest.NextCursor)

	_, err = h.svc.ListMovementsPage(ctx, unitID, pagination.Params{Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestLedgerReplayMatchesLiveQuantity(t *testing.T) {
	h := newLedgerHarness(t, 4)
	ctx := context.Background()
	unitID := h.openUnit(t, 20)

	rng := rand.New(rand.NewSource(7))
	expected := 20
	for i := 0; i < 40; i++ {
		delta := rng.Intn(21) - 12
		_, err := h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: delta})
		if expected+delta < 0 {
			require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock), "step %d: %v", i, err)
			continue
		}
		require.NoError(t, err, "step %d", i)
		expected += delta
	}

	report, err := h.svc.Audit(ctx, unitID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, report.InconsistencyMsg)
	assert.Equal(t, expected, report.LiveQuantity)
	assert.Equal(t, expected, report.LedgerQuantity)
}

func TestAuditDetectsTamperedCounter(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	unitID := h.openUnit(t, 6)

	require.NoError(t, h.db.Model(&models.StockUnit{}).Where("public_id = ?", unitID).Update("quantity", 9).Error)

	report, err := h.svc.Audit(ctx, unitID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, 6, report.LedgerQuantity)
	assert.Equal(t, 9, report.LiveQuantity)
}

func TestConcurrentAdjustsNeverOversell(t *testing.T) {
	h := newLedgerHarness(t, 3)
	ctx := context.Background()
	unitID := h.openUnit(t, 5)

	const workers = 10
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		applied      int
		insufficient int
		unexpected   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: -1, Reason: "sale"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				applied++
			case pkgerrors.Is(err, pkgerrors.CodeInsufficientStock):
				insufficient++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, 5, applied)
	assert.Equal(t, 5, insufficient)

	unit, err := h.svc.GetUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, 0, unit.Quantity)

	var history []models.StockMovement
	for m, err := range h.svc.ListMovements(ctx, unitID) {
		require.NoError(t, err)
		history = append(history, m)
	}
	require.Len(t, history, 6)
	slices.Reverse(history)
	replayed, err := Replay(history)
	require.NoError(t, err)
	assert.Equal(t, unit.Quantity, replayed)
}

func TestAdjustRejectsOutOfRangeQuantities(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	unitID := h.openUnit(t, 5)

	for _, delta := range []int{math.MaxInt64, math.MinInt64, math.MaxInt32 + 1, -(math.MaxInt32 + 1)} {
		_, err := h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: delta})
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "delta %d: %v", delta, err)
	}

	_, err := h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: math.MaxInt32})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "adjusted quantity exceeds the maximum", typed.Message())

	_, err = h.svc.Adjust(ctx, AdjustInput{UnitID: unitID, Delta: math.MaxInt32 - 5})
	require.NoError(t, err)

	unit, err := h.svc.GetUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, unit.Quantity)
	assert.EqualValues(t, 2, h.movementCount(t))

	_, err = h.svc.CreateInitialStock(ctx, CreateStockInput{VariationSizeID: uuid.New(), InitialQuantity: math.MaxInt32 + 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
}

type recordingCache struct {
	invalidated []string
}

func (r *recordingCache) Invalidate(_ context.Context, unitPublicID string) error {
	r.invalidated = append(r.invalidated, unitPublicID)
	return nil
}

func TestRetireUnitInvalidatesCatalogCache(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	cache := &recordingCache{}
	svc, err := NewService(ServiceParams{
		Repo:         NewRepository(conn),
		Tx:           dbpkg.NewFromGorm(conn),
		Outbox:       outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		CatalogCache: cache,
	})
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.CreateInitialStock(ctx, CreateStockInput{VariationSizeID: uuid.New(), InitialQuantity: 3})
	require.NoError(t, err)
	assert.Empty(t, cache.invalidated)

	retired, err := svc.RetireUnit(ctx, created.Unit.ID)
	require.NoError(t, err)
	assert.True(t, retired.Retired)
	assert.Equal(t, []string{created.Unit.ID}, cache.invalidated)

	_, err = svc.RetireUnit(ctx, "01JNOPE")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	assert.Len(t, cache.invalidated, 1)
}
