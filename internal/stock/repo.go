package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
)

// Repository defines persistence operations for stock units and their ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateUnit(ctx context.Context, unit *models.StockUnit) error
	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	FindUnitByPublicID(ctx context.Context, publicID string) (*models.StockUnit, error)
	FindUnitByPublicIDForUpdate(ctx context.Context, publicID string) (*models.StockUnit, error)
	FindUnitByVariationSize(ctx context.Context, variationSizeID uuid.UUID) (*models.StockUnit, error)
	FindUnitsByPublicIDs(ctx context.Context, publicIDs []string) ([]models.StockUnit, error)
	UpdateQuantity(ctx context.Context, unitID uuid.UUID, expected, next int) (bool, error)
	RetireUnit(ctx context.Context, unitID uuid.UUID, at time.Time) (bool, error)
	ListMovements(ctx context.Context, unitID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateUnit(ctx context.Context, unit *models.StockUnit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) FindUnitByPublicID(ctx context.Context, publicID string) (*models.StockUnit, error) {
	var unit models.StockUnit
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&unit).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

// FindUnitByPublicIDForUpdate loads the unit holding a row lock until the
// surrounding transaction ends.
func (r *repository) FindUnitByPublicIDForUpdate(ctx context.Context, publicID string) (*models.StockUnit, error) {
	var unit models.StockUnit
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("public_id = ?", publicID).
		First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) FindUnitByVariationSize(ctx context.Context, variationSizeID uuid.UUID) (*models.StockUnit, error) {
	var unit models.StockUnit
	if err := r.db.WithContext(ctx).Where("variation_size_id = ?", variationSizeID).First(&unit).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) FindUnitsByPublicIDs(ctx context.Context, publicIDs []string) ([]models.StockUnit, error) {
	if len(publicIDs) == 0 {
		return nil, nil
	}
	var units []models.StockUnit
	if err := r.db.WithContext(ctx).Where("public_id IN ?", publicIDs).Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// UpdateQuantity writes next only while the stored quantity still equals
// expected. It reports false when another writer got there first.
func (r *repository) UpdateQuantity(ctx context.Context, unitID uuid.UUID, expected, next int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockUnit{}).
		Where("id = ? AND quantity = ?", unitID, expected).
		Updates(map[string]any{
			"quantity":   next,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) RetireUnit(ctx context.Context, unitID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockUnit{}).
		Where("id = ? AND retired_at IS NULL", unitID).
		Updates(map[string]any{
			"retired_at": at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListMovements returns up to limit movements newest first, starting after cursor.
func (r *repository) ListMovements(ctx context.Context, unitID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).Where("stock_unit_id = ?", unitID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.StockMovement
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
