package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByPublicID(ctx context.Context, publicID string) (*models.Order, error)
	FindByPublicIDForUpdate(ctx context.Context, publicID string) (*models.Order, error)
	SaveLifecycle(ctx context.Context, order *models.Order) error
	List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *repository) CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByPublicID(ctx context.Context, publicID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("public_id = ?", publicID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByPublicIDForUpdate locks the order row for the rest of the transaction.
// Line items are immutable and are not loaded.
func (r *repository) FindByPublicIDForUpdate(ctx context.Context, publicID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("public_id = ?", publicID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SaveLifecycle persists the mutable lifecycle columns of order.
func (r *repository) SaveLifecycle(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":               order.Status,
			"payment_status":       order.PaymentStatus,
			"payment_reference_id": order.PaymentReferenceID,
			"notes":                order.Notes,
			"updated_at":           order.UpdatedAt,
		}).Error
}

// List returns up to limit orders newest first, starting after cursor.
func (r *repository) List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.OwnerID != nil && *filters.OwnerID != uuid.Nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
