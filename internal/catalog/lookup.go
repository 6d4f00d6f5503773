package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrStockUnitNotFound is returned when no catalog entry backs a stock unit.
var ErrStockUnitNotFound = errors.New("stock unit not found in catalog")

// StockUnitSnapshot is the catalog view of one stock unit, copied onto order
// line items at creation time.
type StockUnitSnapshot struct {
	StockUnitID     string          `json:"stock_unit_id"`
	VariationSizeID uuid.UUID       `json:"variation_size_id"`
	VariationID     uuid.UUID       `json:"variation_id"`
	ProductName     string          `json:"product_name"`
	VariationName   string          `json:"variation_name"`
	Color           string          `json:"color"`
	Size            string          `json:"size"`
	ImageURL        *string         `json:"image_url,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Retired         bool            `json:"retired"`
}

// LiveTerms are the catalog fields that can change under a cached snapshot.
type LiveTerms struct {
	UnitPrice decimal.Decimal
	Retired   bool
}

// Lookup resolves stock units to their product data.
type Lookup interface {
	ResolveStockUnit(ctx context.Context, unitPublicID string) (*StockUnitSnapshot, error)
	// CurrentTerms reads price and retirement from storage, bypassing any cache.
	CurrentTerms(ctx context.Context, unitPublicID string) (*LiveTerms, error)
}

type snapshotRow struct {
	PublicID        string
	VariationSizeID uuid.UUID
	VariationID     uuid.UUID
	ProductName     string
	VariationName   string
	Color           string
	Size            string
	ImageURL        *string
	Price           decimal.Decimal
	Retired         bool
}

type termsRow struct {
	Price   decimal.Decimal
	Retired bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a database-backed catalog lookup.
func NewRepository(db *gorm.DB) Lookup {
	return &repository{db: db}
}

func (r *repository) ResolveStockUnit(ctx context.Context, unitPublicID string) (*StockUnitSnapshot, error) {
	unitPublicID = strings.TrimSpace(unitPublicID)
	if unitPublicID == "" {
		return nil, ErrStockUnitNotFound
	}

	var rows []snapshotRow
	err := r.db.WithContext(ctx).
		Table("stock_units AS su").
		Select(`su.public_id AS public_id,
			su.variation_size_id AS variation_size_id,
			pv.id AS variation_id,
			p.name AS product_name,
			pv.name AS variation_name,
			pv.color AS color,
			vs.size AS size,
			pv.image_url AS image_url,
			pv.price AS price,
			su.retired_at IS NOT NULL AS retired`).
		Joins("JOIN variation_sizes vs ON vs.id = su.variation_size_id").
		Joins("JOIN product_variations pv ON pv.id = vs.variation_id").
		Joins("JOIN products p ON p.id = pv.product_id").
		Where("su.public_id = ?", unitPublicID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("resolve stock unit %s: %w", unitPublicID, err)
	}
	if len(rows) == 0 {
		return nil, ErrStockUnitNotFound
	}

	row := rows[0]
	return &StockUnitSnapshot{
		StockUnitID:     row.PublicID,
		VariationSizeID: row.VariationSizeID,
		VariationID:     row.VariationID,
		ProductName:     row.ProductName,
		VariationName:   row.VariationName,
		Color:           row.Color,
		Size:            row.Size,
		ImageURL:        row.ImageURL,
		UnitPrice:       row.Price,
		Retired:         row.Retired,
	}, nil
}

func (r *repository) CurrentTerms(ctx context.Context, unitPublicID string) (*LiveTerms, error) {
	unitPublicID = strings.TrimSpace(unitPublicID)
	if unitPublicID == "" {
		return nil, ErrStockUnitNotFound
	}

	var rows []termsRow
	err := r.db.WithContext(ctx).
		Table("stock_units AS su").
		Select("pv.price AS price, su.retired_at IS NOT NULL AS retired").
		Joins("JOIN variation_sizes vs ON vs.id = su.variation_size_id").
		Joins("JOIN product_variations pv ON pv.id = vs.variation_id").
		Where("su.public_id = ?", unitPublicID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read terms for stock unit %s: %w", unitPublicID, err)
	}
	if len(rows) == 0 {
		return nil, ErrStockUnitNotFound
	}
	return &LiveTerms{UnitPrice: rows[0].Price, Retired: rows[0].Retired}, nil
}
