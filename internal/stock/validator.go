package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
)

const (
	messageAllAvailable = "All items are available"
	messageShortfall    = "Some items have insufficient stock"
)

type unitReader interface {
	FindUnitsByPublicIDs(ctx context.Context, publicIDs []string) ([]models.StockUnit, error)
}

// Validator answers advisory "is there enough stock" questions. It takes no
// locks and reserves nothing, so a positive answer can be stale by the time
// an order is placed.
type Validator struct {
	units unitReader
}

func NewValidator(repo Repository) (*Validator, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &Validator{units: repo}, nil
}

// Validate checks each request against the live quantity. An unknown unit
// fails the whole call, naming the first missing reference.
func (v *Validator) Validate(ctx context.Context, requests []ValidateRequest) (*ValidationResult, error) {
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	ids := make([]string, 0, len(requests))
	for i, req := range requests {
		unitID := strings.TrimSpace(req.UnitID)
		if unitID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].unitId is required", i))
		}
		if req.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].quantity must be at least 1", i))
		}
		ids = append(ids, unitID)
	}

	units, err := v.units.FindUnitsByPublicIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock units")
	}
	byID := make(map[string]models.StockUnit, len(units))
	for _, unit := range units {
		byID[unit.PublicID] = unit
	}

	result := &ValidationResult{
		IsValid: true,
		Items:   make([]ItemAvailability, 0, len(requests)),
	}
	for i, req := range requests {
		unit, ok := byID[ids[i]]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("stock unit %s not found", ids[i])).
				WithDetails(map[string]any{"unitId": ids[i]})
		}
		available := unit.Quantity
		if unit.IsRetired() {
			available = 0
		}
		item := ItemAvailability{
			UnitID:      unit.PublicID,
			IsAvailable: available >= req.Quantity,
			Requested:   req.Quantity,
			Available:   available,
		}
		if !item.IsAvailable {
			result.IsValid = false
		}
		result.Items = append(result.Items, item)
	}

	result.Message = messageAllAvailable
	if !result.IsValid {
		result.Message = messageShortfall
	}
	return result, nil
}
