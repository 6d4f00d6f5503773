package stock

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/api/responses"
	"github.com/angelmondragon/storefront-backoffice/api/validators"
	internalstock "github.com/angelmondragon/storefront-backoffice/internal/stock"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
)

const maxReasonLength = 255

// AvailabilityValidator is the advisory stock check exposed over HTTP.
type AvailabilityValidator interface {
	Validate(ctx context.Context, requests []internalstock.ValidateRequest) (*internalstock.ValidationResult, error)
}

type validateItem struct {
	UnitID   string `json:"unitId" validate:"required,max=64"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type validateRequest struct {
	Items []validateItem `json:"items" validate:"required,min=1,dive"`
}

type createStockRequest struct {
	VariationSizeID uuid.UUID `json:"variationSizeId" validate:"required"`
	InitialQuantity *int      `json:"initialQuantity" validate:"required,min=0"`
}

type adjustRequest struct {
	Delta  *int   `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"max=255"`
}

// Validate answers whether every requested quantity is currently on hand.
// Shortfalls are a normal 200 response with isValid=false.
func Validate(v AvailabilityValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requests := make([]internalstock.ValidateRequest, 0, len(req.Items))
		for _, item := range req.Items {
			requests = append(requests, internalstock.ValidateRequest{
				UnitID:   strings.TrimSpace(item.UnitID),
				Quantity: item.Quantity,
			})
		}
		result, err := v.Validate(r.Context(), requests)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Create(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreateInitialStock(r.Context(), internalstock.CreateStockInput{
			VariationSizeID: req.VariationSizeID,
			InitialQuantity: *req.InitialQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func Get(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := unitIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unit, err := svc.GetUnit(r.Context(), unitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, unit)
	}
}

// Adjust applies a signed delta. Underflow is rejected with the requested
// and available quantities in the error details.
func Adjust(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := unitIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithStockUnitID(ctx, unitID)
		}
		result, err := svc.Adjust(ctx, internalstock.AdjustInput{
			UnitID: unitID,
			Delta:  *req.Delta,
			Reason: validators.SanitizeString(req.Reason, maxReasonLength),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Movements(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := unitIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListMovementsPage(r.Context(), unitID, pagination.Params{
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

// Audit replays the movement ledger and reports whether it matches the live quantity.
func Audit(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := unitIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Audit(r.Context(), unitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func Retire(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := unitIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unit, err := svc.RetireUnit(r.Context(), unitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, unit)
	}
}

func unitIDParam(r *http.Request) (string, error) {
	unitID := strings.TrimSpace(chi.URLParam(r, "unitId"))
	if unitID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stock unit id is required")
	}
	return unitID, nil
}
