package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
)

// OwnerHeader carries the id of the customer acting on the back office.
const OwnerHeader = "X-Owner-Id"

// OwnerContext reads the optional owner header into the request context.
// A malformed value is rejected; a missing one passes through.
func OwnerContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(OwnerHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			ownerID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid owner id").WithDetails(map[string]any{"header": OwnerHeader}))
				return
			}

			ctx := WithOwnerID(r.Context(), ownerID.String())
			if logg != nil {
				ctx = logg.WithOwnerID(ctx, ownerID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
