package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backoffice/api/controllers"
	ordercontrollers "github.com/angelmondragon/storefront-backoffice/api/controllers/orders"
	stockcontrollers "github.com/angelmondragon/storefront-backoffice/api/controllers/stock"
	"github.com/angelmondragon/storefront-backoffice/api/middleware"
	"github.com/angelmondragon/storefront-backoffice/internal/orders"
	"github.com/angelmondragon/storefront-backoffice/internal/stock"
	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/redis"
)

// Dependencies are the services and clients the HTTP surface is built from.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	Orders      orders.Service
	Stock       stock.Service
	Validator   stockcontrollers.AvailabilityValidator
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["db"] = deps.DB
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, checks))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OwnerContext(logg))
		if cfg.FeatureFlags.Idempotency && deps.Idempotency != nil {
			r.Use(middleware.Idempotency(deps.Idempotency, logg))
		}

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Patch("/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
			r.Post("/{orderId}/confirm", ordercontrollers.Confirm(deps.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
			r.Post("/{orderId}/ship", ordercontrollers.Ship(deps.Orders, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Post("/", stockcontrollers.Create(deps.Stock, logg))
			r.Post("/validate", stockcontrollers.Validate(deps.Validator, logg))
			r.Get("/{unitId}", stockcontrollers.Get(deps.Stock, logg))
			r.Delete("/{unitId}", stockcontrollers.Retire(deps.Stock, logg))
			r.Post("/{unitId}/adjust", stockcontrollers.Adjust(deps.Stock, logg))
			r.Get("/{unitId}/movements", stockcontrollers.Movements(deps.Stock, logg))
			r.Get("/{unitId}/audit", stockcontrollers.Audit(deps.Stock, logg))
		})
	})

	return r
}
