package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/storefront-backoffice/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
)

const (
	envHeader          = "X-Backoffice-Env"
	readinessTimeout   = 2 * time.Second
	readinessStatusOK  = "ok"
	readinessStatusBad = "unavailable"
)

// Pinger is any dependency that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and fails with 503 if any is down.
func HealthReady(env string, logg *logger.Logger, checks map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		statuses := make(map[string]string, len(names))
		var failed []string
		for _, name := range names {
			pinger := checks[name]
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				statuses[name] = readinessStatusBad
				failed = append(failed, name)
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "dependency", name), "readiness check failed")
				}
				continue
			}
			statuses[name] = readinessStatusOK
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(map[string]any{"checks": statuses}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": statuses})
	}
}
