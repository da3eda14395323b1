package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// Check probes one dependency.
type Check func(context.Context) error

// HealthCheckHandler answers "ALIVE" when checks is empty. Otherwise every
// check runs against the request context and the handler answers "READY", or
// 503 "NOT_READY" with the failing check logged by name.
func HealthCheckHandler(log *slog.Logger, checks map[string]Check) http.HandlerFunc {
	names := slices.Sorted(maps.Keys(checks))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if len(names) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ALIVE"))
			return
		}

		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				if log != nil {
					log.ErrorContext(ctx, "readiness check failed", slog.String("check", name), logger.Error(err))
				}
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT_READY"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}

// OpsHandler mounts /metrics for gatherer plus /livez and /readyz probes.
func OpsHandler(gatherer prometheus.Gatherer, log *slog.Logger, checks map[string]Check) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("GET /livez", HealthCheckHandler(log, nil))
	mux.Handle("GET /readyz", HealthCheckHandler(log, checks))
	return mux
}
