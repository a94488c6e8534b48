package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/tenancy-engine/internal/adapter/api/handler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewAdminRouter creates the router of the operations listener: Prometheus
// metrics, liveness and readiness of the configured backing stores.
func NewAdminRouter(gatherer prometheus.Gatherer, deps map[string]handler.Pinger, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.HandleFunc("GET /ready", handler.Readiness(deps, logger))

	return mux
}
