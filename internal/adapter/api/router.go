package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/tenancy-engine/internal/adapter/api/handler"
	"github.com/V4T54L/tenancy-engine/internal/adapter/api/middleware"
	"github.com/V4T54L/tenancy-engine/internal/adapter/metrics"
	"github.com/V4T54L/tenancy-engine/internal/pkg/config"
)

// NewRouter creates and configures the main HTTP router for the lease API.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	m *metrics.LeaseMetrics,
	leases handler.LeaseUseCase,
	alerts handler.AlertUseCase,
) http.Handler {
	mux := http.NewServeMux()

	leaseHandler := handler.NewLeaseHandler(leases, logger, cfg.MaxBodyBytes, cfg.DefaultPageSize, cfg.MaxPageSize)
	alertHandler := handler.NewAlertHandler(alerts, logger)

	// Middleware
	auth := middleware.Auth(cfg.APIKeys, logger)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}

	// Leases
	handle("GET /api/v1/leases", leaseHandler.List)
	handle("POST /api/v1/leases", leaseHandler.Create)
	handle("GET /api/v1/leases/alerts", alertHandler.ListAlerts)
	handle("GET /api/v1/leases/{id}", leaseHandler.Get)
	handle("PUT /api/v1/leases/{id}", leaseHandler.Update)
	handle("PATCH /api/v1/leases/{id}/status", leaseHandler.ChangeStatus)
	handle("GET /api/v1/housing-units/{unitId}/leases", leaseHandler.ListByUnit)
	handle("GET /api/v1/lease-types", leaseHandler.LeaseTypes)

	// Roster
	handle("POST /api/v1/leases/{id}/tenants", leaseHandler.AddTenant)
	handle("DELETE /api/v1/leases/{id}/tenants/{personId}", leaseHandler.RemoveTenant)

	// Ledger
	handle("POST /api/v1/leases/{id}/rent-adjustments", leaseHandler.RecordAdjustment)
	handle("GET /api/v1/leases/{id}/rent-adjustments", leaseHandler.History)
	handle("POST /api/v1/leases/{id}/indexations", leaseHandler.RecordIndexation)
	handle("GET /api/v1/leases/{id}/indexations", leaseHandler.IndexationHistory)
	handle("GET /api/v1/leases/{id}/indexations/preview", leaseHandler.PreviewIndexation)

	// Health check
	mux.HandleFunc("GET /api/v1/health", handler.HealthCheck)

	return middleware.Logging(logger, m)(mux)
}
