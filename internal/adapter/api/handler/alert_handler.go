package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/V4T54L/tenancy-engine/internal/domain"
)

// AlertUseCase lists the deadlines due today.
type AlertUseCase interface {
	ListAlerts(ctx context.Context) ([]domain.Alert, error)
}

// AlertHandler handles HTTP requests for lease alerts.
type AlertHandler struct {
	uc     AlertUseCase
	logger *slog.Logger
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(uc AlertUseCase, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{uc: uc, logger: logger}
}

// ListAlerts handles GET /api/v1/leases/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.uc.ListAlerts(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, alerts)
}
