package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/V4T54L/tenancy-engine/internal/usecase"
	"github.com/shopspring/decimal"
)

// LeaseUseCase is the lease API surface served over HTTP.
type LeaseUseCase interface {
	Get(ctx context.Context, id string) (*usecase.LeaseView, error)
	ListByUnit(ctx context.Context, unitID string) ([]domain.LeaseSummary, error)
	List(ctx context.Context, f domain.LeaseFilter, page domain.PageRequest) (domain.Page[domain.LeaseSummary], error)
	Create(ctx context.Context, in domain.CreateLeaseInput, activate bool) (*usecase.LeaseView, error)
	Update(ctx context.Context, id string, in domain.LeaseInput, expectedVersion *int64) (*usecase.LeaseView, error)
	ChangeStatus(ctx context.Context, id, target string, expectedVersion *int64) (*usecase.LeaseView, error)
	AddTenant(ctx context.Context, id, personID, role string, expectedVersion *int64) (*usecase.LeaseView, error)
	RemoveTenant(ctx context.Context, id, personID string, expectedVersion *int64) (*usecase.LeaseView, error)
	RecordAdjustment(ctx context.Context, id string, in domain.AdjustmentInput, expectedVersion *int64) (*usecase.AdjustmentView, error)
	RecordIndexation(ctx context.Context, id string, in domain.IndexationInput, expectedVersion *int64) (*usecase.AdjustmentView, error)
	History(ctx context.Context, id, field string) (*usecase.AdjustmentHistory, error)
	IndexationHistory(ctx context.Context, id string) ([]usecase.AdjustmentView, error)
	PreviewIndexation(ctx context.Context, id string, newIndex decimal.Decimal) (*usecase.IndexationPreview, error)
	LeaseTypes() []domain.LeaseTypeDefaults
}

// LeaseHandler handles HTTP requests for leases, their roster and ledger.
type LeaseHandler struct {
	uc           LeaseUseCase
	logger       *slog.Logger
	maxBodyBytes int64
	defaultSize  int
	maxSize      int
}

// NewLeaseHandler creates a new LeaseHandler.
func NewLeaseHandler(uc LeaseUseCase, logger *slog.Logger, maxBodyBytes int64, defaultPageSize, maxPageSize int) *LeaseHandler {
	return &LeaseHandler{
		uc:           uc,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
		defaultSize:  defaultPageSize,
		maxSize:      maxPageSize,
	}
}

type statusRequest struct {
	TargetStatus string `json:"targetStatus"`
}

type tenantRequest struct {
	PersonID string `json:"personId"`
	Role     string `json:"role"`
}

type adjustmentRequest struct {
	Field         string          `json:"field"`
	NewValue      decimal.Decimal `json:"newValue"`
	Reason        string          `json:"reason"`
	EffectiveDate domain.Date     `json:"effectiveDate"`
}

type indexationRequest struct {
	ApplicationDate      domain.Date     `json:"applicationDate"`
	NewIndexValue        decimal.Decimal `json:"newIndexValue"`
	NewIndexMonth        domain.Date     `json:"newIndexMonth"`
	AppliedRent          decimal.Decimal `json:"appliedRent"`
	NotificationSentDate domain.Date     `json:"notificationSentDate"`
	Notes                string          `json:"notes"`
}

// Get handles GET /api/v1/leases/{id}
func (h *LeaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.uc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithLease(w, h.logger, http.StatusOK, v.Version, v)
}

// ListByUnit handles GET /api/v1/housing-units/{unitId}/leases
func (h *LeaseHandler) ListByUnit(w http.ResponseWriter, r *http.Request) {
	leases, err := h.uc.ListByUnit(r.Context(), r.PathValue("unitId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, leases)
}

// List handles GET /api/v1/leases?status=&leaseType=&...&sort=startDate,desc&page=0&size=20
func (h *LeaseHandler) List(w http.ResponseWriter, r *http.Request) {
	f, page, err := parseListQuery(r.URL.Query(), h.defaultSize, h.maxSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.uc.List(r.Context(), f, page)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, result)
}

// Create handles POST /api/v1/leases?activate=true
func (h *LeaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateLeaseInput
	if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	activate := r.URL.Query().Get("activate") == "true"

	v, err := h.uc.Create(r.Context(), in, activate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/v1/leases/"+v.ID)
	respondWithLease(w, h.logger, http.StatusCreated, v.Version, v)
}

// Update handles PUT /api/v1/leases/{id}
func (h *LeaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	expected, err := expectedVersion(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var in domain.LeaseInput
	if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	v, err := h.uc.Update(r.Context(), r.PathValue("id"), in, expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithLease(w, h.logger, http.StatusOK, v.Version, v)
}

// ChangeStatus handles PATCH /api/v1/leases/{id}/status
func (h *LeaseHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	expected, err := expectedVersion(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.TargetStatus == "" {
		writeError(w, h.logger, badRequest("targetStatus", "is required"))
		return
	}

	v, err := h.uc.ChangeStatus(r.Context(), r.PathValue("id"), req.TargetStatus, expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithLease(w, h.logger, http.StatusOK, v.Version, v)
}

// AddTenant handles POST /api/v1/leases/{id}/tenants
func (h *LeaseHandler) AddTenant(w http.ResponseWriter, r *http.Request) {
	expected, err := expectedVersion(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req tenantRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	v, err := h.uc.AddTenant(r.Context(), r.PathValue("id"), req.PersonID, req.Role, expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithLease(w, h.logger, http.StatusOK, v.Version, v)
}

// RemoveTenant handles DELETE /api/v1/leases/{id}/tenants/{personId}
func (h *LeaseHandler) RemoveTenant(w http.ResponseWriter, r *http.Request) {
	expected, err := expectedVersion(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	v, err := h.uc.RemoveTenant(r.Context(), r.PathValue("id"), r.PathValue("personId"), expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithLease(w, h.logger, http.StatusOK, v.Version, v)
}

// RecordAdjustment handles POST /api/v1/leases/{id}/rent-adjustments
func (h *LeaseHandler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	expected, err := expectedVersion(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req adjustmentRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	adj, err := h.uc.RecordAdjustment(r.Context(), r.PathValue("id"), domain.AdjustmentInput{
		Field:         req.Field,
		NewValue:      req.NewValue,
		Reason:        req.Reason,
		EffectiveDate: req.EffectiveDate,
	}, expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, adj)
}

// History handles GET /api/v1/leases/{id}/rent-adjustments?field=RENT
func (h *LeaseHandler) History(w http.ResponseWriter, r *http.Request) {
	hist, err := h.uc.History(r.Context(), r.PathValue("id"), r.URL.Query().Get("field"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, hist)
}

// RecordIndexation handles POST /api/v1/leases/{id}/indexations
func (h *LeaseHandler) RecordIndexation(w http.ResponseWriter, r *http.Request) {
	expected, err := expectedVersion(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req indexationRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	adj, err := h.uc.RecordIndexation(r.Context(), r.PathValue("id"), domain.IndexationInput{
		ApplicationDate:      req.ApplicationDate,
		NewIndexValue:        req.NewIndexValue,
		NewIndexMonth:        req.NewIndexMonth,
		AppliedRent:          req.AppliedRent,
		NotificationSentDate: req.NotificationSentDate,
		Notes:                req.Notes,
	}, expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, adj)
}

// IndexationHistory handles GET /api/v1/leases/{id}/indexations
func (h *LeaseHandler) IndexationHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.uc.IndexationHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, hist)
}

// PreviewIndexation handles GET /api/v1/leases/{id}/indexations/preview?newIndexValue=125.3
func (h *LeaseHandler) PreviewIndexation(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("newIndexValue")
	if raw == "" {
		writeError(w, h.logger, badRequest("newIndexValue", "is required"))
		return
	}
	newIndex, err := decimal.NewFromString(raw)
	if err != nil {
		writeError(w, h.logger, badRequest("newIndexValue", "must be a number"))
		return
	}

	p, err := h.uc.PreviewIndexation(r.Context(), r.PathValue("id"), newIndex)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, p)
}

// LeaseTypes handles GET /api/v1/lease-types
func (h *LeaseHandler) LeaseTypes(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, h.uc.LeaseTypes())
}
