package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/tenancy-engine/internal/adapter/metrics"
	"github.com/V4T54L/tenancy-engine/internal/domain"
)

// AlertService evaluates the deadlines of every open lease.
type AlertService struct {
	repo       domain.LeaseRepository
	dir        domain.Directory
	clock      domain.Clock
	logger     *slog.Logger
	loc        *time.Location
	noticeDays int
	metrics    *metrics.LeaseMetrics
}

// NewAlertService creates a new AlertService. Only Location,
// IndexationNoticeDays and Metrics are read from opts.
func NewAlertService(repo domain.LeaseRepository, dir domain.Directory, clock domain.Clock, logger *slog.Logger, opts Options) *AlertService {
	s := &AlertService{
		repo:       repo,
		dir:        dir,
		clock:      clock,
		logger:     logger,
		loc:        opts.Location,
		noticeDays: opts.IndexationNoticeDays,
		metrics:    opts.Metrics,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.noticeDays <= 0 {
		s.noticeDays = domain.DefaultIndexationNoticeDays
	}
	return s
}

// ListAlerts returns the active alerts for today, ordered by deadline. Every
// lease is evaluated against the same day.
func (s *AlertService) ListAlerts(ctx context.Context) ([]domain.Alert, error) {
	today := domain.Today(s.clock, s.loc)

	leases, err := s.repo.ListOpen(ctx)
	if err != nil {
		s.logger.Error("failed to list open leases", "error", err)
		return nil, err
	}

	alerts := []domain.Alert{}
	for _, l := range leases {
		found := l.Alerts(today, s.noticeDays)
		if len(found) == 0 {
			continue
		}
		unit, names := resolve(ctx, s.dir, s.logger, l.HousingUnitID, domain.TenantIDs(l.Tenants, domain.RolePrimary, domain.RoleCoTenant))
		tenantNames := domain.DisplayNames(l.Tenants, names)
		for _, a := range found {
			a.HousingUnitNumber = unit.Number
			a.BuildingName = unit.BuildingName
			a.TenantNames = tenantNames
			alerts = append(alerts, a)
		}
	}
	domain.SortAlerts(alerts)

	if s.metrics != nil {
		counts := map[domain.AlertType]int{domain.AlertIndexation: 0, domain.AlertEndNotice: 0}
		for _, a := range alerts {
			counts[a.Type]++
		}
		for t, n := range counts {
			s.metrics.ActiveAlerts.WithLabelValues(string(t)).Set(float64(n))
		}
	}
	s.logger.Debug("alerts evaluated", "date", today, "open_leases", len(leases), "alerts", len(alerts))
	return alerts, nil
}
