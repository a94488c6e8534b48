package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/V4T54L/tenancy-engine/internal/adapter/metrics"
	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Options tunes a LeaseService. Zero values fall back to defaults.
type Options struct {
	Location             *time.Location
	IndexationNoticeDays int
	Metrics              *metrics.LeaseMetrics
	NewID                func() string
}

// LeaseService is the single mutating entry point for leases. Each mutation
// loads the aggregate, applies the change to a copy and persists it with
// one Update call.
type LeaseService struct {
	repo       domain.LeaseRepository
	dir        domain.Directory
	clock      domain.Clock
	logger     *slog.Logger
	loc        *time.Location
	noticeDays int
	metrics    *metrics.LeaseMetrics
	newID      func() string
}

// NewLeaseService creates a new LeaseService.
func NewLeaseService(repo domain.LeaseRepository, dir domain.Directory, clock domain.Clock, logger *slog.Logger, opts Options) *LeaseService {
	s := &LeaseService{
		repo:       repo,
		dir:        dir,
		clock:      clock,
		logger:     logger,
		loc:        opts.Location,
		noticeDays: opts.IndexationNoticeDays,
		metrics:    opts.Metrics,
		newID:      opts.NewID,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.noticeDays <= 0 {
		s.noticeDays = domain.DefaultIndexationNoticeDays
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *LeaseService) today() domain.Date {
	return domain.Today(s.clock, s.loc)
}

// LeaseTypes returns the duration and notice defaults per lease type.
func (s *LeaseService) LeaseTypes() []domain.LeaseTypeDefaults {
	return domain.AllLeaseTypeDefaults()
}

// Get returns the full view of a lease.
func (s *LeaseService) Get(ctx context.Context, id string) (*LeaseView, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, l), nil
}

// ListByUnit returns the summaries of every lease of a housing unit, newest
// start first.
func (s *LeaseService) ListByUnit(ctx context.Context, unitID string) ([]domain.LeaseSummary, error) {
	leases, err := s.repo.ListByUnit(ctx, unitID)
	if err != nil {
		s.logger.Error("failed to list leases by unit", "error", err, "housing_unit_id", unitID)
		return nil, err
	}
	return s.summaries(ctx, leases), nil
}

// List returns one page of the filtered global lease list.
func (s *LeaseService) List(ctx context.Context, f domain.LeaseFilter, page domain.PageRequest) (domain.Page[domain.LeaseSummary], error) {
	leases, total, err := s.repo.List(ctx, f, page)
	if err != nil {
		s.logger.Error("failed to list leases", "error", err)
		return domain.Page[domain.LeaseSummary]{}, err
	}
	return domain.NewPage(s.summaries(ctx, leases), total, page), nil
}

// Create stores a new DRAFT lease, or an ACTIVE one when activate is set.
func (s *LeaseService) Create(ctx context.Context, in domain.CreateLeaseInput, activate bool) (*LeaseView, error) {
	now := s.clock.Now()
	l, err := domain.NewLease(s.newID(), in, s.noticeDays, now)
	if err != nil {
		s.reject("create", "", err)
		return nil, err
	}

	occupied, err := s.repo.ExistsForUnit(ctx, l.HousingUnitID, []domain.Status{domain.StatusDraft, domain.StatusActive}, "")
	if err != nil {
		s.logger.Error("failed to check unit occupancy", "error", err, "housing_unit_id", l.HousingUnitID)
		return nil, err
	}
	if occupied {
		err := unitOccupied(l.HousingUnitID, "an open lease")
		s.reject("create", "", err)
		return nil, err
	}

	if activate {
		if err := l.Transition(string(domain.StatusActive)); err != nil {
			s.reject("create", "", err)
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, l); err != nil {
		s.fail("create", l.ID, err)
		return nil, err
	}
	if activate && s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(domain.StatusDraft), string(domain.StatusActive)).Inc()
	}
	s.logger.Info("lease created", "lease_id", l.ID, "housing_unit_id", l.HousingUnitID, "status", l.Status)
	return s.view(ctx, l), nil
}

// Update replaces every editable field of an open lease.
func (s *LeaseService) Update(ctx context.Context, id string, in domain.LeaseInput, expectedVersion *int64) (*LeaseView, error) {
	l, err := s.mutate(ctx, "update", id, expectedVersion, func(l *domain.Lease, _ time.Time) error {
		prevUnit := l.HousingUnitID
		if err := l.ApplyUpdate(in, s.noticeDays); err != nil {
			return err
		}
		if l.HousingUnitID == prevUnit {
			return nil
		}
		return s.ensureUnitFree(ctx, l.HousingUnitID, l.ID, domain.StatusDraft, domain.StatusActive)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("lease updated", "lease_id", id, "version", l.Version)
	return s.view(ctx, l), nil
}

// ChangeStatus runs the state machine towards target.
func (s *LeaseService) ChangeStatus(ctx context.Context, id, target string, expectedVersion *int64) (*LeaseView, error) {
	var from domain.Status
	l, err := s.mutate(ctx, "change_status", id, expectedVersion, func(l *domain.Lease, _ time.Time) error {
		from = l.Status
		if err := l.Transition(target); err != nil {
			return err
		}
		if l.Status == domain.StatusActive {
			return s.ensureUnitFree(ctx, l.HousingUnitID, l.ID, domain.StatusActive)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(from), string(l.Status)).Inc()
	}
	s.logger.Info("lease status changed", "lease_id", id, "from", from, "to", l.Status)
	return s.view(ctx, l), nil
}

// AddTenant attaches a person to the roster.
func (s *LeaseService) AddTenant(ctx context.Context, id, personID, role string, expectedVersion *int64) (*LeaseView, error) {
	l, err := s.mutate(ctx, "add_tenant", id, expectedVersion, func(l *domain.Lease, now time.Time) error {
		return l.AddTenant(personID, role, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tenant added", "lease_id", id, "person_id", personID)
	return s.view(ctx, l), nil
}

// RemoveTenant detaches a person from the roster.
func (s *LeaseService) RemoveTenant(ctx context.Context, id, personID string, expectedVersion *int64) (*LeaseView, error) {
	l, err := s.mutate(ctx, "remove_tenant", id, expectedVersion, func(l *domain.Lease, _ time.Time) error {
		return l.RemoveTenant(personID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tenant removed", "lease_id", id, "person_id", personID)
	return s.view(ctx, l), nil
}

// RecordAdjustment appends a negotiated rent or charges change.
func (s *LeaseService) RecordAdjustment(ctx context.Context, id string, in domain.AdjustmentInput, expectedVersion *int64) (*AdjustmentView, error) {
	var adj domain.Adjustment
	_, err := s.mutate(ctx, "record_adjustment", id, expectedVersion, func(l *domain.Lease, now time.Time) error {
		var err error
		adj, err = l.RecordAdjustment(in, s.newID(), now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.LedgerEntriesTotal.WithLabelValues("adjustment", string(adj.Field)).Inc()
	}
	s.logger.Info("adjustment recorded", "lease_id", id, "field", adj.Field, "old_value", adj.OldValue, "new_value", adj.NewValue)
	return &AdjustmentView{Adjustment: adj, Change: domain.ComputeChange(adj.OldValue, adj.NewValue)}, nil
}

// RecordIndexation appends an index-driven rent change.
func (s *LeaseService) RecordIndexation(ctx context.Context, id string, in domain.IndexationInput, expectedVersion *int64) (*AdjustmentView, error) {
	var adj domain.Adjustment
	_, err := s.mutate(ctx, "record_indexation", id, expectedVersion, func(l *domain.Lease, now time.Time) error {
		var err error
		adj, err = l.RecordIndexation(in, s.newID(), now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.LedgerEntriesTotal.WithLabelValues("indexation", string(adj.Field)).Inc()
	}
	s.logger.Info("indexation recorded", "lease_id", id, "old_rent", adj.OldValue, "applied_rent", adj.NewValue)
	return &AdjustmentView{Adjustment: adj, Change: domain.ComputeChange(adj.OldValue, adj.NewValue)}, nil
}

// History returns the ledger of one field, or of both when field is empty.
func (s *LeaseService) History(ctx context.Context, id, field string) (*AdjustmentHistory, error) {
	var f domain.Field
	if field != "" {
		var ok bool
		if f, ok = domain.ParseField(field); !ok {
			v := domain.ValidationErrors{}
			v.Add("field", "must be RENT or CHARGES")
			return nil, v.Err()
		}
	}
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	h := &AdjustmentHistory{Field: f, Entries: adjustmentViews(l.History(f))}
	if f != "" {
		c := l.CumulativeChange(f)
		h.Cumulative = &c
	}
	return h, nil
}

// IndexationHistory returns the indexations of a lease, most recent first.
func (s *LeaseService) IndexationHistory(ctx context.Context, id string) ([]AdjustmentView, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return adjustmentViews(l.IndexationHistory()), nil
}

// PreviewIndexation computes the indexed rent for newIndex without
// recording anything.
func (s *LeaseService) PreviewIndexation(ctx context.Context, id string, newIndex decimal.Decimal) (*IndexationPreview, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	suggested, err := l.SuggestIndexedRent(newIndex)
	if err != nil {
		return nil, err
	}
	return &IndexationPreview{
		LeaseID:       l.ID,
		BaseRent:      l.InitialRent,
		BaseIndex:     *l.BaseIndexValue,
		NewIndex:      newIndex,
		SuggestedRent: suggested,
		CurrentRent:   l.CurrentRent(),
		Change:        domain.ComputeChange(l.CurrentRent(), suggested),
	}, nil
}

// mutate is the load, apply-to-copy, persist cycle shared by every write.
func (s *LeaseService) mutate(ctx context.Context, op, id string, expectedVersion *int64, apply func(l *domain.Lease, now time.Time) error) (*domain.Lease, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.fail(op, id, err)
		}
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != cur.Version {
		err := domain.VersionConflictError(id, *expectedVersion)
		s.reject(op, id, err)
		return nil, err
	}

	next := cur.Clone()
	now := s.clock.Now()
	if err := apply(next, now); err != nil {
		s.reject(op, id, err)
		return nil, err
	}
	next.UpdatedAt = now.UTC()

	if err := s.repo.Update(ctx, next); err != nil {
		s.fail(op, id, err)
		return nil, err
	}
	return next, nil
}

func (s *LeaseService) ensureUnitFree(ctx context.Context, unitID, leaseID string, statuses ...domain.Status) error {
	occupied, err := s.repo.ExistsForUnit(ctx, unitID, statuses, leaseID)
	if err != nil {
		return err
	}
	if occupied {
		what := "an open lease"
		if len(statuses) == 1 && statuses[0] == domain.StatusActive {
			what = "an active lease"
		}
		return unitOccupied(unitID, what)
	}
	return nil
}

func unitOccupied(unitID, what string) error {
	return &domain.Error{Kind: domain.ErrUnitOccupied, Message: "housing unit " + unitID + " already has " + what}
}

// reject records an operation refused by a business rule.
func (s *LeaseService) reject(op, id string, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		s.fail(op, id, err)
		return
	}
	if s.metrics != nil {
		s.metrics.DomainErrorsTotal.WithLabelValues(kind).Inc()
	}
	s.logger.Info("lease operation rejected", "op", op, "lease_id", id, "kind", kind, "reason", err.Error())
}

// fail records a store failure; domain errors raised by the store are
// treated as rejections.
func (s *LeaseService) fail(op, id string, err error) {
	if kind := domain.KindOf(err); kind != "" {
		if s.metrics != nil {
			s.metrics.DomainErrorsTotal.WithLabelValues(kind).Inc()
		}
		s.logger.Info("lease operation rejected", "op", op, "lease_id", id, "kind", kind, "reason", err.Error())
		return
	}
	s.logger.Error("lease operation failed", "op", op, "lease_id", id, "error", err)
}

func (s *LeaseService) view(ctx context.Context, l *domain.Lease) *LeaseView {
	unit, names := s.lookup(ctx, l.HousingUnitID, domain.TenantIDs(l.Tenants))
	tenants := make([]TenantView, len(l.Tenants))
	for i, t := range l.Tenants {
		tenants[i] = TenantView{Tenant: t, DisplayName: displayName(names, t.PersonID)}
	}
	return &LeaseView{
		Lease:             l,
		HousingUnitNumber: unit.Number,
		BuildingName:      unit.BuildingName,
		EndDate:           l.EndDate(),
		CurrentRent:       l.CurrentRent(),
		CurrentCharges:    l.CurrentCharges(),
		TotalRent:         l.TotalRent(),
		Tenants:           tenants,
		Ledger:            l.History(""),
		RentChange:        l.CumulativeChange(domain.FieldRent),
		ChargesChange:     l.CumulativeChange(domain.FieldCharges),
		AlertState:        l.EvaluateAlerts(s.today(), s.noticeDays),
	}
}

func (s *LeaseService) summaries(ctx context.Context, leases []*domain.Lease) []domain.LeaseSummary {
	today := s.today()
	out := make([]domain.LeaseSummary, len(leases))
	for i, l := range leases {
		unit, names := s.lookup(ctx, l.HousingUnitID, domain.TenantIDs(l.Tenants, domain.RolePrimary, domain.RoleCoTenant))
		out[i] = domain.Summarize(l, unit, names, today, s.noticeDays)
	}
	return out
}

// lookup resolves display data. Failures degrade to ids; display joins
// never fail an operation.
func (s *LeaseService) lookup(ctx context.Context, unitID string, personIDs []string) (domain.UnitInfo, map[string]string) {
	return resolve(ctx, s.dir, s.logger, unitID, personIDs)
}

func resolve(ctx context.Context, dir domain.Directory, logger *slog.Logger, unitID string, personIDs []string) (domain.UnitInfo, map[string]string) {
	unit, err := dir.Unit(ctx, unitID)
	if err != nil {
		logger.Warn("failed to resolve housing unit", "error", err, "housing_unit_id", unitID)
		unit = domain.UnitInfo{ID: unitID, Number: unitID}
	}
	names := map[string]string{}
	if len(personIDs) > 0 {
		if names, err = dir.PersonNames(ctx, personIDs); err != nil {
			logger.Warn("failed to resolve person names", "error", err)
			names = map[string]string{}
		}
	}
	return unit, names
}

func displayName(names map[string]string, id string) string {
	if n := names[id]; n != "" {
		return n
	}
	return id
}
