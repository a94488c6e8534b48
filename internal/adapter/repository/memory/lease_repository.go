package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/V4T54L/tenancy-engine/internal/domain"
)

// Journal persists lease snapshots. The wal package provides the file
// implementation.
type Journal interface {
	Append(ctx context.Context, l *domain.Lease) error
	Replay(ctx context.Context, handler func(l *domain.Lease) error) error
	Compact(ctx context.Context, leases []*domain.Lease) error
}

// LeaseRepository implements domain.LeaseRepository in memory. Writes are
// serialised and stored as deep copies; with a journal every write is
// appended to disk before it becomes visible. A housing unit holds at most
// one DRAFT or ACTIVE lease.
type LeaseRepository struct {
	mu      sync.RWMutex
	leases  map[string]*domain.Lease
	journal Journal
	logger  *slog.Logger
}

// NewLeaseRepository creates an empty store. journal may be nil.
func NewLeaseRepository(journal Journal, logger *slog.Logger) *LeaseRepository {
	return &LeaseRepository{
		leases:  make(map[string]*domain.Lease),
		journal: journal,
		logger:  logger,
	}
}

// Restore loads the journal and compacts it to one snapshot per lease.
func (r *LeaseRepository) Restore(ctx context.Context) error {
	if r.journal == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.journal.Replay(ctx, func(l *domain.Lease) error {
		r.leases[l.ID] = l
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay lease journal: %w", err)
	}

	all := make([]*domain.Lease, 0, len(r.leases))
	for _, l := range r.leases {
		all = append(all, l)
	}
	domain.SortLeases(all, domain.Sort{Field: domain.SortCreatedAt})
	if err := r.journal.Compact(ctx, all); err != nil {
		return fmt.Errorf("compact lease journal: %w", err)
	}
	r.logger.Info("restored leases from journal", "count", len(all))
	return nil
}

func (r *LeaseRepository) Create(ctx context.Context, l *domain.Lease) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.leases[l.ID]; exists {
		return fmt.Errorf("lease %s already exists", l.ID)
	}
	if err := r.checkUnit(l); err != nil {
		return err
	}
	stored := l.Clone()
	stored.Version = 1
	if err := r.persist(ctx, stored); err != nil {
		return err
	}
	r.leases[l.ID] = stored
	l.Version = 1
	return nil
}

func (r *LeaseRepository) Update(ctx context.Context, l *domain.Lease) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.leases[l.ID]
	if !ok {
		return domain.NotFoundError("lease", l.ID)
	}
	if cur.Version != l.Version {
		return domain.VersionConflictError(l.ID, l.Version)
	}
	if err := r.checkUnit(l); err != nil {
		return err
	}
	stored := l.Clone()
	stored.Version++
	if err := r.persist(ctx, stored); err != nil {
		return err
	}
	r.leases[l.ID] = stored
	l.Version = stored.Version
	return nil
}

func (r *LeaseRepository) persist(ctx context.Context, l *domain.Lease) error {
	if r.journal == nil {
		return nil
	}
	if err := r.journal.Append(ctx, l); err != nil {
		return fmt.Errorf("journal lease %s: %w", l.ID, err)
	}
	return nil
}

// checkUnit keeps at most one DRAFT or ACTIVE lease per housing unit. It
// must be called with mu held.
func (r *LeaseRepository) checkUnit(l *domain.Lease) error {
	if !l.Status.IsOpen() {
		return nil
	}
	for _, other := range r.leases {
		if other.ID != l.ID && other.HousingUnitID == l.HousingUnitID && other.Status.IsOpen() {
			return &domain.Error{Kind: domain.ErrUnitOccupied, Message: fmt.Sprintf("housing unit %s already has an open lease", l.HousingUnitID)}
		}
	}
	return nil
}

func (r *LeaseRepository) Get(ctx context.Context, id string) (*domain.Lease, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.leases[id]
	if !ok {
		return nil, domain.NotFoundError("lease", id)
	}
	return l.Clone(), nil
}

func (r *LeaseRepository) ListByUnit(ctx context.Context, unitID string) ([]*domain.Lease, error) {
	return r.collect(func(l *domain.Lease) bool { return l.HousingUnitID == unitID }, domain.DefaultSort), nil
}

func (r *LeaseRepository) ListOpen(ctx context.Context) ([]*domain.Lease, error) {
	return r.collect(func(l *domain.Lease) bool { return l.Status.IsOpen() }, domain.Sort{Field: domain.SortCreatedAt}), nil
}

func (r *LeaseRepository) List(ctx context.Context, f domain.LeaseFilter, page domain.PageRequest) ([]*domain.Lease, int, error) {
	all := r.collect(f.Matches, page.Sort)
	// An overflowing offset is a page past the end.
	start := page.Offset()
	if start < 0 || start > len(all) {
		start = len(all)
	}
	end := min(start+page.Size, len(all))
	return all[start:end], len(all), nil
}

func (r *LeaseRepository) ExistsForUnit(ctx context.Context, unitID string, statuses []domain.Status, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.leases {
		if l.ID == excludeID || l.HousingUnitID != unitID {
			continue
		}
		for _, s := range statuses {
			if l.Status == s {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *LeaseRepository) collect(keep func(*domain.Lease) bool, s domain.Sort) []*domain.Lease {
	r.mu.RLock()
	out := make([]*domain.Lease, 0)
	for _, l := range r.leases {
		if keep(l) {
			out = append(out, l.Clone())
		}
	}
	r.mu.RUnlock()
	domain.SortLeases(out, s)
	return out
}
