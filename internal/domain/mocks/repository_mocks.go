package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/tenancy-engine/internal/domain"
)

// MockLeaseRepository is a mock implementation of domain.LeaseRepository for testing.
type MockLeaseRepository struct {
	mu      sync.Mutex
	Leases  map[string]*domain.Lease
	Created []*domain.Lease
	Updated []*domain.Lease

	CreateErr error
	GetErr    error
	UpdateErr error
	ListErr   error
	ExistsErr error
	// Occupied forces ExistsForUnit to report true.
	Occupied bool
}

func NewMockLeaseRepository(leases ...*domain.Lease) *MockLeaseRepository {
	m := &MockLeaseRepository{Leases: map[string]*domain.Lease{}}
	for _, l := range leases {
		m.Leases[l.ID] = l.Clone()
	}
	return m
}

func (m *MockLeaseRepository) Create(ctx context.Context, lease *domain.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	lease.Version = 1
	m.Leases[lease.ID] = lease.Clone()
	m.Created = append(m.Created, lease.Clone())
	return nil
}

func (m *MockLeaseRepository) Get(ctx context.Context, id string) (*domain.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	l, ok := m.Leases[id]
	if !ok {
		return nil, domain.NotFoundError("lease", id)
	}
	return l.Clone(), nil
}

func (m *MockLeaseRepository) Update(ctx context.Context, lease *domain.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	cur, ok := m.Leases[lease.ID]
	if !ok {
		return domain.NotFoundError("lease", lease.ID)
	}
	if cur.Version != lease.Version {
		return domain.VersionConflictError(lease.ID, lease.Version)
	}
	lease.Version++
	m.Leases[lease.ID] = lease.Clone()
	m.Updated = append(m.Updated, lease.Clone())
	return nil
}

func (m *MockLeaseRepository) ListByUnit(ctx context.Context, unitID string) ([]*domain.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*domain.Lease
	for _, l := range m.Leases {
		if l.HousingUnitID == unitID {
			out = append(out, l.Clone())
		}
	}
	domain.SortLeases(out, domain.DefaultSort)
	return out, nil
}

func (m *MockLeaseRepository) List(ctx context.Context, filter domain.LeaseFilter, page domain.PageRequest) ([]*domain.Lease, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, 0, m.ListErr
	}
	var all []*domain.Lease
	for _, l := range m.Leases {
		if filter.Matches(l) {
			all = append(all, l.Clone())
		}
	}
	domain.SortLeases(all, page.Sort)
	start := page.Offset()
	if start < 0 || start > len(all) {
		start = len(all)
	}
	end := min(start+page.Size, len(all))
	return all[start:end], len(all), nil
}

func (m *MockLeaseRepository) ListOpen(ctx context.Context) ([]*domain.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*domain.Lease
	for _, l := range m.Leases {
		if l.Status.IsOpen() {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (m *MockLeaseRepository) ExistsForUnit(ctx context.Context, unitID string, statuses []domain.Status, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	if m.Occupied {
		return true, nil
	}
	for _, l := range m.Leases {
		if l.HousingUnitID != unitID || l.ID == excludeID {
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

// MockDirectory is a mock implementation of domain.Directory for testing.
type MockDirectory struct {
	Units  map[string]domain.UnitInfo
	People map[string]string
	Err    error
}

func (m *MockDirectory) Unit(ctx context.Context, unitID string) (domain.UnitInfo, error) {
	if m.Err != nil {
		return domain.UnitInfo{}, m.Err
	}
	if u, ok := m.Units[unitID]; ok {
		return u, nil
	}
	return domain.UnitInfo{ID: unitID, Number: unitID}, nil
}

func (m *MockDirectory) PersonNames(ctx context.Context, personIDs []string) (map[string]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]string, len(personIDs))
	for _, id := range personIDs {
		if n, ok := m.People[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}
