package domain

import "context"

// LeaseRepository is the store contract for the lease aggregate. Every
// implementation persists the lease row, its roster and its ledger together.
type LeaseRepository interface {
	// Create inserts a new lease at version 1.
	Create(ctx context.Context, lease *Lease) error

	// Get returns the full aggregate or an ErrNotFound error.
	Get(ctx context.Context, id string) (*Lease, error)

	// Update replaces the lease row and roster and appends ledger entries not
	// yet stored. lease.Version must equal the stored version, otherwise
	// ErrVersionConflict is returned. On success lease.Version is incremented.
	Update(ctx context.Context, lease *Lease) error

	// ListByUnit returns all leases of a housing unit, newest start first.
	ListByUnit(ctx context.Context, unitID string) ([]*Lease, error)

	// List returns one page of leases matching filter and the total match count.
	List(ctx context.Context, filter LeaseFilter, page PageRequest) ([]*Lease, int, error)

	// ListOpen returns every DRAFT or ACTIVE lease.
	ListOpen(ctx context.Context) ([]*Lease, error)

	// ExistsForUnit reports whether unitID has a lease in one of statuses,
	// ignoring excludeID.
	ExistsForUnit(ctx context.Context, unitID string, statuses []Status, excludeID string) (bool, error)
}

// UnitInfo is the display data of a housing unit.
type UnitInfo struct {
	ID           string `json:"id"`
	Number       string `json:"unitNumber"`
	BuildingName string `json:"buildingName"`
}

// Directory resolves opaque unit and person ids to display data. It is only
// used for display joins and never validates ids.
type Directory interface {
	Unit(ctx context.Context, unitID string) (UnitInfo, error)
	PersonNames(ctx context.Context, personIDs []string) (map[string]string, error)
}
