package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// LeaseFilter narrows the global lease list. Zero fields do not filter.
type LeaseFilter struct {
	Statuses      []Status
	Type          LeaseType
	HousingUnitID string
	StartFrom     Date
	StartTo       Date
	EndFrom       Date
	EndTo         Date
	RentMin       *decimal.Decimal
	RentMax       *decimal.Decimal
}

// Matches evaluates the filter against a loaded aggregate. Date bounds are
// inclusive and leases without the date never match a bounded range.
func (f LeaseFilter) Matches(l *Lease) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if l.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Type != "" && l.Type != f.Type {
		return false
	}
	if f.HousingUnitID != "" && l.HousingUnitID != f.HousingUnitID {
		return false
	}
	if !inRange(l.StartDate, f.StartFrom, f.StartTo) || !inRange(l.EndDate(), f.EndFrom, f.EndTo) {
		return false
	}
	rent := l.CurrentRent()
	if f.RentMin != nil && rent.LessThan(*f.RentMin) {
		return false
	}
	if f.RentMax != nil && rent.GreaterThan(*f.RentMax) {
		return false
	}
	return true
}

func inRange(d, from, to Date) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	if d.IsZero() {
		return false
	}
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

// SortField is a sortable column of the lease list.
type SortField string

const (
	SortStartDate   SortField = "startDate"
	SortEndDate     SortField = "endDate"
	SortMonthlyRent SortField = "monthlyRent"
	SortStatus      SortField = "status"
	SortLeaseType   SortField = "leaseType"
	SortCreatedAt   SortField = "createdAt"
)

// Sort is a sort key and direction.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort is startDate descending.
var DefaultSort = Sort{Field: SortStartDate, Desc: true}

// ParseSort reads "field,dir". An empty string yields DefaultSort; the
// direction defaults to ascending.
func ParseSort(s string) (Sort, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultSort, nil
	}
	field, dir, _ := strings.Cut(s, ",")
	out := Sort{Field: SortField(strings.TrimSpace(field))}
	switch out.Field {
	case SortStartDate, SortEndDate, SortMonthlyRent, SortStatus, SortLeaseType, SortCreatedAt:
	default:
		return Sort{}, &Error{Kind: ErrValidationFailed, Message: "invalid sort", Fields: map[string]string{"sort": "unknown field " + field}}
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		out.Desc = true
	default:
		return Sort{}, &Error{Kind: ErrValidationFailed, Message: "invalid sort", Fields: map[string]string{"sort": "direction must be asc or desc"}}
	}
	return out, nil
}

// SortLeases sorts in place. Ties are broken by id so pages are stable.
func SortLeases(leases []*Lease, s Sort) {
	sort.SliceStable(leases, func(i, j int) bool {
		c := compareLeases(leases[i], leases[j], s.Field)
		if c == 0 {
			return leases[i].ID < leases[j].ID
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareLeases(a, b *Lease, f SortField) int {
	switch f {
	case SortEndDate:
		return compareDates(a.EndDate(), b.EndDate())
	case SortMonthlyRent:
		return a.CurrentRent().Cmp(b.CurrentRent())
	case SortStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case SortLeaseType:
		return strings.Compare(string(a.Type), string(b.Type))
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return compareDates(a.StartDate, b.StartDate)
	}
}

// compareDates orders unset dates first.
func compareDates(a, b Date) int {
	switch {
	case a.Equal(b):
		return 0
	case a.Before(b):
		return -1
	default:
		return 1
	}
}

// PageRequest is a 0-based page number and size.
type PageRequest struct {
	Page int
	Size int
	Sort Sort
}

// Offset is the index of the first element of the page.
func (p PageRequest) Offset() int { return p.Page * p.Size }

// Page is one slice of a larger result.
type Page[T any] struct {
	Content       []T  `json:"content"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Number        int  `json:"number"`
	Size          int  `json:"size"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
	Empty         bool `json:"empty"`
}

// NewPage builds the page metadata for content out of total matches.
func NewPage[T any](content []T, total int, req PageRequest) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = (total + req.Size - 1) / req.Size
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Number:        req.Page,
		Size:          req.Size,
		First:         req.Page == 0,
		Last:          req.Page >= pages-1,
		Empty:         len(content) == 0,
	}
}
