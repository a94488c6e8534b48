package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newLease(id, unit string, status domain.Status, start domain.Date, rent string) *domain.Lease {
	return &domain.Lease{
		ID:             id,
		HousingUnitID:  unit,
		Status:         status,
		Type:           domain.LeaseTypeMainResidence3Y,
		StartDate:      start,
		DurationMonths: 36,
		InitialRent:    decimal.RequireFromString(rent),
		Tenants:        []domain.Tenant{{PersonID: "p-" + id, Role: domain.RolePrimary}},
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// fakeJournal records appends in memory.
type fakeJournal struct {
	appended []*domain.Lease
	replay   []*domain.Lease
	compact  []*domain.Lease
	err      error
}

func (f *fakeJournal) Append(_ context.Context, l *domain.Lease) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, l.Clone())
	return nil
}

func (f *fakeJournal) Replay(_ context.Context, h func(*domain.Lease) error) error {
	for _, l := range f.replay {
		if err := h(l.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeJournal) Compact(_ context.Context, leases []*domain.Lease) error {
	f.compact = leases
	return nil
}

func TestLeaseRepository_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewLeaseRepository(nil, discard)

	l := newLease("l1", "u1", domain.StatusDraft, domain.NewDate(2024, 2, 1), "700")
	require.NoError(t, repo.Create(ctx, l))
	assert.Equal(t, int64(1), l.Version)

	got, err := repo.Get(ctx, "l1")
	require.NoError(t, err)
	got.Tenants[0].PersonID = "mutated"

	again, err := repo.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "p-l1", again.Tenants[0].PersonID, "stored lease must not share state")

	again.Status = domain.StatusActive
	require.NoError(t, repo.Update(ctx, again))
	assert.Equal(t, int64(2), again.Version)

	stale := got
	stale.Status = domain.StatusCancelled
	assert.ErrorIs(t, repo.Update(ctx, stale), domain.ErrVersionConflict)

	_, err = repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, newLease("nope", "u1", domain.StatusDraft, domain.Date{}, "1")), domain.ErrNotFound)
}

func TestLeaseRepository_OneOpenLeasePerUnit(t *testing.T) {
	ctx := context.Background()
	repo := NewLeaseRepository(nil, discard)

	first := newLease("l1", "u1", domain.StatusActive, domain.NewDate(2024, 2, 1), "700")
	require.NoError(t, repo.Create(ctx, first))
	second := newLease("l2", "u1", domain.StatusDraft, domain.NewDate(2025, 2, 1), "700")
	assert.ErrorIs(t, repo.Create(ctx, second), domain.ErrUnitOccupied)

	first.Status = domain.StatusFinished
	require.NoError(t, repo.Update(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	second.Status = domain.StatusActive
	require.NoError(t, repo.Update(ctx, second))

	exists, err := repo.ExistsForUnit(ctx, "u1", []domain.Status{domain.StatusActive}, "l2")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = repo.ExistsForUnit(ctx, "u1", []domain.Status{domain.StatusDraft, domain.StatusActive}, "")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLeaseRepository_ConcurrentDraftsOnOneUnit(t *testing.T) {
	ctx := context.Background()
	repo := NewLeaseRepository(nil, discard)

	const n = 8
	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := newLease(fmt.Sprintf("d%d", i), "u9", domain.StatusDraft, domain.NewDate(2025, 1, 1), "700")
			if err := repo.Create(ctx, l); err == nil {
				created.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrUnitOccupied)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}

func TestLeaseRepository_Lists(t *testing.T) {
	ctx := context.Background()
	repo := NewLeaseRepository(nil, discard)
	require.NoError(t, repo.Create(ctx, newLease("a", "u1", domain.StatusFinished, domain.NewDate(2020, 1, 1), "500")))
	require.NoError(t, repo.Create(ctx, newLease("b", "u1", domain.StatusActive, domain.NewDate(2023, 1, 1), "650")))
	require.NoError(t, repo.Create(ctx, newLease("c", "u2", domain.StatusDraft, domain.NewDate(2024, 1, 1), "900")))

	byUnit, err := repo.ListByUnit(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byUnit, 2)
	assert.Equal(t, "b", byUnit[0].ID, "newest start first")

	open, err := repo.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	page, total, err := repo.List(ctx, domain.LeaseFilter{}, domain.PageRequest{Page: 1, Size: 2, Sort: domain.Sort{Field: domain.SortMonthlyRent}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)

	page, total, err = repo.List(ctx, domain.LeaseFilter{Statuses: []domain.Status{domain.StatusActive}}, domain.PageRequest{Page: 5, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, page)

	page, total, err = repo.List(ctx, domain.LeaseFilter{}, domain.PageRequest{Page: math.MaxInt / 10, Size: 20})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, page, "an offset that overflows is past the end")
}

func TestLeaseRepository_Journal(t *testing.T) {
	ctx := context.Background()
	j := &fakeJournal{}
	repo := NewLeaseRepository(j, discard)

	l := newLease("l1", "u1", domain.StatusDraft, domain.NewDate(2024, 2, 1), "700")
	require.NoError(t, repo.Create(ctx, l))
	require.Len(t, j.appended, 1)
	assert.Equal(t, int64(1), j.appended[0].Version)

	j.err = errors.New("disk full")
	l.Status = domain.StatusActive
	assert.Error(t, repo.Update(ctx, l))
	stored, err := repo.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, stored.Status, "failed journal write must not change state")
	assert.Equal(t, int64(1), l.Version)
}

func TestLeaseRepository_Restore(t *testing.T) {
	ctx := context.Background()
	v1 := newLease("l1", "u1", domain.StatusDraft, domain.NewDate(2024, 2, 1), "700")
	v1.Version = 1
	v2 := v1.Clone()
	v2.Status = domain.StatusActive
	v2.Version = 2
	j := &fakeJournal{replay: []*domain.Lease{v1, v2, newLease("l2", "u2", domain.StatusDraft, domain.Date{}, "1")}}

	repo := NewLeaseRepository(j, discard)
	require.NoError(t, repo.Restore(ctx))

	got, err := repo.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, int64(2), got.Version)
	assert.Len(t, j.compact, 2)
}
