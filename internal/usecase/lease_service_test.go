package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/V4T54L/tenancy-engine/internal/adapter/metrics"
	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/V4T54L/tenancy-engine/internal/domain/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	testClock  = domain.FixedClock{T: time.Date(2024, 12, 10, 8, 30, 0, 0, time.UTC)}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func version(v int64) *int64 { return &v }

func mustDate(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// storedLease is an active nine-year lease on unit-1 started 2024-01-15.
func storedLease(id string) *domain.Lease {
	return &domain.Lease{
		ID:                   id,
		HousingUnitID:        "unit-1",
		Status:               domain.StatusActive,
		Type:                 domain.LeaseTypeMainResidence9Y,
		StartDate:            mustDate("2024-01-15"),
		DurationMonths:       108,
		NoticePeriodMonths:   3,
		InitialRent:          dec("800.00"),
		InitialCharges:       dec("50.00"),
		ChargesType:          domain.ChargesFlatFee,
		BaseIndexValue:       decPtr("120.5000"),
		BaseIndexMonth:       mustDate("2023-12-01"),
		IndexationNoticeDays: 30,
		Tenants:              []domain.Tenant{{PersonID: "p1", Role: domain.RolePrimary}},
		Version:              1,
	}
}

func createInput(unitID string, tenants ...domain.TenantInput) domain.CreateLeaseInput {
	return domain.CreateLeaseInput{
		LeaseInput: domain.LeaseInput{
			HousingUnitID:  unitID,
			Type:           domain.LeaseTypeMainResidence3Y,
			StartDate:      mustDate("2025-01-01"),
			InitialRent:    dec("950"),
			InitialCharges: dec("75.5"),
		},
		Tenants: tenants,
	}
}

func newTestService(repo domain.LeaseRepository, dir domain.Directory, m *metrics.LeaseMetrics) *LeaseService {
	n := 0
	return NewLeaseService(repo, dir, testClock, testLogger, Options{
		Location:             time.UTC,
		IndexationNoticeDays: 30,
		Metrics:              m,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
}

func TestLeaseService_Create(t *testing.T) {
	dir := &mocks.MockDirectory{
		Units:  map[string]domain.UnitInfo{"unit-2": {ID: "unit-2", Number: "2B", BuildingName: "Residence Nord"}},
		People: map[string]string{"p1": "Alice Martin"},
	}

	t.Run("Draft With Defaults", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository()
		svc := newTestService(repo, dir, nil)

		v, err := svc.Create(context.Background(), createInput("unit-2", domain.TenantInput{PersonID: "p1"}), false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v.Status != domain.StatusDraft {
			t.Errorf("expected status DRAFT, got %s", v.Status)
		}
		if v.DurationMonths != 36 || v.NoticePeriodMonths != 3 {
			t.Errorf("expected lease type defaults 36/3, got %d/%d", v.DurationMonths, v.NoticePeriodMonths)
		}
		if !v.InitialCharges.Equal(dec("75.50")) {
			t.Errorf("expected charges 75.50, got %s", v.InitialCharges)
		}
		if v.HousingUnitNumber != "2B" || v.BuildingName != "Residence Nord" {
			t.Errorf("expected unit display data, got %q %q", v.HousingUnitNumber, v.BuildingName)
		}
		if len(v.Tenants) != 1 || v.Tenants[0].Role != domain.RolePrimary || v.Tenants[0].DisplayName != "Alice Martin" {
			t.Errorf("expected one named primary tenant, got %+v", v.Tenants)
		}
		if len(repo.Created) != 1 {
			t.Errorf("expected 1 lease created, got %d", len(repo.Created))
		}
	})

	t.Run("Activate Immediately", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository()
		reg := prometheus.NewRegistry()
		m := metrics.NewLeaseMetrics(reg)
		svc := newTestService(repo, dir, m)

		v, err := svc.Create(context.Background(), createInput("unit-2", domain.TenantInput{PersonID: "p1"}), true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v.Status != domain.StatusActive {
			t.Errorf("expected status ACTIVE, got %s", v.Status)
		}
		if got := testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("DRAFT", "ACTIVE")); got != 1 {
			t.Errorf("expected 1 transition counted, got %v", got)
		}
	})

	t.Run("Activate Without Primary", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository()
		svc := newTestService(repo, dir, nil)

		_, err := svc.Create(context.Background(), createInput("unit-2"), true)
		if !errors.Is(err, domain.ErrValidationFailed) {
			t.Fatalf("expected ValidationFailed, got %v", err)
		}
		if len(repo.Created) != 0 {
			t.Errorf("expected nothing created, got %d", len(repo.Created))
		}
	})

	t.Run("Unit Occupied", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(storedLease("existing"))
		reg := prometheus.NewRegistry()
		m := metrics.NewLeaseMetrics(reg)
		svc := newTestService(repo, dir, m)

		_, err := svc.Create(context.Background(), createInput("unit-1", domain.TenantInput{PersonID: "p1"}), false)
		if !errors.Is(err, domain.ErrUnitOccupied) {
			t.Fatalf("expected UnitOccupied, got %v", err)
		}
		if got := testutil.ToFloat64(m.DomainErrorsTotal.WithLabelValues("UnitOccupied")); got != 1 {
			t.Errorf("expected 1 domain error counted, got %v", got)
		}
	})

	t.Run("Invalid Input", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository()
		svc := newTestService(repo, dir, nil)
		in := createInput("unit-2")
		in.InitialRent = dec("0")

		_, err := svc.Create(context.Background(), in, false)
		var de *domain.Error
		if !errors.As(err, &de) || de.Fields["initialRent"] == "" {
			t.Fatalf("expected a field error on initialRent, got %v", err)
		}
	})

	t.Run("Store Failure", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository()
		repo.CreateErr = errors.New("database is down")
		svc := newTestService(repo, dir, nil)

		_, err := svc.Create(context.Background(), createInput("unit-2", domain.TenantInput{PersonID: "p1"}), false)
		if err == nil {
			t.Fatal("expected an error, got nil")
		}
	})
}

func TestLeaseService_Get(t *testing.T) {
	l := storedLease("lease-1")
	l.Ledger = []domain.Adjustment{{ID: "a1", Seq: 1, Field: domain.FieldRent, OldValue: dec("800.00"), NewValue: dec("820.00")}}
	repo := mocks.NewMockLeaseRepository(l)

	t.Run("Derived Fields", func(t *testing.T) {
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		v, err := svc.Get(context.Background(), "lease-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !v.CurrentRent.Equal(dec("820.00")) || !v.TotalRent.Equal(dec("870.00")) {
			t.Errorf("expected rent 820.00 and total 870.00, got %s and %s", v.CurrentRent, v.TotalRent)
		}
		if v.EndDate.String() != "2033-01-15" {
			t.Errorf("expected end date 2033-01-15, got %s", v.EndDate)
		}
		if !v.RentChange.Percentage.Equal(dec("2.5")) {
			t.Errorf("expected rent change 2.5%%, got %s", v.RentChange.Percentage)
		}
		// 2025-01-01 anniversary, notice window opened 2024-12-02.
		if !v.IndexationActive || v.IndexationDate.String() != "2025-01-01" {
			t.Errorf("expected indexation alert for 2025-01-01, got %+v", v.AlertState)
		}
		if v.Tenants[0].DisplayName != "p1" {
			t.Errorf("expected id fallback for unknown person, got %q", v.Tenants[0].DisplayName)
		}
	})

	t.Run("Directory Down", func(t *testing.T) {
		svc := newTestService(repo, &mocks.MockDirectory{Err: errors.New("redis unavailable")}, nil)

		v, err := svc.Get(context.Background(), "lease-1")
		if err != nil {
			t.Fatalf("expected display failures to be ignored, got %v", err)
		}
		if v.HousingUnitNumber != "unit-1" {
			t.Errorf("expected unit id fallback, got %q", v.HousingUnitNumber)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		_, err := svc.Get(context.Background(), "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})
}

func TestLeaseService_ChangeStatus(t *testing.T) {
	tests := []struct {
		name     string
		lease    func() *domain.Lease
		others   []*domain.Lease
		target   string
		expected *int64
		wantErr  error
		want     domain.Status
	}{
		{
			name:   "Activate Draft",
			lease:  func() *domain.Lease { l := storedLease("lease-1"); l.Status = domain.StatusDraft; return l },
			target: "ACTIVE",
			want:   domain.StatusActive,
		},
		{
			name:   "Finish Active",
			lease:  func() *domain.Lease { return storedLease("lease-1") },
			target: "FINISHED",
			want:   domain.StatusFinished,
		},
		{
			name:    "Reopen Finished",
			lease:   func() *domain.Lease { l := storedLease("lease-1"); l.Status = domain.StatusFinished; return l },
			target:  "ACTIVE",
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "Unknown Target",
			lease:   func() *domain.Lease { return storedLease("lease-1") },
			target:  "ARCHIVED",
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "Activate With Another Active Lease",
			lease:   func() *domain.Lease { l := storedLease("lease-1"); l.Status = domain.StatusDraft; return l },
			others:  []*domain.Lease{storedLease("lease-0")},
			target:  "ACTIVE",
			wantErr: domain.ErrUnitOccupied,
		},
		{
			name:     "Stale Version",
			lease:    func() *domain.Lease { return storedLease("lease-1") },
			target:   "FINISHED",
			expected: version(7),
			wantErr:  domain.ErrVersionConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockLeaseRepository(append(tt.others, tt.lease())...)
			svc := newTestService(repo, &mocks.MockDirectory{}, nil)

			v, err := svc.ChangeStatus(context.Background(), "lease-1", tt.target, tt.expected)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if len(repo.Updated) != 0 {
					t.Errorf("expected no update on failure, got %d", len(repo.Updated))
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if v.Status != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, v.Status)
			}
			if v.Version != 2 {
				t.Errorf("expected version 2, got %d", v.Version)
			}
			if !v.UpdatedAt.Equal(testClock.T) {
				t.Errorf("expected updatedAt %v, got %v", testClock.T, v.UpdatedAt)
			}
		})
	}
}

func TestLeaseService_Update(t *testing.T) {
	base := func() domain.LeaseInput {
		return domain.LeaseInput{
			HousingUnitID:  "unit-1",
			Type:           domain.LeaseTypeMainResidence9Y,
			StartDate:      mustDate("2024-01-15"),
			InitialRent:    dec("800"),
			InitialCharges: dec("60"),
			BaseIndexValue: decPtr("120.5"),
		}
	}

	t.Run("Replace Fields", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(storedLease("lease-1"))
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		v, err := svc.Update(context.Background(), "lease-1", base(), version(1))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !v.InitialCharges.Equal(dec("60.00")) {
			t.Errorf("expected charges 60.00, got %s", v.InitialCharges)
		}
		if len(v.Tenants) != 1 {
			t.Errorf("expected roster untouched, got %d tenants", len(v.Tenants))
		}
	})

	t.Run("Move To Occupied Unit", func(t *testing.T) {
		other := storedLease("lease-0")
		other.HousingUnitID = "unit-9"
		other.Status = domain.StatusDraft
		repo := mocks.NewMockLeaseRepository(storedLease("lease-1"), other)
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)
		in := base()
		in.HousingUnitID = "unit-9"

		_, err := svc.Update(context.Background(), "lease-1", in, nil)
		if !errors.Is(err, domain.ErrUnitOccupied) {
			t.Fatalf("expected UnitOccupied, got %v", err)
		}
	})

	t.Run("Closed Lease", func(t *testing.T) {
		l := storedLease("lease-1")
		l.Status = domain.StatusCancelled
		repo := mocks.NewMockLeaseRepository(l)
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		_, err := svc.Update(context.Background(), "lease-1", base(), nil)
		if !errors.Is(err, domain.ErrLeaseClosed) {
			t.Fatalf("expected LeaseClosed, got %v", err)
		}
	})

	t.Run("Concurrent Writer", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(storedLease("lease-1"))
		repo.UpdateErr = domain.VersionConflictError("lease-1", 1)
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		_, err := svc.Update(context.Background(), "lease-1", base(), nil)
		if !errors.Is(err, domain.ErrVersionConflict) {
			t.Fatalf("expected VersionConflict, got %v", err)
		}
	})
}

func TestLeaseService_Roster(t *testing.T) {
	t.Run("Add And Remove", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(storedLease("lease-1"))
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		v, err := svc.AddTenant(context.Background(), "lease-1", "p2", "CO_TENANT", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(v.Tenants) != 2 || !v.Tenants[1].AddedAt.Equal(testClock.T) {
			t.Fatalf("expected p2 added at clock time, got %+v", v.Tenants)
		}

		v, err = svc.RemoveTenant(context.Background(), "lease-1", "p2", version(2))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(v.Tenants) != 1 {
			t.Errorf("expected 1 tenant left, got %d", len(v.Tenants))
		}
	})

	t.Run("Duplicate Person", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(storedLease("lease-1"))
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		_, err := svc.AddTenant(context.Background(), "lease-1", "p1", "GUARANTOR", nil)
		if !errors.Is(err, domain.ErrDuplicatePerson) {
			t.Fatalf("expected DuplicatePerson, got %v", err)
		}
	})

	t.Run("Last Primary", func(t *testing.T) {
		l := storedLease("lease-1")
		l.Tenants = append(l.Tenants, domain.Tenant{PersonID: "g1", Role: domain.RoleGuarantor})
		repo := mocks.NewMockLeaseRepository(l)
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		_, err := svc.RemoveTenant(context.Background(), "lease-1", "p1", nil)
		if !errors.Is(err, domain.ErrLastPrimaryTenant) {
			t.Fatalf("expected LastPrimaryTenant, got %v", err)
		}
	})
}

func TestLeaseService_Ledger(t *testing.T) {
	t.Run("Adjustment Then History", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(storedLease("lease-1"))
		reg := prometheus.NewRegistry()
		m := metrics.NewLeaseMetrics(reg)
		svc := newTestService(repo, &mocks.MockDirectory{}, m)

		adj, err := svc.RecordAdjustment(context.Background(), "lease-1", domain.AdjustmentInput{
			Field:         "CHARGES",
			NewValue:      dec("55"),
			Reason:        "Provision review",
			EffectiveDate: mustDate("2025-01-01"),
		}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !adj.OldValue.Equal(dec("50.00")) || !adj.Change.Percentage.Equal(dec("10")) {
			t.Errorf("expected 50.00 -> 55.00 (+10%%), got %s (%s%%)", adj.OldValue, adj.Change.Percentage)
		}
		if got := testutil.ToFloat64(m.LedgerEntriesTotal.WithLabelValues("adjustment", "CHARGES")); got != 1 {
			t.Errorf("expected 1 ledger entry counted, got %v", got)
		}

		h, err := svc.History(context.Background(), "lease-1", "CHARGES")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(h.Entries) != 1 || h.Cumulative == nil || !h.Cumulative.Amount.Equal(dec("5")) {
			t.Errorf("expected one entry with +5 cumulative, got %+v", h)
		}

		all, err := svc.History(context.Background(), "lease-1", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if all.Cumulative != nil {
			t.Errorf("expected no cumulative change across fields, got %+v", all.Cumulative)
		}
	})

	t.Run("Invalid History Field", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(storedLease("lease-1"))
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		_, err := svc.History(context.Background(), "lease-1", "DEPOSIT")
		if !errors.Is(err, domain.ErrValidationFailed) {
			t.Fatalf("expected ValidationFailed, got %v", err)
		}
	})

	t.Run("Indexation", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(storedLease("lease-1"))
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		adj, err := svc.RecordIndexation(context.Background(), "lease-1", domain.IndexationInput{
			ApplicationDate: mustDate("2025-01-15"),
			NewIndexValue:   dec("125.3"),
			NewIndexMonth:   mustDate("2024-12-10"),
			AppliedRent:     dec("831.87"),
		}, version(1))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if adj.Reason != "Indexation 2024-12" || adj.Field != domain.FieldRent {
			t.Errorf("unexpected indexation entry %+v", adj.Adjustment)
		}

		hist, err := svc.IndexationHistory(context.Background(), "lease-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(hist) != 1 {
			t.Errorf("expected 1 indexation, got %d", len(hist))
		}

		v, _ := svc.Get(context.Background(), "lease-1")
		if v.IndexationActive {
			t.Error("expected the indexation alert to clear once this year's anniversary is covered")
		}
	})

	t.Run("Indexation Without Base Index", func(t *testing.T) {
		l := storedLease("lease-1")
		l.BaseIndexValue = nil
		repo := mocks.NewMockLeaseRepository(l)
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		_, err := svc.RecordIndexation(context.Background(), "lease-1", domain.IndexationInput{
			ApplicationDate: mustDate("2025-01-15"),
			NewIndexValue:   dec("125.3"),
			NewIndexMonth:   mustDate("2024-12-01"),
			AppliedRent:     dec("831.87"),
		}, nil)
		if !errors.Is(err, domain.ErrMissingBaseIndex) {
			t.Fatalf("expected MissingBaseIndex, got %v", err)
		}
	})

	t.Run("Preview", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(storedLease("lease-1"))
		svc := newTestService(repo, &mocks.MockDirectory{}, nil)

		p, err := svc.PreviewIndexation(context.Background(), "lease-1", dec("125.3"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		// 800 * 125.3 / 120.5 = 831.867...
		if !p.SuggestedRent.Equal(dec("831.87")) {
			t.Errorf("expected suggested rent 831.87, got %s", p.SuggestedRent)
		}
		if len(repo.Updated) != 0 {
			t.Error("expected preview not to write")
		}
	})
}

func TestLeaseService_List(t *testing.T) {
	a := storedLease("a")
	b := storedLease("b")
	b.HousingUnitID = "unit-2"
	b.StartDate = mustDate("2023-06-01")
	c := storedLease("c")
	c.Status = domain.StatusFinished
	c.StartDate = mustDate("2020-01-01")
	repo := mocks.NewMockLeaseRepository(a, b, c)
	svc := newTestService(repo, &mocks.MockDirectory{People: map[string]string{"p1": "Alice Martin"}}, nil)

	t.Run("Filtered Page", func(t *testing.T) {
		page, err := svc.List(context.Background(),
			domain.LeaseFilter{Statuses: []domain.Status{domain.StatusActive}},
			domain.PageRequest{Page: 0, Size: 1, Sort: domain.DefaultSort})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if page.TotalElements != 2 || page.TotalPages != 2 || len(page.Content) != 1 {
			t.Fatalf("unexpected page metadata %+v", page)
		}
		if page.Content[0].ID != "a" {
			t.Errorf("expected newest start first, got %s", page.Content[0].ID)
		}
		if len(page.Content[0].TenantNames) != 1 || page.Content[0].TenantNames[0] != "Alice Martin" {
			t.Errorf("expected tenant names, got %v", page.Content[0].TenantNames)
		}
	})

	t.Run("By Unit", func(t *testing.T) {
		got, err := svc.ListByUnit(context.Background(), "unit-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
			t.Errorf("expected [a c], got %+v", got)
		}
	})

	t.Run("Store Failure", func(t *testing.T) {
		failing := mocks.NewMockLeaseRepository()
		failing.ListErr = errors.New("connection refused")
		svc := newTestService(failing, &mocks.MockDirectory{}, nil)

		if _, err := svc.ListByUnit(context.Background(), "unit-1"); err == nil {
			t.Fatal("expected an error, got nil")
		}
	})
}
