package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/V4T54L/tenancy-engine/internal/adapter/metrics"
	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/V4T54L/tenancy-engine/internal/domain/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAlertService_ListAlerts(t *testing.T) {
	// Indexation window for 2025-01-01 is open on 2024-12-10.
	indexed := storedLease("b-index")

	// Ends 2025-01-31, notice deadline 2024-12-31: not yet due.
	notYet := storedLease("c-future")
	notYet.HousingUnitID = "unit-3"
	notYet.Type = domain.LeaseTypeShortTerm
	notYet.StartDate = mustDate("2024-10-31")
	notYet.DurationMonths = 3
	notYet.NoticePeriodMonths = 1
	notYet.BaseIndexValue = nil

	// Ends 2025-01-01, notice deadline 2024-10-01: overdue and still reported.
	ending := storedLease("a-ending")
	ending.HousingUnitID = "unit-2"
	ending.Type = domain.LeaseTypeStudent
	ending.StartDate = mustDate("2024-01-01")
	ending.DurationMonths = 12
	ending.NoticePeriodMonths = 3
	ending.BaseIndexValue = nil
	ending.Tenants = append(ending.Tenants, domain.Tenant{PersonID: "p2", Role: domain.RoleCoTenant}, domain.Tenant{PersonID: "g1", Role: domain.RoleGuarantor})

	// Drafts never raise alerts.
	draft := storedLease("d-draft")
	draft.HousingUnitID = "unit-4"
	draft.Status = domain.StatusDraft

	dir := &mocks.MockDirectory{
		Units:  map[string]domain.UnitInfo{"unit-2": {ID: "unit-2", Number: "2A", BuildingName: "Les Tilleuls"}},
		People: map[string]string{"p1": "Alice Martin", "p2": "Bruno Leroy"},
	}

	t.Run("Sorted By Deadline", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository(indexed, notYet, ending, draft)
		reg := prometheus.NewRegistry()
		m := metrics.NewLeaseMetrics(reg)
		svc := NewAlertService(repo, dir, testClock, testLogger, Options{Location: time.UTC, Metrics: m})

		alerts, err := svc.ListAlerts(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(alerts) != 2 {
			t.Fatalf("expected 2 alerts, got %d: %+v", len(alerts), alerts)
		}

		first := alerts[0]
		if first.LeaseID != "a-ending" || first.Type != domain.AlertEndNotice || first.Deadline.String() != "2024-10-01" {
			t.Errorf("unexpected first alert %+v", first)
		}
		if first.HousingUnitNumber != "2A" || first.BuildingName != "Les Tilleuls" {
			t.Errorf("expected unit display data, got %+v", first)
		}
		if len(first.TenantNames) != 2 || first.TenantNames[0] != "Alice Martin" || first.TenantNames[1] != "Bruno Leroy" {
			t.Errorf("expected primary and co-tenant names only, got %v", first.TenantNames)
		}

		second := alerts[1]
		if second.LeaseID != "b-index" || second.Type != domain.AlertIndexation || second.Deadline.String() != "2025-01-01" {
			t.Errorf("unexpected second alert %+v", second)
		}

		if got := testutil.ToFloat64(m.ActiveAlerts.WithLabelValues("END_NOTICE")); got != 1 {
			t.Errorf("expected END_NOTICE gauge 1, got %v", got)
		}
		if got := testutil.ToFloat64(m.ActiveAlerts.WithLabelValues("INDEXATION")); got != 1 {
			t.Errorf("expected INDEXATION gauge 1, got %v", got)
		}
	})

	t.Run("Same Clock Same Result", func(t *testing.T) {
		// Same deadline as indexed, so only the lease id orders them.
		twin := storedLease("e-index")
		twin.HousingUnitID = "unit-5"
		repo := mocks.NewMockLeaseRepository(indexed, twin, notYet, ending, draft)
		svc := NewAlertService(repo, dir, testClock, testLogger, Options{Location: time.UTC})

		first, err := svc.ListAlerts(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := svc.ListAlerts(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(first) != 3 {
			t.Fatalf("expected 3 alerts, got %d: %+v", len(first), first)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("expected identical results for the same clock:\n%+v\n%+v", first, second)
		}
		if first[1].LeaseID != "b-index" || first[2].LeaseID != "e-index" {
			t.Errorf("expected ties ordered by lease id, got %s then %s", first[1].LeaseID, first[2].LeaseID)
		}
		if first[0].BuildingName != "Les Tilleuls" || len(first[0].TenantNames) != 2 {
			t.Errorf("expected display data on every evaluation, got %+v", first[0])
		}
	})

	t.Run("Timezone Decides Today", func(t *testing.T) {
		// 2024-12-01 23:30 UTC is already 2024-12-02 in Brussels, the first
		// day of the indexation window.
		loc, err := time.LoadLocation("Europe/Brussels")
		if err != nil {
			t.Skipf("timezone data unavailable: %v", err)
		}
		clock := domain.FixedClock{T: time.Date(2024, 12, 1, 23, 30, 0, 0, time.UTC)}
		repo := mocks.NewMockLeaseRepository(indexed)

		utc, _ := NewAlertService(repo, dir, clock, testLogger, Options{Location: time.UTC}).ListAlerts(context.Background())
		local, _ := NewAlertService(repo, dir, clock, testLogger, Options{Location: loc}).ListAlerts(context.Background())
		if len(utc) != 0 || len(local) != 1 {
			t.Errorf("expected 0 alerts in UTC and 1 in Brussels, got %d and %d", len(utc), len(local))
		}
	})

	t.Run("No Open Leases", func(t *testing.T) {
		svc := NewAlertService(mocks.NewMockLeaseRepository(), dir, testClock, testLogger, Options{})

		alerts, err := svc.ListAlerts(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if alerts == nil || len(alerts) != 0 {
			t.Errorf("expected an empty non-nil list, got %v", alerts)
		}
	})

	t.Run("Store Failure", func(t *testing.T) {
		repo := mocks.NewMockLeaseRepository()
		repo.ListErr = errors.New("connection refused")
		svc := NewAlertService(repo, dir, testClock, testLogger, Options{})

		if _, err := svc.ListAlerts(context.Background()); err == nil {
			t.Fatal("expected an error, got nil")
		}
	})
}
