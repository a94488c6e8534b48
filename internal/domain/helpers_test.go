package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func date(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// activeLease is a nine-year main residence lease started on 2024-01-15
// with a single primary tenant and a base index.
func activeLease() *Lease {
	return &Lease{
		ID:                   "lease-1",
		HousingUnitID:        "unit-1",
		Status:               StatusActive,
		Type:                 LeaseTypeMainResidence9Y,
		StartDate:            date("2024-01-15"),
		DurationMonths:       108,
		NoticePeriodMonths:   3,
		InitialRent:          dec("800.00"),
		InitialCharges:       dec("50.00"),
		ChargesType:          ChargesFlatFee,
		BaseIndexValue:       decPtr("120.5000"),
		BaseIndexMonth:       date("2023-12-01"),
		IndexationNoticeDays: 30,
		Tenants:              []Tenant{{PersonID: "p1", Role: RolePrimary, AddedAt: testNow}},
		Version:              1,
	}
}

func draftLease() *Lease {
	l := activeLease()
	l.Status = StatusDraft
	return l
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v error, got %v", kind, err)
	}
}
