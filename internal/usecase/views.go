package usecase

import (
	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// TenantView is a roster entry with its display name.
type TenantView struct {
	domain.Tenant
	DisplayName string `json:"displayName"`
}

// LeaseView is the full aggregate as served to clients: stored fields plus
// the derived dates, amounts, alert state and change summaries.
type LeaseView struct {
	*domain.Lease
	HousingUnitNumber string              `json:"housingUnitNumber"`
	BuildingName      string              `json:"buildingName"`
	EndDate           domain.Date         `json:"endDate"`
	CurrentRent       decimal.Decimal     `json:"currentRent"`
	CurrentCharges    decimal.Decimal     `json:"currentCharges"`
	TotalRent         decimal.Decimal     `json:"totalRent"`
	Tenants           []TenantView        `json:"tenants"`
	Ledger            []domain.Adjustment `json:"ledger"`
	RentChange        domain.Change       `json:"rentChange"`
	ChargesChange     domain.Change       `json:"chargesChange"`
	domain.AlertState
}

// AdjustmentView is a ledger entry with the change it introduced.
type AdjustmentView struct {
	domain.Adjustment
	Change domain.Change `json:"change"`
}

// AdjustmentHistory is a ledger listing, most recent first. Cumulative is
// set when the listing covers a single field.
type AdjustmentHistory struct {
	Field      domain.Field     `json:"field,omitempty"`
	Entries    []AdjustmentView `json:"entries"`
	Cumulative *domain.Change   `json:"cumulativeChange,omitempty"`
}

// IndexationPreview is the legal indexed rent for a candidate index figure.
type IndexationPreview struct {
	LeaseID       string          `json:"leaseId"`
	BaseRent      decimal.Decimal `json:"baseRent"`
	BaseIndex     decimal.Decimal `json:"baseIndexValue"`
	NewIndex      decimal.Decimal `json:"newIndexValue"`
	SuggestedRent decimal.Decimal `json:"suggestedRent"`
	CurrentRent   decimal.Decimal `json:"currentRent"`
	Change        domain.Change   `json:"change"`
}

func adjustmentViews(entries []domain.Adjustment) []AdjustmentView {
	out := make([]AdjustmentView, len(entries))
	for i, a := range entries {
		out[i] = AdjustmentView{Adjustment: a, Change: domain.ComputeChange(a.OldValue, a.NewValue)}
	}
	return out
}
