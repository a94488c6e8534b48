package domain

import "github.com/shopspring/decimal"

// LeaseSummary is the list projection of a lease.
type LeaseSummary struct {
	ID                string          `json:"id"`
	HousingUnitID     string          `json:"housingUnitId"`
	HousingUnitNumber string          `json:"housingUnitNumber"`
	BuildingName      string          `json:"buildingName"`
	Status            Status          `json:"status"`
	Type              LeaseType       `json:"leaseType"`
	StartDate         Date            `json:"startDate"`
	EndDate           Date            `json:"endDate"`
	CurrentRent       decimal.Decimal `json:"currentRent"`
	CurrentCharges    decimal.Decimal `json:"currentCharges"`
	TotalRent         decimal.Decimal `json:"totalRent"`
	ChargesType       ChargesType     `json:"chargesType"`
	TenantNames       []string        `json:"tenantNames"`
	AlertState
}

// Summarize projects l for today. names maps person ids to display names;
// missing entries fall back to the id.
func Summarize(l *Lease, unit UnitInfo, names map[string]string, today Date, defaultNoticeDays int) LeaseSummary {
	return LeaseSummary{
		ID:                l.ID,
		HousingUnitID:     l.HousingUnitID,
		HousingUnitNumber: unit.Number,
		BuildingName:      unit.BuildingName,
		Status:            l.Status,
		Type:              l.Type,
		StartDate:         l.StartDate,
		EndDate:           l.EndDate(),
		CurrentRent:       l.CurrentRent(),
		CurrentCharges:    l.CurrentCharges(),
		TotalRent:         l.TotalRent(),
		ChargesType:       l.ChargesType,
		TenantNames:       DisplayNames(l.Tenants, names),
		AlertState:        l.EvaluateAlerts(today, defaultNoticeDays),
	}
}

// DisplayNames resolves the PRIMARY and CO_TENANT entries of the roster.
func DisplayNames(tenants []Tenant, names map[string]string) []string {
	ids := TenantIDs(tenants, RolePrimary, RoleCoTenant)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := names[id]; ok && n != "" {
			out = append(out, n)
			continue
		}
		out = append(out, id)
	}
	return out
}
