package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a lease.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusActive, StatusFinished, StatusCancelled}

// ParseStatus returns false for unknown values.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsOpen reports whether the lease still accepts writes.
func (s Status) IsOpen() bool {
	return s == StatusDraft || s == StatusActive
}

// IsTerminal reports FINISHED and CANCELLED.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// LeaseType classifies the contract.
type LeaseType string

const (
	LeaseTypeShortTerm       LeaseType = "SHORT_TERM"
	LeaseTypeMainResidence3Y LeaseType = "MAIN_RESIDENCE_3Y"
	LeaseTypeMainResidence6Y LeaseType = "MAIN_RESIDENCE_6Y"
	LeaseTypeMainResidence9Y LeaseType = "MAIN_RESIDENCE_9Y"
	LeaseTypeStudent         LeaseType = "STUDENT"
	LeaseTypeGliding         LeaseType = "GLIDING"
	LeaseTypeCommercial      LeaseType = "COMMERCIAL"
)

// LeaseTypeDefaults pre-fills duration and notice period. The values never
// constrain what is stored on a lease.
type LeaseTypeDefaults struct {
	Type               LeaseType `json:"leaseType"`
	DurationMonths     int       `json:"durationMonths"`
	NoticePeriodMonths int       `json:"noticePeriodMonths"`
}

var leaseTypeDefaults = []LeaseTypeDefaults{
	{LeaseTypeShortTerm, 3, 1},
	{LeaseTypeMainResidence3Y, 36, 3},
	{LeaseTypeMainResidence6Y, 72, 3},
	{LeaseTypeMainResidence9Y, 108, 3},
	{LeaseTypeStudent, 12, 1},
	{LeaseTypeGliding, 12, 3},
	{LeaseTypeCommercial, 108, 6},
}

// AllLeaseTypeDefaults returns a copy of the defaults table.
func AllLeaseTypeDefaults() []LeaseTypeDefaults {
	out := make([]LeaseTypeDefaults, len(leaseTypeDefaults))
	copy(out, leaseTypeDefaults)
	return out
}

// DefaultsFor looks up the defaults of t.
func DefaultsFor(t LeaseType) (LeaseTypeDefaults, bool) {
	for _, d := range leaseTypeDefaults {
		if d.Type == t {
			return d, true
		}
	}
	return LeaseTypeDefaults{}, false
}

// ChargesType tells whether monthly charges are a flat fee or a provision
// settled against actual costs.
type ChargesType string

const (
	ChargesFlatFee   ChargesType = "FLAT_FEE"
	ChargesProvision ChargesType = "PROVISION"
)

// DepositType is how the rental deposit is held.
type DepositType string

const (
	DepositBlockedAccount DepositType = "BLOCKED_ACCOUNT"
	DepositBankGuarantee  DepositType = "BANK_GUARANTEE"
	DepositCPAS           DepositType = "CPAS"
	DepositInsurance      DepositType = "INSURANCE"
)

func (t DepositType) valid() bool {
	switch t {
	case DepositBlockedAccount, DepositBankGuarantee, DepositCPAS, DepositInsurance:
		return true
	}
	return false
}

// Registration holds the opaque references of the lease deed and inventory
// registrations.
type Registration struct {
	SPF             string `json:"registrationSpf,omitempty"`
	Region          string `json:"registrationRegion,omitempty"`
	InventorySPF    string `json:"registrationInventorySpf,omitempty"`
	InventoryRegion string `json:"registrationInventoryRegion,omitempty"`
}

// Deposit describes the rental guarantee.
type Deposit struct {
	Amount    *decimal.Decimal `json:"depositAmount,omitempty"`
	Type      DepositType      `json:"depositType,omitempty"`
	Reference string           `json:"depositReference,omitempty"`
}

// Insurance is the tenant's fire insurance attestation.
type Insurance struct {
	Confirmed bool   `json:"tenantInsuranceConfirmed"`
	Reference string `json:"tenantInsuranceReference,omitempty"`
	Expiry    Date   `json:"tenantInsuranceExpiry"`
}

// Lease is the aggregate root. Current rent and charges are derived from the
// ledger; EndDate is derived from StartDate and DurationMonths.
type Lease struct {
	ID            string `json:"id"`
	HousingUnitID string `json:"housingUnitId"`
	Status        Status `json:"status"`

	Type               LeaseType `json:"leaseType"`
	SignatureDate      Date      `json:"signatureDate"`
	StartDate          Date      `json:"startDate"`
	DurationMonths     int       `json:"durationMonths"`
	NoticePeriodMonths int       `json:"noticePeriodMonths"`

	InitialRent        decimal.Decimal `json:"initialRent"`
	InitialCharges     decimal.Decimal `json:"initialCharges"`
	ChargesType        ChargesType     `json:"chargesType"`
	ChargesDescription string          `json:"chargesDescription,omitempty"`

	BaseIndexValue             *decimal.Decimal `json:"baseIndexValue,omitempty"`
	BaseIndexMonth             Date             `json:"baseIndexMonth"`
	IndexationNoticeDays       int              `json:"indexationNoticeDays"`
	IndexationAnniversaryMonth int              `json:"indexationAnniversaryMonth,omitempty"`

	Registration Registration `json:"registration"`
	Deposit      Deposit      `json:"deposit"`
	Insurance    Insurance    `json:"insurance"`

	Tenants []Tenant     `json:"tenants"`
	Ledger  []Adjustment `json:"-"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EndDate is StartDate plus DurationMonths; zero while StartDate is unset.
func (l *Lease) EndDate() Date {
	if l.StartDate.IsZero() {
		return Date{}
	}
	return l.StartDate.AddMonths(l.DurationMonths)
}

// CurrentRent is the newest RENT ledger value, or the initial rent.
func (l *Lease) CurrentRent() decimal.Decimal {
	return l.current(FieldRent)
}

// CurrentCharges is the newest CHARGES ledger value, or the initial charges.
func (l *Lease) CurrentCharges() decimal.Decimal {
	return l.current(FieldCharges)
}

// TotalRent is rent plus charges.
func (l *Lease) TotalRent() decimal.Decimal {
	return l.CurrentRent().Add(l.CurrentCharges())
}

func (l *Lease) current(f Field) decimal.Decimal {
	for i := len(l.Ledger) - 1; i >= 0; i-- {
		if l.Ledger[i].Field == f {
			return l.Ledger[i].NewValue
		}
	}
	if f == FieldCharges {
		return l.InitialCharges
	}
	return l.InitialRent
}

// HasBaseIndex reports whether indexation can be applied.
func (l *Lease) HasBaseIndex() bool {
	return l.BaseIndexValue != nil && l.BaseIndexValue.IsPositive()
}

// EnsureOpen is the write gate every mutation goes through.
func (l *Lease) EnsureOpen() error {
	if !l.Status.IsOpen() {
		return LeaseClosedError(l.ID, l.Status)
	}
	return nil
}

// Clone returns a deep copy so a mutation can be applied and discarded on
// failure.
func (l *Lease) Clone() *Lease {
	c := *l
	c.Tenants = append([]Tenant(nil), l.Tenants...)
	c.Ledger = make([]Adjustment, len(l.Ledger))
	for i, a := range l.Ledger {
		c.Ledger[i] = a.clone()
	}
	if l.BaseIndexValue != nil {
		v := *l.BaseIndexValue
		c.BaseIndexValue = &v
	}
	if l.Deposit.Amount != nil {
		v := *l.Deposit.Amount
		c.Deposit.Amount = &v
	}
	return &c
}

// RoundMoney rounds half away from zero to two decimals.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
