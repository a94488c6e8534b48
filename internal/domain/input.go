package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LeaseInput is the editable field set of a lease, shared by create and the
// full-replacement update.
type LeaseInput struct {
	HousingUnitID string    `json:"housingUnitId"`
	Type          LeaseType `json:"leaseType"`

	SignatureDate      Date `json:"signatureDate"`
	StartDate          Date `json:"startDate"`
	DurationMonths     int  `json:"durationMonths"`
	NoticePeriodMonths int  `json:"noticePeriodMonths"`

	InitialRent        decimal.Decimal `json:"initialRent"`
	InitialCharges     decimal.Decimal `json:"initialCharges"`
	ChargesType        ChargesType     `json:"chargesType"`
	ChargesDescription string          `json:"chargesDescription"`

	BaseIndexValue             *decimal.Decimal `json:"baseIndexValue"`
	BaseIndexMonth             Date             `json:"baseIndexMonth"`
	IndexationNoticeDays       int              `json:"indexationNoticeDays"`
	IndexationAnniversaryMonth int              `json:"indexationAnniversaryMonth"`

	Registration Registration `json:"registration"`
	Deposit      Deposit      `json:"deposit"`
	Insurance    Insurance    `json:"insurance"`
}

// TenantInput attaches a person on create.
type TenantInput struct {
	PersonID string `json:"personId"`
	Role     string `json:"role"`
}

// CreateLeaseInput is LeaseInput plus the initial roster.
type CreateLeaseInput struct {
	LeaseInput
	Tenants []TenantInput `json:"tenants"`
}

// Normalize fills defaults from the lease-type table and the global
// indexation notice, then validates. The returned input is what gets stored.
func (in LeaseInput) Normalize(defaultNoticeDays int) (LeaseInput, error) {
	v := ValidationErrors{}
	in.HousingUnitID = strings.TrimSpace(in.HousingUnitID)
	if in.HousingUnitID == "" {
		v.Add("housingUnitId", "is required")
	}

	defaults, ok := DefaultsFor(in.Type)
	if !ok {
		v.Add("leaseType", "is required and must be a known lease type")
	}
	if in.DurationMonths == 0 {
		in.DurationMonths = defaults.DurationMonths
	}
	if in.NoticePeriodMonths == 0 {
		in.NoticePeriodMonths = defaults.NoticePeriodMonths
	}
	if in.DurationMonths <= 0 {
		v.Add("durationMonths", "must be greater than zero")
	}
	if in.NoticePeriodMonths < 0 {
		v.Add("noticePeriodMonths", "must not be negative")
	} else if in.DurationMonths > 0 && in.NoticePeriodMonths >= in.DurationMonths {
		v.Add("noticePeriodMonths", "must be shorter than the lease duration")
	}
	if !in.SignatureDate.IsZero() && !in.StartDate.IsZero() && in.SignatureDate.After(in.StartDate) {
		v.Add("signatureDate", "must not be after the start date")
	}

	if !in.InitialRent.IsPositive() {
		v.Add("initialRent", "must be greater than zero")
	}
	if in.InitialCharges.IsNegative() {
		v.Add("initialCharges", "must not be negative")
	}
	in.InitialRent = RoundMoney(in.InitialRent)
	in.InitialCharges = RoundMoney(in.InitialCharges)
	switch in.ChargesType {
	case "":
		in.ChargesType = ChargesFlatFee
	case ChargesFlatFee, ChargesProvision:
	default:
		v.Add("chargesType", "must be FLAT_FEE or PROVISION")
	}
	in.ChargesDescription = strings.TrimSpace(in.ChargesDescription)

	if in.BaseIndexValue != nil {
		if !in.BaseIndexValue.IsPositive() {
			v.Add("baseIndexValue", "must be greater than zero")
		} else {
			bi := in.BaseIndexValue.Round(4)
			in.BaseIndexValue = &bi
		}
	}
	if !in.BaseIndexMonth.IsZero() {
		in.BaseIndexMonth = NewDate(in.BaseIndexMonth.Year(), in.BaseIndexMonth.Month(), 1)
	}
	if in.IndexationNoticeDays < 0 {
		v.Add("indexationNoticeDays", "must not be negative")
	} else if in.IndexationNoticeDays == 0 {
		in.IndexationNoticeDays = defaultNoticeDays
	}
	if in.IndexationAnniversaryMonth < 0 || in.IndexationAnniversaryMonth > 12 {
		v.Add("indexationAnniversaryMonth", "must be between 1 and 12")
	}

	if in.Deposit.Type != "" && !in.Deposit.Type.valid() {
		v.Add("deposit.depositType", "unknown deposit type")
	}
	if in.Deposit.Amount != nil {
		if in.Deposit.Amount.IsNegative() {
			v.Add("deposit.depositAmount", "must not be negative")
		} else {
			amt := RoundMoney(*in.Deposit.Amount)
			in.Deposit.Amount = &amt
		}
	}

	if err := v.Err(); err != nil {
		return LeaseInput{}, err
	}
	return in, nil
}

func (l *Lease) assign(in LeaseInput) {
	l.HousingUnitID = in.HousingUnitID
	l.Type = in.Type
	l.SignatureDate = in.SignatureDate
	l.StartDate = in.StartDate
	l.DurationMonths = in.DurationMonths
	l.NoticePeriodMonths = in.NoticePeriodMonths
	l.InitialRent = in.InitialRent
	l.InitialCharges = in.InitialCharges
	l.ChargesType = in.ChargesType
	l.ChargesDescription = in.ChargesDescription
	l.BaseIndexValue = in.BaseIndexValue
	l.BaseIndexMonth = in.BaseIndexMonth
	l.IndexationNoticeDays = in.IndexationNoticeDays
	l.IndexationAnniversaryMonth = in.IndexationAnniversaryMonth
	l.Registration = in.Registration
	l.Deposit = in.Deposit
	l.Insurance = in.Insurance
}

// NewLease builds a DRAFT lease from in and attaches the initial roster in
// order, so the first tenant without a role becomes PRIMARY.
func NewLease(id string, in CreateLeaseInput, defaultNoticeDays int, now time.Time) (*Lease, error) {
	fields, err := in.LeaseInput.Normalize(defaultNoticeDays)
	if err != nil {
		return nil, err
	}
	l := &Lease{
		ID:        id,
		Status:    StatusDraft,
		Tenants:   []Tenant{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	l.assign(fields)
	for _, t := range in.Tenants {
		if err := l.AddTenant(strings.TrimSpace(t.PersonID), t.Role, now); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// ApplyUpdate replaces every editable field. Initial amounts are frozen once
// the ledger holds an entry for them, and an active lease keeps its start date.
func (l *Lease) ApplyUpdate(in LeaseInput, defaultNoticeDays int) error {
	if err := l.EnsureOpen(); err != nil {
		return err
	}
	fields, err := in.Normalize(defaultNoticeDays)
	if err != nil {
		return err
	}
	v := ValidationErrors{}
	if !fields.InitialRent.Equal(l.InitialRent) && len(l.History(FieldRent)) > 0 {
		v.Add("initialRent", "cannot change once rent adjustments exist")
	}
	if !fields.InitialCharges.Equal(l.InitialCharges) && len(l.History(FieldCharges)) > 0 {
		v.Add("initialCharges", "cannot change once charges adjustments exist")
	}
	if l.Status == StatusActive && fields.StartDate.IsZero() {
		v.Add("startDate", "is required on an active lease")
	}
	if err := v.Err(); err != nil {
		return err
	}
	l.assign(fields)
	return nil
}
