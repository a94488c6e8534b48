package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field is the monetary field an adjustment changes.
type Field string

const (
	FieldRent    Field = "RENT"
	FieldCharges Field = "CHARGES"
)

// ParseField accepts RENT and CHARGES.
func ParseField(s string) (Field, bool) {
	switch f := Field(s); f {
	case FieldRent, FieldCharges:
		return f, true
	}
	return "", false
}

// Indexation is the extra detail carried by a rent change driven by a
// published index figure.
type Indexation struct {
	NewIndexValue        decimal.Decimal `json:"newIndexValue"`
	NewIndexMonth        Date            `json:"newIndexMonth"`
	NotificationSentDate Date            `json:"notificationSentDate"`
	Notes                string          `json:"notes,omitempty"`
}

// Adjustment is an immutable ledger entry. Seq orders entries by append time.
type Adjustment struct {
	ID            string          `json:"id"`
	Seq           int64           `json:"seq"`
	Field         Field           `json:"field"`
	OldValue      decimal.Decimal `json:"oldValue"`
	NewValue      decimal.Decimal `json:"newValue"`
	Reason        string          `json:"reason"`
	EffectiveDate Date            `json:"effectiveDate"`
	CreatedAt     time.Time       `json:"createdAt"`
	Indexation    *Indexation     `json:"indexation,omitempty"`
}

// IsIndexation reports whether the entry was recorded by RecordIndexation.
func (a Adjustment) IsIndexation() bool { return a.Indexation != nil }

func (a Adjustment) clone() Adjustment {
	if a.Indexation != nil {
		ix := *a.Indexation
		a.Indexation = &ix
	}
	return a
}

// Change describes the difference between two amounts.
type Change struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	IsIncrease bool            `json:"isIncrease"`
}

// ComputeChange returns new-old and the relative change in percent rounded
// half away from zero to two decimals. A zero base yields 0%.
func ComputeChange(oldValue, newValue decimal.Decimal) Change {
	amount := newValue.Sub(oldValue)
	pct := decimal.Zero
	if !oldValue.IsZero() {
		pct = amount.Div(oldValue).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return Change{
		Amount:     amount,
		Percentage: pct,
		IsIncrease: !amount.IsNegative(),
	}
}

// AdjustmentInput is a negotiated change of rent or charges.
type AdjustmentInput struct {
	Field         string
	NewValue      decimal.Decimal
	Reason        string
	EffectiveDate Date
}

// RecordAdjustment appends a ledger entry whose OldValue is the current value
// of the field.
func (l *Lease) RecordAdjustment(in AdjustmentInput, id string, now time.Time) (Adjustment, error) {
	if err := l.EnsureOpen(); err != nil {
		return Adjustment{}, err
	}
	if !in.NewValue.IsPositive() {
		return Adjustment{}, newError(ErrInvalidAmount, "new value must be greater than zero")
	}
	v := ValidationErrors{}
	field, ok := ParseField(in.Field)
	if !ok {
		v.Add("field", "must be RENT or CHARGES")
	}
	if strings.TrimSpace(in.Reason) == "" {
		v.Add("reason", "is required")
	}
	if in.EffectiveDate.IsZero() {
		v.Add("effectiveDate", "is required")
	}
	if err := v.Err(); err != nil {
		return Adjustment{}, err
	}

	adj := Adjustment{
		ID:            id,
		Seq:           l.nextSeq(),
		Field:         field,
		OldValue:      l.current(field),
		NewValue:      RoundMoney(in.NewValue),
		Reason:        strings.TrimSpace(in.Reason),
		EffectiveDate: in.EffectiveDate,
		CreatedAt:     now.UTC(),
	}
	l.Ledger = append(l.Ledger, adj)
	return adj, nil
}

// IndexationInput is an index-driven rent change.
type IndexationInput struct {
	ApplicationDate      Date
	NewIndexValue        decimal.Decimal
	NewIndexMonth        Date
	AppliedRent          decimal.Decimal
	NotificationSentDate Date
	Notes                string
}

// RecordIndexation appends a RENT entry carrying the indexation detail. Only
// active leases with a base index can be indexed.
func (l *Lease) RecordIndexation(in IndexationInput, id string, now time.Time) (Adjustment, error) {
	if err := l.EnsureOpen(); err != nil {
		return Adjustment{}, err
	}
	if !l.HasBaseIndex() {
		return Adjustment{}, newError(ErrMissingBaseIndex, "lease %s has no base index", l.ID)
	}
	if l.Status != StatusActive {
		return Adjustment{}, newError(ErrValidationFailed, "indexation can only be recorded on an active lease")
	}
	if !in.AppliedRent.IsPositive() {
		return Adjustment{}, newError(ErrInvalidAmount, "applied rent must be greater than zero")
	}
	if !in.NewIndexValue.IsPositive() {
		return Adjustment{}, newError(ErrInvalidAmount, "new index value must be greater than zero")
	}
	v := ValidationErrors{}
	if in.ApplicationDate.IsZero() {
		v.Add("applicationDate", "is required")
	}
	if in.NewIndexMonth.IsZero() {
		v.Add("newIndexMonth", "is required")
	}
	if err := v.Err(); err != nil {
		return Adjustment{}, err
	}

	month := NewDate(in.NewIndexMonth.Year(), in.NewIndexMonth.Month(), 1)
	adj := Adjustment{
		ID:            id,
		Seq:           l.nextSeq(),
		Field:         FieldRent,
		OldValue:      l.CurrentRent(),
		NewValue:      RoundMoney(in.AppliedRent),
		Reason:        "Indexation " + month.Format("2006-01"),
		EffectiveDate: in.ApplicationDate,
		CreatedAt:     now.UTC(),
		Indexation: &Indexation{
			NewIndexValue:        in.NewIndexValue.Round(4),
			NewIndexMonth:        month,
			NotificationSentDate: in.NotificationSentDate,
			Notes:                strings.TrimSpace(in.Notes),
		},
	}
	l.Ledger = append(l.Ledger, adj)
	return adj, nil
}

func (l *Lease) nextSeq() int64 {
	if n := len(l.Ledger); n > 0 {
		return l.Ledger[n-1].Seq + 1
	}
	return 1
}

// History returns the entries for field, most recent first. An empty field
// returns every entry.
func (l *Lease) History(field Field) []Adjustment {
	out := make([]Adjustment, 0, len(l.Ledger))
	for i := len(l.Ledger) - 1; i >= 0; i-- {
		if field == "" || l.Ledger[i].Field == field {
			out = append(out, l.Ledger[i].clone())
		}
	}
	return out
}

// IndexationHistory returns indexation entries, most recent first.
func (l *Lease) IndexationHistory() []Adjustment {
	out := make([]Adjustment, 0)
	for i := len(l.Ledger) - 1; i >= 0; i-- {
		if l.Ledger[i].IsIndexation() {
			out = append(out, l.Ledger[i].clone())
		}
	}
	return out
}

// CumulativeChange compares the oldest recorded value of field with its
// newest one. Without entries there is no change.
func (l *Lease) CumulativeChange(field Field) Change {
	h := l.History(field)
	if len(h) == 0 {
		cur := l.current(field)
		return ComputeChange(cur, cur)
	}
	return ComputeChange(h[len(h)-1].OldValue, h[0].NewValue)
}

// IndexedInYear reports whether an indexation was applied during year.
func (l *Lease) IndexedInYear(year int) bool {
	for _, a := range l.Ledger {
		if a.IsIndexation() && a.EffectiveDate.Year() == year {
			return true
		}
	}
	return false
}

// SuggestIndexedRent applies the legal formula
// baseRent * newIndex / baseIndex, rounded to cents.
func SuggestIndexedRent(baseRent, baseIndex, newIndex decimal.Decimal) (decimal.Decimal, error) {
	if !baseIndex.IsPositive() {
		return decimal.Zero, newError(ErrMissingBaseIndex, "base index must be greater than zero")
	}
	if !newIndex.IsPositive() {
		return decimal.Zero, newError(ErrInvalidAmount, "new index value must be greater than zero")
	}
	return RoundMoney(baseRent.Mul(newIndex).Div(baseIndex)), nil
}

// SuggestIndexedRent previews the indexed rent of the lease for newIndex.
func (l *Lease) SuggestIndexedRent(newIndex decimal.Decimal) (decimal.Decimal, error) {
	if !l.HasBaseIndex() {
		return decimal.Zero, newError(ErrMissingBaseIndex, "lease %s has no base index", l.ID)
	}
	return SuggestIndexedRent(l.InitialRent, *l.BaseIndexValue, newIndex)
}
