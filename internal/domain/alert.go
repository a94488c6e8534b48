package domain

import (
	"sort"
	"time"
)

// AlertType distinguishes the two deadlines watched on a lease.
type AlertType string

const (
	AlertIndexation AlertType = "INDEXATION"
	AlertEndNotice  AlertType = "END_NOTICE"
)

// DefaultIndexationNoticeDays is used when a lease carries no override.
const DefaultIndexationNoticeDays = 30

// AlertState is the evaluation of both deadlines on one lease for one day.
type AlertState struct {
	IndexationActive bool `json:"indexationAlertActive"`
	IndexationDate   Date `json:"indexationAlertDate"`
	EndNoticeActive  bool `json:"endNoticeAlertActive"`
	EndNoticeDate    Date `json:"endNoticeAlertDate"`
}

// Alert is a derived notice; it is never persisted.
type Alert struct {
	LeaseID           string    `json:"leaseId"`
	HousingUnitID     string    `json:"housingUnitId"`
	HousingUnitNumber string    `json:"housingUnitNumber"`
	BuildingName      string    `json:"buildingName"`
	Type              AlertType `json:"alertType"`
	Deadline          Date      `json:"deadline"`
	TenantNames       []string  `json:"tenantNames"`
}

// EndNoticeDeadline is the last day notice can be served: EndDate minus the
// notice period. Zero when StartDate is unset.
func (l *Lease) EndNoticeDeadline() Date {
	end := l.EndDate()
	if end.IsZero() {
		return Date{}
	}
	return end.AddMonths(-l.NoticePeriodMonths)
}

func (l *Lease) anniversaryMonth() int {
	if l.IndexationAnniversaryMonth >= 1 && l.IndexationAnniversaryMonth <= 12 {
		return l.IndexationAnniversaryMonth
	}
	return int(l.StartDate.Month())
}

// NextIndexationAnniversary returns the anniversary the indexation alert is
// watching on today: the first of this year's or next year's anniversary
// month that falls after StartDate and whose year has no indexation yet.
func (l *Lease) NextIndexationAnniversary(today Date) (Date, bool) {
	if l.StartDate.IsZero() || !l.HasBaseIndex() {
		return Date{}, false
	}
	m := l.anniversaryMonth()
	for _, year := range []int{today.Year(), today.Year() + 1} {
		a := NewDate(year, time.Month(m), 1)
		if !a.After(l.StartDate) || l.IndexedInYear(year) {
			continue
		}
		return a, true
	}
	return Date{}, false
}

// EvaluateAlerts computes both alert flags for today. Only ACTIVE leases can
// raise alerts.
func (l *Lease) EvaluateAlerts(today Date, defaultNoticeDays int) AlertState {
	var st AlertState
	if l.StartDate.IsZero() {
		return st
	}

	st.EndNoticeDate = l.EndNoticeDeadline()
	st.EndNoticeActive = l.Status == StatusActive && !today.Before(st.EndNoticeDate)

	if a, ok := l.NextIndexationAnniversary(today); ok {
		days := l.IndexationNoticeDays
		if days <= 0 {
			days = defaultNoticeDays
		}
		st.IndexationDate = a
		st.IndexationActive = l.Status == StatusActive && !today.Before(a.AddDays(-days))
	}
	return st
}

// Alerts turns the evaluation into alert records without display data.
func (l *Lease) Alerts(today Date, defaultNoticeDays int) []Alert {
	st := l.EvaluateAlerts(today, defaultNoticeDays)
	var out []Alert
	if st.IndexationActive {
		out = append(out, Alert{LeaseID: l.ID, HousingUnitID: l.HousingUnitID, Type: AlertIndexation, Deadline: st.IndexationDate})
	}
	if st.EndNoticeActive {
		out = append(out, Alert{LeaseID: l.ID, HousingUnitID: l.HousingUnitID, Type: AlertEndNotice, Deadline: st.EndNoticeDate})
	}
	return out
}

// SortAlerts orders by deadline, then lease id, then type.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		if a.LeaseID != b.LeaseID {
			return a.LeaseID < b.LeaseID
		}
		return a.Type < b.Type
	})
}
