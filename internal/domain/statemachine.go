package domain

// transitions is the complete table of legal status changes.
var transitions = map[Status][]Status{
	StatusDraft:  {StatusActive, StatusCancelled},
	StatusActive: {StatusFinished, StatusCancelled},
}

// CanTransition reports whether from -> to appears in the transition table.
// Preconditions are not checked.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the lease to target, enforcing the transition table and
// the activation preconditions. The lease is left untouched on error.
// Unit occupancy is checked by the caller, which owns the store.
func (l *Lease) Transition(target string) error {
	to, ok := ParseStatus(target)
	if !ok || !CanTransition(l.Status, to) {
		return InvalidTransitionError(l.Status, target)
	}
	if to == StatusActive {
		if err := l.checkActivation(); err != nil {
			return err
		}
	}
	l.Status = to
	return nil
}

func (l *Lease) checkActivation() error {
	v := ValidationErrors{}
	if l.StartDate.IsZero() {
		v.Add("startDate", "is required to activate a lease")
	}
	if !HasPrimaryTenant(l.Tenants) {
		v.Add("tenants", "at least one primary tenant is required")
	}
	if err := v.Err(); err != nil {
		de := err.(*Error)
		de.Message = "lease cannot be activated"
		return de
	}
	return nil
}
