package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrInvalidTransition = errors.New("InvalidTransition")
	ErrLeaseClosed       = errors.New("LeaseClosed")
	ErrDuplicatePerson   = errors.New("DuplicatePerson")
	ErrLastPrimaryTenant = errors.New("LastPrimaryTenant")
	ErrInvalidAmount     = errors.New("InvalidAmount")
	ErrMissingBaseIndex  = errors.New("MissingBaseIndex")
	ErrValidationFailed  = errors.New("ValidationFailed")
	ErrNotFound          = errors.New("NotFound")
	ErrVersionConflict   = errors.New("VersionConflict")
	ErrUnitOccupied      = errors.New("UnitOccupied")
)

// Error is a domain failure carrying one of the kinds above plus a message
// meant for the end user. Fields holds per-field problems for ValidationFailed.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error { return e.Kind }

// KindOf returns the kind name of a domain error, or "" for anything else.
func KindOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind.Error()
	}
	return ""
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a rejected status change.
func InvalidTransitionError(from Status, to string) *Error {
	return newError(ErrInvalidTransition, "cannot change lease status from %s to %s", from, to)
}

// LeaseClosedError reports a write attempt on a FINISHED or CANCELLED lease.
func LeaseClosedError(id string, status Status) *Error {
	return newError(ErrLeaseClosed, "lease %s is %s and can no longer be modified", id, status)
}

// NotFoundError reports a missing entity.
func NotFoundError(what, id string) *Error {
	return newError(ErrNotFound, "%s %s not found", what, id)
}

// VersionConflictError reports a failed optimistic concurrency check.
func VersionConflictError(id string, expected int64) *Error {
	return newError(ErrVersionConflict, "lease %s was modified concurrently (expected version %d)", id, expected)
}

// ValidationErrors accumulates field-level problems.
type ValidationErrors map[string]string

// Add records a problem for field, keeping the first one reported.
func (v ValidationErrors) Add(field, problem string) {
	if _, ok := v[field]; !ok {
		v[field] = problem
	}
}

// Err returns nil when no problem was recorded.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return &Error{Kind: ErrValidationFailed, Message: "invalid lease data", Fields: v}
}
