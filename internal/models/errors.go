package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the actor may not act on a property.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LockedError reports an attempt to change financial data of a finalized expense.
type LockedError struct {
	ExpenseID int64
	Field     string
}

func (e *LockedError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("expense %d is finalized", e.ExpenseID)
	}
	return fmt.Sprintf("expense %d is finalized: %s cannot change", e.ExpenseID, e.Field)
}

// DuplicateRegularizationError reports an existing active record for (lease, year).
type DuplicateRegularizationError struct {
	LeaseID    int64
	Year       int
	ExistingID int64
}

func (e *DuplicateRegularizationError) Error() string {
	if e.ExistingID == 0 {
		return fmt.Sprintf("regularization for lease %d year %d already committed", e.LeaseID, e.Year)
	}
	return fmt.Sprintf("regularization for lease %d year %d already committed as %d",
		e.LeaseID, e.Year, e.ExistingID)
}

// DuplicateRevisionError reports an existing financial period at the effective date.
type DuplicateRevisionError struct {
	LeaseID       int64
	EffectiveDate time.Time
}

func (e *DuplicateRevisionError) Error() string {
	return fmt.Sprintf("lease %d already has a period starting %s",
		e.LeaseID, e.EffectiveDate.Format(time.DateOnly))
}

// IntegrityMismatchError reports caller totals that disagree with the ledger.
type IntegrityMismatchError struct {
	Field     string
	Submitted int64
	Computed  int64
}

func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: submitted %d, computed %d", e.Field, e.Submitted, e.Computed)
}

// IndexUnavailableError reports a missing reference index value.
type IndexUnavailableError struct {
	Date    time.Time
	Year    int
	Quarter int
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("no reference index published for %d-Q%d or the preceding quarter (date %s)",
		e.Year, e.Quarter, e.Date.Format(time.DateOnly))
}
