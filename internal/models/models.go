// Package models defines the domain entities for the lease charge engine.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxLabelLength is the maximum allowed length for expense labels.
const MaxLabelLength = 200

// User represents a landlord account.
type User struct {
	ID             int64
	Username       string
	DisplayName    string
	TelegramChatID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Property is a building or dwelling owned by a landlord.
type Property struct {
	ID        int64
	OwnerID   int64
	Name      string
	CreatedAt time.Time
}

// Lease binds a tenant to a property, or to one rental unit of it.
type Lease struct {
	ID           int64
	PropertyID   int64
	RentalUnitID *int64
	TenantName   string
	StartDate    time.Time
	CreatedAt    time.Time
}

// Frequency is informational only; allocation never multiplies by it.
type Frequency string

// Expense frequencies.
const (
	FrequencyOnce      Frequency = "ONCE"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyYearly    Frequency = "YEARLY"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// Expense is a dated operating cost recorded against a property.
type Expense struct {
	ID                int64
	PropertyID        int64
	RentalUnitID      *int64
	Category          Category
	Label             string
	AmountTotal       int64
	DateOccurred      time.Time
	Frequency         Frequency
	IsRecoverable     bool
	AmountRecoverable int64
	AmountDeductible  int64
	ProofReference    string
	IsFinalized       bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AppliesToUnit reports whether the expense is in scope for a lease on unitID.
// A nil unitID means the lease covers the whole property.
func (e *Expense) AppliesToUnit(unitID *int64) bool {
	if unitID == nil || e.RentalUnitID == nil {
		return true
	}
	return *e.RentalUnitID == *unitID
}

// PeriodSource records what created a financial period.
type PeriodSource string

// Period sources.
const (
	PeriodSourceSigning  PeriodSource = "signing"
	PeriodSourceRevision PeriodSource = "revision"
)

// LeaseFinancialPeriod is one contiguous span of rent and provision amounts.
type LeaseFinancialPeriod struct {
	ID                  int64
	LeaseID             int64
	StartDate           time.Time
	EndDate             *time.Time
	BaseRentCents       int64
	ServiceChargesCents int64
	Source              PeriodSource
	BaseIndex           *IndexPoint
	NewIndex            *IndexPoint
	CreatedAt           time.Time
}

// Regularization is the committed annual reconciliation for one lease.
// Records are never updated; recomputation creates a superseding record.
type Regularization struct {
	ID                            int64
	Reference                     uuid.UUID
	LeaseID                       int64
	PropertyID                    int64
	Year                          int
	TotalRecoverableExpensesCents int64
	TotalProvisionsReceivedCents  int64
	BalanceCents                  int64
	IncludedExpenseIDs            []int64
	Lines                         []RegularizationLine
	SupersedesID                  *int64
	CommittedBy                   int64
	CommittedAt                   time.Time
}

// RegularizationLine is the snapshot of one expense included in a record.
type RegularizationLine struct {
	ExpenseID         int64
	Category          Category
	Label             string
	DateOccurred      time.Time
	AmountRecoverable int64
}

// TenantOwes reports whether the balance is an additional bill for the tenant.
func (r *Regularization) TenantOwes() bool {
	return r.BalanceCents > 0
}

// IndexValueScale is the number of decimals an index value may carry, and
// IndexValueLimit the exclusive upper bound. Both match the storage column.
const IndexValueScale = 2

var IndexValueLimit = decimal.New(1, 8)

// IndexPoint is one published quarterly reference index value.
type IndexPoint struct {
	Year    int
	Quarter int
	Value   decimal.Decimal
}

// Date returns the calendar date of t at midnight UTC.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDate builds a UTC calendar date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ValidCalendarDate reports whether year/month/day name a real date.
func ValidCalendarDate(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 {
		return false
	}
	d := NewDate(year, month, day)
	return d.Year() == year && d.Month() == month && d.Day() == day
}

// ParseDate parses a YYYY-MM-DD calendar date. Impossible dates such as
// 2024-02-30 are rejected with a ValidationError naming field.
func ParseDate(field, s string) (time.Time, error) {
	var y, m, d int
	s = strings.TrimSpace(s)
	if n, err := fmt.Sscanf(s, "%4d-%2d-%2d", &y, &m, &d); err != nil || n != 3 || len(s) != len(time.DateOnly) {
		return time.Time{}, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	if !ValidCalendarDate(y, time.Month(m), d) {
		return time.Time{}, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a real calendar date", s)}
	}
	return NewDate(y, time.Month(m), d), nil
}
