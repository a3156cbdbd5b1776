// Package allocator computes how much of a dated financial fact falls inside
// a date range. Every function here is pure.
package allocator

import (
	"cmp"
	"slices"
	"time"

	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// Range is a half-open date range [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Year returns the calendar year y as a range.
func Year(y int) Range {
	return Range{
		Start: models.NewDate(y, time.January, 1),
		End:   models.NewDate(y+1, time.January, 1),
	}
}

// Contains reports whether d falls inside r.
func (r Range) Contains(d time.Time) bool {
	d = models.Date(d)
	return !d.Before(r.Start) && d.Before(r.End)
}

// Expense returns the contribution of e to r. Expenses are discrete ledger
// entries: the stored total belongs to its occurrence date whatever the
// frequency says.
func Expense(e *models.Expense, r Range) int64 {
	if !r.Contains(e.DateOccurred) {
		return 0
	}
	return e.AmountTotal
}

// Recoverable returns the recoverable share of e that falls inside r.
func Recoverable(e *models.Expense, r Range) int64 {
	if !e.IsRecoverable {
		return 0
	}
	if !r.Contains(e.DateOccurred) {
		return 0
	}
	return e.AmountRecoverable
}

// MonthsOfOverlap counts the calendar months in which [start, end) and r
// intersect. A partially covered month counts as a whole month. A nil end
// means the span is open.
func MonthsOfOverlap(start time.Time, end *time.Time, r Range) int {
	from := models.Date(start)
	if from.Before(r.Start) {
		from = r.Start
	}
	to := r.End
	if end != nil && models.Date(*end).Before(to) {
		to = models.Date(*end)
	}
	if !from.Before(to) {
		return 0
	}

	last := to.AddDate(0, 0, -1)
	return (last.Year()-from.Year())*12 + int(last.Month()) - int(from.Month()) + 1
}

// Span is a financial period with its effective end resolved.
type Span struct {
	Period models.LeaseFinancialPeriod
	End    *time.Time
}

// Spans orders periods by start date and closes each one at the earlier of
// its own end date and the next period's start.
func Spans(periods []models.LeaseFinancialPeriod) []Span {
	sorted := slices.Clone(periods)
	slices.SortStableFunc(sorted, func(a, b models.LeaseFinancialPeriod) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	spans := make([]Span, len(sorted))
	for i, p := range sorted {
		end := p.EndDate
		if i+1 < len(sorted) {
			next := sorted[i+1].StartDate
			if end == nil || next.Before(*end) {
				end = &next
			}
		}
		spans[i] = Span{Period: p, End: end}
	}
	return spans
}

// ProvisionLine is one period's provision contribution to a range.
type ProvisionLine struct {
	PeriodID     int64
	StartDate    time.Time
	EndDate      *time.Time
	MonthlyCents int64
	Months       int
	AmountCents  int64
}

// Provisions allocates the monthly service charge provisions of periods into r.
// Periods that do not touch r are omitted from the lines.
func Provisions(periods []models.LeaseFinancialPeriod, r Range) (int64, []ProvisionLine) {
	var total int64
	var lines []ProvisionLine
	for _, s := range Spans(periods) {
		months := MonthsOfOverlap(s.Period.StartDate, s.End, r)
		if months == 0 {
			continue
		}
		amount := s.Period.ServiceChargesCents * int64(months)
		total += amount
		lines = append(lines, ProvisionLine{
			PeriodID:     s.Period.ID,
			StartDate:    s.Period.StartDate,
			EndDate:      s.End,
			MonthlyCents: s.Period.ServiceChargesCents,
			Months:       months,
			AmountCents:  amount,
		})
	}
	return total, lines
}
