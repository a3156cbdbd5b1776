package revision

import (
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// AnniversaryIn returns the anniversary of start in year. A lease signed on
// February 29 has its anniversary on February 28 in common years.
func AnniversaryIn(start time.Time, year int) time.Time {
	day := start.Day()
	if start.Month() == time.February && day == 29 && !models.ValidCalendarDate(year, time.February, 29) {
		day = 28
	}
	return models.NewDate(year, start.Month(), day)
}

// NextAnniversary returns this year's occurrence of the lease month and
// day, or next year's when this year's is strictly before today. The
// result is never before today.
func NextAnniversary(leaseStart, today time.Time) time.Time {
	today = models.Date(today)
	a := AnniversaryIn(leaseStart, today.Year())
	if a.Before(today) {
		a = AnniversaryIn(leaseStart, today.Year()+1)
	}
	return a
}

// FirstRevisionDate returns the first anniversary after the signing year.
// A revision cannot take effect before it.
func FirstRevisionDate(leaseStart time.Time) time.Time {
	return AnniversaryIn(leaseStart, leaseStart.Year()+1)
}

// LastAnniversary returns the latest anniversary of leaseStart on or before
// today, and false while today is before FirstRevisionDate. The signing
// date itself does not count.
func LastAnniversary(leaseStart, today time.Time) (time.Time, bool) {
	today = models.Date(today)
	if today.Before(FirstRevisionDate(leaseStart)) {
		return time.Time{}, false
	}
	a := AnniversaryIn(leaseStart, today.Year())
	if a.After(today) {
		a = AnniversaryIn(leaseStart, today.Year()-1)
	}
	return a, true
}

// IndexedRent returns current × newIndex / base rounded to the nearest
// cent, halves away from zero. The division is exact decimal arithmetic.
func IndexedRent(currentCents int64, base, newIndex decimal.Decimal) int64 {
	if !base.IsPositive() || newIndex.IsNegative() || currentCents <= 0 {
		return max(currentCents, 0)
	}
	return decimal.NewFromInt(currentCents).Mul(newIndex).DivRound(base, 0).IntPart()
}
