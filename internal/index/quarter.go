// Package index resolves published quarterly reference index values used
// for rent revision, and keeps the local series in sync with its publisher.
package index

import (
	"fmt"
	"time"

	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// Quarter is a calendar quarter, Q in 1..4.
type Quarter struct {
	Year int
	Q    int
}

// QuarterOf returns the quarter containing d.
func QuarterOf(d time.Time) Quarter {
	return Quarter{Year: d.Year(), Q: (int(d.Month())-1)/3 + 1}
}

// Prev returns the quarter before q.
func (q Quarter) Prev() Quarter {
	if q.Q == 1 {
		return Quarter{Year: q.Year - 1, Q: 4}
	}
	return Quarter{Year: q.Year, Q: q.Q - 1}
}

// Start returns the first day of q.
func (q Quarter) Start() time.Time {
	return models.NewDate(q.Year, time.Month((q.Q-1)*3+1), 1)
}

// Valid reports whether q names a real quarter.
func (q Quarter) Valid() bool {
	return q.Q >= 1 && q.Q <= 4 && q.Year > 0
}

func (q Quarter) String() string {
	return fmt.Sprintf("%d-Q%d", q.Year, q.Q)
}
