package revision

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/lease-engine/internal/models"
	"pgregory.net/rapid"
)

func TestNextAnniversary(t *testing.T) {
	t.Parallel()

	d := models.NewDate
	tests := []struct {
		name  string
		start time.Time
		today time.Time
		want  time.Time
	}{
		{"later this year", d(2020, 6, 1), d(2024, 3, 15), d(2024, 6, 1)},
		{"today is the anniversary", d(2020, 6, 1), d(2024, 6, 1), d(2024, 6, 1)},
		{"passed this year", d(2020, 6, 1), d(2024, 6, 2), d(2025, 6, 1)},
		{"today is the signing date", d(2024, 6, 15), d(2024, 6, 15), d(2024, 6, 15)},
		{"today before the signing date", d(2024, 6, 15), d(2024, 3, 1), d(2024, 6, 15)},
		{"signing year, date passed", d(2024, 6, 15), d(2024, 7, 1), d(2025, 6, 15)},
		{"leap day in a common year", d(2020, 2, 29), d(2023, 1, 10), d(2023, 2, 28)},
		{"leap day in a leap year", d(2020, 2, 29), d(2024, 1, 10), d(2024, 2, 29)},
		{"leap day just passed", d(2020, 2, 29), d(2023, 3, 1), d(2024, 2, 29)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, NextAnniversary(tt.start, tt.today))
		})
	}
}

func TestLastAnniversary(t *testing.T) {
	t.Parallel()

	d := models.NewDate
	_, ok := LastAnniversary(d(2024, 6, 1), d(2025, 5, 31))
	require.False(t, ok)

	last, ok := LastAnniversary(d(2024, 6, 1), d(2025, 6, 1))
	require.True(t, ok)
	require.Equal(t, d(2025, 6, 1), last)

	last, ok = LastAnniversary(d(2024, 6, 1), d(2026, 2, 1))
	require.True(t, ok)
	require.Equal(t, d(2025, 6, 1), last)

	_, ok = LastAnniversary(d(2024, 6, 1), d(2024, 6, 1))
	require.False(t, ok, "signing date is not an anniversary")

	last, ok = LastAnniversary(d(2020, 2, 29), d(2023, 3, 1))
	require.True(t, ok)
	require.Equal(t, d(2023, 2, 28), last)

	require.Equal(t, d(2025, 6, 1), FirstRevisionDate(d(2024, 6, 1)))
}

func TestNextAnniversary_Properties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		start := models.NewDate(2000, time.January, 1).AddDate(0, 0, rapid.IntRange(0, 365*30).Draw(t, "start"))
		today := models.NewDate(2000, time.January, 1).AddDate(0, 0, rapid.IntRange(0, 365*40).Draw(t, "today"))

		next := NextAnniversary(start, today)
		require.False(t, next.Before(today), "anniversary %s before today %s", next, today)
		require.True(t, next.Year() == today.Year() || next.Year() == today.Year()+1)
		require.Equal(t, start.Month(), next.Month())
		if !(start.Month() == time.February && start.Day() == 29) {
			require.Equal(t, start.Day(), next.Day())
		}
		require.True(t, next.Before(today.AddDate(1, 0, 1)))
	})
}

func TestIndexedRent(t *testing.T) {
	t.Parallel()

	dec := decimal.RequireFromString
	require.Equal(t, int64(86700), IndexedRent(85000, dec("140.0"), dec("142.8")))
	require.Equal(t, int64(85000), IndexedRent(85000, dec("140.0"), dec("140.00")))
	require.Equal(t, int64(1), IndexedRent(1, dec("2"), dec("1")), "half rounds up")
	require.Equal(t, int64(0), IndexedRent(1, dec("3"), dec("1")))
	require.Equal(t, int64(0), IndexedRent(0, dec("140"), dec("150")))
	require.Equal(t, int64(78519), IndexedRent(77000, dec("130.26"), dec("132.83")))
}

func TestIndexedRent_Properties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		rent := rapid.Int64Range(0, 10_000_000).Draw(t, "rent")
		base := decimal.New(rapid.Int64Range(5000, 30000).Draw(t, "base"), -2)
		higher := base.Add(decimal.New(rapid.Int64Range(0, 2000).Draw(t, "delta"), -2))

		require.Equal(t, rent, IndexedRent(rent, base, base), "equal indexes keep the rent")

		got := IndexedRent(rent, base, higher)
		require.GreaterOrEqual(t, got, rent)
		require.GreaterOrEqual(t, got, int64(0))

		exact := decimal.NewFromInt(rent).Mul(higher).Div(base)
		require.True(t, exact.Sub(decimal.NewFromInt(got)).Abs().LessThanOrEqual(decimal.New(5, -1)))
	})
}
