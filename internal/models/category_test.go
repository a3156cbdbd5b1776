package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCategoryRules(t *testing.T) {
	t.Parallel()

	for _, c := range AllCategories {
		t.Run(string(c), func(t *testing.T) {
			t.Parallel()
			require.True(t, c.Valid())
			require.NotEmpty(t, c.Rule())
			require.Equal(t, c.Rule() == RulePartial, c.DefaultRecoverable())
		})
	}

	require.Equal(t, RuleFull, CategoryTaxProperty.Rule())
	require.Equal(t, RulePartial, CategoryColdWater.Rule())
	require.Equal(t, RuleManual, CategoryOther.Rule())
	require.False(t, Category("PARKING").Valid())
	require.Empty(t, Category("PARKING").Rule())
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	c, err := ParseCategory(" cold_water ")
	require.NoError(t, err)
	require.Equal(t, CategoryColdWater, c)

	_, err = ParseCategory("swimming_pool")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "category", verr.Field)
}

func TestDeductible(t *testing.T) {
	t.Parallel()

	t.Run("manual requires a value", func(t *testing.T) {
		t.Parallel()
		_, err := Deductible(RuleManual, 1000, 0, nil)
		require.Error(t, err)
	})

	t.Run("manual is bounded by total", func(t *testing.T) {
		t.Parallel()
		over := int64(1001)
		_, err := Deductible(RuleManual, 1000, 0, &over)
		require.Error(t, err)

		ok := int64(400)
		got, err := Deductible(RuleManual, 1000, 0, &ok)
		require.NoError(t, err)
		require.Equal(t, int64(400), got)
	})
}

func TestDeductible_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.Int64Range(1, 1_000_000_00).Draw(t, "total")
		recoverable := rapid.Int64Range(0, total).Draw(t, "recoverable")

		full, err := Deductible(RuleFull, total, recoverable, nil)
		if err != nil || full != total {
			t.Fatalf("full: got %d, %v", full, err)
		}
		partial, err := Deductible(RulePartial, total, recoverable, nil)
		if err != nil || partial != total-recoverable {
			t.Fatalf("partial: got %d, %v", partial, err)
		}
		none, err := Deductible(RuleNone, total, recoverable, nil)
		if err != nil || none != 0 {
			t.Fatalf("none: got %d, %v", none, err)
		}
	})
}

func TestValidCalendarDate(t *testing.T) {
	t.Parallel()

	require.True(t, ValidCalendarDate(2024, time.February, 29))
	require.False(t, ValidCalendarDate(2023, time.February, 29))
	require.False(t, ValidCalendarDate(2024, time.April, 31))
	require.False(t, ValidCalendarDate(2024, 13, 1))
	require.False(t, ValidCalendarDate(2024, time.January, 0))
}

func TestExpenseAppliesToUnit(t *testing.T) {
	t.Parallel()

	unitA, unitB := int64(1), int64(2)
	whole := &Expense{}
	scoped := &Expense{RentalUnitID: &unitA}

	require.True(t, whole.AppliesToUnit(&unitA))
	require.True(t, scoped.AppliesToUnit(&unitA))
	require.False(t, scoped.AppliesToUnit(&unitB))
	require.True(t, scoped.AppliesToUnit(nil))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("dateOccurred", "2024-02-29")
	require.NoError(t, err)
	require.Equal(t, NewDate(2024, time.February, 29), d)

	for _, bad := range []string{"2023-02-29", "2024-13-01", "2024-04-31", "24-01-01", "yesterday", "2024-01-05x"} {
		_, err := ParseDate("dateOccurred", bad)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, bad)
		require.Equal(t, "dateOccurred", vErr.Field)
	}
}
