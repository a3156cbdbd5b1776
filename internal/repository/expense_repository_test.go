package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

func TestExpenseRepository_CreateAndGet(t *testing.T) {
	f, ctx := setupFixture(t)

	e := f.expense(t, ctx, 12000, 12000, models.NewDate(2024, time.March, 4))
	require.NotZero(t, e.ID)
	require.False(t, e.IsFinalized)

	fetched, err := f.store.Expenses().GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, models.CategoryColdWater, fetched.Category)
	require.Equal(t, int64(12000), fetched.AmountRecoverable)
	require.True(t, fetched.DateOccurred.Equal(models.NewDate(2024, time.March, 4)))

	_, err = f.store.Expenses().GetByID(ctx, e.ID+1000)
	require.True(t, errors.Is(err, models.ErrNotFound))
}

func TestExpenseRepository_GetByPropertyAndDateRange(t *testing.T) {
	f, ctx := setupFixture(t)

	late := f.expense(t, ctx, 8000, 8000, models.NewDate(2024, time.November, 2))
	early := f.expense(t, ctx, 12000, 12000, models.NewDate(2024, time.February, 2))
	f.expense(t, ctx, 3000, 3000, models.NewDate(2025, time.January, 1))

	got, err := f.store.Expenses().GetByPropertyAndDateRange(ctx, f.property.ID,
		models.NewDate(2024, time.January, 1), models.NewDate(2025, time.January, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, early.ID, got[0].ID)
	require.Equal(t, late.ID, got[1].ID)
}

func TestExpenseRepository_FinalizeGuards(t *testing.T) {
	f, ctx := setupFixture(t)

	e := f.expense(t, ctx, 12000, 12000, models.NewDate(2024, time.March, 4))

	n, err := f.store.Expenses().Finalize(ctx, []int64{e.ID})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = f.store.Expenses().Finalize(ctx, []int64{e.ID})
	require.NoError(t, err)
	require.Zero(t, n, "already finalized rows are not counted")

	locked, err := f.store.Expenses().GetByIDsForUpdate(ctx, []int64{e.ID})
	require.NoError(t, err)
	require.Len(t, locked, 1)
	require.True(t, locked[0].IsFinalized)

	// The trigger aborts the transaction, so this check runs last.
	e.AmountTotal = 1
	err = f.store.Expenses().Update(ctx, e)
	var lockedErr *models.LockedError
	require.True(t, errors.As(err, &lockedErr))
}

func TestExpenseRepository_Delete(t *testing.T) {
	f, ctx := setupFixture(t)

	e := f.expense(t, ctx, 500, 0, models.NewDate(2024, time.March, 4))
	require.NoError(t, f.store.Expenses().Delete(ctx, e.ID))

	err := f.store.Expenses().Delete(ctx, e.ID)
	require.True(t, errors.Is(err, models.ErrNotFound))
}

func TestExpenseRepository_CheckViolationsAreNotLocks(t *testing.T) {
	f, ctx := setupFixture(t)

	e := f.expense(t, ctx, 12000, 12000, models.NewDate(2024, time.March, 4))

	update := func(mutate func(*models.Expense)) error {
		changed := *e
		mutate(&changed)
		// A savepoint per attempt keeps the test transaction usable.
		return f.store.InTx(ctx, func(s Store) error { return s.Expenses().Update(ctx, &changed) })
	}

	for name, mutate := range map[string]func(*models.Expense){
		"recoverable above total": func(x *models.Expense) { x.AmountRecoverable = x.AmountTotal + 1 },
		"negative deductible":     func(x *models.Expense) { x.AmountDeductible = -1 },
		"unknown frequency":       func(x *models.Expense) { x.Frequency = "WEEKLY" },
	} {
		err := update(mutate)
		require.Error(t, err, name)
		var lockedErr *models.LockedError
		require.False(t, errors.As(err, &lockedErr), name)
	}

	_, err := f.store.Expenses().Finalize(ctx, []int64{e.ID})
	require.NoError(t, err)

	err = update(func(x *models.Expense) { x.AmountTotal = 1 })
	var lockedErr *models.LockedError
	require.True(t, errors.As(err, &lockedErr))

	stored, err := f.store.Expenses().GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, int64(12000), stored.AmountTotal)
}
