package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

func TestRegularizationRepository_CreateAndSupersede(t *testing.T) {
	f, ctx := setupFixture(t)
	regs := f.store.Regularizations()

	e := f.expense(t, ctx, 12000, 12000, models.NewDate(2024, time.March, 4))

	original := &models.Regularization{
		Reference:                     uuid.New(),
		LeaseID:                       f.lease.ID,
		PropertyID:                    f.property.ID,
		Year:                          2024,
		TotalRecoverableExpensesCents: 12000,
		TotalProvisionsReceivedCents:  18000,
		BalanceCents:                  -6000,
		Lines: []models.RegularizationLine{
			{ExpenseID: e.ID, Category: e.Category, Label: e.Label, DateOccurred: e.DateOccurred, AmountRecoverable: 12000},
		},
		CommittedBy: f.owner.ID,
	}
	require.NoError(t, regs.Create(ctx, original))
	require.Equal(t, []int64{e.ID}, original.IncludedExpenseIDs)

	active, err := regs.GetActive(ctx, f.lease.ID, 2024)
	require.NoError(t, err)
	require.Equal(t, original.ID, active.ID)
	require.Len(t, active.Lines, 1)

	replacement := &models.Regularization{
		Reference:                     uuid.New(),
		LeaseID:                       f.lease.ID,
		PropertyID:                    f.property.ID,
		Year:                          2024,
		TotalRecoverableExpensesCents: 0,
		TotalProvisionsReceivedCents:  18000,
		BalanceCents:                  -18000,
		SupersedesID:                  &original.ID,
		CommittedBy:                   f.owner.ID,
	}
	require.NoError(t, regs.Create(ctx, replacement))

	active, err = regs.GetActive(ctx, f.lease.ID, 2024)
	require.NoError(t, err)
	require.Equal(t, replacement.ID, active.ID)
	require.Empty(t, active.IncludedExpenseIDs)

	_, err = regs.GetActive(ctx, f.lease.ID, 2023)
	require.True(t, errors.Is(err, models.ErrNotFound))

	// Unique violation aborts the transaction, so this check runs last.
	again := *original
	again.ID = 0
	again.Reference = uuid.New()
	again.Lines = nil
	err = regs.Create(ctx, &again)
	var dupErr *models.DuplicateRegularizationError
	require.True(t, errors.As(err, &dupErr))
}
