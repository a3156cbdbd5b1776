package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

type fixture struct {
	store    *PGStore
	owner    *models.User
	property *models.Property
	lease    *models.Lease
}

func setupFixture(t *testing.T) (*fixture, context.Context) {
	t.Helper()

	tx := database.TestTx(t)
	ctx := context.Background()
	store := NewPGStore(tx, tx)

	owner := &models.User{ID: 4242, Username: "landlord", DisplayName: "Land Lord"}
	require.NoError(t, store.Users().Upsert(ctx, owner))

	property := &models.Property{OwnerID: owner.ID, Name: "12 rue des Lilas"}
	require.NoError(t, store.Properties().Create(ctx, property))

	lease := &models.Lease{
		PropertyID: property.ID,
		TenantName: "Tenant",
		StartDate:  models.NewDate(2022, time.September, 1),
	}
	require.NoError(t, store.Leases().Create(ctx, lease))

	return &fixture{store: store, owner: owner, property: property, lease: lease}, ctx
}

func (f *fixture) expense(t *testing.T, ctx context.Context, total, recoverable int64, day time.Time) *models.Expense {
	t.Helper()

	e := &models.Expense{
		PropertyID:        f.property.ID,
		Category:          models.CategoryColdWater,
		Label:             "water",
		AmountTotal:       total,
		DateOccurred:      day,
		Frequency:         models.FrequencyOnce,
		IsRecoverable:     recoverable > 0,
		AmountRecoverable: recoverable,
		AmountDeductible:  total - recoverable,
	}
	require.NoError(t, f.store.Expenses().Create(ctx, e))
	return e
}
