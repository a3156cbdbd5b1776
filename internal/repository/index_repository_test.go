package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

func TestIndexRepository(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()
	repo := NewIndexRepository(tx)

	require.NoError(t, repo.Upsert(ctx, "IRL", models.IndexPoint{Year: 2024, Quarter: 2, Value: decimal.RequireFromString("145.17")}))
	require.NoError(t, repo.Upsert(ctx, "IRL", models.IndexPoint{Year: 2024, Quarter: 1, Value: decimal.RequireFromString("143.46")}))
	require.NoError(t, repo.Upsert(ctx, "IRL", models.IndexPoint{Year: 2024, Quarter: 1, Value: decimal.RequireFromString("143.50")}))

	p, err := repo.Get(ctx, "IRL", 2024, 1)
	require.NoError(t, err)
	require.True(t, p.Value.Equal(decimal.RequireFromString("143.50")))

	_, err = repo.Get(ctx, "IRL", 2019, 1)
	require.True(t, errors.Is(err, models.ErrNotFound))

	all, err := repo.List(ctx, "IRL")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 1, all[0].Quarter)
}
