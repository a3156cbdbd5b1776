package index

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/repository/memstore"
)

func TestSource_ValueAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()
	for _, p := range []models.IndexPoint{
		{Year: 2023, Quarter: 2, Value: decimal.RequireFromString("140.59")},
		{Year: 2024, Quarter: 2, Value: decimal.RequireFromString("145.17")},
	} {
		require.NoError(t, store.Index().Upsert(ctx, "IRL", p))
	}
	src := NewSource(store.Index(), "IRL")

	t.Run("quarter containing the date", func(t *testing.T) {
		t.Parallel()
		p, err := src.ValueAt(ctx, models.NewDate(2024, time.May, 1))
		require.NoError(t, err)
		require.Equal(t, 2, p.Quarter)
		require.True(t, decimal.RequireFromString("145.17").Equal(p.Value))
	})

	t.Run("falls back to the preceding quarter", func(t *testing.T) {
		t.Parallel()
		p, err := src.ValueAt(ctx, models.NewDate(2024, time.August, 15))
		require.NoError(t, err)
		require.Equal(t, 2024, p.Year)
		require.Equal(t, 2, p.Quarter)
	})

	t.Run("older values are not used", func(t *testing.T) {
		t.Parallel()
		_, err := src.ValueAt(ctx, models.NewDate(2024, time.January, 10))
		var unavailable *models.IndexUnavailableError
		require.ErrorAs(t, err, &unavailable)
		require.Equal(t, 2024, unavailable.Year)
		require.Equal(t, 1, unavailable.Quarter)
	})

	t.Run("other series are independent", func(t *testing.T) {
		t.Parallel()
		_, err := NewSource(store.Index(), "ILC").ValueAt(ctx, models.NewDate(2024, time.May, 1))
		var unavailable *models.IndexUnavailableError
		require.ErrorAs(t, err, &unavailable)
	})
}
