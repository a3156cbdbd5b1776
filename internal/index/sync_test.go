package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/lease-engine/internal/repository/memstore"
)

func TestSyncer_Sync(t *testing.T) {
	t.Parallel()

	t.Run("upserts fetched values", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		store := memstore.New()

		n, err := NewSyncer(&countingFetcher{}, store.Index(), "IRL").Sync(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		p, err := store.Index().Get(ctx, "IRL", 2024, 1)
		require.NoError(t, err)
		require.True(t, decimal.RequireFromString("143.46").Equal(p.Value))
	})

	t.Run("fetch failure writes nothing", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()

		_, err := NewSyncer(&countingFetcher{err: errors.New("down")}, store.Index(), "IRL").Sync(context.Background())
		require.ErrorContains(t, err, "down")

		points, err := store.Index().List(context.Background(), "IRL")
		require.NoError(t, err)
		require.Empty(t, points)
	})
}

func TestLoadSeriesFile(t *testing.T) {
	t.Parallel()

	t.Run("loads into store", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "irl.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
series: irl
values:
  - {year: 2023, quarter: 4, value: "142.06"}
  - {year: 2024, quarter: 1, value: "143.46"}
`), 0o600))

		f, err := LoadSeriesFile(path)
		require.NoError(t, err)
		require.Equal(t, "IRL", f.Series)

		store := memstore.New()
		n, err := f.Load(context.Background(), store.Index())
		require.NoError(t, err)
		require.Equal(t, 2, n)

		p, err := store.Index().Get(context.Background(), "IRL", 2023, 4)
		require.NoError(t, err)
		require.True(t, decimal.RequireFromString("142.06").Equal(p.Value))
	})

	tests := map[string]string{
		"missing series": "values: []",
		"bad value":      "series: IRL\nvalues:\n  - {year: 2024, quarter: 1, value: abc}",
		"bad quarter":    "series: IRL\nvalues:\n  - {year: 2024, quarter: 0, value: \"1\"}",
		"unknown field":  "series: IRL\nsource: insee\nvalues: []",
		"too precise":    "series: IRL\nvalues:\n  - {year: 2024, quarter: 1, value: \"143.465\"}",
		"too large":      "series: IRL\nvalues:\n  - {year: 2024, quarter: 1, value: \"100000000\"}",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSeries([]byte(body))
			require.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadSeriesFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
