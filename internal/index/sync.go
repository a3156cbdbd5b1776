package index

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
)

// Syncer copies a published series into the store.
type Syncer struct {
	fetcher Fetcher
	store   repository.IndexStore
	series  string
}

// NewSyncer creates a Syncer.
func NewSyncer(fetcher Fetcher, store repository.IndexStore, series string) *Syncer {
	return &Syncer{fetcher: fetcher, store: store, series: series}
}

// Sync upserts every fetched value and returns how many were written.
// Published values are authoritative: a corrected value replaces the
// stored one.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	points, err := s.fetcher.FetchSeries(ctx, s.series)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch index series %s: %w", s.series, err)
	}

	for _, p := range points {
		if err := validatePoint(p); err != nil {
			return 0, err
		}
		if err := s.store.Upsert(ctx, s.series, p); err != nil {
			return 0, err
		}
	}

	logger.Log.Info().
		Str("series", s.series).
		Int("values", len(points)).
		Msg("Index series synced")
	return len(points), nil
}
