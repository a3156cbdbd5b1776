package index

import (
	"context"
	"errors"
	"time"

	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
)

// Source reads one index series from the store.
type Source struct {
	store  repository.IndexStore
	series string
}

// NewSource creates a Source for series.
func NewSource(store repository.IndexStore, series string) *Source {
	return &Source{store: store, series: series}
}

// Series returns the series name.
func (s *Source) Series() string {
	return s.series
}

// ValueAt returns the value published for the quarter containing date, or
// for the quarter immediately before it. Anything older is not used: the
// result is IndexUnavailableError instead.
func (s *Source) ValueAt(ctx context.Context, date time.Time) (models.IndexPoint, error) {
	q := QuarterOf(date)
	for _, candidate := range []Quarter{q, q.Prev()} {
		p, err := s.store.Get(ctx, s.series, candidate.Year, candidate.Q)
		if err == nil {
			return *p, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return models.IndexPoint{}, err
		}
	}
	return models.IndexPoint{}, &models.IndexUnavailableError{Date: date, Year: q.Year, Quarter: q.Q}
}
