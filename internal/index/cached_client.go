package index

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"gitlab.com/yelinaung/lease-engine/internal/models"
)

type cachedSeries struct {
	points    []models.IndexPoint
	expiresAt time.Time
}

type inFlightCall struct {
	done   chan struct{}
	points []models.IndexPoint
	err    error
}

// CachedClient wraps a Fetcher with an in-memory TTL cache keyed by series.
// Concurrent misses for one series share a single upstream request.
type CachedClient struct {
	inner Fetcher
	ttl   time.Duration

	mu       sync.Mutex
	series   map[string]cachedSeries
	inFlight map[string]*inFlightCall
}

// NewCachedClient returns a Fetcher that caches series in memory.
func NewCachedClient(inner Fetcher, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &CachedClient{
		inner:    inner,
		ttl:      ttl,
		series:   make(map[string]cachedSeries),
		inFlight: make(map[string]*inFlightCall),
	}
}

// FetchSeries returns the cached series when fresh.
func (c *CachedClient) FetchSeries(ctx context.Context, series string) ([]models.IndexPoint, error) {
	if c.inner == nil {
		return nil, errors.New("inner index fetcher is required")
	}

	key := strings.ToUpper(strings.TrimSpace(series))
	now := time.Now()

	c.mu.Lock()
	if entry, ok := c.series[key]; ok {
		if now.Before(entry.expiresAt) {
			c.mu.Unlock()
			return slices.Clone(entry.points), nil
		}
		delete(c.series, key)
	}

	if call, waiting := c.inFlight[key]; waiting {
		c.mu.Unlock()
		return waitForInFlight(ctx, call)
	}

	call := &inFlightCall{done: make(chan struct{})}
	c.inFlight[key] = call
	c.mu.Unlock()

	// Detached so one caller's deadline cannot fail every waiter.
	go c.fetchAndBroadcast(context.WithoutCancel(ctx), key, call)
	return waitForInFlight(ctx, call)
}

func (c *CachedClient) fetchAndBroadcast(ctx context.Context, key string, call *inFlightCall) {
	points, err := c.inner.FetchSeries(ctx, key)

	fetchedAt := time.Now()
	c.mu.Lock()
	if err == nil {
		c.series[key] = cachedSeries{points: points, expiresAt: fetchedAt.Add(c.ttl)}
	}
	call.points = points
	call.err = err
	delete(c.inFlight, key)
	close(call.done)
	c.mu.Unlock()
}

func waitForInFlight(ctx context.Context, call *inFlightCall) ([]models.IndexPoint, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
		if call.err != nil {
			return nil, call.err
		}
		return slices.Clone(call.points), nil
	}
}
