package search

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/domain/track"
)

// Cache stores search results by query.
type Cache interface {
	// Get returns the cached tracks and whether the query was present.
	Get(ctx context.Context, query string) ([]track.Track, bool, error)
	// Set stores tracks for the query.
	Set(ctx context.Context, query string, tracks []track.Track) error
}

// Cached serves repeated queries from a Cache.
// Cache failures never fail a search; only non-empty results are stored.
type Cached struct {
	next  Provider
	cache Cache
}

// NewCached wraps next with cache.
func NewCached(next Provider, cache Cache) *Cached {
	return &Cached{next: next, cache: cache}
}

// Search implements Provider.
func (c *Cached) Search(ctx context.Context, query string) ([]track.Track, error) {
	tracks, ok, err := c.cache.Get(ctx, query)
	switch {
	case err != nil:
		zlog.Warn().Msgf("search: cache get failed: query=%q error=%v", query, err)
	case ok:
		zlog.Debug().Msgf("search: cache hit: query=%q count=%d", query, len(tracks))
		return tracks, nil
	}

	tracks, err = c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(tracks) > 0 {
		if err := c.cache.Set(ctx, query, tracks); err != nil {
			zlog.Warn().Msgf("search: cache set failed: query=%q error=%v", query, err)
		}
	}
	return tracks, nil
}

// Name implements Provider.
func (c *Cached) Name() string {
	return "cached_" + c.next.Name()
}
