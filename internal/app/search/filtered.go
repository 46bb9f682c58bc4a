package search

import (
	"context"

	"github.com/osa030/voxbox/internal/domain/track"
)

// TrackFilter drops unwanted tracks from a result.
type TrackFilter interface {
	Apply(tracks []track.Track) []track.Track
}

// Filtered applies a TrackFilter to every result of next.
// A result filtered down to nothing is an empty result, not an error.
type Filtered struct {
	next   Provider
	filter TrackFilter
}

// NewFiltered wraps next with filter.
func NewFiltered(next Provider, filter TrackFilter) *Filtered {
	return &Filtered{next: next, filter: filter}
}

// Search implements Provider.
func (f *Filtered) Search(ctx context.Context, query string) ([]track.Track, error) {
	tracks, err := f.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return f.filter.Apply(tracks), nil
}

// Name implements Provider.
func (f *Filtered) Name() string {
	return "filtered_" + f.next.Name()
}
