package search

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/domain/track"
)

// CandidateSource is a metadata-only catalog (e.g. Spotify, Last.fm).
type CandidateSource interface {
	Candidates(ctx context.Context, query string, limit int) ([]track.Candidate, error)
	Name() string
}

// Resolver turns catalog candidates into playable tracks by looking each one
// up with a video provider and keeping the first hit.
type Resolver struct {
	source CandidateSource
	video  Provider
	limit  int
}

// NewResolver creates a resolving provider.
func NewResolver(source CandidateSource, video Provider, limit int) *Resolver {
	if limit <= 0 {
		limit = 5
	}
	return &Resolver{source: source, video: video, limit: limit}
}

// Search implements Provider.
func (r *Resolver) Search(ctx context.Context, query string) ([]track.Track, error) {
	candidates, err := r.source.Candidates(ctx, query, r.limit)
	if err != nil {
		return nil, errors.Wrapf(err, "%s candidates", r.source.Name())
	}

	seen := make(map[string]bool, len(candidates))
	result := make([]track.Track, 0, len(candidates))
	var lastErr error
	for _, c := range candidates {
		hits, err := r.video.Search(ctx, c.Query())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			zlog.Debug().Msgf("search: resolve failed: source=%s candidate=%q error=%v", r.source.Name(), c.Query(), err)
			lastErr = err
			continue
		}
		if len(hits) == 0 || seen[hits[0].ID] {
			continue
		}

		t, err := c.Bind(hits[0])
		if err != nil {
			continue
		}
		seen[t.ID] = true
		result = append(result, t)
	}

	if len(result) == 0 && lastErr != nil {
		return nil, errors.Wrap(lastErr, "no candidate could be resolved")
	}
	return result, nil
}

// Name implements Provider.
func (r *Resolver) Name() string {
	return r.source.Name()
}
