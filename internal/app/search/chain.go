package search

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/domain/track"
)

var (
	// ErrNoProviders is returned by a chain without providers.
	ErrNoProviders = errors.New("no search providers configured")
	// ErrAllProvidersFailed is returned when every provider in a chain errored.
	ErrAllProvidersFailed = errors.New("all search providers failed")
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain tries multiple providers in order until one returns tracks.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a new provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{
		providers: providers,
	}
}

// Search returns the first non-empty result.
// Failing providers are skipped; the chain only fails when all of them fail.
func (c *Chain) Search(ctx context.Context, query string) ([]track.Track, error) {
	if len(c.providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	failures := 0
	for i, pm := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		zlog.Debug().Msgf("search: trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		tracks, err := pm.Provider.Search(ctx, query)
		if err != nil {
			zlog.Warn().Msgf("search: provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			lastErr = err
			failures++
			continue
		}

		if len(tracks) == 0 {
			zlog.Debug().Msgf("search: provider returned no tracks: provider=%s query=%q", pm.DisplayName, query)
			continue
		}

		zlog.Info().Msgf("search: provider returned tracks: provider=%s query=%q count=%d",
			pm.DisplayName, query, len(tracks))
		return tracks, nil
	}

	if failures == len(c.providers) {
		return nil, errors.Wrapf(ErrAllProvidersFailed, "last error: %v", lastErr)
	}
	return []track.Track{}, nil
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "provider_chain"
}

// Len returns the number of providers in the chain.
func (c *Chain) Len() int {
	return len(c.providers)
}
