// Package search resolves free-text queries into playable tracks.
//
// A Chain tries the configured catalog providers in order, Cached puts a
// result cache in front of any provider, and the Orchestrator degrades to an
// offline Fallback generator whenever the primary path fails.
package search

import (
	"context"

	"github.com/osa030/voxbox/internal/domain/track"
)

// Provider is the interface for catalog search providers.
type Provider interface {
	// Search returns ranked tracks for the query. An empty result with a nil
	// error means the provider was reachable but found nothing.
	Search(ctx context.Context, query string) ([]track.Track, error)

	// Name returns the provider name (used in config and logs).
	Name() string
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, query string) ([]track.Track, error)
}

// Search implements Provider.
func (p ProviderFunc) Search(ctx context.Context, query string) ([]track.Track, error) {
	return p.Fn(ctx, query)
}

// Name implements Provider.
func (p ProviderFunc) Name() string {
	return p.ProviderName
}
