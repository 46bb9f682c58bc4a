package radio

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/app/filter"
	"github.com/osa030/voxbox/internal/app/search"
	"github.com/osa030/voxbox/internal/infra/cache"
	"github.com/osa030/voxbox/internal/infra/config"
)

// NewSearcher builds the search orchestrator from configuration: the
// provider chain, the optional Redis cache, result filters, rate limiting
// and the offline fallback. The returned close function releases the cache connection.
func NewSearcher(ctx context.Context, cfg *config.Config) (*search.Orchestrator, func() error, error) {
	chain, err := search.NewChainFromConfig(ctx, cfg.Search.Providers, cfg.Spotify)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create search providers")
	}

	var primary search.Provider = chain
	closeFn := func() error { return nil }

	if cfg.Search.Cache.Enabled {
		rc, err := cache.NewRedisCache(ctx, cfg.Search.Cache.RedisURL, cfg.Search.Cache.TTL())
		if err != nil {
			// The cache is an optimisation; search without it.
			zlog.Warn().Msgf("radio: search cache disabled: error=%v", err)
		} else {
			primary = search.NewCached(chain, rc)
			closeFn = rc.Close
			zlog.Info().Msgf("radio: search cache enabled: ttl=%s", cfg.Search.Cache.TTL())
		}
	}

	filters, err := filter.NewChainFromConfig(cfg.Filters)
	if err != nil {
		_ = closeFn()
		return nil, nil, errors.Wrap(err, "failed to create result filters")
	}
	if len(filters.Filters()) > 0 {
		primary = search.NewFiltered(primary, filters)
	}

	orch := search.NewOrchestrator(primary,
		search.WithFallback(search.NewFallback(cfg.Search.FallbackDelay())),
		search.WithRateLimit(cfg.Search.RatePerSec, cfg.Search.Burst),
		search.WithTimeout(cfg.Search.Timeout()),
	)
	return orch, closeFn, nil
}
