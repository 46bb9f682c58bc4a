package filter

import (
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/domain/track"
	"github.com/osa030/voxbox/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// NewChainFromConfig creates a chain of the enabled filters, ordered by name.
func NewChainFromConfig(cfgs map[string]config.FilterConfig) (*Chain, error) {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	c := NewChain()
	for _, name := range names {
		fc := cfgs[name]
		if !fc.Enabled {
			continue
		}
		factory, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
		f := factory()
		if err := f.ValidateConfig(fc.Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		c.Add(f)
		zlog.Info().Msgf("filter: enabled: name=%s", name)
	}
	return c, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(t track.Track) Result {
	for _, f := range c.filters {
		if result := f.Check(t); !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply returns the accepted tracks in their original order.
func (c *Chain) Apply(tracks []track.Track) []track.Track {
	if len(c.filters) == 0 {
		return tracks
	}
	kept := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if result := c.Execute(t); !result.Accepted {
			zlog.Debug().Msgf("filter: rejected: video_id=%s, title=%q, code=%s", t.ID, t.Title, result.Code)
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
