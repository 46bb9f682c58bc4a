package search

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/voxbox/internal/domain/track"
)

// ErrEmptyQuery is returned for a blank query. It is a caller error and is
// never retried.
var ErrEmptyQuery = errors.New("search query is empty")

// Source identifies which path produced a result.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Result is the outcome of an orchestrated search.
type Result struct {
	Query  string
	Tracks []track.Track
	Source Source
}

// Orchestrator issues searches against the primary provider and degrades to
// the fallback generator when the primary path fails.
type Orchestrator struct {
	primary  Provider
	fallback Provider
	limiter  *rate.Limiter
	timeout  time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFallback replaces the default fallback generator.
func WithFallback(p Provider) Option {
	return func(o *Orchestrator) {
		o.fallback = p
	}
}

// WithRateLimit limits primary searches to perSec with the given burst.
// A non-positive perSec disables limiting.
func WithRateLimit(perSec float64, burst int) Option {
	return func(o *Orchestrator) {
		if perSec <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithTimeout bounds each primary search.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// NewOrchestrator creates an orchestrator over primary. A nil primary sends
// every search straight to the fallback generator.
func NewOrchestrator(primary Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		primary:  primary,
		fallback: NewFallback(500 * time.Millisecond),
		limiter:  rate.NewLimiter(rate.Inf, 0),
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search resolves query into tracks.
// Provider failures are absorbed by the fallback generator; only an empty
// query or a canceled context produce an error.
func (o *Orchestrator) Search(ctx context.Context, query string) (Result, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Result{}, ErrEmptyQuery
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return Result{}, errors.Wrap(err, "search rate limit")
	}

	if o.primary != nil {
		tracks, err := o.searchPrimary(ctx, q)
		if err == nil {
			if tracks == nil {
				tracks = []track.Track{}
			}
			return Result{Query: q, Tracks: tracks, Source: SourcePrimary}, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		zlog.Warn().Msgf("search: primary failed, using fallback: query=%q error=%v", q, err)
	}

	tracks, err := o.fallback.Search(ctx, q)
	if err != nil {
		return Result{}, errors.Wrap(err, "fallback search")
	}
	if tracks == nil {
		tracks = []track.Track{}
	}
	zlog.Info().Msgf("search: fallback produced tracks: query=%q count=%d", q, len(tracks))
	return Result{Query: q, Tracks: tracks, Source: SourceFallback}, nil
}

func (o *Orchestrator) searchPrimary(ctx context.Context, q string) ([]track.Track, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return o.primary.Search(ctx, q)
}
