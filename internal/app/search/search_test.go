package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/osa030/voxbox/internal/domain/track"
	"github.com/osa030/voxbox/internal/infra/config"
)

type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) Search(ctx context.Context, query string) ([]track.Track, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]track.Track), args.Error(1)
}

func (m *MockProvider) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, query string) ([]track.Track, bool, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]track.Track), args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, query string, tracks []track.Track) error {
	return m.Called(ctx, query, tracks).Error(0)
}

func tracks(ids ...string) []track.Track {
	out := make([]track.Track, 0, len(ids))
	for _, id := range ids {
		t, _ := track.New(id, "title "+id, "artist "+id)
		out = append(out, t)
	}
	return out
}

func TestChain_Search(t *testing.T) {
	errDown := errors.New("connection refused")

	tests := []struct {
		name    string
		results [][]track.Track
		errs    []error
		want    []track.Track
		wantErr error
	}{
		{
			name:    "first provider wins",
			results: [][]track.Track{tracks("a"), tracks("b")},
			errs:    []error{nil, nil},
			want:    tracks("a"),
		},
		{
			name:    "failing provider is skipped",
			results: [][]track.Track{nil, tracks("b")},
			errs:    []error{errDown, nil},
			want:    tracks("b"),
		},
		{
			name:    "empty provider is skipped",
			results: [][]track.Track{{}, tracks("b")},
			errs:    []error{nil, nil},
			want:    tracks("b"),
		},
		{
			name:    "all failed",
			results: [][]track.Track{nil, nil},
			errs:    []error{errDown, errDown},
			wantErr: ErrAllProvidersFailed,
		},
		{
			name:    "one failed one empty",
			results: [][]track.Track{nil, {}},
			errs:    []error{errDown, nil},
			want:    []track.Track{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var providers []ProviderWithMetadata
			var mocks []*MockProvider
			for i := range tt.results {
				p := new(MockProvider)
				p.On("Search", mock.Anything, "query").Return(tt.results[i], tt.errs[i]).Maybe()
				mocks = append(mocks, p)
				providers = append(providers, ProviderWithMetadata{Provider: p, DisplayName: "p"})
			}

			got, err := NewChain(providers).Search(context.Background(), "query")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			for _, m := range mocks {
				m.AssertExpectations(t)
			}
		})
	}
}

func TestChain_StopsAfterFirstHit(t *testing.T) {
	first := new(MockProvider)
	first.On("Search", mock.Anything, "q").Return(tracks("a"), nil).Once()
	second := new(MockProvider)

	chain := NewChain([]ProviderWithMetadata{{Provider: first}, {Provider: second}})
	_, err := chain.Search(context.Background(), "q")
	require.NoError(t, err)

	second.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestChain_NoProviders(t *testing.T) {
	_, err := NewChain(nil).Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestCached_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("hit skips provider", func(t *testing.T) {
		next := new(MockProvider)
		cache := new(MockCache)
		cache.On("Get", ctx, "q").Return(tracks("a"), true, nil)

		got, err := NewCached(next, cache).Search(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, tracks("a"), got)
		next.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("miss stores result", func(t *testing.T) {
		next := new(MockProvider)
		next.On("Search", ctx, "q").Return(tracks("a", "b"), nil)
		cache := new(MockCache)
		cache.On("Get", ctx, "q").Return(nil, false, nil)
		cache.On("Set", ctx, "q", tracks("a", "b")).Return(nil)

		got, err := NewCached(next, cache).Search(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, tracks("a", "b"), got)
		cache.AssertExpectations(t)
	})

	t.Run("empty result is not stored", func(t *testing.T) {
		next := new(MockProvider)
		next.On("Search", ctx, "q").Return([]track.Track{}, nil)
		cache := new(MockCache)
		cache.On("Get", ctx, "q").Return(nil, false, nil)

		_, err := NewCached(next, cache).Search(ctx, "q")
		require.NoError(t, err)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cache errors are ignored", func(t *testing.T) {
		next := new(MockProvider)
		next.On("Search", ctx, "q").Return(tracks("a"), nil)
		cache := new(MockCache)
		cache.On("Get", ctx, "q").Return(nil, false, errors.New("redis down"))
		cache.On("Set", ctx, "q", tracks("a")).Return(errors.New("redis down"))

		got, err := NewCached(next, cache).Search(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, tracks("a"), got)
	})

	t.Run("provider error is returned", func(t *testing.T) {
		next := new(MockProvider)
		next.On("Search", ctx, "q").Return(nil, errors.New("boom"))
		cache := new(MockCache)
		cache.On("Get", ctx, "q").Return(nil, false, nil)

		_, err := NewCached(next, cache).Search(ctx, "q")
		assert.Error(t, err)
	})
}

func TestGenerate(t *testing.T) {
	got := Generate("jazz")
	require.Len(t, got, 2)
	assert.Equal(t, "dQw4w9WgXcQ", got[0].ID)
	assert.Equal(t, "jazz - Official Music Video", got[0].Title)
	assert.Equal(t, "Artist", got[0].Artist)
	assert.Equal(t, "jazz - Live Performance", got[1].Title)
	assert.Equal(t, "https://img.youtube.com/vi/L_jWHffIx5E/maxresdefault.jpg", got[1].ThumbnailURL)

	albanian := Generate("muzike shqip")
	assert.Equal(t, "Këngë Shqiptare - muzike shqip", albanian[0].Title)
	assert.Equal(t, "Artist Shqiptar", albanian[0].Artist)

	assert.Equal(t, Generate("jazz"), got, "output must be deterministic")
}

func TestFallback_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFallback(time.Hour).Search(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestrator_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("empty query is rejected", func(t *testing.T) {
		primary := new(MockProvider)
		o := NewOrchestrator(primary)

		_, err := o.Search(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
		primary.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("primary result", func(t *testing.T) {
		primary := new(MockProvider)
		primary.On("Search", mock.Anything, "jazz").Return(tracks("a", "b"), nil)

		res, err := NewOrchestrator(primary).Search(ctx, "  jazz ")
		require.NoError(t, err)
		assert.Equal(t, SourcePrimary, res.Source)
		assert.Equal(t, "jazz", res.Query)
		assert.Equal(t, tracks("a", "b"), res.Tracks)
	})

	t.Run("primary empty is not an error", func(t *testing.T) {
		primary := new(MockProvider)
		primary.On("Search", mock.Anything, "jazz").Return(nil, nil)

		res, err := NewOrchestrator(primary).Search(ctx, "jazz")
		require.NoError(t, err)
		assert.Equal(t, SourcePrimary, res.Source)
		assert.NotNil(t, res.Tracks)
		assert.Empty(t, res.Tracks)
	})

	t.Run("primary failure degrades to fallback", func(t *testing.T) {
		primary := new(MockProvider)
		primary.On("Search", mock.Anything, "jazz").Return(nil, errors.New("HTTP 502"))

		res, err := NewOrchestrator(primary, WithFallback(NewFallback(0))).Search(ctx, "jazz")
		require.NoError(t, err)
		assert.Equal(t, SourceFallback, res.Source)
		assert.Equal(t, Generate("jazz"), res.Tracks)
	})

	t.Run("nil primary uses fallback", func(t *testing.T) {
		res, err := NewOrchestrator(nil, WithFallback(NewFallback(0))).Search(ctx, "jazz")
		require.NoError(t, err)
		assert.Equal(t, SourceFallback, res.Source)
		assert.Len(t, res.Tracks, 2)
	})

	t.Run("primary is bounded by timeout", func(t *testing.T) {
		primary := ProviderFunc{ProviderName: "slow", Fn: func(ctx context.Context, _ string) ([]track.Track, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}

		res, err := NewOrchestrator(primary,
			WithTimeout(10*time.Millisecond),
			WithFallback(NewFallback(0)),
		).Search(ctx, "jazz")
		require.NoError(t, err)
		assert.Equal(t, SourceFallback, res.Source)
	})

	t.Run("canceled context is returned", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		primary := ProviderFunc{ProviderName: "cancel", Fn: func(context.Context, string) ([]track.Track, error) {
			cancel()
			return nil, context.Canceled
		}}

		_, err := NewOrchestrator(primary, WithFallback(NewFallback(0))).Search(cctx, "jazz")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("rate limit waits on context", func(t *testing.T) {
		primary := new(MockProvider)
		primary.On("Search", mock.Anything, "jazz").Return(tracks("a"), nil)
		o := NewOrchestrator(primary, WithRateLimit(0.001, 1))

		_, err := o.Search(ctx, "jazz")
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = o.Search(short, "jazz")
		assert.Error(t, err)
		primary.AssertNumberOfCalls(t, "Search", 1)
	})
}

func TestNewChainFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("builds providers in order", func(t *testing.T) {
		chain, err := NewChainFromConfig(ctx, []config.ProviderConfig{
			{Type: config.ProviderProxy, DisplayName: "proxy", Settings: map[string]any{"base_url": "http://localhost:4000"}},
			{Type: config.ProviderYTMusic, DisplayName: "ytm"},
			{Type: config.ProviderYouTube, DisplayName: "yt", Settings: map[string]any{"limit": 3}},
			{Type: config.ProviderYouTubeAPI, DisplayName: "api", Settings: map[string]any{"api_key": "k"}},
		}, config.SpotifyConfig{})
		require.NoError(t, err)
		assert.Equal(t, 4, chain.Len())
		assert.Equal(t, "proxy", chain.providers[0].Provider.Name())
		assert.Equal(t, "ytmusic", chain.providers[1].Provider.Name())
	})

	tests := []struct {
		name string
		cfg  config.ProviderConfig
	}{
		{name: "proxy without base url", cfg: config.ProviderConfig{Type: config.ProviderProxy, DisplayName: "p"}},
		{name: "limit out of range", cfg: config.ProviderConfig{Type: config.ProviderYouTube, DisplayName: "y", Settings: map[string]any{"limit": 500}}},
		{name: "api without key", cfg: config.ProviderConfig{Type: config.ProviderYouTubeAPI, DisplayName: "a"}},
		{name: "spotify without credentials", cfg: config.ProviderConfig{Type: config.ProviderSpotify, DisplayName: "s"}},
		{name: "unknown type", cfg: config.ProviderConfig{Type: "napster", DisplayName: "n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChainFromConfig(ctx, []config.ProviderConfig{tt.cfg}, config.SpotifyConfig{})
			assert.Error(t, err)
		})
	}

	_, err := NewChainFromConfig(ctx, nil, config.SpotifyConfig{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

type stubSource struct {
	candidates []track.Candidate
	err        error
}

func (s stubSource) Candidates(context.Context, string, int) ([]track.Candidate, error) {
	return s.candidates, s.err
}

func (s stubSource) Name() string { return "stub" }

func TestResolver_Search(t *testing.T) {
	ctx := context.Background()
	source := stubSource{candidates: []track.Candidate{
		{Title: "Song A", Artist: "Artist A", DurationHint: "3:00"},
		{Title: "Song B", Artist: "Artist B"},
		{Title: "Song C", Artist: "Artist C"},
		{Title: "Song A (remaster)", Artist: "Artist A"},
	}}

	video := new(MockProvider)
	video.On("Search", ctx, "Artist A Song A").Return(tracks("va"), nil)
	video.On("Search", ctx, "Artist B Song B").Return([]track.Track{}, nil)
	video.On("Search", ctx, "Artist C Song C").Return(nil, errors.New("blocked"))
	video.On("Search", ctx, "Artist A Song A (remaster)").Return(tracks("va"), nil)

	got, err := NewResolver(source, video, 5).Search(ctx, "anything")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "va", got[0].ID)
	assert.Equal(t, "Song A", got[0].Title)
	assert.Equal(t, "Artist A", got[0].Artist)
	assert.Equal(t, "3:00", got[0].DurationHint)
}

func TestResolver_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewResolver(stubSource{err: errors.New("401")}, new(MockProvider), 5).Search(ctx, "q")
	assert.Error(t, err)

	video := new(MockProvider)
	video.On("Search", ctx, mock.Anything).Return(nil, errors.New("blocked"))
	_, err = NewResolver(stubSource{candidates: []track.Candidate{{Title: "x", Artist: "y"}}}, video, 5).Search(ctx, "q")
	assert.Error(t, err)

	got, err := NewResolver(stubSource{}, video, 5).Search(ctx, "q")
	require.NoError(t, err)
	assert.Empty(t, got)
}

type dropFilter struct{ drop string }

func (f dropFilter) Apply(in []track.Track) []track.Track {
	var out []track.Track
	for _, t := range in {
		if t.ID != f.drop {
			out = append(out, t)
		}
	}
	return out
}

func TestFiltered_Search(t *testing.T) {
	next := ProviderFunc{ProviderName: "p", Fn: func(context.Context, string) ([]track.Track, error) {
		return tracks("a", "b"), nil
	}}
	f := NewFiltered(next, dropFilter{drop: "a"})

	got, err := f.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "filtered_p", f.Name())

	failing := ProviderFunc{ProviderName: "p", Fn: func(context.Context, string) ([]track.Track, error) {
		return nil, errors.New("down")
	}}
	_, err = NewFiltered(failing, dropFilter{}).Search(context.Background(), "q")
	assert.Error(t, err)
}
