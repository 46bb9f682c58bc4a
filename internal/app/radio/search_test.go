package radio

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/voxbox/internal/app/search"
	"github.com/osa030/voxbox/internal/infra/config"
)

func proxyServer(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"videoId": "short", "title": "Song", "artist": "A", "duration": "3:30"},
			{"videoId": "long", "title": "Song 10 hours", "artist": "A", "duration": "10:00:00"}
		]`)
	}))
	t.Cleanup(server.Close)
	return server.URL, &hits
}

func searcherConfig(t *testing.T, proxyURL, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(fmt.Sprintf(`
search:
  providers:
    - type: proxy
      display_name: Proxy
      settings:
        base_url: %s
  fallback_delay_ms: 0
%s`, proxyURL, extra)))
	require.NoError(t, err)
	return cfg
}

func TestNewSearcher_FiltersAndCache(t *testing.T) {
	url, hits := proxyServer(t)
	mr := miniredis.RunT(t)

	cfg := searcherConfig(t, url, fmt.Sprintf(`  cache:
    enabled: true
    redis_url: redis://%s/0
filters:
  duration_limit_filter:
    enabled: true
    settings:
      max_minutes: 20
`, mr.Addr()))

	orch, closeFn, err := NewSearcher(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closeFn()) }()

	for i := 0; i < 2; i++ {
		res, err := orch.Search(context.Background(), "bella ciao")
		require.NoError(t, err)
		assert.Equal(t, search.SourcePrimary, res.Source)
		require.Len(t, res.Tracks, 1)
		assert.Equal(t, "short", res.Tracks[0].ID)
	}
	assert.Equal(t, int32(1), hits.Load(), "second search is served from the cache")
}

func TestNewSearcher_CacheUnavailable(t *testing.T) {
	url, _ := proxyServer(t)
	cfg := searcherConfig(t, url, `  cache:
    enabled: true
    redis_url: redis://127.0.0.1:1/0
`)

	orch, closeFn, err := NewSearcher(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()

	res, err := orch.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, res.Tracks, 2)
}

func TestNewSearcher_UnknownFilter(t *testing.T) {
	url, _ := proxyServer(t)
	cfg := searcherConfig(t, url, `filters:
  shiny_filter:
    enabled: true
`)

	_, _, err := NewSearcher(context.Background(), cfg)
	assert.Error(t, err)
}
