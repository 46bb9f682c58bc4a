package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"
	return client
}

func TestCandidates_TrackSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "track.search", r.URL.Query().Get("method"))
		assert.Equal(t, "bella ciao", r.URL.Query().Get("track"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"results": {
				"trackmatches": {
					"track": [
						{"name": "Bella Ciao", "artist": "Goran Bregović", "listeners": "1000"},
						{"name": "", "artist": "nobody"},
						{"name": "Bella Ciao (Remix)", "artist": "El Profesor"}
					]
				}
			}
		}`)
	})

	got, err := client.Candidates(context.Background(), " bella ciao ", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bella Ciao", got[0].Title)
	assert.Equal(t, "Goran Bregović", got[0].Artist)
	assert.Equal(t, "Goran Bregović Bella Ciao", got[0].Query())
}

func TestCandidates_TagFallback(t *testing.T) {
	var tagCalls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("method") {
		case "track.search":
			fmt.Fprint(w, `{"results": {"trackmatches": {"track": []}}}`)
		case "tag.getTopTracks":
			tagCalls.Add(1)
			assert.Equal(t, "jazz", r.URL.Query().Get("tag"))
			fmt.Fprint(w, `{
				"tracks": {
					"track": [
						{"name": "So What", "duration": "562", "artist": {"name": "Miles Davis"}},
						{"name": "Take Five", "duration": "0", "artist": {"name": "Dave Brubeck"}}
					]
				}
			}`)
		default:
			t.Errorf("unexpected method %s", r.URL.Query().Get("method"))
		}
	})

	ctx := context.Background()
	got, err := client.Candidates(ctx, "jazz", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Miles Davis", got[0].Artist)
	assert.Equal(t, "9:22", got[0].DurationHint)
	assert.Empty(t, got[1].DurationHint)

	// Second call is served from the tag cache
	cached, err := client.Candidates(ctx, "JAZZ", 1)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	assert.Equal(t, int32(1), tagCalls.Load())
}

func TestCandidates_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"error": 10, "message": "Invalid API key"}`)
	})

	_, err := client.Candidates(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestCandidates_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Candidates(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestCandidates_EmptyQuery(t *testing.T) {
	client, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	_, err = client.Candidates(context.Background(), "  ", 5)
	assert.Error(t, err)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, clampLimit(0))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, 100, clampLimit(500))
}
