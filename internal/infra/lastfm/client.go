// Package lastfm provides a client for the Last.fm API.
//
// Last.fm knows tracks by name and artist only, so results are returned as
// candidates that still need to be resolved to playable videos.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/domain/track"
)

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Cache for tag top tracks, keyed by lowercased tag
	tagCache map[string][]track.Candidate
	cacheMu  sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

type trackSearchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []struct {
				Name   string `json:"name"`
				Artist string `json:"artist"`
			} `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

type topTracksResponse struct {
	Tracks struct {
		Track []struct {
			Name     string `json:"name"`
			Duration string `json:"duration"`
			Artist   struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"tracks"`
}

// apiError represents an error response from Last.fm API.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    "https://ws.audioscrobbler.com/2.0/",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tagCache:   make(map[string][]track.Candidate),
	}, nil
}

// Candidates searches tracks matching query. When the free text search finds
// nothing the query is retried as a tag, which covers genre requests such as
// "jazz" or "albanian".
func (c *Client) Candidates(ctx context.Context, query string, limit int) ([]track.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}
	limit = clampLimit(limit)

	found, err := c.searchTracks(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(found) > 0 {
		return found, nil
	}

	zlog.Debug().Msgf("lastfm: no track matches, trying tag: query=%s", query)
	return c.tagTopTracks(ctx, query, limit)
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "lastfm"
}

// searchTracks calls track.search.
// Reference: https://www.last.fm/api/show/track.search
func (c *Client) searchTracks(ctx context.Context, query string, limit int) ([]track.Candidate, error) {
	params := url.Values{}
	params.Set("method", "track.search")
	params.Set("track", query)
	params.Set("limit", strconv.Itoa(limit))

	var response trackSearchResponse
	if err := c.call(ctx, params, &response); err != nil {
		return nil, errors.Wrap(err, "track.search")
	}

	candidates := make([]track.Candidate, 0, len(response.Results.TrackMatches.Track))
	for _, t := range response.Results.TrackMatches.Track {
		if t.Name == "" {
			continue
		}
		candidates = append(candidates, track.Candidate{Title: t.Name, Artist: t.Artist})
	}
	return candidates, nil
}

// tagTopTracks calls tag.getTopTracks.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) tagTopTracks(ctx context.Context, tag string, limit int) ([]track.Candidate, error) {
	cacheKey := strings.ToLower(tag)
	c.cacheMu.RLock()
	if cached, ok := c.tagCache[cacheKey]; ok && len(cached) >= limit {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("lastfm: using cached top tracks: tag=%s", tag)
		return cached[:limit], nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("method", "tag.getTopTracks")
	params.Set("tag", tag)
	params.Set("limit", strconv.Itoa(limit))

	var response topTracksResponse
	if err := c.call(ctx, params, &response); err != nil {
		return nil, errors.Wrap(err, "tag.getTopTracks")
	}

	candidates := make([]track.Candidate, 0, len(response.Tracks.Track))
	for _, t := range response.Tracks.Track {
		if t.Name == "" {
			continue
		}
		candidates = append(candidates, track.Candidate{
			Title:        t.Name,
			Artist:       t.Artist.Name,
			DurationHint: secondsClock(t.Duration),
		})
	}

	c.cacheMu.Lock()
	c.tagCache[cacheKey] = candidates
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("lastfm: cached top tracks: tag=%s, count=%d", tag, len(candidates))

	return candidates, nil
}

// call performs a GET against the API root and decodes the JSON body into out.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	// Last.fm reports API errors in the body, sometimes with HTTP 200
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm returned HTTP %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// secondsClock renders a seconds string as a clock; "0" and garbage yield "".
func secondsClock(s string) string {
	sec, err := strconv.Atoi(s)
	if err != nil || sec <= 0 {
		return ""
	}
	return track.FormatClock(time.Duration(sec) * time.Second)
}
