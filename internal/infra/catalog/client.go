// Package catalog provides a client for a remote music search proxy.
//
// The proxy answers GET {base}/search?q=<text> with a JSON array of
// {videoId, title, artist, thumbnail, duration} objects.
package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/domain/track"
)

// maxBodyBytes bounds the response body read from the proxy.
const maxBodyBytes = 1 << 20

// Item is a single search proxy result.
type Item struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Thumbnail string `json:"thumbnail"`
	Duration  string `json:"duration"`
}

// Client is a search proxy client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new search proxy client.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid search proxy url: %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search queries the proxy. Transport failures, non-2xx statuses and
// malformed bodies are all returned as errors.
func (c *Client) Search(ctx context.Context, query string) ([]track.Track, error) {
	reqURL := c.baseURL + "/search?" + url.Values{"q": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("search proxy returned HTTP %d", resp.StatusCode)
	}

	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	tracks := make([]track.Track, 0, len(items))
	for _, it := range items {
		t, err := it.Track()
		if err != nil {
			zlog.Debug().Msgf("catalog: skipping item without id: title=%q", it.Title)
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "proxy"
}

// Track converts the item into a validated track.
func (it Item) Track() (track.Track, error) {
	return track.New(it.VideoID, it.Title, it.Artist,
		track.WithThumbnail(it.Thumbnail),
		track.WithDurationHint(it.Duration),
	)
}

// FromTrack converts a track into the proxy wire format.
func FromTrack(t track.Track) Item {
	return Item{
		VideoID:   t.ID,
		Title:     t.Title,
		Artist:    t.Artist,
		Thumbnail: t.ThumbnailURL,
		Duration:  t.DurationHint,
	}
}
