// Package spotify provides a Spotify catalog search client.
//
// Spotify tracks are not playable by the YouTube based playback engine, so the
// client yields metadata candidates that are resolved to videos elsewhere.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/voxbox/internal/domain/track"
)

// searcher is the subset of the Spotify API client we use.
type searcher interface {
	Search(ctx context.Context, query string, t spotify.SearchType, opts ...spotify.RequestOption) (*spotify.SearchResult, error)
}

// Client is a Spotify API client.
type Client struct {
	client     searcher
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)

	// Token source refreshes the access token from the refresh token
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}
	httpClient := auth.Client(ctx, token)

	return newClient(spotify.New(httpClient), cfg.Market), nil
}

func newClient(s searcher, market string) *Client {
	if market == "" {
		market = "US"
	}
	return &Client{
		client:     s,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Candidates searches Spotify tracks and returns their metadata.
func (c *Client) Candidates(ctx context.Context, query string, limit int) ([]track.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	var result *spotify.SearchResult
	err := c.retry(ctx, func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(limit), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}
	if result == nil || result.Tracks == nil {
		return []track.Candidate{}, nil
	}

	candidates := make([]track.Candidate, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		candidates = append(candidates, convertTrack(&result.Tracks.Tracks[i]))
	}
	return candidates, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "spotify"
}

// convertTrack converts a Spotify FullTrack to a candidate.
func convertTrack(t *spotify.FullTrack) track.Candidate {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var albumArt string
	if len(t.Album.Images) > 0 {
		albumArt = t.Album.Images[0].URL
	}

	return track.Candidate{
		Title:        t.Name,
		Artist:       strings.Join(artists, ", "),
		ThumbnailURL: albumArt,
		DurationHint: track.FormatClock(time.Duration(t.Duration) * time.Millisecond),
	}
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
