package spotify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

type fakeSearcher struct {
	results []*spotify.SearchResult
	errs    []error
	calls   int
	market  bool
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ spotify.SearchType, opts ...spotify.RequestOption) (*spotify.SearchResult, error) {
	i := f.calls
	f.calls++
	f.market = len(opts) == 2
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return &spotify.SearchResult{}, nil
}

func TestCandidates(t *testing.T) {
	fake := &fakeSearcher{results: []*spotify.SearchResult{{
		Tracks: &spotify.FullTrackPage{Tracks: []spotify.FullTrack{
			{
				SimpleTrack: spotify.SimpleTrack{
					Name:     "Bella Ciao",
					Artists:  []spotify.SimpleArtist{{Name: "Goran Bregović"}, {Name: "Orchestra"}},
					Duration: 192000,
				},
				Album: spotify.SimpleAlbum{Images: []spotify.Image{{URL: "https://i.scdn.co/image/1"}}},
			},
		}},
	}}}
	c := newClient(fake, "")

	got, err := c.Candidates(context.Background(), "bella ciao", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bella Ciao", got[0].Title)
	assert.Equal(t, "Goran Bregović, Orchestra", got[0].Artist)
	assert.Equal(t, "https://i.scdn.co/image/1", got[0].ThumbnailURL)
	assert.Equal(t, "3:12", got[0].DurationHint)
	assert.True(t, fake.market)
	assert.Equal(t, "US", c.market)
}

func TestCandidates_Retry(t *testing.T) {
	fake := &fakeSearcher{errs: []error{errors.New("Error 429: rate limit exceeded"), nil}}
	c := newClient(fake, "JP")
	c.retryDelay = time.Millisecond

	got, err := c.Candidates(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, fake.calls)

	fake = &fakeSearcher{errs: []error{errors.New("400 Bad Request")}}
	c = newClient(fake, "JP")
	_, err = c.Candidates(context.Background(), "q", 5)
	assert.Error(t, err)
	assert.Equal(t, 1, fake.calls)

	_, err = c.Candidates(context.Background(), " ", 5)
	assert.Error(t, err)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 502",
			err:      errors.New("502 Bad Gateway"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
