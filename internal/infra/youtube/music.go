// Package youtube provides YouTube and YouTube Music search providers.
// Every provider returns tracks keyed by YouTube video id.
package youtube

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/raitonoberu/ytmusic"

	"github.com/osa030/voxbox/internal/domain/track"
)

// musicItem is the subset of a YouTube Music track result we use.
type musicItem struct {
	VideoID     string
	Title       string
	Artists     []string
	DurationSec int
}

// MusicProvider searches YouTube Music tracks.
type MusicProvider struct {
	limit  int
	search func(query string) ([]musicItem, error)
}

// NewMusicProvider creates a YouTube Music provider returning at most limit tracks.
func NewMusicProvider(limit int) *MusicProvider {
	return &MusicProvider{
		limit:  normalizeLimit(limit),
		search: searchMusic,
	}
}

func searchMusic(query string) ([]musicItem, error) {
	res, err := ytmusic.TrackSearch(query).Next()
	if err != nil {
		return nil, err
	}

	items := make([]musicItem, 0, len(res.Tracks))
	for _, v := range res.Tracks {
		artists := make([]string, 0, len(v.Artists))
		for _, a := range v.Artists {
			artists = append(artists, a.Name)
		}
		items = append(items, musicItem{
			VideoID:     v.VideoID,
			Title:       v.Title,
			Artists:     artists,
			DurationSec: v.Duration,
		})
	}
	return items, nil
}

// Search implements search.Provider.
func (p *MusicProvider) Search(ctx context.Context, query string) ([]track.Track, error) {
	items, err := runWithContext(ctx, func() ([]musicItem, error) {
		return p.search(query)
	})
	if err != nil {
		return nil, errors.Wrap(err, "ytmusic search")
	}

	tracks := make([]track.Track, 0, p.limit)
	for _, it := range items {
		if len(tracks) >= p.limit {
			break
		}
		t, err := track.New(it.VideoID, it.Title, strings.Join(it.Artists, ", "),
			track.WithThumbnail(ThumbnailURL(it.VideoID)),
			track.WithDurationHint(formatSeconds(it.DurationSec)),
		)
		if err != nil {
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// Name returns the provider name.
func (p *MusicProvider) Name() string {
	return "ytmusic"
}

// runWithContext runs a blocking library call and abandons it when ctx ends.
func runWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.v, r.err
	}
}
