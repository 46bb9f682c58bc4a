package search

import (
	"context"
	"strings"
	"time"

	"github.com/osa030/voxbox/internal/domain/track"
)

// Placeholder video ids used by the offline generator.
const (
	placeholderStudioID = "dQw4w9WgXcQ"
	placeholderLiveID   = "L_jWHffIx5E"
)

// Fallback synthesizes placeholder tracks when the catalog is unreachable.
// Output depends only on the query text.
type Fallback struct {
	delay time.Duration
}

// NewFallback creates a fallback generator that answers after delay.
func NewFallback(delay time.Duration) *Fallback {
	return &Fallback{delay: delay}
}

// Search waits for the simulated latency, then returns Generate(query).
func (f *Fallback) Search(ctx context.Context, query string) ([]track.Track, error) {
	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return Generate(query), nil
}

// Name implements Provider.
func (f *Fallback) Name() string {
	return "fallback"
}

// Generate returns two placeholder tracks derived from query.
func Generate(query string) []track.Track {
	query = strings.TrimSpace(query)

	title, artist := query+" - Official Music Video", "Artist"
	if strings.Contains(strings.ToLower(query), "shqip") {
		title, artist = "Këngë Shqiptare - "+query, "Artist Shqiptar"
	}

	studio, _ := track.New(placeholderStudioID, title, artist,
		track.WithThumbnail(thumbnailURL(placeholderStudioID)))
	live, _ := track.New(placeholderLiveID, query+" - Live Performance", "Live Artist",
		track.WithThumbnail(thumbnailURL(placeholderLiveID)))

	return []track.Track{studio, live}
}

func thumbnailURL(id string) string {
	return "https://img.youtube.com/vi/" + id + "/maxresdefault.jpg"
}
