package youtube

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/ppalone/ytsearch"

	"github.com/osa030/voxbox/internal/domain/track"
)

// videoItem is the subset of a YouTube video result we use.
type videoItem struct {
	VideoID  string
	Title    string
	Channel  string
	Duration string
}

// VideoProvider searches plain YouTube videos.
type VideoProvider struct {
	limit  int
	search func(ctx context.Context, query string) ([]videoItem, error)
}

// NewVideoProvider creates a YouTube video provider returning at most limit tracks.
func NewVideoProvider(limit int) *VideoProvider {
	client := ytsearch.NewClient(nil)
	return &VideoProvider{
		limit: normalizeLimit(limit),
		search: func(ctx context.Context, query string) ([]videoItem, error) {
			res, err := client.Search(ctx, query)
			if err != nil {
				return nil, err
			}
			items := make([]videoItem, 0, len(res.Results))
			for _, v := range res.Results {
				items = append(items, videoItem{
					VideoID:  v.VideoID,
					Title:    v.Title,
					Channel:  v.Channel,
					Duration: v.Duration,
				})
			}
			return items, nil
		},
	}
}

// Search implements search.Provider.
func (p *VideoProvider) Search(ctx context.Context, query string) ([]track.Track, error) {
	items, err := p.search(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "youtube search")
	}

	tracks := make([]track.Track, 0, p.limit)
	for _, it := range items {
		if len(tracks) >= p.limit {
			break
		}
		if it.VideoID == "" || it.Title == "" {
			continue
		}
		t, err := track.New(it.VideoID, it.Title, it.Channel,
			track.WithThumbnail(ThumbnailURL(it.VideoID)),
			track.WithDurationHint(normalizeClock(it.Duration)),
		)
		if err != nil {
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// Name returns the provider name.
func (p *VideoProvider) Name() string {
	return "youtube"
}

// ThumbnailURL returns the high quality thumbnail for a video id.
func ThumbnailURL(videoID string) string {
	return "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 5
	}
	return limit
}

// formatSeconds renders seconds as "m:ss"; zero or negative yields "".
func formatSeconds(sec int) string {
	if sec <= 0 {
		return ""
	}
	s := sec % 60
	pad := strconv.Itoa(s)
	if s < 10 {
		pad = "0" + pad
	}
	return strconv.Itoa(sec/60) + ":" + pad
}

// normalizeClock keeps well-formed clock strings and drops anything else
// (e.g. "LIVE").
func normalizeClock(s string) string {
	d, ok := track.ParseClock(s)
	if !ok {
		return ""
	}
	return track.FormatClock(d)
}
