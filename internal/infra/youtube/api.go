package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/domain/track"
)

// APIProvider searches videos through the YouTube Data API v3.
type APIProvider struct {
	apiKey    string
	searchURL string
	limit     int
	http      *http.Client
}

// NewAPIProvider creates a Data API provider.
func NewAPIProvider(apiKey, searchURL string, limit int) *APIProvider {
	if limit <= 0 || limit > 25 {
		limit = 10
	}
	return &APIProvider{
		apiKey:    apiKey,
		searchURL: searchURL,
		limit:     limit,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

type apiSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type apiVideosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Search implements search.Provider.
func (p *APIProvider) Search(ctx context.Context, query string) ([]track.Track, error) {
	val := url.Values{}
	val.Set("part", "snippet")
	val.Set("type", "video")
	val.Set("videoCategoryId", "10")
	val.Set("maxResults", strconv.Itoa(p.limit))
	val.Set("q", query)
	val.Set("key", p.apiKey)

	var body apiSearchResponse
	if err := p.get(ctx, p.searchURL+"?"+val.Encode(), &body); err != nil {
		return nil, errors.Wrap(err, "youtube api search")
	}

	type entry struct {
		id, title, artist, thumb string
	}
	entries := make([]entry, 0, len(body.Items))
	ids := make([]string, 0, len(body.Items))
	for _, it := range body.Items {
		thumbs := it.Snippet.Thumbnails
		thumb := thumbs.High.URL
		if thumb == "" {
			thumb = thumbs.Medium.URL
		}
		if thumb == "" {
			thumb = thumbs.Default.URL
		}
		entries = append(entries, entry{it.ID.VideoID, it.Snippet.Title, it.Snippet.ChannelTitle, thumb})
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}

	durations := map[string]string{}
	if len(ids) > 0 {
		d, err := p.fetchDurations(ctx, ids)
		if err != nil {
			zlog.Warn().Msgf("youtube: fetch durations failed: error=%v", err)
		} else {
			durations = d
		}
	}

	tracks := make([]track.Track, 0, len(entries))
	for _, e := range entries {
		t, err := track.New(e.id, e.title, e.artist,
			track.WithThumbnail(e.thumb),
			track.WithDurationHint(durations[e.id]),
		)
		if err != nil {
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// Name returns the provider name.
func (p *APIProvider) Name() string {
	return "youtube_api"
}

func (p *APIProvider) fetchDurations(ctx context.Context, ids []string) (map[string]string, error) {
	val := url.Values{}
	val.Set("part", "contentDetails")
	val.Set("id", strings.Join(ids, ","))
	val.Set("key", p.apiKey)

	var body apiVideosResponse
	if err := p.get(ctx, p.videosURL()+"?"+val.Encode(), &body); err != nil {
		return nil, err
	}

	durations := make(map[string]string, len(body.Items))
	for _, item := range body.Items {
		durations[item.ID] = formatSeconds(parseISO8601Duration(item.ContentDetails.Duration))
	}
	return durations, nil
}

// videosURL derives the videos endpoint from the search endpoint.
func (p *APIProvider) videosURL() string {
	if strings.HasSuffix(p.searchURL, "/search") {
		return strings.TrimSuffix(p.searchURL, "/search") + "/videos"
	}
	return "https://www.googleapis.com/youtube/v3/videos"
}

func (p *APIProvider) get(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("youtube api returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

var iso8601Duration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISO8601Duration parses PT#H#M#S into seconds; unknown formats yield 0.
func parseISO8601Duration(duration string) int {
	m := iso8601Duration.FindStringSubmatch(duration)
	if m == nil {
		return 0
	}
	var total int
	for i, mult := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		total += n * mult
	}
	return total
}
