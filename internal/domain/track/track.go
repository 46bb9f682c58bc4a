// Package track provides the Track domain entity.
package track

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidTrack is returned when a track cannot be constructed.
var ErrInvalidTrack = errors.New("invalid track")

// UnknownArtist is used when a provider returns no artist name.
const UnknownArtist = "Unknown Artist"

// Track represents a playable catalog entry.
// The ID is provider specific (e.g. a YouTube video ID) and is the identity key.
type Track struct {
	ID           string `json:"videoId"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	ThumbnailURL string `json:"thumbnail,omitempty"`
	DurationHint string `json:"duration,omitempty"` // "m:ss" or "h:mm:ss" as reported by the provider
}

// Option configures optional Track fields.
type Option func(*Track)

// WithThumbnail sets the thumbnail URL.
func WithThumbnail(url string) Option {
	return func(t *Track) {
		t.ThumbnailURL = strings.TrimSpace(url)
	}
}

// WithDurationHint sets the provider supplied duration string.
func WithDurationHint(hint string) Option {
	return func(t *Track) {
		t.DurationHint = strings.TrimSpace(hint)
	}
}

// New creates a validated track.
func New(id, title, artist string, opts ...Option) (Track, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Track{}, errors.Wrap(ErrInvalidTrack, "track id is required")
	}

	t := Track{
		ID:     id,
		Title:  strings.TrimSpace(title),
		Artist: strings.TrimSpace(artist),
	}
	if t.Title == "" {
		t.Title = id
	}
	if t.Artist == "" {
		t.Artist = UnknownArtist
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t, nil
}

// Validate checks a track that was decoded rather than constructed.
func (t Track) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.Wrap(ErrInvalidTrack, "track id is required")
	}
	return nil
}

// Duration parses the duration hint.
// Returns false when the hint is missing or malformed.
func (t Track) Duration() (time.Duration, bool) {
	return ParseClock(t.DurationHint)
}

// ParseClock parses "m:ss" or "h:mm:ss".
func ParseClock(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	var total int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		// minutes and seconds after the leading field must be two-digit values
		if i > 0 && n > 59 {
			return 0, false
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, true
}

// FormatClock formats a duration as "m:ss" (or "h:mm:ss" for an hour or more).
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d / time.Second)
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return strconv.Itoa(h) + ":" + pad2(m) + ":" + pad2(s)
	}
	return strconv.Itoa(m) + ":" + pad2(s)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// IndexOf returns the index of the first track with the given id, or -1.
func IndexOf(tracks []Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// IDSet returns the set of ids present in tracks.
func IDSet(tracks []Track) map[string]bool {
	set := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		set[t.ID] = true
	}
	return set
}

// Unique returns candidates whose id is neither in existing nor repeated
// earlier in candidates. Order is preserved.
func Unique(candidates []Track, existing map[string]bool) []Track {
	seen := make(map[string]bool, len(existing)+len(candidates))
	for id := range existing {
		seen[id] = true
	}
	result := make([]Track, 0, len(candidates))
	for _, t := range candidates {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		result = append(result, t)
	}
	return result
}

// Candidate is catalog metadata that is not yet bound to a playable id.
// Metadata-only catalogs (Spotify, Last.fm) produce candidates that are
// resolved to playable tracks by a video search.
type Candidate struct {
	Title        string
	Artist       string
	ThumbnailURL string
	DurationHint string
}

// Query returns the search phrase used to resolve the candidate.
func (c Candidate) Query() string {
	return strings.TrimSpace(strings.TrimSpace(c.Artist) + " " + strings.TrimSpace(c.Title))
}

// Bind creates a playable track from the candidate metadata and a resolved id.
// Missing candidate fields are taken from the resolved track.
func (c Candidate) Bind(resolved Track) (Track, error) {
	thumb, hint := c.ThumbnailURL, c.DurationHint
	if thumb == "" {
		thumb = resolved.ThumbnailURL
	}
	if hint == "" {
		hint = resolved.DurationHint
	}
	title, artist := c.Title, c.Artist
	if strings.TrimSpace(title) == "" {
		title = resolved.Title
	}
	if strings.TrimSpace(artist) == "" {
		artist = resolved.Artist
	}
	return New(resolved.ID, title, artist, WithThumbnail(thumb), WithDurationHint(hint))
}
