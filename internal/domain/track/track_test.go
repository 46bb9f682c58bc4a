package track

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		title      string
		artist     string
		opts       []Option
		wantErr    bool
		wantTitle  string
		wantArtist string
	}{
		{
			name:       "valid track",
			id:         "dQw4w9WgXcQ",
			title:      "Song",
			artist:     "Artist",
			opts:       []Option{WithThumbnail("https://img/1.jpg"), WithDurationHint("3:30")},
			wantTitle:  "Song",
			wantArtist: "Artist",
		},
		{
			name:    "empty id",
			id:      "",
			title:   "Song",
			wantErr: true,
		},
		{
			name:    "whitespace id",
			id:      "   ",
			wantErr: true,
		},
		{
			name:       "missing artist falls back",
			id:         "abc",
			title:      "Song",
			wantTitle:  "Song",
			wantArtist: UnknownArtist,
		},
		{
			name:       "missing title uses id",
			id:         "abc",
			artist:     "Artist",
			wantTitle:  "abc",
			wantArtist: "Artist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.id, tt.title, tt.artist, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTrack))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantArtist, got.Artist)
		})
	}
}

func TestNew_Options(t *testing.T) {
	got, err := New("id1", "Song", "Artist", WithThumbnail(" https://img/1.jpg "), WithDurationHint("4:05"))
	require.NoError(t, err)
	assert.Equal(t, "https://img/1.jpg", got.ThumbnailURL)
	assert.Equal(t, "4:05", got.DurationHint)

	d, ok := got.Duration()
	assert.True(t, ok)
	assert.Equal(t, 4*time.Minute+5*time.Second, d)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
		ok    bool
	}{
		{"3:30", 3*time.Minute + 30*time.Second, true},
		{"0:07", 7 * time.Second, true},
		{"1:05:20", time.Hour + 5*time.Minute + 20*time.Second, true},
		{"75:00", 75 * time.Minute, true},
		{"", 0, false},
		{"3", 0, false},
		{"a:bc", 0, false},
		{"3:75", 0, false},
		{"1:2:3:4", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseClock(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00", FormatClock(0))
	assert.Equal(t, "0:00", FormatClock(-time.Second))
	assert.Equal(t, "3:05", FormatClock(3*time.Minute+5*time.Second))
	assert.Equal(t, "1:01:01", FormatClock(time.Hour+time.Minute+time.Second))
}

func TestUnique(t *testing.T) {
	a := Track{ID: "a"}
	b := Track{ID: "b"}
	c := Track{ID: "c"}

	existing := IDSet([]Track{a, b})
	got := Unique([]Track{b, c, c}, existing)

	assert.Equal(t, []Track{c}, got)
	assert.Equal(t, 1, IndexOf([]Track{a, b}, "b"))
	assert.Equal(t, -1, IndexOf([]Track{a, b}, "z"))
}

func TestCandidate_Bind(t *testing.T) {
	c := Candidate{Title: "Bella Ciao", Artist: "Goran Bregović", DurationHint: "3:12"}
	assert.Equal(t, "Goran Bregović Bella Ciao", c.Query())

	resolved, err := New("vid1", "Bella Ciao (Official Video)", "GoranBregovicVEVO", WithThumbnail("https://i.ytimg.com/vi/vid1/hqdefault.jpg"))
	require.NoError(t, err)

	got, err := c.Bind(resolved)
	require.NoError(t, err)
	assert.Equal(t, "vid1", got.ID)
	assert.Equal(t, "Bella Ciao", got.Title)
	assert.Equal(t, "Goran Bregović", got.Artist)
	assert.Equal(t, "https://i.ytimg.com/vi/vid1/hqdefault.jpg", got.ThumbnailURL)
	assert.Equal(t, "3:12", got.DurationHint)

	_, err = c.Bind(Track{})
	assert.ErrorIs(t, err, ErrInvalidTrack)
}
