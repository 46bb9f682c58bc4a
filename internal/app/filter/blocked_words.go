package filter

import (
	"strings"

	"github.com/osa030/voxbox/internal/domain/track"
)

// BlockedWordsConfig represents the configuration for BlockedWordsFilter.
type BlockedWordsConfig struct {
	Words []string `mapstructure:"words" validate:"dive,required"`
}

// BlockedWordsFilter drops tracks whose title or artist contains a blocked
// word, case-insensitively.
type BlockedWordsFilter struct {
	words []string
}

// NewBlockedWordsFilter creates a filter blocking words.
func NewBlockedWordsFilter(words ...string) *BlockedWordsFilter {
	f := &BlockedWordsFilter{}
	f.setWords(words)
	return f
}

func (f *BlockedWordsFilter) Name() string {
	return "blocked_words_filter"
}

func (f *BlockedWordsFilter) Description() string {
	return "Drops tracks whose title or artist contains a blocked word"
}

func (f *BlockedWordsFilter) ReturnCodes() []string {
	return []string{"blocked_word"}
}

func (f *BlockedWordsFilter) ValidateConfig(settings map[string]any) error {
	var config BlockedWordsConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.setWords(config.Words)
	return nil
}

func (f *BlockedWordsFilter) setWords(words []string) {
	f.words = f.words[:0]
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			f.words = append(f.words, w)
		}
	}
}

func (f *BlockedWordsFilter) Check(t track.Track) Result {
	text := strings.ToLower(t.Title + " " + t.Artist)
	for _, w := range f.words {
		if strings.Contains(text, w) {
			return Reject("blocked_word")
		}
	}
	return Accept()
}

func init() {
	Register("blocked_words_filter", func() Filter {
		return NewBlockedWordsFilter()
	})
}
