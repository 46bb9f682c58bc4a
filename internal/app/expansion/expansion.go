// Package expansion derives alternate search phrasings from a spoken request.
//
// The variation pool keeps an "infinite radio" queue growing after the
// initial search result is exhausted.
package expansion

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"strings"
	"time"
)

// Marker maps a language/genre keyword to a curated phrase set.
type Marker struct {
	Keyword string
	Phrases []string
}

// markers is checked in order; the first keyword found wins.
var markers = []Marker{
	{
		Keyword: "shqip",
		Phrases: []string{"muzikë shqiptare", "këngë shqipe", "albanian music", "folk shqiptar"},
	},
	{
		Keyword: "italian",
		Phrases: []string{"italian music", "musica italiana", "italian songs", "italian hits"},
	},
}

// genericSuffixes are appended to the utterance when no marker matches.
var genericSuffixes = []string{"music", "songs", "hits", "best", "popular"}

// FreshnessTerms are appended to a variation on every extension search.
var FreshnessTerms = []string{"hits", "best of", "popular", "top songs", "greatest hits", "mix", "playlist"}

// Expand returns the variation pool for an utterance.
// The first element is always the utterance itself and the result always
// holds at least two entries.
func Expand(utterance string) []string {
	variations := []string{utterance}

	lower := strings.ToLower(utterance)
	for _, m := range markers {
		if strings.Contains(lower, m.Keyword) {
			return append(variations, m.Phrases...)
		}
	}

	for _, s := range genericSuffixes {
		variations = append(variations, join(utterance, s))
	}
	variations = append(variations,
		join("similar to", utterance),
		join(utterance, "playlist"),
		join(utterance, "mix"),
	)
	return variations
}

// Matches reports the curated marker keyword found in the utterance, if any.
func Matches(utterance string) (string, bool) {
	lower := strings.ToLower(utterance)
	for _, m := range markers {
		if strings.Contains(lower, m.Keyword) {
			return m.Keyword, true
		}
	}
	return "", false
}

func join(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

// Picker selects variations and freshness terms uniformly at random.
// A Picker is not safe for concurrent use.
type Picker struct {
	rng   *rand.Rand
	terms []string
}

// NewPicker creates a picker. A nil source is replaced by a crypto seeded one.
// Empty terms fall back to FreshnessTerms.
func NewPicker(src rand.Source, terms []string) *Picker {
	if src == nil {
		src = rand.NewSource(cryptoSeed())
	}
	if len(terms) == 0 {
		terms = FreshnessTerms
	}
	return &Picker{
		rng:   rand.New(src),
		terms: terms,
	}
}

// ExtensionQuery picks one variation and one freshness term and joins them.
func (p *Picker) ExtensionQuery(variations []string) string {
	variation := ""
	if len(variations) > 0 {
		variation = variations[p.rng.Intn(len(variations))]
	}
	term := p.terms[p.rng.Intn(len(p.terms))]
	return join(variation, term)
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		return int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return time.Now().UnixNano()
}
