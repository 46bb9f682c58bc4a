package expansion

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_FirstElementIsUtterance(t *testing.T) {
	for _, u := range []string{"shqip", "Italian love songs", "xyz", "a", "  padded  ", ""} {
		t.Run(u, func(t *testing.T) {
			got := Expand(u)
			require.GreaterOrEqual(t, len(got), 2)
			assert.Equal(t, u, got[0])
		})
	}
}

func TestExpand_Markers(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      []string
	}{
		{
			name:      "albanian",
			utterance: "shqip",
			want:      []string{"shqip", "muzikë shqiptare", "këngë shqipe", "albanian music", "folk shqiptar"},
		},
		{
			name:      "albanian case insensitive substring",
			utterance: "Muzike SHQIPE",
			want:      []string{"Muzike SHQIPE", "muzikë shqiptare", "këngë shqipe", "albanian music", "folk shqiptar"},
		},
		{
			name:      "italian",
			utterance: "some italian classics",
			want:      []string{"some italian classics", "italian music", "musica italiana", "italian songs", "italian hits"},
		},
		{
			name:      "generic",
			utterance: "xyz",
			want: []string{
				"xyz", "xyz music", "xyz songs", "xyz hits", "xyz best", "xyz popular",
				"similar to xyz", "xyz playlist", "xyz mix",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.utterance))
		})
	}
}

func TestMatches(t *testing.T) {
	kw, ok := Matches("Këngë SHQIP")
	assert.True(t, ok)
	assert.Equal(t, "shqip", kw)

	_, ok = Matches("jazz")
	assert.False(t, ok)
}

func TestPicker_ExtensionQuery(t *testing.T) {
	variations := Expand("xyz")
	p := NewPicker(rand.NewSource(42), nil)

	seenVariations := make(map[string]bool)
	for i := 0; i < 500; i++ {
		q := p.ExtensionQuery(variations)

		// longest matching suffix wins ("greatest hits" vs "hits")
		var term string
		for _, ft := range FreshnessTerms {
			if strings.HasSuffix(q, " "+ft) && len(ft) > len(term) {
				term = ft
			}
		}
		require.NotEmpty(t, term, "query %q must end with a freshness term", q)
		seenVariations[strings.TrimSuffix(q, " "+term)] = true
	}

	// every variation is reachable
	for _, v := range variations {
		assert.True(t, seenVariations[v], "variation %q never picked", v)
	}
}

func TestPicker_CustomTerms(t *testing.T) {
	p := NewPicker(rand.NewSource(1), []string{"live"})
	assert.Equal(t, "only live", p.ExtensionQuery([]string{"only"}))
	assert.Equal(t, "live", p.ExtensionQuery(nil))
}
