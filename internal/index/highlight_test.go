package index

import (
	"strings"
	"testing"

	"github.com/blevesearch/bleve/v2/search"
	"github.com/stretchr/testify/assert"
)

func locsFor(text string, terms ...string) search.TermLocationMap {
	m := search.TermLocationMap{}
	lower := strings.ToLower(text)
	for _, term := range terms {
		from := 0
		for {
			i := strings.Index(lower[from:], term)
			if i < 0 {
				break
			}
			start := from + i
			m[term] = append(m[term], &search.Location{Start: uint64(start), End: uint64(start + len(term))})
			from = start + len(term)
		}
	}
	return m
}

func TestHighlightField_fullValue(t *testing.T) {
	text := "Parking in the city centre"
	h, ok := highlightField(text, locsFor(text, "parking"), 20, true)
	assert.True(t, ok)
	assert.Equal(t, "<mark>Parking</mark> in the city centre", h.Value)
	assert.Equal(t, "<mark>Parking</mark> in the city centre", h.Snippet)
	assert.Equal(t, []string{"Parking"}, h.MatchedTokens)
}

func TestHighlightField_snippetWindow(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	h, ok := highlightField(text, locsFor(text, "six"), 2, false)
	assert.True(t, ok)
	assert.Empty(t, h.Value)
	assert.Equal(t, "four five <mark>six</mark> seven eight", h.Snippet)
}

func TestHighlightField_noMatch(t *testing.T) {
	_, ok := highlightField("nothing here", search.TermLocationMap{}, 20, true)
	assert.False(t, ok)
}

func TestMatchSpans_mergesOverlaps(t *testing.T) {
	text := "abcdef"
	locs := search.TermLocationMap{
		"abc": {{Start: 0, End: 3}},
		"bcd": {{Start: 1, End: 4}},
		"zz":  {{Start: 4, End: 99}},
	}
	assert.Equal(t, []span{{0, 4}}, matchSpans(text, locs))
}
