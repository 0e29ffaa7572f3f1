package index

import (
	"regexp"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2/search"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// DefaultAffixTokens is the number of tokens kept on each side of the first match in a snippet.
const DefaultAffixTokens = 4

var tokenRe = regexp.MustCompile(`\S+`)

type span struct{ start, end int }

// highlightField marks every matched term location of text. It returns false when
// nothing in text matched. Value is only filled when full is set.
func highlightField(text string, locs search.TermLocationMap, affix int, full bool) (Highlight, bool) {
	spans := matchSpans(text, locs)
	if len(spans) == 0 {
		return Highlight{}, false
	}
	if affix <= 0 {
		affix = DefaultAffixTokens
	}
	h := Highlight{MatchedTokens: matchedTokens(text, spans)}
	if full {
		h.Value = markRange(text, spans, 0, len(text))
	}
	from, to := snippetBounds(text, spans[0].start, affix)
	h.Snippet = markRange(text, spans, from, to)
	return h, true
}

func matchSpans(text string, locs search.TermLocationMap) []span {
	var spans []span
	for _, list := range locs {
		for _, l := range list {
			s, e := int(l.Start), int(l.End)
			if s < 0 || e > len(text) || s >= e {
				continue
			}
			spans = append(spans, span{s, e})
		}
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start == spans[j].start {
			return spans[i].end < spans[j].end
		}
		return spans[i].start < spans[j].start
	})
	merged := spans[:0]
	for _, s := range spans {
		if n := len(merged); n > 0 && s.start <= merged[n-1].end {
			if s.end > merged[n-1].end {
				merged[n-1].end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func matchedTokens(text string, spans []span) []string {
	seen := make(map[string]struct{}, len(spans))
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		tok := text[s.start:s.end]
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// snippetBounds returns the byte range covering affix tokens before and after the token at pos.
func snippetBounds(text string, pos, affix int) (int, int) {
	tokens := tokenRe.FindAllStringIndex(text, -1)
	if len(tokens) == 0 {
		return 0, len(text)
	}
	hit := len(tokens) - 1
	for i, t := range tokens {
		if pos < t[1] {
			hit = i
			break
		}
	}
	lo := hit - affix
	if lo < 0 {
		lo = 0
	}
	hi := hit + affix
	if hi > len(tokens)-1 {
		hi = len(tokens) - 1
	}
	return tokens[lo][0], tokens[hi][1]
}

func markRange(text string, spans []span, from, to int) string {
	var b strings.Builder
	b.Grow(to - from + len(spans)*(len(markOpen)+len(markClose)))
	cur := from
	for _, s := range spans {
		if s.end <= from || s.start >= to {
			continue
		}
		start, end := max(s.start, from), min(s.end, to)
		b.WriteString(text[cur:start])
		b.WriteString(markOpen)
		b.WriteString(text[start:end])
		b.WriteString(markClose)
		cur = end
	}
	b.WriteString(text[cur:to])
	return b.String()
}
