package cli

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/searchsync/internal/models"
	"github.com/hyperjump/searchsync/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact is one line per hit.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes a result page to w in the given format.
func WriteSearchResults(w io.Writer, res *models.SearchResult, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case OutputCompact:
		for _, id := range res.IDs {
			fmt.Fprintf(w, "%s\t%s\n", id, plain(res.Highlights[id][models.FieldTitle]))
		}
		return nil
	default:
		writeSearchResultsText(w, res)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, res *models.SearchResult) {
	fmt.Fprintf(w, "\nFound %d results (%d across all types) in %dms, page %d\n\n",
		res.Found, res.TotalFound, res.QueryTime, res.Page)
	for i, id := range res.IDs {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. ID: %s\n", (res.Page-1)*res.PerPage+i+1, id)
		hl := res.Highlights[id]
		if t := hl[models.FieldTitle]; t != "" {
			fmt.Fprintf(w, "Title: %s\n", plain(t))
		}
		for _, field := range []string{models.FieldExcerpt, models.FieldBody} {
			if s := hl[field]; s != "" {
				fmt.Fprintf(w, "\n%s\n", utils.Truncate(plain(s), 200))
				break
			}
		}
		fmt.Fprintln(w)
	}
	writeFacets(w, res.Facets)
}

func writeFacets(w io.Writer, facets models.Facets) {
	fields := make([]string, 0, len(facets))
	for f := range facets {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		values := make([]string, 0, len(facets[f]))
		for v := range facets[f] {
			values = append(values, v)
		}
		sort.Strings(values)
		parts := make([]string, 0, len(values))
		for _, v := range values {
			fv := facets[f][v]
			parts = append(parts, fmt.Sprintf("%s (%d)", fv.Highlighted, fv.Count))
		}
		fmt.Fprintf(w, "%s: %s\n", f, strings.Join(parts, ", "))
	}
}

var markTags = strings.NewReplacer("<mark>", "", "</mark>", "")

// plain drops the <mark> tags of a highlight.
func plain(s string) string {
	return html.UnescapeString(markTags.Replace(s))
}
