package search

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hyperjump/searchsync/internal/hooks"
	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/models"
)

// Fixed query shape. Tags weigh most, then title, excerpt and body.
var (
	QueryBy             = strings.Join([]string{models.FieldTags, models.FieldTitle, models.FieldExcerpt, models.FieldBody}, ",")
	QueryByWeights      = "4,3,2,1"
	FacetBy             = models.FieldType
	SortBy              = models.FieldBoost + ":desc,_text_match:desc"
	IncludeFields       = models.FieldContentID
	HighlightFields     = strings.Join([]string{models.FieldTitle, models.FieldExcerpt, models.FieldBody}, ",")
	HighlightFullFields = strings.Join([]string{models.FieldTitle, models.FieldExcerpt}, ",")
)

// DefaultAffixTokens is the number of tokens kept around a highlighted match.
const DefaultAffixTokens = 20

// Query is a translated search: the primary page request and, when a type filter is
// active, a filter-free zero-size request for facet counts and the unfiltered total.
type Query struct {
	Primary index.SearchParams
	Facets  *index.SearchParams
}

// Translator maps search requests to index queries and index responses back to results.
type Translator struct {
	affix    int
	hooks    *hooks.Hooks
	sanitize *bluemonday.Policy
}

// NewTranslator returns a translator. affix <= 0 uses DefaultAffixTokens.
func NewTranslator(affix int, h *hooks.Hooks) *Translator {
	if affix <= 0 {
		affix = DefaultAffixTokens
	}
	p := bluemonday.NewPolicy()
	p.AllowElements("mark")
	return &Translator{affix: affix, hooks: hooks.OrEmpty(h), sanitize: p}
}

// Translate builds the index query for req. req must already be validated.
func (t *Translator) Translate(req *models.SearchRequest) Query {
	primary := index.SearchParams{
		Q:                       req.Query,
		QueryBy:                 QueryBy,
		QueryByWeights:          QueryByWeights,
		FacetBy:                 FacetBy,
		SortBy:                  SortBy,
		IncludeFields:           IncludeFields,
		HighlightFields:         HighlightFields,
		HighlightFullFields:     HighlightFullFields,
		HighlightAffixNumTokens: t.affix,
		PerPage:                 req.PerPage,
		Page:                    req.Page,
	}
	q := Query{Primary: primary}
	if req.Type != "" {
		q.Primary.FilterBy = index.Equals(models.FieldType, req.Type)
		facets := primary
		facets.PerPage = 0
		q.Facets = &facets
	}
	return q
}

// Interpret turns the index responses into a result. facets may be nil, in which case
// totals and facet counts come from primary.
func (t *Translator) Interpret(req *models.SearchRequest, primary, facets *index.SearchResponse) *models.SearchResult {
	res := &models.SearchResult{
		Query:      req.Query,
		Page:       req.Page,
		PerPage:    req.PerPage,
		IDs:        make([]string, 0, len(primary.Hits)),
		Highlights: make(models.Highlights, len(primary.Hits)),
		Found:      primary.Found,
	}

	for _, hit := range primary.Hits {
		id, ok := contentID(hit.Document)
		if !ok {
			continue
		}
		res.IDs = append(res.IDs, id)
		fields := make(map[string]string, len(hit.Highlight))
		for name, hl := range hit.Highlight {
			switch {
			case hl.Value != "":
				fields[name] = t.sanitize.Sanitize(hl.Value)
			case hl.Snippet != "":
				fields[name] = t.sanitize.Sanitize(hl.Snippet)
			}
		}
		res.Highlights[id] = fields
	}

	source := primary
	if facets != nil {
		source = facets
	}
	res.TotalFound = source.Found
	res.Facets = t.hooks.FacetCounts.Apply(parseFacets(source), hooks.FacetInput{Request: req, Raw: source})
	return res
}

func contentID(doc map[string]any) (string, bool) {
	switch v := doc[models.FieldContentID].(type) {
	case string:
		return v, v != ""
	default:
		return "", false
	}
}

func parseFacets(resp *index.SearchResponse) models.Facets {
	out := make(models.Facets, len(resp.FacetCounts))
	for _, fc := range resp.FacetCounts {
		if fc.FieldName == "" {
			continue
		}
		values := make(map[string]models.FacetValue, len(fc.Counts))
		for _, c := range fc.Counts {
			label := c.Highlighted
			if label == "" {
				label = c.Value
			}
			values[c.Value] = models.FacetValue{Count: c.Count, Highlighted: label}
		}
		out[fc.FieldName] = values
	}
	return out
}
