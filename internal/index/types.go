package index

import (
	"strings"

	"github.com/hyperjump/searchsync/internal/models"
)

// Field types understood by the schema.
const (
	TypeString = "string"
	TypeInt32  = "int32"
	TypeInt64  = "int64"
)

// Field is one field of a collection schema.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Facet    bool   `json:"facet,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// Schema names a collection and fixes its fields.
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field returns the schema field called name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DocumentSchema returns the fixed schema for content documents.
func DocumentSchema(name string) Schema {
	return Schema{
		Name: name,
		Fields: []Field{
			{Name: models.FieldTenantID, Type: TypeInt32},
			{Name: models.FieldContentID, Type: TypeString},
			{Name: models.FieldCreatedAt, Type: TypeInt64},
			{Name: models.FieldModifiedAt, Type: TypeInt64},
			{Name: models.FieldTitle, Type: TypeString},
			{Name: models.FieldExcerpt, Type: TypeString},
			{Name: models.FieldBody, Type: TypeString},
			{Name: models.FieldPermalink, Type: TypeString},
			{Name: models.FieldType, Type: TypeString, Facet: true},
			{Name: models.FieldTypeLabel, Type: TypeString, Facet: true},
			{Name: models.FieldBoost, Type: TypeInt32, Optional: true},
			{Name: models.FieldTags, Type: TypeString, Optional: true},
		},
	}
}

// CollectionInfo describes an existing collection.
type CollectionInfo struct {
	Name         string  `json:"name"`
	NumDocuments int64   `json:"num_documents"`
	Fields       []Field `json:"fields"`
}

// SearchParams is a search against one collection. Comma-separated lists follow
// the index service's query parameter conventions.
type SearchParams struct {
	Q                       string `json:"q"`
	QueryBy                 string `json:"query_by"`
	QueryByWeights          string `json:"query_by_weights,omitempty"`
	FacetBy                 string `json:"facet_by,omitempty"`
	FilterBy                string `json:"filter_by,omitempty"`
	SortBy                  string `json:"sort_by,omitempty"`
	IncludeFields           string `json:"include_fields,omitempty"`
	HighlightFields         string `json:"highlight_fields,omitempty"`
	HighlightFullFields     string `json:"highlight_full_fields,omitempty"`
	HighlightAffixNumTokens int    `json:"highlight_affix_num_tokens,omitempty"`
	MaxFacetValues          int    `json:"max_facet_values,omitempty"`
	PerPage                 int    `json:"per_page"`
	Page                    int    `json:"page,omitempty"`
}

// wireSearchParams is the request form of SearchParams.
type wireSearchParams struct {
	SearchParams
	// structured "highlight" object per hit instead of the legacy list
	EnableHighlightV1 bool `json:"enable_highlight_v1"`
}

func (p SearchParams) wire() wireSearchParams {
	return wireSearchParams{SearchParams: p}
}

// SearchResponse is the result of one search.
type SearchResponse struct {
	Found        int           `json:"found"`
	OutOf        int           `json:"out_of"`
	Page         int           `json:"page"`
	SearchTimeMS int64         `json:"search_time_ms"`
	Hits         []Hit         `json:"hits"`
	FacetCounts  []FacetCounts `json:"facet_counts"`
}

// Hit is a single matching document.
type Hit struct {
	Document  map[string]any       `json:"document"`
	Highlight map[string]Highlight `json:"highlight,omitempty"`
	TextMatch int64                `json:"text_match"`
}

// Highlight holds the marked-up text for one field of a hit.
// Value is the whole field and is only set for full-highlight fields.
type Highlight struct {
	Snippet       string   `json:"snippet,omitempty"`
	Value         string   `json:"value,omitempty"`
	MatchedTokens []string `json:"matched_tokens,omitempty"`
}

// FacetCounts lists value counts for one facet field.
type FacetCounts struct {
	FieldName string       `json:"field_name"`
	Counts    []FacetCount `json:"counts"`
}

// FacetCount is the number of hits carrying one facet value.
type FacetCount struct {
	Value       string `json:"value"`
	Count       int    `json:"count"`
	Highlighted string `json:"highlighted,omitempty"`
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
