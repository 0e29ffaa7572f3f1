package models

// FacetValue is the count for one facet value and its display label.
type FacetValue struct {
	Count       int    `json:"count"`
	Highlighted string `json:"highlighted"`
}

// Facets maps a facet field to its value counts.
type Facets map[string]map[string]FacetValue

// Highlights maps a content id to field name and highlighted snippet.
type Highlights map[string]map[string]string

// SearchResult is one page of index-backed results.
// IDs keep the order the index returned them in.
type SearchResult struct {
	Query string   `json:"query"`
	IDs   []string `json:"ids"`
	// Found counts hits for the active (possibly type-filtered) query.
	Found int `json:"found"`
	// TotalFound counts hits across all types, ignoring the type filter.
	TotalFound int        `json:"total_found"`
	Facets     Facets     `json:"facets"`
	Highlights Highlights `json:"highlights"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
	QueryTime  int64      `json:"query_time_ms"`
}
