package models

import (
	"fmt"
	"strings"
)

// SearchRequest is an end-user search: free text, optional type filter and paging.
type SearchRequest struct {
	Query   string `json:"q"`
	Type    string `json:"type,omitempty"`
	Page    int    `json:"page,omitempty"`
	PerPage int    `json:"per_page,omitempty"`
}

// Validate trims the request and applies paging defaults.
// Returns an error if the query is blank.
func (r *SearchRequest) Validate(defaultPerPage, maxPerPage int) error {
	r.Query = strings.TrimSpace(r.Query)
	r.Type = strings.TrimSpace(r.Type)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.PerPage <= 0 {
		r.PerPage = defaultPerPage
	}
	if maxPerPage > 0 && r.PerPage > maxPerPage {
		r.PerPage = maxPerPage
	}
	return nil
}
