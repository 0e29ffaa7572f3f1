package search

import (
	"context"
	"sync"

	"github.com/hyperjump/searchsync/internal/models"
)

// Session holds the outputs of the search made while serving one request, so the
// rendering path can read them after the fact. Each request owns its own Session.
type Session struct {
	mu     sync.RWMutex
	result *models.SearchResult
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) reset() {
	s.mu.Lock()
	s.result = nil
	s.mu.Unlock()
}

func (s *Session) store(r *models.SearchResult) {
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
}

// Active reports whether a search result is held.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result != nil
}

// Result returns the held result, or nil.
func (s *Session) Result() *models.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// HitCount returns the hit count of the active (possibly filtered) query.
func (s *Session) HitCount() int {
	if r := s.Result(); r != nil {
		return r.Found
	}
	return 0
}

// TotalHitCount returns the hit count regardless of the type filter.
func (s *Session) TotalHitCount() int {
	if r := s.Result(); r != nil {
		return r.TotalFound
	}
	return 0
}

// Facets returns every facet of the last search.
func (s *Session) Facets() models.Facets {
	if r := s.Result(); r != nil {
		return r.Facets
	}
	return models.Facets{}
}

// FacetsByField returns the counts of one facet field, or nil.
func (s *Session) FacetsByField(field string) map[string]models.FacetValue {
	return s.Facets()[field]
}

// Highlights returns the highlighted snippets keyed by content id.
func (s *Session) Highlights() models.Highlights {
	if r := s.Result(); r != nil {
		return r.Highlights
	}
	return models.Highlights{}
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session carried by ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
