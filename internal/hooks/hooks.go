// Package hooks provides ordered filter chains that let the host adjust sync and search behavior.
package hooks

import (
	"sync"

	"github.com/hyperjump/searchsync/internal/models"
)

// Filter is an ordered chain of callbacks for one extension point.
// Each callback receives the current value and an argument and returns the value to pass on.
// The zero value is an empty chain that returns its input unchanged.
type Filter[T, A any] struct {
	mu  sync.RWMutex
	fns []func(T, A) T
}

// Add registers fn at the end of the chain.
func (f *Filter[T, A]) Add(fn func(T, A) T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fns = append(f.fns, fn)
}

// Apply runs the chain in registration order starting from v.
func (f *Filter[T, A]) Apply(v T, arg A) T {
	f.mu.RLock()
	fns := append([]func(T, A) T(nil), f.fns...)
	f.mu.RUnlock()
	for _, fn := range fns {
		v = fn(v, arg)
	}
	return v
}

// Len returns the number of registered callbacks.
func (f *Filter[T, A]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.fns)
}

// None is the argument type for extension points that take no context.
type None struct{}

// FacetInput is passed to FacetCounts callbacks alongside the parsed facets.
type FacetInput struct {
	Request *models.SearchRequest
	// Raw is the facet source response as returned by the index.
	Raw any
}

// Hooks holds every named extension point. The zero value is ready to use.
type Hooks struct {
	IndexableTypes      Filter[[]string, None]
	IndexableStatuses   Filter[[]string, None]
	ShouldIndex         Filter[bool, *models.ContentItem]
	Compare             Filter[[]string, None]
	CustomBoost         Filter[int, *models.ContentItem]
	CustomTags          Filter[string, *models.ContentItem]
	Record              Filter[*models.Document, *models.ContentItem]
	CollectionName      Filter[string, None]
	FacetCounts         Filter[models.Facets, FacetInput]
	BackendSearchActive Filter[bool, *models.SearchRequest]
}

// New returns an empty set of hooks.
func New() *Hooks {
	return &Hooks{}
}

// OrEmpty returns h, or an empty set when h is nil.
func OrEmpty(h *Hooks) *Hooks {
	if h == nil {
		return New()
	}
	return h
}
