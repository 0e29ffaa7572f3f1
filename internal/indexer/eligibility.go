package indexer

import (
	"slices"

	"github.com/hyperjump/searchsync/internal/hooks"
	"github.com/hyperjump/searchsync/internal/models"
)

// EditContext describes the save cycle that produced an event.
type EditContext struct {
	// Autosave is set for background draft saves.
	Autosave bool `json:"autosave,omitempty"`
}

// Eligibility decides whether a content item belongs in the index.
type Eligibility struct {
	types    []string
	statuses []string
	hooks    *hooks.Hooks
}

// NewEligibility returns a filter over the given type and status allow-lists.
func NewEligibility(types, statuses []string, h *hooks.Hooks) *Eligibility {
	return &Eligibility{
		types:    slices.Clone(types),
		statuses: slices.Clone(statuses),
		hooks:    hooks.OrEmpty(h),
	}
}

// IndexableTypes returns the configured types after the IndexableTypes hook.
func (e *Eligibility) IndexableTypes() []string {
	return e.hooks.IndexableTypes.Apply(slices.Clone(e.types), hooks.None{})
}

// IndexableStatuses returns the configured statuses after the IndexableStatuses hook.
func (e *Eligibility) IndexableStatuses() []string {
	return e.hooks.IndexableStatuses.Apply(slices.Clone(e.statuses), hooks.None{})
}

// IsEligible reports whether item should be present in the index.
func (e *Eligibility) IsEligible(item *models.ContentItem, ec EditContext) bool {
	switch {
	case item == nil:
		return false
	case ec.Autosave:
		return false
	case item.IsRevision():
		return false
	case !slices.Contains(e.IndexableStatuses(), item.Status):
		return false
	case !slices.Contains(e.IndexableTypes(), item.Type):
		return false
	case item.Options.Exclude:
		return false
	}
	return e.hooks.ShouldIndex.Apply(true, item)
}
