package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"

	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/hooks"
	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/models"
)

// DefaultCompareFields are the document fields whose change forces a re-index.
// Timestamps, type and tenant are left out so they never cause a write on their own.
var DefaultCompareFields = []string{
	models.FieldID,
	models.FieldTitle,
	models.FieldExcerpt,
	models.FieldBody,
	models.FieldPermalink,
	models.FieldBoost,
	models.FieldTags,
}

// ChangeDetector compares a freshly built document against the indexed one.
// Any doubt resolves to "changed".
type ChangeDetector struct {
	client     index.Client
	collection string
	builder    DocumentBuilder
	hooks      *hooks.Hooks
	logger     *zap.Logger
}

// NewChangeDetector returns a detector reading from collection through client.
func NewChangeDetector(client index.Client, collection string, builder DocumentBuilder, h *hooks.Hooks, logger *zap.Logger) *ChangeDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeDetector{
		client:     client,
		collection: collection,
		builder:    builder,
		hooks:      hooks.OrEmpty(h),
		logger:     logger,
	}
}

// HasChanged builds item and reports whether it differs from its indexed document.
func (c *ChangeDetector) HasChanged(ctx context.Context, item *models.ContentItem) bool {
	doc, err := c.builder.Build(ctx, item)
	if err != nil {
		c.logger.Error("Could not build document for comparison", zap.Error(err))
		return true
	}
	return c.DocumentChanged(ctx, doc)
}

// DocumentChanged reports whether doc differs from the indexed document with the same id.
// A missing document or a failed retrieval counts as changed.
func (c *ChangeDetector) DocumentChanged(ctx context.Context, doc *models.Document) bool {
	stored, err := c.client.Retrieve(ctx, c.collection, doc.ID)
	if err != nil {
		c.logger.Error("Could not retrieve document for comparison",
			zap.String("document_id", doc.ID),
			zap.String("content_id", doc.ContentID),
			zap.String("kind", index.Kind(err)),
			zap.Error(err))
		return true
	}
	if stored == nil {
		return true
	}

	fields := c.CompareFields()
	a, errA := canonical(project(doc.Fields(), fields))
	b, errB := canonical(project(stored, fields))
	if errA != nil || errB != nil {
		return true
	}
	return !bytes.Equal(a, b)
}

// CompareFields returns the comparison field set after the Compare hook.
func (c *ChangeDetector) CompareFields() []string {
	return c.hooks.Compare.Apply(slices.Clone(DefaultCompareFields), hooks.None{})
}

func project(fields map[string]any, keep []string) map[string]any {
	out := make(map[string]any, len(keep))
	for _, k := range keep {
		if v, ok := fields[k]; ok {
			out[k] = v
		}
	}
	return out
}

// canonical encodes m with sorted keys; numbers of equal value encode identically
// whether they arrived as int or float64.
func canonical(m map[string]any) ([]byte, error) {
	return json.Marshal(m)
}
