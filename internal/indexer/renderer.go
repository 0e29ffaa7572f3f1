package indexer

import (
	"context"

	"github.com/hyperjump/searchsync/internal/models"
)

// Renderer runs content through the host's rendering pipeline.
type Renderer interface {
	Title(ctx context.Context, item *models.ContentItem) string
	// Body returns the rendered markup of the item's main content.
	Body(ctx context.Context, item *models.ContentItem) string
	Module(ctx context.Context, item *models.ContentItem, m models.Module) string
	Permalink(ctx context.Context, item *models.ContentItem) string
	// TypeLabel resolves the label of typ in the locale carried by ctx.
	TypeLabel(ctx context.Context, typ string) string
}
