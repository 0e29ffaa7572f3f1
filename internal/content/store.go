// Package content reads site content items from the host store and renders their markup.
package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/searchsync/internal/config"
	"github.com/hyperjump/searchsync/internal/models"
)

// ErrNotFound is returned when a content item does not exist.
var ErrNotFound = errors.New("content item not found")

// Store defines the content operations the sync engine needs.
type Store interface {
	Get(ctx context.Context, id string) (*models.ContentItem, error)
	// List returns items of the given type and status ordered by id.
	// An empty type or status matches everything.
	List(ctx context.Context, typ, status string) ([]*models.ContentItem, error)
	// SetOptions persists the per-item search options.
	SetOptions(ctx context.Context, id string, opts models.SearchOptions) error
	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Content.Driver {
	case config.ContentSQLite:
		return NewSQLiteStore(cfg.Content.DatabasePath, cfg.Site.TenantID)
	case config.ContentFiles:
		return NewFileStore(cfg.Content.Directory, cfg.Site.TenantID)
	default:
		return nil, fmt.Errorf("unknown content driver %q", cfg.Content.Driver)
	}
}
