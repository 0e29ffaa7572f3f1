// Package index provides the keyed-document search index the sync engine writes to
// and the search path reads from. An embedded Bleve engine and a REST client for a
// remote search service implement the same Client interface.
package index

import "context"

// Client defines collection and document operations against a search index.
// Errors wrap one of the package sentinels (ErrNotFound, ErrUnauthorized, ErrTransport,
// ErrMalformed, ErrAlreadyExists).
type Client interface {
	CreateCollection(ctx context.Context, schema Schema) error
	RetrieveCollection(ctx context.Context, name string) (*CollectionInfo, error)
	// Upsert creates or replaces the document keyed by its "id" field.
	Upsert(ctx context.Context, collection string, doc map[string]any) error
	Retrieve(ctx context.Context, collection, id string) (map[string]any, error)
	Delete(ctx context.Context, collection, id string) error
	// DeleteByFilter removes every document matching filter and returns how many were removed.
	DeleteByFilter(ctx context.Context, collection, filter string) (int, error)
	Search(ctx context.Context, collection string, params SearchParams) (*SearchResponse, error)
	Health(ctx context.Context) error
	Close() error
}
