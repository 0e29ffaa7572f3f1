package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/locale"
	"github.com/hyperjump/searchsync/internal/models"
)

// stubRenderer treats item markup as already rendered.
type stubRenderer struct{}

func (stubRenderer) Title(_ context.Context, item *models.ContentItem) string { return item.Title }
func (stubRenderer) Body(_ context.Context, item *models.ContentItem) string  { return item.Body }
func (stubRenderer) Module(_ context.Context, _ *models.ContentItem, m models.Module) string {
	return m.Body
}
func (stubRenderer) Permalink(_ context.Context, item *models.ContentItem) string {
	return "https://example.org/" + item.ID + "/"
}
func (stubRenderer) TypeLabel(ctx context.Context, typ string) string {
	return locale.From(ctx, "sv_SE") + ":" + typ
}

// fakeIndex is an in-memory index.Client that counts calls and can be told to fail.
type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]map[string]any
	created bool
	calls   map[string]int

	upsertErr   error
	retrieveErr error
	deleteErr   error
	createErr   error
	filterErr   error
	statusErr   error
	lastFilter  string
	searchResp  *index.SearchResponse
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]map[string]any), calls: make(map[string]int)}
}

func (f *fakeIndex) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeIndex) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[id]
	return ok
}

func (f *fakeIndex) CreateCollection(_ context.Context, _ index.Schema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[index.OpCreateCollection]++
	if f.createErr != nil {
		return f.createErr
	}
	if f.created {
		return &index.Error{Op: index.OpCreateCollection, Err: index.ErrAlreadyExists}
	}
	f.created = true
	return nil
}

func (f *fakeIndex) RetrieveCollection(_ context.Context, name string) (*index.CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &index.CollectionInfo{Name: name, NumDocuments: int64(len(f.docs))}, nil
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, doc map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[index.OpUpsert]++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.docs[doc[models.FieldID].(string)] = doc
	return nil
}

func (f *fakeIndex) Retrieve(_ context.Context, _ string, id string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[index.OpRetrieve]++
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, &index.Error{Op: index.OpRetrieve, Err: index.ErrNotFound}
	}
	return doc, nil
}

func (f *fakeIndex) Delete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[index.OpDelete]++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.docs[id]; !ok {
		return &index.Error{Op: index.OpDelete, Err: index.ErrNotFound}
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeIndex) DeleteByFilter(_ context.Context, _ string, filter string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if f.filterErr != nil {
		return 0, f.filterErr
	}
	n := len(f.docs)
	f.docs = make(map[string]map[string]any)
	return n, nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, _ index.SearchParams) (*index.SearchResponse, error) {
	if f.searchResp == nil {
		return nil, fmt.Errorf("%w: no canned response", index.ErrTransport)
	}
	return f.searchResp, nil
}

func (f *fakeIndex) Health(context.Context) error { return nil }
func (f *fakeIndex) Close() error                  { return nil }

func publishedPage(id string) *models.ContentItem {
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return &models.ContentItem{
		ID:         id,
		TenantID:   1,
		Type:       "page",
		Status:     models.StatusPublish,
		Title:      "Parking  in\ttown",
		Body:       "<p>Where to <b>park</b></p>",
		CreatedAt:  ts,
		ModifiedAt: ts,
	}
}
