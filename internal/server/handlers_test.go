package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/config"
	"github.com/hyperjump/searchsync/internal/content"
	"github.com/hyperjump/searchsync/internal/docid"
	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/indexer"
	"github.com/hyperjump/searchsync/internal/models"
	"github.com/hyperjump/searchsync/internal/search"
)

const testCollection = "test_1_content"

type testEnv struct {
	srv    *Server
	router http.Handler
	store  *content.SQLiteStore
	engine *index.BleveEngine
}

func newTestEnv(t *testing.T, collection string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := content.NewSQLiteStore(filepath.Join(dir, "content.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine := index.NewBleveEngine("")
	t.Cleanup(func() { _ = engine.Close() })

	renderer := content.NewMarkdownRenderer("https://example.org", "en_US", nil)
	idx := indexer.NewIndexer(engine, collection, 1,
		indexer.NewBuilder(renderer, nil, 0),
		indexer.NewEligibility(config.DefaultIndexableTypes, config.DefaultIndexableStatuses, nil))
	if collection != "" {
		require.True(t, idx.ProvisionCollection(context.Background()))
	}
	rebuilder := indexer.NewRebuilder(idx, store, filepath.Join(dir, "build.lock"), nil)
	eng := search.NewEngine(engine, collection, search.NewTranslator(0, nil))

	srv := NewServer(eng, idx, rebuilder, store, &config.ServerConfig{Host: "localhost", Port: 8080}, zap.NewNop())
	return &testEnv{srv: srv, router: srv.Router(), store: store, engine: engine}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *testEnv) put(t *testing.T, item *models.ContentItem) {
	t.Helper()
	require.NoError(t, e.store.Put(context.Background(), item))
}

func page(id, title string) *models.ContentItem {
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return &models.ContentItem{
		ID: id, TenantID: 1, Type: "page", Status: models.StatusPublish,
		Title: title, Body: "Where to *park* in town", Slug: strings.ToLower(title),
		CreatedAt: ts, ModifiedAt: ts,
	}
}

func decodeOutcome(t *testing.T, w *httptest.ResponseRecorder) indexer.Outcome {
	t.Helper()
	var out eventResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out.Outcome
}

func TestHandleSaved_WithItem(t *testing.T) {
	env := newTestEnv(t, testCollection)

	w := env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{Item: page("1", "Parking")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, indexer.OutcomeIndexed, decodeOutcome(t, w))

	_, err := env.engine.Retrieve(context.Background(), testCollection, docid.For(1, "1"))
	assert.NoError(t, err)
}

func TestHandleSaved_LoadsItemFromStore(t *testing.T) {
	env := newTestEnv(t, testCollection)
	env.put(t, page("7", "Parking"))

	w := env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{ID: "7"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, indexer.OutcomeIndexed, decodeOutcome(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{ID: "7"})
	assert.Equal(t, indexer.OutcomeUnchanged, decodeOutcome(t, w))
}

func TestHandleSaved_Autosave(t *testing.T) {
	env := newTestEnv(t, testCollection)
	w := env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{Item: page("1", "Parking"), Autosave: true})
	assert.Equal(t, indexer.OutcomeIneligible, decodeOutcome(t, w))
}

func TestHandleSaved_BadRequests(t *testing.T) {
	env := newTestEnv(t, testCollection)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/events/saved", strings.NewReader("{"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{ID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDeletedAndTrashed(t *testing.T) {
	env := newTestEnv(t, testCollection)
	env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{Item: page("1", "Parking")})

	w := env.do(t, http.MethodPost, "/api/v1/events/trashed", eventRequest{ID: "1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, indexer.OutcomeRemoved, decodeOutcome(t, w))

	// deleting something already gone is still a success
	w = env.do(t, http.MethodPost, "/api/v1/events/deleted", eventRequest{ID: "1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, indexer.OutcomeRemoved, decodeOutcome(t, w))

	w = env.do(t, http.MethodGet, "/api/v1/documents/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSearchOptions_ExcludeRemovesDocument(t *testing.T) {
	env := newTestEnv(t, testCollection)
	env.put(t, page("1", "Parking"))
	env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{ID: "1"})

	w := env.do(t, http.MethodPut, "/api/v1/content/1/search-options", models.SearchOptions{Exclude: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, indexer.OutcomeRemoved, decodeOutcome(t, w))

	item, err := env.store.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, item.Options.Exclude)

	w = env.do(t, http.MethodPut, "/api/v1/content/404/search-options", models.SearchOptions{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSearchOptions_BoostIsIndexed(t *testing.T) {
	env := newTestEnv(t, testCollection)
	env.put(t, page("1", "Parking"))

	w := env.do(t, http.MethodPut, "/api/v1/content/1/search-options", models.SearchOptions{Boost: 5, Tags: "car"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/documents/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc models.Document
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	assert.Equal(t, 5, doc.Boost)
	assert.Equal(t, "car", doc.Tags)
	assert.Equal(t, "https://example.org/parking/", doc.Permalink)
}

func TestHandleRebuild(t *testing.T) {
	env := newTestEnv(t, testCollection)
	env.put(t, page("1", "Parking"))
	env.put(t, page("2", "Library"))
	draft := page("3", "Draft")
	draft.Status = models.StatusDraft
	env.put(t, draft)

	w := env.do(t, http.MethodPost, "/api/v1/rebuild?settings=true&clearindex=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report indexer.BulkReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Outcomes[indexer.OutcomeIndexed])

	info, err := env.engine.RetrieveCollection(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.NumDocuments)
}

func TestHandleCollection(t *testing.T) {
	env := newTestEnv(t, testCollection)
	env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{Item: page("1", "Parking")})

	w := env.do(t, http.MethodGet, "/api/v1/collection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st indexer.CollectionStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, indexer.StatusExists, st.Status)
	assert.Equal(t, int64(1), st.NumDocuments)

	w = env.do(t, http.MethodPost, "/api/v1/collection", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/collection", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	info, err := env.engine.RetrieveCollection(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Zero(t, info.NumDocuments)
}

func TestHandleCollection_Disabled(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/collection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st indexer.CollectionStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, indexer.StatusDisabled, st.Status)

	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodPost, "/api/v1/collection", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodPost, "/api/v1/rebuild", nil).Code)

	w = env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{Item: page("1", "Parking")})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, indexer.OutcomeDisabled, decodeOutcome(t, w))
}

func TestHandleSearch(t *testing.T) {
	env := newTestEnv(t, testCollection)
	env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{Item: page("1", "Parking")})
	env.do(t, http.MethodPost, "/api/v1/events/saved", eventRequest{Item: page("2", "Library")})

	w := env.do(t, http.MethodGet, "/api/v1/search?q=parking", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res models.SearchResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	require.NotEmpty(t, res.IDs)
	assert.Equal(t, "1", res.IDs[0])
	assert.Equal(t, "parking", res.Query)
	assert.NotEmpty(t, w.Header().Get("X-Total-Hits"))
}

func TestHandleSearch_BadRequests(t *testing.T) {
	env := newTestEnv(t, testCollection)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/search?q=", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/search?q=x&page=two", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/search?q=x&per_page=-", nil).Code)
}

func TestHandleSearch_DeclinedWithoutCollection(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/search?q=parking", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, testCollection)
	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])

	require.NoError(t, env.engine.Close())
	w = env.do(t, http.MethodGet, "/health", nil)
	out = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Equal(t, "degraded", out["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testCollection)
	env.do(t, http.MethodGet, "/health", nil)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "searchsync_http_requests_total")
}
