package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemote(t *testing.T, h http.HandlerFunc, opts ...RemoteOption) *RemoteClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]RemoteOption{WithRetryDelay(time.Millisecond)}, opts...)
	c, err := NewRemoteClient(srv.URL, "secret", time.Second, opts...)
	require.NoError(t, err)
	return c
}

func TestRemoteClient_SendsAPIKey(t *testing.T) {
	c := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-TYPESENSE-API-KEY"))
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	require.NoError(t, c.Health(context.Background()))
}

func TestRemoteClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrAlreadyExists},
		{http.StatusBadRequest, ErrMalformed},
		{http.StatusUnprocessableEntity, ErrMalformed},
		{http.StatusServiceUnavailable, ErrTransport},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})
			_, err := c.Retrieve(context.Background(), "c", "d1")
			assert.ErrorIs(t, err, tt.want)
			var ie *Error
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, OpRetrieve, ie.Op)
		})
	}
}

func TestRemoteClient_RetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	c := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"d1","title":"ok"}`))
	})
	doc, err := c.Retrieve(context.Background(), "c", "d1")
	require.NoError(t, err)
	assert.Equal(t, "ok", doc["title"])
	assert.EqualValues(t, 3, calls.Load())
}

func TestRemoteClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := c.Delete(context.Background(), "c", "d1")
	assert.ErrorIs(t, err, ErrTransport)
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, OpDelete, ie.Op)
	assert.Greater(t, calls.Load(), int32(1))
}

func TestRemoteClient_CreateCollectionConflict(t *testing.T) {
	c := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/collections", r.URL.Path)
		var schema map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&schema))
		assert.Equal(t, "c", schema["name"])
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"A collection with name c already exists."}`))
	})
	err := c.CreateCollection(context.Background(), DocumentSchema("c"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRemoteClient_RetrieveCollection(t *testing.T) {
	c := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/c", r.URL.Path)
		_, _ = w.Write([]byte(`{"name":"c","num_documents":12,"created_at":1,"fields":[{"name":"title","type":"string"}]}`))
	})
	info, err := c.RetrieveCollection(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "c", info.Name)
	assert.EqualValues(t, 12, info.NumDocuments)
	require.Len(t, info.Fields, 1)
	assert.Equal(t, "title", info.Fields[0].Name)
}

func TestRemoteClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	c, err := NewRemoteClient(srv.URL, "secret", 20*time.Millisecond, WithRetries(0))
	require.NoError(t, err)
	_, err = c.RetrieveCollection(context.Background(), "c")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestRemoteClient_SearchEncodesParams(t *testing.T) {
	c := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/prod_1_content/documents/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "parking", q.Get("q"))
		assert.Equal(t, "4,3,2,1", q.Get("query_by_weights"))
		assert.Equal(t, "tags,title,excerpt,body", q.Get("query_by"))
		assert.Equal(t, "0", q.Get("per_page"))
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Found: 2,
			Hits: []Hit{{
				Document:  map[string]any{"content_id": "7"},
				Highlight: map[string]Highlight{"title": {Snippet: "<mark>p</mark>"}},
			}},
			FacetCounts: []FacetCounts{{FieldName: "type", Counts: []FacetCount{{Value: "page", Count: 2}}}},
		})
	})
	res, err := c.Search(context.Background(), "prod_1_content", SearchParams{
		Q: "parking", QueryBy: "tags,title,excerpt,body", QueryByWeights: "4,3,2,1", PerPage: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, "7", res.Hits[0].Document["content_id"])
	assert.Equal(t, "page", res.FacetCounts[0].Counts[0].Value)
}

func TestRemoteClient_UpsertAndDeleteByFilter(t *testing.T) {
	c := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "upsert", r.URL.Query().Get("action"))
			var doc map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
			assert.Equal(t, "d1", doc["id"])
			_, _ = w.Write([]byte(`{}`))
		case http.MethodDelete:
			assert.Equal(t, "tenant_id:=1", r.URL.Query().Get("filter_by"))
			_, _ = w.Write([]byte(`{"num_deleted":4}`))
		}
	})
	ctx := context.Background()
	require.NoError(t, c.Upsert(ctx, "c", map[string]any{"id": "d1"}))
	n, err := c.DeleteByFilter(ctx, "c", "tenant_id:=1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRemoteClient_Unhealthy(t *testing.T) {
	c := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false}`))
	})
	assert.ErrorIs(t, c.Health(context.Background()), ErrTransport)
}

func TestNewRemoteClient_DefaultPort(t *testing.T) {
	c, err := NewRemoteClient("search.example.org", "k", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://search.example.org:8108", c.server)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, DefaultRetries, c.retries)

	_, err = NewRemoteClient("", "k", 0)
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "not_found", Kind(wrap(OpDelete, ErrNotFound)))
	assert.Equal(t, "unauthorized", Kind(ErrUnauthorized))
	assert.Equal(t, "malformed", Kind(ErrMalformed))
	assert.Equal(t, "transport", Kind(context.DeadlineExceeded))
}
