package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/models"
)

func TestEngine_AgainstBleveEngine(t *testing.T) {
	engine := index.NewBleveEngine("")
	t.Cleanup(func() { _ = engine.Close() })
	ctx := context.Background()
	require.NoError(t, engine.CreateCollection(ctx, index.DocumentSchema("c")))

	docs := []*models.Document{
		{ID: "a", TenantID: 1, ContentID: "1", Title: "Parking in town", Body: "Where to park your car", Type: "page", TypeLabel: "Pages"},
		{ID: "b", TenantID: 1, ContentID: "2", Title: "Bicycle parking", Body: "Park bikes here", Type: "page", TypeLabel: "Pages", Boost: 5},
		{ID: "c", TenantID: 1, ContentID: "3", Title: "Parking fair", Body: "An event about parking", Type: "event", TypeLabel: "Events"},
	}
	for _, d := range docs {
		require.NoError(t, engine.Upsert(ctx, "c", d.Fields()))
	}

	e := NewEngine(engine, "c", NewTranslator(0, nil))
	res, err := e.Search(ctx, &models.SearchRequest{Query: "parking"})
	require.NoError(t, err)
	require.Len(t, res.IDs, 3)
	assert.Equal(t, "2", res.IDs[0], "boost sorts first")
	assert.Equal(t, 2, res.Facets["type"]["page"].Count)
	assert.Contains(t, res.Highlights["1"]["title"], "<mark>Parking</mark>")

	res, err = e.Search(ctx, &models.SearchRequest{Query: "parking", Type: "event"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, res.IDs)
	assert.Equal(t, 1, res.Found)
	assert.Equal(t, 3, res.TotalFound)
	assert.Equal(t, 2, res.Facets["type"]["page"].Count)
}
