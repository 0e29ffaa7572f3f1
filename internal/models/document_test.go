package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_FieldsRoundTripFromJSON(t *testing.T) {
	doc := &Document{
		ID:         "abc",
		TenantID:   3,
		ContentID:  "42",
		Title:      "Parking",
		Excerpt:    "Where to park",
		Body:       "Where to park in town",
		Permalink:  "https://example.org/parking/",
		CreatedAt:  1700000000,
		ModifiedAt: 1700000100,
		Type:       "page",
		TypeLabel:  "Pages",
		Boost:      5,
		Tags:       "car",
		Extra:      map[string]any{"region": "north"},
	}

	// the index hands numbers back as float64 after a JSON hop
	data, err := json.Marshal(doc.Fields())
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	got, err := DocumentFromFields(fields)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestDocument_ExtraNeverShadowsCoreFields(t *testing.T) {
	doc := &Document{ID: "abc", Title: "Real", Extra: map[string]any{FieldTitle: "Fake"}}
	assert.Equal(t, "Real", doc.Fields()[FieldTitle])
}

func TestDocumentFromFields_WrongType(t *testing.T) {
	_, err := DocumentFromFields(map[string]any{FieldTitle: 12})
	require.Error(t, err)
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	doc := &Document{ID: "a", Extra: map[string]any{"k": "v"}}
	c := doc.Clone()
	c.Extra["k"] = "changed"
	assert.Equal(t, "v", doc.Extra["k"])
}
