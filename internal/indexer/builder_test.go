package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/searchsync/internal/docid"
	"github.com/hyperjump/searchsync/internal/hooks"
	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/locale"
	"github.com/hyperjump/searchsync/internal/models"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(stubRenderer{}, nil, 0)
	item := publishedPage("42")
	item.Options = models.SearchOptions{Boost: 3, Tags: " car "}

	doc, err := b.Build(locale.With(context.Background(), locale.Canonical), item)
	require.NoError(t, err)
	assert.Equal(t, docid.For(1, "42"), doc.ID)
	assert.Equal(t, "42", doc.ContentID)
	assert.Equal(t, "Parking in town", doc.Title)
	assert.Equal(t, "Where to park", doc.Excerpt)
	assert.Equal(t, "Where to park", doc.Body)
	assert.Equal(t, "https://example.org/42/", doc.Permalink)
	assert.Equal(t, item.CreatedAt.Unix(), doc.CreatedAt)
	assert.Equal(t, "page", doc.Type)
	assert.Equal(t, "en_US:page", doc.TypeLabel)
	assert.Equal(t, 3, doc.Boost)
	assert.Equal(t, "car", doc.Tags)
	assert.Equal(t, 1, doc.TenantID)
}

func TestBuilder_Deterministic(t *testing.T) {
	b := NewBuilder(stubRenderer{}, nil, 0)
	item := publishedPage("42")
	a, err := b.Build(context.Background(), item)
	require.NoError(t, err)
	c, err := b.Build(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestBuilder_ExcerptTruncation(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	item := publishedPage("1")
	item.Body = "<p>" + strings.Join(words, " ") + "</p>"

	doc, err := NewBuilder(stubRenderer{}, nil, 0).Build(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(words[:55], " ")+"…", doc.Excerpt)
}

func TestBuilder_ExplicitExcerptAndShortcodes(t *testing.T) {
	item := publishedPage("1")
	item.Excerpt = `Short [gallery id="4"] <em>summary</em>`
	doc, err := NewBuilder(stubRenderer{}, nil, 0).Build(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "Short summary", doc.Excerpt)
}

func TestBuilder_BodyModules(t *testing.T) {
	item := publishedPage("1")
	item.Body = "<p>Hello <script>evil()</script>World</p><style>p{}</style>"
	item.Modules = []models.Module{
		{Type: "mod-text", Body: "<div>Visible module</div>"},
		{Type: "mod-text", Hidden: true, Body: "<div>Hidden module</div>"},
		{Type: models.WidgetModuleType, Body: "<div>Widget</div>"},
		{Type: "mod-video", Body: "<noscript>fallback</noscript><p>Video text</p>"},
	}
	doc, err := NewBuilder(stubRenderer{}, nil, 0).Build(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "Hello World Visible module Video text", doc.Body)
	assert.NotContains(t, doc.Body, "evil")
}

func TestBuilder_Hooks(t *testing.T) {
	h := hooks.New()
	h.CustomBoost.Add(func(boost int, item *models.ContentItem) int { return boost + 10 })
	h.CustomTags.Add(func(tags string, item *models.ContentItem) string { return tags + " extra" })
	h.Record.Add(func(doc *models.Document, item *models.ContentItem) *models.Document {
		doc.Extra = map[string]any{"region": "north"}
		return doc
	})
	doc, err := NewBuilder(stubRenderer{}, h, 0).Build(context.Background(), publishedPage("1"))
	require.NoError(t, err)
	assert.Equal(t, 10, doc.Boost)
	assert.Equal(t, "extra", doc.Tags)
	assert.Equal(t, "north", doc.Fields()["region"])
}

func TestBuilder_RecordHookDropsDocument(t *testing.T) {
	h := hooks.New()
	h.Record.Add(func(*models.Document, *models.ContentItem) *models.Document { return nil })
	_, err := NewBuilder(stubRenderer{}, h, 0).Build(context.Background(), publishedPage("1"))
	assert.True(t, errors.Is(err, index.ErrMalformed))
}

func TestBuilder_MissingID(t *testing.T) {
	_, err := NewBuilder(stubRenderer{}, nil, 0).Build(context.Background(), &models.ContentItem{})
	assert.True(t, errors.Is(err, index.ErrMalformed))
}

func TestValidate(t *testing.T) {
	doc, err := NewBuilder(stubRenderer{}, nil, 0).Build(context.Background(), publishedPage("1"))
	require.NoError(t, err)
	require.NoError(t, Validate(doc))

	bad := doc.Clone()
	bad.Title = "bad \xff title"
	assert.True(t, errors.Is(Validate(bad), index.ErrMalformed))

	bad = doc.Clone()
	bad.Extra = map[string]any{"ch": make(chan int)}
	assert.True(t, errors.Is(Validate(bad), index.ErrMalformed))

	assert.True(t, errors.Is(Validate(nil), index.ErrMalformed))
}

func TestValidate_ReportsFirstInvalidFieldInOrder(t *testing.T) {
	doc, err := NewBuilder(stubRenderer{}, nil, 0).Build(context.Background(), publishedPage("1"))
	require.NoError(t, err)
	doc.Title = "bad \xff"
	doc.Body = "bad \xfe"
	doc.Tags = "bad \xfd"

	for i := 0; i < 20; i++ {
		err := Validate(doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "field title of 1")
	}
}

type countingBuilder struct {
	inner DocumentBuilder
	n     int
}

func (c *countingBuilder) Build(ctx context.Context, item *models.ContentItem) (*models.Document, error) {
	c.n++
	return c.inner.Build(ctx, item)
}

func TestCachedBuilder(t *testing.T) {
	inner := &countingBuilder{inner: NewBuilder(stubRenderer{}, nil, 0)}
	cb := NewCachedBuilder(inner, 8, "sv_SE")
	ctx := context.Background()
	item := publishedPage("1")

	a, err := cb.Build(ctx, item)
	require.NoError(t, err)
	a.Title = "mutated by caller"
	b, err := cb.Build(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.n)
	assert.Equal(t, "Parking in town", b.Title)

	_, err = cb.Build(locale.With(ctx, "en_US"), item)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.n, "a different locale is a different entry")

	item.Title = "Changed"
	c, err := cb.Build(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "Changed", c.Title)
	assert.Equal(t, 3, inner.n)

	cb.Purge()
	_, err = cb.Build(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 4, inner.n)
}
