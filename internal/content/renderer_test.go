package content

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperjump/searchsync/internal/locale"
	"github.com/hyperjump/searchsync/internal/models"
)

func TestMarkdownRenderer_Body(t *testing.T) {
	r := NewMarkdownRenderer("https://example.org", "en_US", nil)
	out := r.Body(context.Background(), &models.ContentItem{Body: "# Hello\n\nSome *text*"})
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<em>text</em>")
}

func TestMarkdownRenderer_Shortcodes(t *testing.T) {
	r := NewMarkdownRenderer("https://example.org", "en_US", nil)
	r.RegisterShortcode("contact", func(attrs map[string]string) string {
		return "Call " + attrs["phone"]
	})
	out := r.Body(context.Background(), &models.ContentItem{
		Body: `Reach us: [contact phone="123"] or [gallery id="5"]`,
	})
	assert.Contains(t, out, "Call 123")
	assert.Contains(t, out, "[gallery id=")
}

func TestMarkdownRenderer_Permalink(t *testing.T) {
	r := NewMarkdownRenderer("https://example.org/", "en_US", nil)
	ctx := context.Background()
	tests := []struct {
		item *models.ContentItem
		want string
	}{
		{&models.ContentItem{ID: "1", Type: "page", Slug: "parking"}, "https://example.org/parking/"},
		{&models.ContentItem{ID: "2", Type: "event", Slug: "fair"}, "https://example.org/event/fair/"},
		{&models.ContentItem{ID: "3", Type: "event"}, "https://example.org/event/3/"},
		{&models.ContentItem{ID: "4", Type: "page", Permalink: "https://x.test/p"}, "https://x.test/p"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Permalink(ctx, tt.item))
	}
}

func TestMarkdownRenderer_TypeLabelFollowsContextLocale(t *testing.T) {
	labels := func(loc, typ string) string { return strings.ToUpper(typ) + "@" + loc }
	r := NewMarkdownRenderer("", "sv_SE", labels)

	assert.Equal(t, "PAGE@sv_SE", r.TypeLabel(context.Background(), "page"))
	ctx := locale.With(context.Background(), locale.Canonical)
	assert.Equal(t, "PAGE@en_US", r.TypeLabel(ctx, "page"))
}

func TestMarkdownRenderer_Title(t *testing.T) {
	r := NewMarkdownRenderer("", "en_US", nil)
	assert.Equal(t, "Parking", r.Title(context.Background(), &models.ContentItem{Title: "  Parking "}))
}
