package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hyperjump/searchsync/internal/docid"
	"github.com/hyperjump/searchsync/internal/extract"
	"github.com/hyperjump/searchsync/internal/hooks"
	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/locale"
	"github.com/hyperjump/searchsync/internal/metrics"
	"github.com/hyperjump/searchsync/internal/models"
)

// DocumentBuilder converts a content item into its indexed document.
type DocumentBuilder interface {
	Build(ctx context.Context, item *models.ContentItem) (*models.Document, error)
}

// Builder builds documents from content items. It performs no network calls.
type Builder struct {
	renderer     Renderer
	extractor    *extract.Extractor
	hooks        *hooks.Hooks
	excerptWords int
}

// NewBuilder returns a builder rendering through r. excerptWords <= 0 uses the default budget.
func NewBuilder(r Renderer, h *hooks.Hooks, excerptWords int) *Builder {
	if excerptWords <= 0 {
		excerptWords = extract.DefaultExcerptWords
	}
	return &Builder{
		renderer:     r,
		extractor:    extract.NewExtractor(),
		hooks:        hooks.OrEmpty(h),
		excerptWords: excerptWords,
	}
}

// Build assembles the document for item. The type label is resolved in the locale carried by ctx.
func (b *Builder) Build(ctx context.Context, item *models.ContentItem) (*models.Document, error) {
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return nil, fmt.Errorf("%w: content item has no id", index.ErrMalformed)
	}

	rendered := b.renderer.Body(ctx, item)

	excerptSrc := item.Excerpt
	if strings.TrimSpace(excerptSrc) == "" {
		excerptSrc = rendered
	}

	var body strings.Builder
	body.WriteString(rendered)
	for _, m := range item.Modules {
		if m.Hidden || m.Type == models.WidgetModuleType {
			continue
		}
		body.WriteString("\n")
		body.WriteString(b.renderer.Module(ctx, item, m))
	}

	doc := &models.Document{
		ID:         docid.For(item.TenantID, item.ID),
		TenantID:   item.TenantID,
		ContentID:  strings.TrimSpace(item.ID),
		Title:      clean(b.renderer.Title(ctx, item)),
		Excerpt:    clean(b.extractor.Excerpt(excerptSrc, b.excerptWords)),
		Body:       clean(b.extractor.Text(body.String())),
		Permalink:  b.renderer.Permalink(ctx, item),
		CreatedAt:  item.CreatedAt.Unix(),
		ModifiedAt: item.ModifiedAt.Unix(),
		Type:       item.Type,
		TypeLabel:  b.renderer.TypeLabel(ctx, item.Type),
		Boost:      b.hooks.CustomBoost.Apply(item.Options.Boost, item),
		Tags:       strings.TrimSpace(b.hooks.CustomTags.Apply(item.Options.Tags, item)),
	}

	doc = b.hooks.Record.Apply(doc, item)
	if doc == nil {
		return nil, fmt.Errorf("%w: record hook dropped content item %s", index.ErrMalformed, item.ID)
	}
	return doc, nil
}

func clean(s string) string {
	return extract.CollapseWhitespace(extract.ValidUTF8(s))
}

// Validate rejects documents that cannot be submitted to the index.
func Validate(doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", index.ErrMalformed)
	}
	if doc.ID == "" || doc.ContentID == "" {
		return fmt.Errorf("%w: document has no id", index.ErrMalformed)
	}
	for _, f := range []struct{ name, value string }{
		{models.FieldTitle, doc.Title},
		{models.FieldExcerpt, doc.Excerpt},
		{models.FieldBody, doc.Body},
		{models.FieldPermalink, doc.Permalink},
		{models.FieldTags, doc.Tags},
		{models.FieldTypeLabel, doc.TypeLabel},
	} {
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: field %s of %s is not valid UTF-8", index.ErrMalformed, f.name, doc.ContentID)
		}
	}
	if _, err := json.Marshal(doc.Fields()); err != nil {
		return fmt.Errorf("%w: document %s: %v", index.ErrMalformed, doc.ContentID, err)
	}
	return nil
}

// CachedBuilder wraps a DocumentBuilder with an LRU keyed by the full item state and locale.
type CachedBuilder struct {
	inner    DocumentBuilder
	fallback string
	cache    *lru.Cache[string, *models.Document]
}

// DefaultBuildCacheSize is the number of built documents kept by default.
const DefaultBuildCacheSize = 1024

// NewCachedBuilder returns a caching wrapper around inner. fallbackLocale is used in the
// cache key when ctx carries no locale.
func NewCachedBuilder(inner DocumentBuilder, size int, fallbackLocale string) *CachedBuilder {
	if size <= 0 {
		size = DefaultBuildCacheSize
	}
	cache, _ := lru.New[string, *models.Document](size)
	return &CachedBuilder{inner: inner, fallback: fallbackLocale, cache: cache}
}

func (c *CachedBuilder) cacheKey(ctx context.Context, item *models.ContentItem) (string, bool) {
	data, err := json.Marshal(item)
	if err != nil {
		return "", false
	}
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(locale.From(ctx, c.fallback)))
	return hex.EncodeToString(h.Sum(nil)), true
}

// Build returns a cached copy when the same item state was built before in the same locale.
func (c *CachedBuilder) Build(ctx context.Context, item *models.ContentItem) (*models.Document, error) {
	if item == nil {
		return c.inner.Build(ctx, item)
	}
	key, ok := c.cacheKey(ctx, item)
	if ok {
		if doc, hit := c.cache.Get(key); hit {
			metrics.BuildCacheTotal.WithLabelValues("hit").Inc()
			return doc.Clone(), nil
		}
	}
	metrics.BuildCacheTotal.WithLabelValues("miss").Inc()
	doc, err := c.inner.Build(ctx, item)
	if err != nil {
		return nil, err
	}
	if ok {
		c.cache.Add(key, doc.Clone())
	}
	return doc, nil
}

// Purge drops every cached document.
func (c *CachedBuilder) Purge() {
	c.cache.Purge()
}
