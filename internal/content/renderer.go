package content

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hyperjump/searchsync/internal/locale"
	"github.com/hyperjump/searchsync/internal/models"
)

// PageType is the content type whose permalinks sit directly under the base URL.
const PageType = "page"

// ShortcodeFunc renders one [name key="value"] tag.
type ShortcodeFunc func(attrs map[string]string) string

// LabelFunc returns the display label of a content type in a locale.
type LabelFunc func(locale, typ string) string

var (
	shortcodeTagRe  = regexp.MustCompile(`\[([A-Za-z][\w-]*)((?:\s+[\w-]+="[^"]*")*)\s*/?\]`)
	shortcodeAttrRe = regexp.MustCompile(`([\w-]+)="([^"]*)"`)
)

// MarkdownRenderer renders content markup with goldmark and expands registered shortcodes.
type MarkdownRenderer struct {
	md      goldmark.Markdown
	baseURL string
	locale  string
	labels  LabelFunc

	mu         sync.RWMutex
	shortcodes map[string]ShortcodeFunc
}

// NewMarkdownRenderer returns a renderer producing permalinks under baseURL.
// labels may be nil, in which case type codes are used as labels.
func NewMarkdownRenderer(baseURL, siteLocale string, labels LabelFunc) *MarkdownRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
	return &MarkdownRenderer{
		md:         md,
		baseURL:    strings.TrimRight(baseURL, "/"),
		locale:     siteLocale,
		labels:     labels,
		shortcodes: make(map[string]ShortcodeFunc),
	}
}

// RegisterShortcode makes [name ...] expand to fn's output. Unregistered tags are left in place.
func (r *MarkdownRenderer) RegisterShortcode(name string, fn ShortcodeFunc) {
	r.mu.Lock()
	r.shortcodes[name] = fn
	r.mu.Unlock()
}

func (r *MarkdownRenderer) expandShortcodes(s string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.shortcodes) == 0 {
		return s
	}
	return shortcodeTagRe.ReplaceAllStringFunc(s, func(tag string) string {
		m := shortcodeTagRe.FindStringSubmatch(tag)
		fn, ok := r.shortcodes[m[1]]
		if !ok {
			return tag
		}
		attrs := make(map[string]string)
		for _, a := range shortcodeAttrRe.FindAllStringSubmatch(m[2], -1) {
			attrs[a[1]] = a[2]
		}
		return fn(attrs)
	})
}

func (r *MarkdownRenderer) render(src string) string {
	src = r.expandShortcodes(src)
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		// goldmark only fails on writer errors
		return src
	}
	return buf.String()
}

// Title returns the display title.
func (r *MarkdownRenderer) Title(_ context.Context, item *models.ContentItem) string {
	return strings.TrimSpace(r.expandShortcodes(item.Title))
}

// Body renders the item's main markup to HTML.
func (r *MarkdownRenderer) Body(_ context.Context, item *models.ContentItem) string {
	return r.render(item.Body)
}

// Module renders one embedded module to HTML.
func (r *MarkdownRenderer) Module(_ context.Context, _ *models.ContentItem, m models.Module) string {
	return r.render(m.Body)
}

// Permalink returns the explicit permalink, or {base}/{type}/{slug}/ with pages directly under base.
func (r *MarkdownRenderer) Permalink(_ context.Context, item *models.ContentItem) string {
	if item.Permalink != "" {
		return item.Permalink
	}
	slug := item.Slug
	if slug == "" {
		slug = item.ID
	}
	if item.Type == PageType {
		return r.baseURL + "/" + slug + "/"
	}
	return r.baseURL + "/" + item.Type + "/" + slug + "/"
}

// TypeLabel returns the label of typ in the locale carried by ctx.
func (r *MarkdownRenderer) TypeLabel(ctx context.Context, typ string) string {
	if r.labels == nil {
		return typ
	}
	return r.labels(locale.From(ctx, r.locale), typ)
}
