// Package extract turns rendered markup into the plain text that gets indexed.
package extract

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultExcerptWords is the word budget of a generated excerpt.
const DefaultExcerptWords = 55

// Ellipsis is appended to an excerpt that was cut short.
const Ellipsis = "…"

var (
	shortcodeRe  = regexp.MustCompile(`\[(.*?)\]`)
	blankLinesRe = regexp.MustCompile(`\n{2,}`)
)

// Extractor extracts plain text from rendered HTML.
type Extractor struct {
	strip *bluemonday.Policy
}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	p := bluemonday.StripTagsPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return &Extractor{strip: p}
}

// Text returns every non-empty text node of markup in document order, one per line.
// <script>, <style> and <noscript> elements are dropped together with their content.
func (e *Extractor) Text(markup string) string {
	doc, err := nethtml.Parse(strings.NewReader(markup))
	if err != nil {
		// the parser only fails on reader errors; fall back to stripping tags
		return strings.TrimSpace(e.StripTags(markup))
	}
	var lines []string
	var walk func(n *nethtml.Node)
	walk = func(n *nethtml.Node) {
		if n.Type == nethtml.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == nethtml.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	out := strings.Join(lines, "\n")
	out = blankLinesRe.ReplaceAllString(out, "\n")
	return strings.TrimSpace(ValidUTF8(out))
}

// StripTags removes all markup from s and returns unescaped text.
func (e *Extractor) StripTags(s string) string {
	return html.UnescapeString(e.strip.Sanitize(s))
}

// Excerpt strips bracketed short-tags and markup from rendered and trims the
// result to words words, appending Ellipsis when anything was cut.
func (e *Extractor) Excerpt(rendered string, words int) string {
	if words <= 0 {
		words = DefaultExcerptWords
	}
	text := StripShortcodes(rendered)
	text = e.StripTags(text)
	fields := strings.Fields(ValidUTF8(text))
	if len(fields) > words {
		return strings.Join(fields[:words], " ") + Ellipsis
	}
	return strings.Join(fields, " ")
}

// StripShortcodes removes every [bracketed] tag, including its attributes.
func StripShortcodes(s string) string {
	return shortcodeRe.ReplaceAllString(s, "")
}
