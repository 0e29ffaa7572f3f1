// Package models defines core data structures for content items, indexed documents, and searches.
package models

import (
	"fmt"
	"time"
)

// Statuses a content item can have. Only StatusPublish is indexable by default.
const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
	StatusPrivate = "private"
	StatusTrash   = "trash"
)

// WidgetModuleType is the module type that is never folded into the indexed body.
const WidgetModuleType = "mod-wpwidget"

// ContentItem is a unit of site content as the host store returns it.
type ContentItem struct {
	ID         string        `json:"id" db:"id" yaml:"id"`
	TenantID   int           `json:"tenant_id" db:"tenant_id" yaml:"tenant_id"`
	Type       string        `json:"type" db:"type" yaml:"type"`
	Status     string        `json:"status" db:"status" yaml:"status"`
	Title      string        `json:"title" db:"title" yaml:"title"`
	Excerpt    string        `json:"excerpt,omitempty" db:"excerpt" yaml:"excerpt,omitempty"`
	Body       string        `json:"body" db:"body" yaml:"-"`
	Slug       string        `json:"slug,omitempty" db:"slug" yaml:"slug,omitempty"`
	Permalink  string        `json:"permalink,omitempty" db:"permalink" yaml:"permalink,omitempty"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at" yaml:"created_at"`
	ModifiedAt time.Time     `json:"modified_at" db:"modified_at" yaml:"modified_at"`
	RevisionOf string        `json:"revision_of,omitempty" db:"revision_of" yaml:"revision_of,omitempty"`
	Options    SearchOptions `json:"search_options" yaml:"search_options,omitempty"`
	Modules    []Module      `json:"modules,omitempty" yaml:"modules,omitempty"`
}

// SearchOptions are the per-item overrides an editor sets next to the content.
type SearchOptions struct {
	Exclude bool   `json:"exclude_from_search" yaml:"exclude_from_search,omitempty"`
	Boost   int    `json:"boost,omitempty" yaml:"boost,omitempty"`
	Tags    string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Module is an embedded sub-content block attached to a content item.
type Module struct {
	Type   string `json:"type" db:"type" yaml:"type"`
	Hidden bool   `json:"hidden,omitempty" db:"hidden" yaml:"hidden,omitempty"`
	Body   string `json:"body" db:"body" yaml:"body"`
}

// IsRevision reports whether the item is a historical revision of another item.
func (c *ContentItem) IsRevision() bool {
	return c.RevisionOf != ""
}

// Document field names as stored in the index.
const (
	FieldID         = "id"
	FieldTenantID   = "tenant_id"
	FieldContentID  = "content_id"
	FieldTitle      = "title"
	FieldExcerpt    = "excerpt"
	FieldBody       = "body"
	FieldPermalink  = "permalink"
	FieldCreatedAt  = "created_at"
	FieldModifiedAt = "modified_at"
	FieldType       = "type"
	FieldTypeLabel  = "type_label"
	FieldBoost      = "boost"
	FieldTags       = "tags"
)

// Document is the indexed representation of one eligible content item.
type Document struct {
	ID         string `json:"id"`
	TenantID   int    `json:"tenant_id"`
	ContentID  string `json:"content_id"`
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
	Body       string `json:"body"`
	Permalink  string `json:"permalink"`
	CreatedAt  int64  `json:"created_at"`
	ModifiedAt int64  `json:"modified_at"`
	Type       string `json:"type"`
	TypeLabel  string `json:"type_label"`
	Boost      int    `json:"boost"`
	Tags       string `json:"tags"`
	// Extra holds fields added by record hooks. Keys never shadow the fields above.
	Extra map[string]any `json:"-"`
}

// Fields returns the document as the flat field map sent to the index.
func (d *Document) Fields() map[string]any {
	m := make(map[string]any, 13+len(d.Extra))
	for k, v := range d.Extra {
		m[k] = v
	}
	m[FieldID] = d.ID
	m[FieldTenantID] = d.TenantID
	m[FieldContentID] = d.ContentID
	m[FieldTitle] = d.Title
	m[FieldExcerpt] = d.Excerpt
	m[FieldBody] = d.Body
	m[FieldPermalink] = d.Permalink
	m[FieldCreatedAt] = d.CreatedAt
	m[FieldModifiedAt] = d.ModifiedAt
	m[FieldType] = d.Type
	m[FieldTypeLabel] = d.TypeLabel
	m[FieldBoost] = d.Boost
	m[FieldTags] = d.Tags
	return m
}

// Clone returns a copy that shares no maps with d.
func (d *Document) Clone() *Document {
	c := *d
	if d.Extra != nil {
		c.Extra = make(map[string]any, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// DocumentFromFields rebuilds a Document from a field map returned by the index.
// Unknown fields are kept in Extra.
func DocumentFromFields(fields map[string]any) (*Document, error) {
	d := &Document{}
	for k, v := range fields {
		var err error
		switch k {
		case FieldID:
			d.ID, err = asString(k, v)
		case FieldTenantID:
			var n int64
			n, err = asInt(k, v)
			d.TenantID = int(n)
		case FieldContentID:
			d.ContentID, err = asString(k, v)
		case FieldTitle:
			d.Title, err = asString(k, v)
		case FieldExcerpt:
			d.Excerpt, err = asString(k, v)
		case FieldBody:
			d.Body, err = asString(k, v)
		case FieldPermalink:
			d.Permalink, err = asString(k, v)
		case FieldCreatedAt:
			d.CreatedAt, err = asInt(k, v)
		case FieldModifiedAt:
			d.ModifiedAt, err = asInt(k, v)
		case FieldType:
			d.Type, err = asString(k, v)
		case FieldTypeLabel:
			d.TypeLabel, err = asString(k, v)
		case FieldBoost:
			var n int64
			n, err = asInt(k, v)
			d.Boost = int(n)
		case FieldTags:
			d.Tags, err = asString(k, v)
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]any)
			}
			d.Extra[k] = v
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func asString(field string, v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	default:
		return "", fmt.Errorf("field %s: expected string, got %T", field, v)
	}
}

func asInt(field string, v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case interface{ Int64() (int64, error) }:
		return n.Int64()
	default:
		return 0, fmt.Errorf("field %s: expected number, got %T", field, v)
	}
}
