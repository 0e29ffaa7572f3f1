package index

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"
)

const (
	// sourceField keeps the submitted document verbatim so Retrieve returns exactly what was upserted.
	sourceField       = "_source"
	schemaInternalKey = "searchsync:schema"
	defaultPerPage    = 10
	defaultMaxFacets  = 10
	deleteBatchSize   = 500
)

var collectionNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// BleveEngine implements Client with one Bleve index per collection.
// Collections live under dataDir, or only in memory when dataDir is empty.
type BleveEngine struct {
	dataDir     string
	mu          sync.Mutex
	collections map[string]*bleveCollection
	closed      bool
	logger      *zap.Logger // optional; when set, logs debug events
}

type bleveCollection struct {
	index  bleve.Index
	schema Schema
}

// BleveOption configures a BleveEngine.
type BleveOption func(*BleveEngine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) BleveOption {
	return func(b *BleveEngine) { b.logger = l }
}

// NewBleveEngine creates an engine storing collections under dataDir.
func NewBleveEngine(dataDir string, opts ...BleveOption) *BleveEngine {
	b := &BleveEngine{
		dataDir:     dataDir,
		collections: make(map[string]*bleveCollection),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func buildMapping(schema Schema) *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	for _, f := range schema.Fields {
		switch f.Type {
		case TypeInt32, TypeInt64:
			docMapping.AddFieldMappingsAt(f.Name, bleve.NewNumericFieldMapping())
		default:
			if f.Facet {
				docMapping.AddFieldMappingsAt(f.Name, bleve.NewKeywordFieldMapping())
				continue
			}
			// standard analyzer: lowercase + tokenize, no stemming, so highlights match what was typed
			text := bleve.NewTextFieldMapping()
			text.Analyzer = standard.Name
			docMapping.AddFieldMappingsAt(f.Name, text)
		}
	}
	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	source.IncludeTermVectors = false
	source.DocValues = false
	docMapping.AddFieldMappingsAt(sourceField, source)

	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = standard.Name
	return im
}

func validateSchema(schema Schema) error {
	if !collectionNameRe.MatchString(schema.Name) {
		return fmt.Errorf("%w: invalid collection name %q", ErrMalformed, schema.Name)
	}
	if len(schema.Fields) == 0 {
		return fmt.Errorf("%w: collection %q has no fields", ErrMalformed, schema.Name)
	}
	for _, f := range schema.Fields {
		switch f.Type {
		case TypeString, TypeInt32, TypeInt64:
		default:
			return fmt.Errorf("%w: field %q has unsupported type %q", ErrMalformed, f.Name, f.Type)
		}
		if f.Name == "" || f.Name == sourceField || f.Name == "id" {
			return fmt.Errorf("%w: invalid field name %q", ErrMalformed, f.Name)
		}
	}
	return nil
}

func (b *BleveEngine) collectionPath(name string) string {
	return filepath.Join(b.dataDir, name+".bleve")
}

// CreateCollection creates a collection with schema. Returns ErrAlreadyExists when it exists.
func (b *BleveEngine) CreateCollection(ctx context.Context, schema Schema) error {
	if err := validateSchema(schema); err != nil {
		return wrap(OpCreateCollection, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return wrap(OpCreateCollection, fmt.Errorf("%w: engine closed", ErrTransport))
	}
	if _, err := b.openLocked(schema.Name); err == nil {
		return wrap(OpCreateCollection, fmt.Errorf("%w: collection %s", ErrAlreadyExists, schema.Name))
	}

	var (
		idx bleve.Index
		err error
	)
	im := buildMapping(schema)
	if b.dataDir == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		if err := os.MkdirAll(b.dataDir, 0755); err != nil {
			return wrap(OpCreateCollection, fmt.Errorf("%w: create data directory: %v", ErrTransport, err))
		}
		idx, err = bleve.New(b.collectionPath(schema.Name), im)
	}
	if err != nil {
		return wrap(OpCreateCollection, fmt.Errorf("%w: failed to create Bleve index: %v", ErrTransport, err))
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		_ = idx.Close()
		return wrap(OpCreateCollection, fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	if err := idx.SetInternal([]byte(schemaInternalKey), raw); err != nil {
		_ = idx.Close()
		return wrap(OpCreateCollection, fmt.Errorf("%w: store schema: %v", ErrTransport, err))
	}
	b.collections[schema.Name] = &bleveCollection{index: idx, schema: schema}
	if b.logger != nil {
		b.logger.Debug("bleve collection created", zap.String("collection", schema.Name))
	}
	return nil
}

// openLocked returns an open collection, opening it from disk on first use.
func (b *BleveEngine) openLocked(name string) (*bleveCollection, error) {
	if c, ok := b.collections[name]; ok {
		return c, nil
	}
	if b.dataDir == "" || !collectionNameRe.MatchString(name) {
		return nil, fmt.Errorf("%w: collection %s", ErrNotFound, name)
	}
	path := b.collectionPath(name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: collection %s", ErrNotFound, name)
	}
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Bleve index: %v", ErrTransport, err)
	}
	raw, err := idx.GetInternal([]byte(schemaInternalKey))
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: read schema: %v", ErrTransport, err)
	}
	var schema Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: decode schema: %v", ErrTransport, err)
	}
	c := &bleveCollection{index: idx, schema: schema}
	b.collections[name] = c
	return c, nil
}

func (b *BleveEngine) collection(op, name string) (*bleveCollection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, wrap(op, fmt.Errorf("%w: engine closed", ErrTransport))
	}
	c, err := b.openLocked(name)
	if err != nil {
		return nil, wrap(op, err)
	}
	return c, nil
}

// RetrieveCollection returns the schema and document count of a collection.
func (b *BleveEngine) RetrieveCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	c, err := b.collection(OpRetrieveCollection, name)
	if err != nil {
		return nil, err
	}
	n, err := c.index.DocCount()
	if err != nil {
		return nil, wrap(OpRetrieveCollection, fmt.Errorf("%w: %v", ErrTransport, err))
	}
	return &CollectionInfo{Name: name, NumDocuments: int64(n), Fields: c.schema.Fields}, nil
}

// Upsert indexes doc under its "id" field, replacing any previous version.
func (b *BleveEngine) Upsert(ctx context.Context, collection string, doc map[string]any) error {
	c, err := b.collection(OpUpsert, collection)
	if err != nil {
		return err
	}
	id, err := checkDocument(c.schema, doc)
	if err != nil {
		return wrap(OpUpsert, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return wrap(OpUpsert, fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	body := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		if k == "id" {
			continue
		}
		body[k] = v
	}
	body[sourceField] = string(raw)
	if err := c.index.Index(id, body); err != nil {
		return wrap(OpUpsert, fmt.Errorf("%w: %v", ErrTransport, err))
	}
	if b.logger != nil {
		b.logger.Debug("bleve document upserted", zap.String("collection", collection), zap.String("id", id))
	}
	return nil
}

func checkDocument(schema Schema, doc map[string]any) (string, error) {
	id, _ := doc["id"].(string)
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: document has no id", ErrMalformed)
	}
	if _, ok := doc[sourceField]; ok {
		return "", fmt.Errorf("%w: field %s is reserved", ErrMalformed, sourceField)
	}
	for _, f := range schema.Fields {
		v, ok := doc[f.Name]
		if !ok || v == nil {
			if f.Optional {
				continue
			}
			return "", fmt.Errorf("%w: document %s: field %s is required", ErrMalformed, id, f.Name)
		}
		switch f.Type {
		case TypeString:
			if _, ok := v.(string); !ok {
				return "", fmt.Errorf("%w: document %s: field %s must be a string", ErrMalformed, id, f.Name)
			}
		default:
			if _, ok := toFloat(v); !ok {
				return "", fmt.Errorf("%w: document %s: field %s must be an integer", ErrMalformed, id, f.Name)
			}
		}
	}
	return id, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, n == math.Trunc(n)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Retrieve returns the stored document with the given id.
func (b *BleveEngine) Retrieve(ctx context.Context, collection, id string) (map[string]any, error) {
	c, err := b.collection(OpRetrieve, collection)
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{sourceField}
	req.Size = 1
	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, wrap(OpRetrieve, fmt.Errorf("%w: %v", ErrTransport, err))
	}
	if len(res.Hits) == 0 {
		return nil, wrap(OpRetrieve, fmt.Errorf("%w: document %s", ErrNotFound, id))
	}
	doc, err := decodeSource(res.Hits[0].Fields)
	if err != nil {
		return nil, wrap(OpRetrieve, err)
	}
	return doc, nil
}

func decodeSource(fields map[string]interface{}) (map[string]any, error) {
	raw, _ := fields[sourceField].(string)
	if raw == "" {
		return nil, fmt.Errorf("%w: stored document has no source", ErrTransport)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: decode stored document: %v", ErrTransport, err)
	}
	return doc, nil
}

// Delete removes the document with the given id. Returns ErrNotFound when it does not exist.
func (b *BleveEngine) Delete(ctx context.Context, collection, id string) error {
	c, err := b.collection(OpDelete, collection)
	if err != nil {
		return err
	}
	existing, err := c.index.Document(id)
	if err != nil {
		return wrap(OpDelete, fmt.Errorf("%w: %v", ErrTransport, err))
	}
	if existing == nil {
		return wrap(OpDelete, fmt.Errorf("%w: document %s", ErrNotFound, id))
	}
	if err := c.index.Delete(id); err != nil {
		return wrap(OpDelete, fmt.Errorf("%w: %v", ErrTransport, err))
	}
	if b.logger != nil {
		b.logger.Debug("bleve document deleted", zap.String("collection", collection), zap.String("id", id))
	}
	return nil
}

// DeleteByFilter removes every document matching filter.
func (b *BleveEngine) DeleteByFilter(ctx context.Context, collection, filter string) (int, error) {
	c, err := b.collection(OpDeleteByFilter, collection)
	if err != nil {
		return 0, err
	}
	q, err := filterQuery(c.schema, filter)
	if err != nil {
		return 0, wrap(OpDeleteByFilter, err)
	}
	deleted := 0
	for {
		req := bleve.NewSearchRequest(q)
		req.Size = deleteBatchSize
		res, err := c.index.SearchInContext(ctx, req)
		if err != nil {
			return deleted, wrap(OpDeleteByFilter, fmt.Errorf("%w: %v", ErrTransport, err))
		}
		if len(res.Hits) == 0 {
			return deleted, nil
		}
		batch := c.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := c.index.Batch(batch); err != nil {
			return deleted, wrap(OpDeleteByFilter, fmt.Errorf("%w: %v", ErrTransport, err))
		}
		deleted += len(res.Hits)
	}
}

// filterQuery turns a filter expression into a conjunction of term and numeric range queries.
func filterQuery(schema Schema, expr string) (blevequery.Query, error) {
	conds, err := ParseFilter(expr)
	if err != nil {
		return nil, err
	}
	parts := make([]blevequery.Query, 0, len(conds))
	for _, cond := range conds {
		f, ok := schema.Field(cond.Field)
		if !ok {
			return nil, fmt.Errorf("%w: filter on unknown field %q", ErrMalformed, cond.Field)
		}
		q, err := conditionQuery(f, cond)
		if err != nil {
			return nil, err
		}
		parts = append(parts, q)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return bleve.NewConjunctionQuery(parts...), nil
}

func conditionQuery(f Field, cond Condition) (blevequery.Query, error) {
	if f.Type == TypeString {
		if cond.Op != OpEq {
			return nil, fmt.Errorf("%w: operator %s is not supported on string field %s", ErrMalformed, cond.Op, f.Name)
		}
		alts := make([]blevequery.Query, 0, len(cond.Values))
		for _, v := range cond.Values {
			if f.Facet {
				tq := bleve.NewTermQuery(v)
				tq.SetField(f.Name)
				alts = append(alts, tq)
				continue
			}
			mq := bleve.NewMatchPhraseQuery(v)
			mq.SetField(f.Name)
			alts = append(alts, mq)
		}
		return disjunction(alts), nil
	}

	alts := make([]blevequery.Query, 0, len(cond.Values))
	for _, raw := range cond.Values {
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %q is not a number", ErrMalformed, f.Name, raw)
		}
		var lo, hi *float64
		incLo, incHi := true, true
		switch cond.Op {
		case OpEq:
			lo, hi = &n, &n
		case OpGt:
			lo, incLo = &n, false
		case OpGte:
			lo = &n
		case OpLt:
			hi, incHi = &n, false
		case OpLte:
			hi = &n
		}
		nq := bleve.NewNumericRangeInclusiveQuery(lo, hi, &incLo, &incHi)
		nq.SetField(f.Name)
		alts = append(alts, nq)
	}
	return disjunction(alts), nil
}

func disjunction(qs []blevequery.Query) blevequery.Query {
	if len(qs) == 1 {
		return qs[0]
	}
	return bleve.NewDisjunctionQuery(qs...)
}

// textQuery builds a disjunction of per-field match queries boosted by weights.
// "*" matches every document.
func textQuery(schema Schema, q string, fields []string, weights []float64) (blevequery.Query, error) {
	if strings.TrimSpace(q) == "*" {
		return bleve.NewMatchAllQuery(), nil
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: query_by is required", ErrMalformed)
	}
	alts := make([]blevequery.Query, 0, len(fields))
	for i, name := range fields {
		if _, ok := schema.Field(name); !ok {
			return nil, fmt.Errorf("%w: query_by unknown field %q", ErrMalformed, name)
		}
		mq := bleve.NewMatchQuery(q)
		mq.SetField(name)
		if weights != nil {
			mq.SetBoost(weights[i])
		}
		alts = append(alts, mq)
	}
	return disjunction(alts), nil
}

func parseWeights(s string, n int) ([]float64, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, nil
	}
	if len(parts) != n {
		return nil, fmt.Errorf("%w: query_by_weights has %d entries for %d fields", ErrMalformed, len(parts), n)
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		w, err := strconv.ParseFloat(p, 64)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("%w: invalid weight %q", ErrMalformed, p)
		}
		// a zero boost would drop the field from scoring entirely
		out[i] = math.Max(w, 0.01)
	}
	return out, nil
}

// parseSort maps "field:desc,_text_match:desc" onto Bleve sort strings.
func parseSort(schema Schema, s string) ([]string, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return []string{"-_score"}, nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		field, dir, _ := strings.Cut(p, ":")
		field = strings.TrimSpace(field)
		desc := strings.EqualFold(strings.TrimSpace(dir), "desc")
		if field == "_text_match" {
			field = "_score"
		} else if _, ok := schema.Field(field); !ok {
			return nil, fmt.Errorf("%w: sort_by unknown field %q", ErrMalformed, field)
		}
		if desc {
			field = "-" + field
		}
		out = append(out, field)
	}
	return out, nil
}

// Search runs a weighted, filtered, faceted and highlighted search.
func (b *BleveEngine) Search(ctx context.Context, collection string, p SearchParams) (*SearchResponse, error) {
	start := time.Now()
	c, err := b.collection(OpSearch, collection)
	if err != nil {
		return nil, err
	}
	req, err := buildSearchRequest(c.schema, p)
	if err != nil {
		return nil, wrap(OpSearch, err)
	}
	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, wrap(OpSearch, fmt.Errorf("%w: %v", ErrTransport, err))
	}

	total, _ := c.index.DocCount()
	page := p.Page
	if page <= 0 {
		page = 1
	}
	out := &SearchResponse{
		Found: int(res.Total),
		OutOf: int(total),
		Page:  page,
		Hits:  make([]Hit, 0, len(res.Hits)),
	}

	include := splitList(p.IncludeFields)
	highlightFields := splitList(p.HighlightFields)
	full := make(map[string]bool)
	for _, f := range splitList(p.HighlightFullFields) {
		full[f] = true
	}
	for _, h := range res.Hits {
		source, err := decodeSource(h.Fields)
		if err != nil {
			return nil, wrap(OpSearch, err)
		}
		hit := Hit{
			Document:  project(source, include),
			TextMatch: int64(h.Score * 1e6),
		}
		for _, field := range highlightFields {
			text, _ := source[field].(string)
			if text == "" {
				continue
			}
			if hl, ok := highlightField(text, h.Locations[field], p.HighlightAffixNumTokens, full[field]); ok {
				if hit.Highlight == nil {
					hit.Highlight = make(map[string]Highlight)
				}
				hit.Highlight[field] = hl
			}
		}
		out.Hits = append(out.Hits, hit)
	}

	for _, field := range splitList(p.FacetBy) {
		fr, ok := res.Facets[field]
		if !ok {
			continue
		}
		fc := FacetCounts{FieldName: field}
		if fr.Terms != nil {
			for _, t := range fr.Terms.Terms() {
				fc.Counts = append(fc.Counts, FacetCount{Value: t.Term, Count: t.Count})
			}
		}
		out.FacetCounts = append(out.FacetCounts, fc)
	}
	out.SearchTimeMS = time.Since(start).Milliseconds()
	return out, nil
}

func buildSearchRequest(schema Schema, p SearchParams) (*bleve.SearchRequest, error) {
	fields := splitList(p.QueryBy)
	weights, err := parseWeights(p.QueryByWeights, len(fields))
	if err != nil {
		return nil, err
	}
	q, err := textQuery(schema, p.Q, fields, weights)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.FilterBy) != "" {
		fq, err := filterQuery(schema, p.FilterBy)
		if err != nil {
			return nil, err
		}
		q = bleve.NewConjunctionQuery(q, fq)
	}

	perPage := p.PerPage
	if perPage < 0 {
		perPage = defaultPerPage
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	req := bleve.NewSearchRequestOptions(q, perPage, (page-1)*perPage, false)
	req.Fields = []string{sourceField}
	if p.HighlightFields != "" {
		req.IncludeLocations = true
	}
	sortBy, err := parseSort(schema, p.SortBy)
	if err != nil {
		return nil, err
	}
	req.SortBy(sortBy)

	maxFacets := p.MaxFacetValues
	if maxFacets <= 0 {
		maxFacets = defaultMaxFacets
	}
	for _, field := range splitList(p.FacetBy) {
		f, ok := schema.Field(field)
		if !ok || !f.Facet {
			return nil, fmt.Errorf("%w: facet_by field %q is not a facet", ErrMalformed, field)
		}
		req.AddFacet(field, bleve.NewFacetRequest(field, maxFacets))
	}
	return req, nil
}

func project(doc map[string]any, include []string) map[string]any {
	if len(include) == 0 {
		return doc
	}
	out := make(map[string]any, len(include))
	for _, k := range include {
		if v, ok := doc[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Health reports whether the engine is open.
func (b *BleveEngine) Health(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return wrap(OpHealth, fmt.Errorf("%w: engine closed", ErrTransport))
	}
	return nil
}

// Close closes every open collection.
func (b *BleveEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	var firstErr error
	for name, c := range b.collections {
		if err := c.index.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close collection %s: %w", name, err)
		}
	}
	b.collections = nil
	return firstErr
}
