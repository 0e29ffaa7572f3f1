// Package indexer keeps the search index in sync with content: it decides eligibility,
// builds documents, skips unchanged ones and writes or removes the rest.
package indexer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/docid"
	"github.com/hyperjump/searchsync/internal/hooks"
	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/locale"
	"github.com/hyperjump/searchsync/internal/metrics"
	"github.com/hyperjump/searchsync/internal/models"
)

// Outcome is the terminal result of one sync operation.
type Outcome string

// Sync outcomes.
const (
	OutcomeRemoved    Outcome = "removed"
	OutcomeIneligible Outcome = "ineligible"
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeIndexed    Outcome = "indexed"
	OutcomeSkipped    Outcome = "skipped" // malformed document, not submitted
	OutcomeFailed     Outcome = "failed"
	OutcomeDisabled   Outcome = "disabled" // no collection configured
)

// Operation labels used in logs and metrics.
const (
	opSaved   = "saved"
	opDeleted = "deleted"
	opTrashed = "trashed"
)

// Indexer drives document writes and deletes in response to content events.
// It never returns index errors: every failure is logged and reported as an Outcome.
type Indexer struct {
	client          index.Client
	collection      string
	tenantID        int
	builder         DocumentBuilder
	eligibility     *Eligibility
	detector        *ChangeDetector
	hooks           *hooks.Hooks
	logger          *zap.Logger
	canonicalLocale string
	compare         bool
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the error sink. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithHooks sets the extension points consulted while comparing documents.
func WithHooks(h *hooks.Hooks) IndexerOption {
	return func(idx *Indexer) { idx.hooks = h }
}

// WithCanonicalLocale sets the locale pinned while documents are built.
func WithCanonicalLocale(l string) IndexerOption {
	return func(idx *Indexer) {
		if l != "" {
			idx.canonicalLocale = l
		}
	}
}

// WithChangeDetection toggles the retrieve-and-compare step before upserts.
func WithChangeDetection(enabled bool) IndexerOption {
	return func(idx *Indexer) { idx.compare = enabled }
}

// NewIndexer creates an indexer writing to collection for tenantID.
// An empty collection disables every write.
func NewIndexer(
	client index.Client,
	collection string,
	tenantID int,
	builder DocumentBuilder,
	eligibility *Eligibility,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		client:          client,
		collection:      collection,
		tenantID:        tenantID,
		builder:         builder,
		eligibility:     eligibility,
		canonicalLocale: locale.Canonical,
		compare:         true,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	idx.logger = idx.logger.Named("sync")
	idx.hooks = hooks.OrEmpty(idx.hooks)
	idx.detector = NewChangeDetector(client, collection, builder, idx.hooks, idx.logger)
	return idx
}

// Collection returns the collection the indexer writes to.
func (idx *Indexer) Collection() string {
	return idx.collection
}

// Eligibility returns the eligibility filter.
func (idx *Indexer) Eligibility() *Eligibility {
	return idx.eligibility
}

func (idx *Indexer) record(op string, o Outcome) Outcome {
	metrics.SyncOperationsTotal.WithLabelValues(op, string(o)).Inc()
	return o
}

// OnSaved reacts to a save of item. Items flagged for removal (excluded, or not published)
// lose their document first; eligible items are then built, compared and upserted.
func (idx *Indexer) OnSaved(ctx context.Context, item *models.ContentItem, ec EditContext) Outcome {
	if idx.collection == "" {
		return idx.record(opSaved, OutcomeDisabled)
	}
	if item == nil {
		return idx.record(opSaved, OutcomeIneligible)
	}
	item, ok := idx.ownItem(item)
	if !ok {
		idx.logger.Warn("Ignoring content item of another tenant",
			zap.String("content_id", item.ID),
			zap.Int("item_tenant_id", item.TenantID),
			zap.Int("tenant_id", idx.tenantID))
		return idx.record(opSaved, OutcomeIneligible)
	}

	removed, removeFailed := false, false
	if item.Options.Exclude || item.Status != models.StatusPublish {
		if err := idx.delete(ctx, opSaved, item.ID); err != nil {
			removeFailed = true
		} else {
			removed = true
		}
	}

	if !idx.eligibility.IsEligible(item, ec) {
		switch {
		case removeFailed:
			return idx.record(opSaved, OutcomeFailed)
		case removed:
			return idx.record(opSaved, OutcomeRemoved)
		}
		return idx.record(opSaved, OutcomeIneligible)
	}

	return idx.record(opSaved, idx.upsert(locale.With(ctx, idx.canonicalLocale), item))
}

// ownItem returns item stamped with the indexer's tenant. Items without a tenant are
// copied and stamped; items of another tenant are refused so that writes, deletes and
// tenant-wide emptying all address the same document ids.
func (idx *Indexer) ownItem(item *models.ContentItem) (*models.ContentItem, bool) {
	switch item.TenantID {
	case idx.tenantID:
		return item, true
	case 0:
		owned := *item
		owned.TenantID = idx.tenantID
		return &owned, true
	default:
		return item, false
	}
}

func (idx *Indexer) upsert(ctx context.Context, item *models.ContentItem) Outcome {
	doc, err := idx.builder.Build(ctx, item)
	if err == nil {
		err = Validate(doc)
	}
	if err != nil {
		idx.logger.Error("Could not save post: malformed document",
			zap.String("content_id", item.ID),
			zap.String("op", index.OpUpsert),
			zap.Error(err))
		if errors.Is(err, index.ErrMalformed) {
			return OutcomeSkipped
		}
		return OutcomeFailed
	}

	if idx.compare && !idx.detector.DocumentChanged(ctx, doc) {
		return OutcomeUnchanged
	}

	if err := idx.client.Upsert(ctx, idx.collection, doc.Fields()); err != nil {
		idx.logger.Error("Could not save post",
			zap.String("content_id", doc.ContentID),
			zap.String("document_id", doc.ID),
			zap.String("op", index.OpUpsert),
			zap.String("kind", index.Kind(err)),
			zap.Error(err))
		if errors.Is(err, index.ErrMalformed) {
			return OutcomeSkipped
		}
		return OutcomeFailed
	}
	return OutcomeIndexed
}

// OnDeleted removes the document of a deleted content item.
func (idx *Indexer) OnDeleted(ctx context.Context, contentID string) Outcome {
	return idx.record(opDeleted, idx.remove(ctx, opDeleted, contentID))
}

// OnTrashed removes the document of a trashed content item.
func (idx *Indexer) OnTrashed(ctx context.Context, contentID string) Outcome {
	return idx.record(opTrashed, idx.remove(ctx, opTrashed, contentID))
}

func (idx *Indexer) remove(ctx context.Context, op, contentID string) Outcome {
	if idx.collection == "" {
		return OutcomeDisabled
	}
	if err := idx.delete(ctx, op, contentID); err != nil {
		return OutcomeFailed
	}
	return OutcomeRemoved
}

// delete removes the document of contentID. A missing document is not an error.
func (idx *Indexer) delete(ctx context.Context, op, contentID string) error {
	id := docid.For(idx.tenantID, contentID)
	err := idx.client.Delete(ctx, idx.collection, id)
	if err == nil || errors.Is(err, index.ErrNotFound) {
		return nil
	}
	idx.logger.Error("Could not delete record",
		zap.String("content_id", contentID),
		zap.String("document_id", id),
		zap.String("op", op),
		zap.String("kind", index.Kind(err)),
		zap.Error(err))
	return err
}

// Document returns the indexed document of contentID.
func (idx *Indexer) Document(ctx context.Context, contentID string) (*models.Document, error) {
	fields, err := idx.client.Retrieve(ctx, idx.collection, docid.For(idx.tenantID, contentID))
	if err != nil {
		return nil, err
	}
	return models.DocumentFromFields(fields)
}

// BulkReport summarizes a bulk rebuild.
type BulkReport struct {
	Total    int             `json:"total"`
	Outcomes map[Outcome]int `json:"outcomes"`
	Canceled bool            `json:"canceled,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Failed returns the number of items that could not be written.
func (r BulkReport) Failed() int {
	return r.Outcomes[OutcomeFailed] + r.Outcomes[OutcomeSkipped]
}

// ProgressFunc is called after each item of a bulk rebuild.
type ProgressFunc func(item *models.ContentItem, outcome Outcome)

// BulkIndex saves every item in order with the canonical locale pinned.
// One item's failure never stops the rest; a canceled ctx stops before the next item.
func (idx *Indexer) BulkIndex(ctx context.Context, items []*models.ContentItem, progress ProgressFunc) BulkReport {
	start := time.Now()
	report := BulkReport{Outcomes: make(map[Outcome]int)}
	pinned := locale.With(ctx, idx.canonicalLocale)
	for _, item := range items {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}
		outcome := idx.OnSaved(pinned, item, EditContext{})
		report.Total++
		report.Outcomes[outcome]++
		if progress != nil {
			progress(item, outcome)
		}
	}
	report.Duration = time.Since(start)
	metrics.RebuildDuration.Observe(report.Duration.Seconds())
	return report
}

// ProvisionCollection creates the collection with the document schema.
// An existing collection counts as success.
func (idx *Indexer) ProvisionCollection(ctx context.Context) bool {
	if idx.collection == "" {
		return false
	}
	err := idx.client.CreateCollection(ctx, index.DocumentSchema(idx.collection))
	if err == nil || errors.Is(err, index.ErrAlreadyExists) {
		return true
	}
	idx.logger.Error("Could not create collection",
		zap.String("collection", idx.collection),
		zap.String("kind", index.Kind(err)),
		zap.Error(err))
	return false
}

// TenantFilter returns the filter matching every document of the indexer's tenant.
func (idx *Indexer) TenantFilter() string {
	return models.FieldTenantID + ":=" + strconv.Itoa(idx.tenantID)
}

// EmptyCollection deletes every document of the current tenant.
func (idx *Indexer) EmptyCollection(ctx context.Context) bool {
	if idx.collection == "" {
		return false
	}
	n, err := idx.client.DeleteByFilter(ctx, idx.collection, idx.TenantFilter())
	if err != nil {
		idx.logger.Error("Could not empty collection",
			zap.String("collection", idx.collection),
			zap.String("kind", index.Kind(err)),
			zap.Error(err))
		return false
	}
	idx.logger.Info("Emptied collection", zap.String("collection", idx.collection), zap.Int("deleted", n))
	return true
}

// Collection status values.
const (
	StatusExists       = "exists"
	StatusNotFound     = "notfound"
	StatusUnauthorized = "unauthorized"
	StatusError        = "error"
	StatusDisabled     = "disabled"
)

// CollectionStatus describes the collection for the settings screen.
type CollectionStatus struct {
	Name         string         `json:"name"`
	Status       string         `json:"status"`
	NumDocuments int64          `json:"num_documents"`
	TypeCounts   map[string]int `json:"type_counts,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// CollectionStatus reports whether the collection exists and how many documents it holds per type label.
func (idx *Indexer) CollectionStatus(ctx context.Context) CollectionStatus {
	st := CollectionStatus{Name: idx.collection}
	if idx.collection == "" {
		st.Status = StatusDisabled
		return st
	}
	info, err := idx.client.RetrieveCollection(ctx, idx.collection)
	switch {
	case err == nil:
		st.Status = StatusExists
		st.NumDocuments = info.NumDocuments
	case errors.Is(err, index.ErrUnauthorized):
		st.Status = StatusUnauthorized
		return st
	case errors.Is(err, index.ErrNotFound):
		st.Status = StatusNotFound
		return st
	default:
		st.Status = StatusError
		st.Error = err.Error()
		return st
	}

	resp, err := idx.client.Search(ctx, idx.collection, index.SearchParams{
		Q:              "*",
		QueryBy:        models.FieldTitle + "," + models.FieldBody,
		FacetBy:        models.FieldTypeLabel,
		MaxFacetValues: 1000,
		PerPage:        0,
	})
	if err != nil {
		idx.logger.Warn("Could not count documents per type", zap.Error(err))
		return st
	}
	st.TypeCounts = make(map[string]int)
	for _, fc := range resp.FacetCounts {
		if fc.FieldName != models.FieldTypeLabel {
			continue
		}
		for _, c := range fc.Counts {
			st.TypeCounts[c.Value] = c.Count
		}
	}
	return st
}

// CanConnect reports whether the index answers its health probe.
func (idx *Indexer) CanConnect(ctx context.Context) bool {
	return idx.client.Health(ctx) == nil
}
