package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/models"
)

var (
	// ErrNotConfigured is returned when a rebuild is requested without a collection.
	ErrNotConfigured = errors.New("search must be configured before indexing")
	// ErrNoIndexableTypes is returned when no content type is indexable.
	ErrNoIndexableTypes = errors.New("could not find any indexable content types")
	// ErrEnumerate is returned when the content source cannot list items.
	ErrEnumerate = errors.New("could not enumerate content")
	// ErrBuildRunning is returned when another process holds the build lock.
	ErrBuildRunning = errors.New("a build is already running")
)

// Source enumerates content items for a rebuild.
type Source interface {
	List(ctx context.Context, typ, status string) ([]*models.ContentItem, error)
}

// RebuildOptions controls one full rebuild.
type RebuildOptions struct {
	// Provision sends the collection schema before indexing.
	Provision bool
	// Clear removes every document of the tenant before indexing.
	Clear bool
	// Progress is called after each item.
	Progress ProgressFunc
}

// Rebuilder re-indexes every published item of every indexable type.
// Runs are serialized across processes by a lock file.
type Rebuilder struct {
	idx      *Indexer
	src      Source
	lockPath string
	logger   *zap.Logger
}

// NewRebuilder creates a rebuilder. An empty lockPath disables locking.
func NewRebuilder(idx *Indexer, src Source, lockPath string, logger *zap.Logger) *Rebuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rebuilder{idx: idx, src: src, lockPath: lockPath, logger: logger}
}

func (r *Rebuilder) lock() (*flock.Flock, error) {
	if r.lockPath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(r.lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	fl := flock.New(r.lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire build lock: %w", err)
	}
	if !ok {
		return nil, ErrBuildRunning
	}
	return fl, nil
}

// Run performs a rebuild. Individual item failures are counted in the report,
// not returned; errors mean the rebuild did not start or could not enumerate content.
func (r *Rebuilder) Run(ctx context.Context, opts RebuildOptions) (BulkReport, error) {
	if r.idx.Collection() == "" {
		return BulkReport{}, ErrNotConfigured
	}
	fl, err := r.lock()
	if err != nil {
		return BulkReport{}, err
	}
	if fl != nil {
		defer func() { _ = fl.Unlock() }()
	}

	if opts.Provision {
		r.logger.Debug("Sending settings...", zap.String("collection", r.idx.Collection()))
		if !r.idx.ProvisionCollection(ctx) {
			return BulkReport{}, fmt.Errorf("failed to provision collection %s", r.idx.Collection())
		}
	}
	if opts.Clear {
		r.logger.Debug("Clearing index...", zap.String("collection", r.idx.Collection()))
		if !r.idx.EmptyCollection(ctx) {
			return BulkReport{}, fmt.Errorf("failed to clear collection %s", r.idx.Collection())
		}
	}

	types := r.idx.Eligibility().IndexableTypes()
	if len(types) == 0 {
		return BulkReport{}, ErrNoIndexableTypes
	}
	var items []*models.ContentItem
	for _, typ := range types {
		batch, err := r.src.List(ctx, typ, models.StatusPublish)
		if err != nil {
			return BulkReport{}, fmt.Errorf("%w: list %s items: %w", ErrEnumerate, typ, err)
		}
		items = append(items, batch...)
	}

	progress := func(item *models.ContentItem, o Outcome) {
		r.logger.Debug(fmt.Sprintf("Indexing '%s' of type %s", item.Title, item.Type),
			zap.String("content_id", item.ID),
			zap.String("outcome", string(o)))
		if opts.Progress != nil {
			opts.Progress(item, o)
		}
	}
	report := r.idx.BulkIndex(ctx, items, progress)
	r.logger.Info("Build done",
		zap.Int("total", report.Total),
		zap.Int("indexed", report.Outcomes[OutcomeIndexed]),
		zap.Int("unchanged", report.Outcomes[OutcomeUnchanged]),
		zap.Int("failed", report.Failed()),
		zap.Duration("duration", report.Duration))
	return report, nil
}
