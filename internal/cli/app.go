package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/config"
	"github.com/hyperjump/searchsync/internal/content"
	"github.com/hyperjump/searchsync/internal/hooks"
	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/indexer"
	"github.com/hyperjump/searchsync/internal/models"
	"github.com/hyperjump/searchsync/internal/search"
)

// DefaultConfigPath is where the config file is looked up when --config is not given.
const DefaultConfigPath = "/usr/local/etc/searchsync/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence if it exists (for development).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == DefaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// App holds the wired components shared by every command.
type App struct {
	Config    *config.Config
	Options   *config.Options
	Hooks     *hooks.Hooks
	Logger    *zap.Logger
	Client    index.Client
	Store     content.Store
	Renderer  *content.MarkdownRenderer
	Indexer   *indexer.Indexer
	Rebuilder *indexer.Rebuilder
	Engine    *search.Engine
}

// NewApp opens the index client and content store and wires the sync and search components.
// When the index is not configured the collection name is empty and every write is disabled.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := hooks.New()
	if cfg.Search.Disabled {
		h.BackendSearchActive.Add(func(bool, *models.SearchRequest) bool { return false })
	}
	opts := config.NewOptions(cfg, h)

	client, err := newIndexClient(cfg, opts, logger)
	if err != nil {
		return nil, err
	}
	store, err := content.Open(cfg)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}

	collection := ""
	if opts.IsConfigured() {
		collection = opts.CollectionName()
	}

	renderer := content.NewMarkdownRenderer(cfg.Site.BaseURL, cfg.Site.Locale, cfg.TypeLabel)
	var builder indexer.DocumentBuilder = indexer.NewBuilder(renderer, h, cfg.Sync.ExcerptWords)
	if cfg.Sync.CacheSize > 0 {
		builder = indexer.NewCachedBuilder(builder, cfg.Sync.CacheSize, cfg.Site.Locale)
	}
	eligibility := indexer.NewEligibility(cfg.Sync.IndexableTypes, cfg.Sync.IndexableStatuses, h)
	idx := indexer.NewIndexer(client, collection, cfg.Site.TenantID, builder, eligibility,
		indexer.WithLogger(logger),
		indexer.WithHooks(h),
		indexer.WithCanonicalLocale(cfg.Site.CanonicalLocale),
	)
	engine := search.NewEngine(client, collection,
		search.NewTranslator(cfg.Search.HighlightAffixTokens, h),
		search.WithLogger(logger),
		search.WithHooks(h),
		search.WithPaging(cfg.Search.DefaultPerPage, cfg.Search.MaxPerPage),
	)

	return &App{
		Config:    cfg,
		Options:   opts,
		Hooks:     h,
		Logger:    logger,
		Client:    client,
		Store:     store,
		Renderer:  renderer,
		Indexer:   idx,
		Rebuilder: indexer.NewRebuilder(idx, store, cfg.Sync.LockPath, logger),
		Engine:    engine,
	}, nil
}

func newIndexClient(cfg *config.Config, opts *config.Options, logger *zap.Logger) (index.Client, error) {
	switch cfg.Index.Driver {
	case config.DriverRemote:
		return index.NewRemoteClient(opts.Host(), opts.APIKey(),
			time.Duration(cfg.Index.TimeoutSec)*time.Second,
			index.WithRetries(cfg.Index.RetriesOrDefault()),
			index.WithRemoteLogger(logger),
		)
	case config.DriverEmbedded:
		return index.NewBleveEngine(cfg.Index.DataPath, index.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown index driver %q", cfg.Index.Driver)
	}
}

// Close releases the content store and the index client.
func (a *App) Close() error {
	return errors.Join(a.Store.Close(), a.Client.Close())
}
