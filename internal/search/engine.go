// Package search translates end-user searches into index queries and interprets the responses.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/hooks"
	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/metrics"
	"github.com/hyperjump/searchsync/internal/models"
)

// ErrDeclined means the index should not override native search for this request.
var ErrDeclined = errors.New("search: declined")

// Engine runs index-backed searches.
type Engine struct {
	client         index.Client
	collection     string
	translator     *Translator
	hooks          *hooks.Hooks
	logger         *zap.Logger
	defaultPerPage int
	maxPerPage     int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for declined and failed searches.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithHooks sets the extension points consulted before searching.
func WithHooks(h *hooks.Hooks) EngineOption {
	return func(e *Engine) { e.hooks = h }
}

// WithPaging sets the default and maximum page size.
func WithPaging(defaultPerPage, maxPerPage int) EngineOption {
	return func(e *Engine) {
		e.defaultPerPage = defaultPerPage
		e.maxPerPage = maxPerPage
	}
}

// NewEngine creates a search engine over collection.
func NewEngine(client index.Client, collection string, translator *Translator, opts ...EngineOption) *Engine {
	e := &Engine{
		client:         client,
		collection:     collection,
		translator:     translator,
		defaultPerPage: 10,
		maxPerPage:     100,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.hooks = hooks.OrEmpty(e.hooks)
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

func (e *Engine) decline(reason string) error {
	metrics.SearchRequestsTotal.WithLabelValues("declined").Inc()
	return fmt.Errorf("%w: %s", ErrDeclined, reason)
}

// Search runs req against the index. The session in ctx, if any, is reset first and
// receives the result. Errors mean the caller keeps its native search behavior.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResult, error) {
	start := time.Now()
	session := FromContext(ctx)
	if session != nil {
		session.reset()
	}

	if e.collection == "" {
		return nil, e.decline("no collection configured")
	}
	if err := req.Validate(e.defaultPerPage, e.maxPerPage); err != nil {
		return nil, e.decline(err.Error())
	}
	if !e.hooks.BackendSearchActive.Apply(true, req) {
		return nil, e.decline("backend search disabled")
	}
	if err := e.client.Health(ctx); err != nil {
		e.logger.Warn("index unavailable, keeping native search", zap.Error(err))
		return nil, e.decline("index unavailable")
	}

	q := e.translator.Translate(req)
	primary, err := e.client.Search(ctx, e.collection, q.Primary)
	if err != nil {
		return nil, e.fail(err)
	}
	var facets *index.SearchResponse
	if q.Facets != nil {
		if facets, err = e.client.Search(ctx, e.collection, *q.Facets); err != nil {
			return nil, e.fail(err)
		}
	}

	result := e.translator.Interpret(req, primary, facets)
	result.QueryTime = time.Since(start).Milliseconds()
	if session != nil {
		session.store(result)
	}
	metrics.SearchRequestsTotal.WithLabelValues("served").Inc()
	return result, nil
}

func (e *Engine) fail(err error) error {
	metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
	e.logger.Error("search failed", zap.String("kind", index.Kind(err)), zap.Error(err))
	return fmt.Errorf("search failed: %w", err)
}
