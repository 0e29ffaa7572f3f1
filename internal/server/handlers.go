package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/content"
	"github.com/hyperjump/searchsync/internal/index"
	"github.com/hyperjump/searchsync/internal/indexer"
	"github.com/hyperjump/searchsync/internal/models"
	"github.com/hyperjump/searchsync/internal/search"
)

// eventRequest is the body of a content lifecycle event. A saved event carries
// either the full item or only its id, in which case the item is read from the store.
type eventRequest struct {
	ID       string              `json:"id"`
	Item     *models.ContentItem `json:"item,omitempty"`
	Autosave bool                `json:"autosave,omitempty"`
}

type eventResponse struct {
	ContentID string          `json:"content_id"`
	Outcome   indexer.Outcome `json:"outcome"`
}

func outcomeStatus(o indexer.Outcome) int {
	switch o {
	case indexer.OutcomeFailed:
		return http.StatusBadGateway
	case indexer.OutcomeDisabled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

func (s *Server) decodeEvent(w http.ResponseWriter, r *http.Request) (*eventRequest, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.ID == "" && req.Item != nil {
		req.ID = req.Item.ID
	}
	if req.ID == "" {
		s.respondError(w, http.StatusBadRequest, "id is required")
		return nil, false
	}
	return &req, true
}

func (s *Server) handleSaved(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeEvent(w, r)
	if !ok {
		return
	}
	item := req.Item
	if item == nil {
		var err error
		item, err = s.store.Get(r.Context(), req.ID)
		if errors.Is(err, content.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "content item not found")
			return
		}
		if err != nil {
			s.logger.Error("saved event: load item failed", zap.String("content_id", req.ID), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.logger.Debug("saved event", zap.String("content_id", item.ID), zap.Bool("autosave", req.Autosave))
	o := s.indexer.OnSaved(r.Context(), item, indexer.EditContext{Autosave: req.Autosave})
	s.respondJSON(w, outcomeStatus(o), eventResponse{ContentID: item.ID, Outcome: o})
}

func (s *Server) handleDeleted(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeEvent(w, r)
	if !ok {
		return
	}
	o := s.indexer.OnDeleted(r.Context(), req.ID)
	s.respondJSON(w, outcomeStatus(o), eventResponse{ContentID: req.ID, Outcome: o})
}

func (s *Server) handleTrashed(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeEvent(w, r)
	if !ok {
		return
	}
	o := s.indexer.OnTrashed(r.Context(), req.ID)
	s.respondJSON(w, outcomeStatus(o), eventResponse{ContentID: req.ID, Outcome: o})
}

// handleSearchOptions stores the editor's per-item options and re-syncs the item.
func (s *Server) handleSearchOptions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var opts models.SearchOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := r.Context()
	if err := s.store.SetOptions(ctx, id, opts); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "content item not found")
			return
		}
		s.logger.Error("set search options failed", zap.String("content_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	item, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Error("reload item failed", zap.String("content_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	o := s.indexer.OnSaved(ctx, item, indexer.EditContext{})
	s.respondJSON(w, outcomeStatus(o), eventResponse{ContentID: id, Outcome: o})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := indexer.RebuildOptions{
		Provision: q.Get("settings") == "true",
		Clear:     q.Get("clearindex") == "true",
	}
	report, err := s.rebuilder.Run(r.Context(), opts)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, report)
	case errors.Is(err, indexer.ErrNotConfigured):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, indexer.ErrBuildRunning):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, indexer.ErrNoIndexableTypes):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleCollectionStatus(w http.ResponseWriter, r *http.Request) {
	st := s.indexer.CollectionStatus(r.Context())
	status := http.StatusOK
	if st.Status == indexer.StatusError {
		status = http.StatusBadGateway
	}
	s.respondJSON(w, status, st)
}

func (s *Server) handleCollectionCreate(w http.ResponseWriter, r *http.Request) {
	if s.indexer.Collection() == "" {
		s.respondError(w, http.StatusServiceUnavailable, indexer.ErrNotConfigured.Error())
		return
	}
	if !s.indexer.ProvisionCollection(r.Context()) {
		s.respondError(w, http.StatusBadGateway, "could not create collection")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"name": s.indexer.Collection(), "status": "created"})
}

func (s *Server) handleCollectionEmpty(w http.ResponseWriter, r *http.Request) {
	if s.indexer.Collection() == "" {
		s.respondError(w, http.StatusServiceUnavailable, indexer.ErrNotConfigured.Error())
		return
	}
	if !s.indexer.EmptyCollection(r.Context()) {
		s.respondError(w, http.StatusBadGateway, "could not empty collection")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"name": s.indexer.Collection(), "status": "emptied"})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contentID")
	doc, err := s.indexer.Document(r.Context(), id)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, doc)
	case errors.Is(err, index.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "document not found")
	default:
		s.logger.Error("get document failed", zap.String("content_id", id), zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &models.SearchRequest{Query: q.Get("q"), Type: q.Get("type")}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid page")
			return
		}
		req.Page = n
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid per_page")
			return
		}
		req.PerPage = n
	}

	session := search.NewSession()
	ctx := search.WithSession(r.Context(), session)
	s.logger.Debug("search request", zap.String("query", req.Query), zap.String("type", req.Type))
	if _, err := s.engine.Search(ctx, req); err != nil {
		if errors.Is(err, search.ErrDeclined) {
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("X-Total-Hits", strconv.Itoa(session.TotalHitCount()))
	s.respondJSON(w, http.StatusOK, session.Result())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	connected := s.indexer.CanConnect(r.Context())
	if !connected {
		status = "degraded"
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": status, "index": connected})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
