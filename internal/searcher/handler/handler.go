package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/builder"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/middleware"
)

type Searcher interface {
	Search(ctx context.Context, raw string, limit int) (*executor.Result, error)
}

// IndexManager is the part of *indexer.Engine the handler drives.
type IndexManager interface {
	Current() *index.Index
	Status() indexer.Status
	Rebuild(ctx context.Context) (*builder.Result, error)
}

type Handler struct {
	searcher   Searcher
	engine     IndexManager
	cache      *cache.LRU[*executor.Result]
	maxResults int
	logger     *slog.Logger
}

// New creates a Handler. resultCache may be nil when caching is disabled.
func New(searcher Searcher, engine IndexManager, resultCache *cache.LRU[*executor.Result], maxResults int) *Handler {
	return &Handler{
		searcher:   searcher,
		engine:     engine,
		cache:      resultCache,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.maxResults)
	}

	result, err := h.searcher.Search(ctx, query, limit)
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	log.Info("search completed",
		"query", query,
		"kind", result.Kind,
		"total_hits", result.TotalHits,
		"returned", len(result.Hits),
		"cache_hit", result.Cached,
		"latency_ms", result.TookMs,
	)
	h.writeJSON(w, http.StatusOK, result)
}

type documentResponse struct {
	ID         uint32   `json:"id"`
	Title      string   `json:"title"`
	Path       string   `json:"path"`
	Tags       []string `json:"tags,omitempty"`
	TokenCount int      `json:"token_count"`
	Text       string   `json:"text"`
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an unsigned integer")
		return
	}
	doc, ok := h.engine.Current().Document(uint32(id))
	if !ok {
		h.writeError(w, apperrors.HTTPStatusCode(apperrors.ErrDocumentNotFound), "document not found")
		return
	}
	h.writeJSON(w, http.StatusOK, documentResponse{
		ID:         doc.ID,
		Title:      doc.Title,
		Path:       doc.SourcePath,
		Tags:       doc.Tags,
		TokenCount: doc.TokenCount,
		Text:       doc.RawText,
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Status())
}

type warningResponse struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type rebuildResponse struct {
	Documents  int               `json:"documents"`
	Terms      int               `json:"terms"`
	Chunks     int               `json:"chunks"`
	DurationMs int64             `json:"duration_ms"`
	Warnings   []warningResponse `json:"warnings"`
	SaveError  string            `json:"save_error,omitempty"`
}

// Rebuild runs a full rebuild in the request. Disconnecting cancels it and
// keeps the previous index.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	res, err := h.engine.Rebuild(r.Context())
	if res == nil {
		log.Error("index rebuild failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	stats := res.Index.Stats()
	body := rebuildResponse{
		Documents:  stats.Documents,
		Terms:      stats.Terms,
		Chunks:     res.Chunks,
		DurationMs: res.Duration.Milliseconds(),
		Warnings:   make([]warningResponse, len(res.Warnings)),
	}
	for i, warn := range res.Warnings {
		body.Warnings[i] = warningResponse{Path: warn.Path, Error: warn.Err.Error()}
	}
	if err != nil {
		// the new index is live even though it was not persisted
		body.SaveError = err.Error()
	}
	log.Info("index rebuilt via api",
		"documents", stats.Documents,
		"warnings", len(res.Warnings),
		"request_id", middleware.GetRequestID(r.Context()),
	)
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	h.cache.Purge()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
