package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/builder"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
)

type fakeEngine struct {
	ix         *index.Index
	rebuildRes *builder.Result
	rebuildErr error
}

func (f *fakeEngine) Current() *index.Index { return f.ix }

func (f *fakeEngine) Status() indexer.Status {
	return indexer.Status{Origin: indexer.OriginBuilt, Stats: f.ix.Stats()}
}

func (f *fakeEngine) Rebuild(context.Context) (*builder.Result, error) {
	return f.rebuildRes, f.rebuildErr
}

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	p := index.NewPartial()
	docs := []*index.Document{
		{ID: 0, Title: "rust", SourcePath: "rust.md", RawText: "Rust is a systems language.", Tags: []string{"lang"}},
		{ID: 1, Title: "go", SourcePath: "go.txt", RawText: "Go has goroutines."},
	}
	for _, d := range docs {
		require.NoError(t, p.Add(d, tokenizer.Tokenize(d.RawText)))
	}
	ix, err := index.Merge(p)
	require.NoError(t, err)
	return ix
}

func newServer(t *testing.T, engine *fakeEngine, withCache bool) *http.ServeMux {
	t.Helper()
	if engine.ix == nil {
		engine.ix = testIndex(t)
	}
	var lru *cache.LRU[*executor.Result]
	var opts []executor.Option
	if withCache {
		lru = cache.New[*executor.Result](8, nil)
		opts = append(opts, executor.WithCache(lru))
	}
	exec := executor.New(engine, nil, nil, executor.DefaultConfig(), opts...)
	mux := http.NewServeMux()
	New(exec, engine, lru, 100).Routes(mux)
	return mux
}

func do(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSearch(t *testing.T) {
	mux := newServer(t, &fakeEngine{}, true)

	rec := do(mux, http.MethodGet, "/api/v1/search?q=rust")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res executor.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "rust", res.Query)
	assert.Equal(t, "keyword", res.Kind)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "rust.md", res.Hits[0].Path)
	assert.False(t, res.Cached)

	rec = do(mux, http.MethodGet, "/api/v1/search?q=RUST")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Cached)
}

func TestSearchNoMatchesIsEmptyList(t *testing.T) {
	mux := newServer(t, &fakeEngine{}, false)
	rec := do(mux, http.MethodGet, "/api/v1/search?q=%23missing")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []any{}, body["hits"])
}

func TestSearchValidation(t *testing.T) {
	mux := newServer(t, &fakeEngine{}, false)
	tests := []struct {
		name   string
		target string
	}{
		{"missing q", "/api/v1/search"},
		{"non-numeric limit", "/api/v1/search?q=go&limit=ten"},
		{"zero limit", "/api/v1/search?q=go&limit=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestDocument(t *testing.T) {
	mux := newServer(t, &fakeEngine{}, false)

	rec := do(mux, http.MethodGet, "/api/v1/documents/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "go", doc.Title)
	assert.Equal(t, "Go has goroutines.", doc.Text)

	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/api/v1/documents/9").Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/api/v1/documents/abc").Code)
}

func TestIndexStats(t *testing.T) {
	mux := newServer(t, &fakeEngine{}, false)
	rec := do(mux, http.MethodGet, "/api/v1/index/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var status indexer.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, indexer.OriginBuilt, status.Origin)
	assert.Equal(t, 2, status.Stats.Documents)
}

func TestRebuild(t *testing.T) {
	t.Run("success with warnings", func(t *testing.T) {
		engine := &fakeEngine{ix: testIndex(t)}
		engine.rebuildRes = &builder.Result{
			Index:    engine.ix,
			Chunks:   1,
			Duration: 3 * time.Millisecond,
			Warnings: []builder.IngestionWarning{{Path: "a.pdf", Err: apperrors.ErrUnsupportedFormat}},
		}
		rec := do(newServer(t, engine, false), http.MethodPost, "/api/v1/index/rebuild")
		require.Equal(t, http.StatusOK, rec.Code)

		var body rebuildResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 2, body.Documents)
		assert.Equal(t, int64(3), body.DurationMs)
		require.Len(t, body.Warnings, 1)
		assert.Equal(t, "a.pdf", body.Warnings[0].Path)
		assert.Empty(t, body.SaveError)
	})

	t.Run("save failure still reports the new index", func(t *testing.T) {
		engine := &fakeEngine{ix: testIndex(t)}
		engine.rebuildRes = &builder.Result{Index: engine.ix}
		engine.rebuildErr = errors.New("disk full")
		rec := do(newServer(t, engine, false), http.MethodPost, "/api/v1/index/rebuild")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "disk full")
	})

	t.Run("already running", func(t *testing.T) {
		engine := &fakeEngine{rebuildErr: apperrors.ErrRebuildInProgress}
		rec := do(newServer(t, engine, false), http.MethodPost, "/api/v1/index/rebuild")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("source unavailable", func(t *testing.T) {
		engine := &fakeEngine{rebuildErr: apperrors.ErrSourceUnavailable}
		rec := do(newServer(t, engine, false), http.MethodPost, "/api/v1/index/rebuild")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestCacheEndpoints(t *testing.T) {
	mux := newServer(t, &fakeEngine{}, true)
	do(mux, http.MethodGet, "/api/v1/search?q=go")
	do(mux, http.MethodGet, "/api/v1/search?q=go")

	rec := do(mux, http.MethodGet, "/api/v1/cache/stats")
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Size)

	rec = do(mux, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(mux, http.MethodGet, "/api/v1/cache/stats")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Size)
}

func TestCacheDisabled(t *testing.T) {
	mux := newServer(t, &fakeEngine{}, false)
	assert.JSONEq(t, `{"status":"disabled"}`, do(mux, http.MethodGet, "/api/v1/cache/stats").Body.String())
	assert.Equal(t, http.StatusServiceUnavailable, do(mux, http.MethodPost, "/api/v1/cache/invalidate").Code)
}
