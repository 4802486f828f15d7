// Package indexer owns the lifecycle of the active index: loading a
// persisted snapshot, rebuilding from the document source, and swapping the
// result in atomically for concurrent readers.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/builder"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/persist"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/resilience"
)

// publishTimeout bounds announcing a build, retries included.
const publishTimeout = 10 * time.Second

// Origin says where the active index came from.
type Origin string

const (
	OriginEmpty  Origin = "empty"
	OriginLoaded Origin = "loaded"
	OriginBuilt  Origin = "built"
)

// IndexEvent is published after every successful build so other processes
// sharing the same store can reload.
type IndexEvent struct {
	Instance  string    `json:"instance"`
	Store     string    `json:"store"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	BuiltAt   time.Time `json:"built_at"`
}

// Publisher sends index events. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Status describes the active index.
type Status struct {
	Origin     Origin      `json:"origin"`
	Stats      index.Stats `json:"stats"`
	ReplacedAt time.Time   `json:"replaced_at"`
	Rebuilding bool        `json:"rebuilding"`
	Warnings   int         `json:"warnings"`
}

type state struct {
	ix         *index.Index
	origin     Origin
	replacedAt time.Time
	warnings   int
}

// Engine holds the current index behind an atomic pointer. Readers call
// Current and keep using the returned index for the whole query; a rebuild
// never mutates an index that has been published.
type Engine struct {
	current    atomic.Pointer[state]
	rebuildMu  sync.Mutex
	rebuilding atomic.Bool

	provider       source.Provider
	builder        *builder.Builder
	store          persist.Store
	publisher      Publisher
	saveAfterBuild bool
	metrics        *metrics.Metrics
	logger         *slog.Logger
	instanceID     string

	hooksMu sync.RWMutex
	hooks   []func(*index.Index)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore enables loading and saving snapshots. save controls whether
// successful rebuilds are written back.
func WithStore(store persist.Store, save bool) Option {
	return func(e *Engine) {
		e.store = store
		e.saveAfterBuild = save
	}
}

// WithPublisher announces successful builds.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine serving an empty index until LoadOrBuild or
// Rebuild succeeds.
func NewEngine(provider source.Provider, b *builder.Builder, opts ...Option) *Engine {
	e := &Engine{
		provider:   provider,
		builder:    b,
		logger:     slog.Default().With("component", "indexer"),
		instanceID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(&state{ix: index.Empty(), origin: OriginEmpty, replacedAt: time.Now()})
	return e
}

// Current returns the active index.
func (e *Engine) Current() *index.Index {
	return e.current.Load().ix
}

// InstanceID identifies this engine in published events.
func (e *Engine) InstanceID() string {
	return e.instanceID
}

// OnReplace registers fn to run after every index swap, with the new index.
func (e *Engine) OnReplace(fn func(*index.Index)) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.hooks = append(e.hooks, fn)
}

// Status reports the active index and whether a rebuild is running.
func (e *Engine) Status() Status {
	st := e.current.Load()
	return Status{
		Origin:     st.origin,
		Stats:      st.ix.Stats(),
		ReplacedAt: st.replacedAt,
		Rebuilding: e.rebuilding.Load(),
		Warnings:   st.warnings,
	}
}

// LoadOrBuild activates the persisted snapshot if there is a valid one and
// otherwise rebuilds from the document source. A missing or corrupt
// snapshot is not an error.
func (e *Engine) LoadOrBuild(ctx context.Context) (Origin, error) {
	if e.store != nil {
		err := e.Reload(ctx)
		if err == nil {
			return OriginLoaded, nil
		}
		switch {
		case errors.Is(err, apperrors.ErrSnapshotNotFound):
			e.logger.Info("no persisted index, building", "store", e.store.String())
		case errors.Is(err, apperrors.ErrIndexFormat):
			e.logger.Warn("persisted index unreadable, rebuilding", "store", e.store.String(), "error", err)
		default:
			e.logger.Warn("loading persisted index failed, rebuilding", "store", e.store.String(), "error", err)
		}
	}
	res, err := e.Rebuild(ctx)
	if res == nil {
		return OriginEmpty, err
	}
	// a failed save leaves the built index active
	return OriginBuilt, err
}

// Reload replaces the active index with the stored snapshot.
func (e *Engine) Reload(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("reload without a configured store: %w", apperrors.ErrSnapshotNotFound)
	}
	ix, err := persist.LoadIndex(ctx, e.store)
	if err != nil {
		e.recordLoad(err)
		return fmt.Errorf("loading index from %s: %w", e.store, err)
	}
	e.recordLoad(nil)
	e.swap(&state{ix: ix, origin: OriginLoaded})
	e.logger.Info("index loaded",
		"store", e.store.String(),
		"documents", ix.DocumentCount(),
		"terms", ix.TermCount(),
	)
	return nil
}

// Rebuild reads every document from the source, builds a new index and
// swaps it in. Only one rebuild runs at a time; a concurrent call fails
// with ErrRebuildInProgress. On failure or cancellation the previous index
// stays active. If saving the new index fails the swap still happens and
// the save error is returned with the result.
func (e *Engine) Rebuild(ctx context.Context) (*builder.Result, error) {
	if !e.rebuildMu.TryLock() {
		return nil, apperrors.ErrRebuildInProgress
	}
	defer e.rebuildMu.Unlock()
	e.rebuilding.Store(true)
	defer e.rebuilding.Store(false)

	docs, err := e.provider.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	res, err := e.builder.Build(ctx, docs)
	if err != nil {
		return nil, err
	}
	e.swap(&state{ix: res.Index, origin: OriginBuilt, warnings: len(res.Warnings)})

	if e.store != nil && e.saveAfterBuild {
		n, err := persist.SaveIndex(ctx, e.store, res.Index)
		if err != nil {
			e.logger.Error("saving index failed", "store", e.store.String(), "error", err)
			return res, err
		}
		e.logger.Info("index saved", "store", e.store.String(), "bytes", n)
		e.publish(ctx, res.Index)
	}
	return res, nil
}

func (e *Engine) swap(st *state) {
	st.replacedAt = time.Now()
	e.current.Store(st)
	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(st.ix.DocumentCount()))
		e.metrics.IndexTerms.Set(float64(st.ix.TermCount()))
	}
	e.hooksMu.RLock()
	hooks := slices.Clone(e.hooks)
	e.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(st.ix)
	}
}

// publish only announces snapshots that other processes can load, so it is
// skipped when nothing was saved.
func (e *Engine) publish(ctx context.Context, ix *index.Index) {
	if e.publisher == nil {
		return
	}
	event := kafka.Event{
		Key: e.instanceID,
		Value: IndexEvent{
			Instance:  e.instanceID,
			Store:     e.store.String(),
			Documents: ix.DocumentCount(),
			Terms:     ix.TermCount(),
			BuiltAt:   time.Now().UTC(),
		},
	}
	err := resilience.WithTimeout(ctx, publishTimeout, "publish-index-event", func(ctx context.Context) error {
		return resilience.Retry(ctx, "publish-index-event", resilience.RetryConfig{MaxAttempts: 3}, func() error {
			return e.publisher.Publish(ctx, event)
		})
	})
	if err != nil {
		e.logger.Error("publishing index event failed", "error", err)
	}
}

func (e *Engine) recordLoad(err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrSnapshotNotFound):
		status = "missing"
	case errors.Is(err, apperrors.ErrIndexFormat):
		status = "format_error"
	default:
		status = "error"
	}
	e.metrics.IndexLoadsTotal.WithLabelValues(status).Inc()
}
