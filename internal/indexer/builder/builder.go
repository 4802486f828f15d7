// Package builder constructs an Index from raw documents with a fork-join
// pipeline: a sequential admission pass assigns dense document IDs, chunks
// are tokenized into worker-owned partial indexes on a bounded pool, and the
// partials are merged once at the end.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/metrics"
)

const DefaultChunkSize = 64

// IngestionWarning records a document that was skipped during a build.
type IngestionWarning struct {
	Path string
	Err  error
}

func (w IngestionWarning) Error() string {
	return fmt.Sprintf("skipping %s: %v", w.Path, w.Err)
}

func (w IngestionWarning) Unwrap() error {
	return w.Err
}

// Result is the outcome of a successful build.
type Result struct {
	Index    *index.Index
	Warnings []IngestionWarning
	Chunks   int
	Duration time.Duration
}

// Builder owns the worker pool used for index builds.
type Builder struct {
	analyzer  *tokenizer.Analyzer
	pool      *ants.Pool
	chunkSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithWorkers sets the worker pool size. Values below 1 select
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(b *Builder) error {
		if n < 1 {
			n = runtime.NumCPU()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return fmt.Errorf("creating worker pool: %w", err)
		}
		if b.pool != nil {
			b.pool.Release()
		}
		b.pool = pool
		return nil
	}
}

// WithChunkSize sets how many documents each task indexes.
func WithChunkSize(n int) Option {
	return func(b *Builder) error {
		if n < 1 {
			return fmt.Errorf("chunk size must be at least 1, got %d: %w", n, apperrors.ErrInvalidInput)
		}
		b.chunkSize = n
		return nil
	}
}

// WithMetrics records build counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) error {
		b.metrics = m
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "builder")
		return nil
	}
}

// New creates a Builder that normalises text with analyzer. Release must be
// called when the Builder is no longer needed.
func New(analyzer *tokenizer.Analyzer, opts ...Option) (*Builder, error) {
	if analyzer == nil {
		analyzer = tokenizer.Default()
	}
	b := &Builder{
		analyzer:  analyzer,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default().With("component", "builder"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			b.Release()
			return nil, err
		}
	}
	if b.pool == nil {
		if err := WithWorkers(0)(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Release stops the worker pool.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
		b.pool = nil
	}
}

// Build indexes raws. Documents with a read error or invalid UTF-8 are
// skipped and reported as warnings; the rest receive IDs 0..n-1 in input
// order. Cancellation is observed between chunks; a cancelled build returns
// the context error and no index.
func (b *Builder) Build(ctx context.Context, raws []source.RawDocument) (*Result, error) {
	start := time.Now()
	docs, warnings := b.admit(raws)

	chunks := partition(docs, b.chunkSize)
	partials := make([]*index.Partial, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			partials[i], errs[i] = b.buildChunk(ctx, chunk)
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submitting chunk %d: %w", i, err)
			break
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		b.recordBuild("cancelled", start)
		b.logger.Warn("index build cancelled", "documents", len(docs), "chunks", len(chunks))
		return nil, fmt.Errorf("index build cancelled: %w", err)
	}
	for _, err := range errs {
		if err != nil {
			b.recordBuild("error", start)
			return nil, fmt.Errorf("building partial index: %w", err)
		}
	}

	var partialBytes int64
	for _, p := range partials {
		partialBytes += p.Size()
	}
	ix, err := index.Merge(partials...)
	if err != nil {
		b.recordBuild("error", start)
		return nil, fmt.Errorf("merging partial indexes: %w", err)
	}

	duration := time.Since(start)
	b.recordBuild("success", start)
	if b.metrics != nil {
		b.metrics.DocsIndexedTotal.Add(float64(ix.DocumentCount()))
		b.metrics.IngestionWarningsTotal.Add(float64(len(warnings)))
	}
	b.logger.Info("index built",
		"documents", ix.DocumentCount(),
		"terms", ix.TermCount(),
		"warnings", len(warnings),
		"chunks", len(chunks),
		"partial_bytes", partialBytes,
		"duration", duration,
	)
	return &Result{Index: ix, Warnings: warnings, Chunks: len(chunks), Duration: duration}, nil
}

func (b *Builder) admit(raws []source.RawDocument) ([]*index.Document, []IngestionWarning) {
	docs := make([]*index.Document, 0, len(raws))
	var warnings []IngestionWarning
	for _, raw := range raws {
		var reason error
		switch {
		case raw.Err != nil:
			reason = raw.Err
		case !utf8.ValidString(raw.Text):
			reason = fmt.Errorf("text is not valid UTF-8: %w", apperrors.ErrMalformedDocument)
		}
		if reason != nil {
			w := IngestionWarning{Path: raw.Path, Err: reason}
			b.logger.Warn("document skipped", "path", raw.Path, "error", reason)
			warnings = append(warnings, w)
			continue
		}
		docs = append(docs, &index.Document{
			ID:         uint32(len(docs)),
			SourcePath: raw.Path,
			Title:      raw.Title,
			RawText:    raw.Text,
			Tags:       raw.Tags,
		})
	}
	return docs, warnings
}

func (b *Builder) buildChunk(ctx context.Context, docs []*index.Document) (*index.Partial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := index.NewPartial()
	for _, doc := range docs {
		if err := p.Add(doc, b.analyzer.Analyze(doc.RawText)); err != nil {
			return nil, err
		}
	}
	b.logger.Debug("chunk indexed",
		"documents", p.DocCount(),
		"terms", p.TermCount(),
		"bytes", p.Size(),
	)
	return p, nil
}

func (b *Builder) recordBuild(status string, start time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		b.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	}
}

func partition(docs []*index.Document, size int) [][]*index.Document {
	var chunks [][]*index.Document
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		chunks = append(chunks, docs[start:end])
	}
	return chunks
}
