// Package executor runs parsed queries against the active index: it
// dispatches on the query kind, ranks the candidates, builds snippets and
// caches the resulting page.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/metrics"
)

// Hit is one ranked document.
type Hit struct {
	DocID   uint32  `json:"doc_id"`
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Snippet string  `json:"snippet"`
}

// Result is the answer to one query. Results served from the cache are
// shared; callers must not modify them.
type Result struct {
	Query       string   `json:"query"`
	Kind        string   `json:"kind"`
	TotalHits   int      `json:"total_hits"`
	Hits        []Hit    `json:"hits"`
	Suggestions []string `json:"suggestions,omitempty"`
	// Corrected is the dictionary term a fuzzy query was resolved to.
	Corrected string `json:"corrected,omitempty"`
	Ambiguity string `json:"ambiguity,omitempty"`
	Cached    bool   `json:"cached"`
	TookMs    int64  `json:"took_ms"`
}

// IndexProvider yields the index to query. *indexer.Engine satisfies it.
type IndexProvider interface {
	Current() *index.Index
}

type Config struct {
	FuzzyMaxDistance int
	MaxSuggestions   int
	DefaultLimit     int
	MaxResults       int
}

func DefaultConfig() Config {
	return Config{FuzzyMaxDistance: 2, MaxSuggestions: 5, DefaultLimit: 10, MaxResults: 100}
}

type Executor struct {
	indexes     IndexProvider
	analyzer    *tokenizer.Analyzer
	ranker      *ranker.Ranker
	highlighter *highlight.Highlighter
	cache       *cache.LRU[*Result]
	cfg         Config
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache serves repeated queries from c. The caller is responsible for
// purging c when the index changes.
func WithCache(c *cache.LRU[*Result]) Option {
	return func(e *Executor) { e.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithHighlighter(h *highlight.Highlighter) Option {
	return func(e *Executor) { e.highlighter = h }
}

func New(indexes IndexProvider, analyzer *tokenizer.Analyzer, r *ranker.Ranker, cfg Config, opts ...Option) *Executor {
	if analyzer == nil {
		analyzer = tokenizer.Default()
	}
	if r == nil {
		r = ranker.New(ranker.DefaultK1, ranker.DefaultB)
	}
	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	e := &Executor{
		indexes:     indexes,
		analyzer:    analyzer,
		ranker:      r,
		highlighter: highlight.New(highlight.DefaultConfig()),
		cfg:         cfg,
		logger:      slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search parses raw and returns up to limit hits. A limit outside
// [1, MaxResults] is replaced by DefaultLimit or clamped. A query that
// matches nothing yields an empty result, not an error.
func (e *Executor) Search(ctx context.Context, raw string, limit int) (*Result, error) {
	start := time.Now()
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	limit = min(limit, e.cfg.MaxResults)

	q := parser.Parse(raw, e.analyzer)
	compute := func() (*Result, error) {
		return e.Execute(ctx, q, limit)
	}

	var (
		res *Result
		hit bool
		err error
	)
	if e.cache != nil {
		res, hit, err = e.cache.GetOrCompute(q.Key()+"#"+strconv.Itoa(limit), compute)
	} else {
		res, err = compute()
	}
	if err != nil {
		return nil, err
	}

	out := *res
	out.Query = raw
	out.Cached = hit
	out.TookMs = time.Since(start).Milliseconds()
	e.observe(&out, hit, time.Since(start))
	return &out, nil
}

// Execute runs an already parsed query against the current index without
// consulting the cache.
func (e *Executor) Execute(ctx context.Context, q *parser.Query, limit int) (*Result, error) {
	res := &Result{
		Query:     q.Raw,
		Kind:      q.Kind.String(),
		Hits:      []Hit{},
		Ambiguity: q.Ambiguity,
	}
	if q.Empty() {
		return res, nil
	}

	ix := e.indexes.Current()
	q = parser.Classify(q, ix)
	res.Kind = q.Kind.String()

	var (
		scored   []ranker.ScoredDoc
		patterns highlight.Patterns
	)
	switch q.Kind {
	case parser.KindKeyword:
		scored = e.ranker.Rank(ix, q.Terms, nil)
		patterns.Words = append(e.contentWords(q.Words), q.Terms...)
	case parser.KindPhrase:
		docs := matcher.Phrase(ix, q.Terms)
		if len(docs) > 0 {
			scored = e.ranker.Rank(ix, q.Terms, docs)
		}
		patterns.Words = append([]string{strings.Join(q.Words, " ")}, e.contentWords(q.Words)...)
	case parser.KindTag:
		for docID, n := range matcher.Tags(ix, q.Tags) {
			scored = append(scored, ranker.ScoredDoc{DocID: docID, Score: float64(n)})
		}
		ranker.Sort(scored)
	case parser.KindWildcard:
		terms := matcher.Prefix(ix, q.Prefix, q.RawPrefix)
		scored = e.ranker.Rank(ix, terms, nil)
		patterns.Prefixes = []string{q.RawPrefix}
		if q.Prefix != q.RawPrefix {
			patterns.Prefixes = append(patterns.Prefixes, q.Prefix)
		}
	case parser.KindFuzzy:
		candidates := matcher.Fuzzy(ix, q.Terms[0], e.cfg.FuzzyMaxDistance)
		if len(candidates) == 0 {
			break
		}
		best := candidates[0]
		res.Corrected = best.Term
		for _, c := range candidates[1:] {
			if len(res.Suggestions) >= e.cfg.MaxSuggestions {
				break
			}
			res.Suggestions = append(res.Suggestions, c.Term)
		}
		scored = e.ranker.Rank(ix, []string{best.Term}, nil)
		patterns.Words = []string{best.Term}
		patterns.Prefixes = []string{best.Term}
	default:
		return nil, fmt.Errorf("unhandled query kind %d", q.Kind)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.TotalHits = len(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	for _, s := range scored {
		doc, ok := ix.Document(s.DocID)
		if !ok {
			continue
		}
		res.Hits = append(res.Hits, Hit{
			DocID:   s.DocID,
			Score:   s.Score,
			Title:   doc.Title,
			Path:    doc.SourcePath,
			Snippet: e.highlighter.Snippet(doc.RawText, patterns),
		})
	}
	return res, nil
}

func (e *Executor) observe(res *Result, hit bool, took time.Duration) {
	e.logger.Debug("search completed",
		"query", res.Query,
		"kind", res.Kind,
		"total_hits", res.TotalHits,
		"returned", len(res.Hits),
		"cache_hit", hit,
		"took", took,
	)
	if e.metrics == nil {
		return
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(res.Kind).Inc()
	e.metrics.SearchLatency.WithLabelValues(status).Observe(took.Seconds())
	e.metrics.SearchResultsCount.Observe(float64(len(res.Hits)))
}

// contentWords drops stop words so they are not highlighted on their own.
func (e *Executor) contentWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !e.analyzer.IsStopWord(w) {
			out = append(out, w)
		}
	}
	return out
}
