package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/builder"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/persist"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/source"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/infospark/pkg/redis"
)

// runtime is every long-lived component built from a Config.
type runtime struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	analyzer *tokenizer.Analyzer
	builder  *builder.Builder
	engine   *indexer.Engine
	cache    *cache.LRU[*executor.Result]
	executor *executor.Executor

	redis    *pkgredis.Client
	postgres *postgres.Client
	producer *kafka.Producer

	closers []func() error
}

func newAnalyzer(cfg config.AnalyzerConfig) (*tokenizer.Analyzer, error) {
	tc := tokenizer.DefaultConfig()
	if len(cfg.StopWords) > 0 {
		tc.StopWords = cfg.StopWords
	}
	if cfg.Stemmer != "" {
		tc.Stemmer = cfg.Stemmer
	}
	if cfg.MinTokenLength > 0 {
		tc.MinTokenLength = cfg.MinTokenLength
	}
	a, err := tokenizer.New(tc)
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}
	return a, nil
}

// newRuntime connects to the configured backends and assembles the engine
// and the query executor. The index is left empty; callers decide whether
// to load, build or both.
func newRuntime(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (_ *runtime, err error) {
	rt := &runtime{cfg: cfg, metrics: m}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if rt.analyzer, err = newAnalyzer(cfg.Analyzer); err != nil {
		return nil, err
	}

	provider, err := rt.provider(ctx)
	if err != nil {
		return nil, err
	}
	store, err := rt.store(ctx)
	if err != nil {
		return nil, err
	}

	rt.builder, err = builder.New(rt.analyzer,
		builder.WithWorkers(cfg.Index.Workers),
		builder.WithChunkSize(cfg.Index.ChunkSize),
		builder.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("creating index builder: %w", err)
	}
	rt.closers = append(rt.closers, func() error { rt.builder.Release(); return nil })

	opts := []indexer.Option{
		indexer.WithStore(store, cfg.Index.SaveAfterBuild),
		indexer.WithMetrics(m),
	}
	if cfg.Kafka.Enabled {
		rt.producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		rt.closers = append(rt.closers, rt.producer.Close)
		opts = append(opts, indexer.WithPublisher(rt.producer))
	}
	rt.engine = indexer.NewEngine(provider, rt.builder, opts...)

	rt.cache = cache.New[*executor.Result](cfg.Search.CacheCapacity, m)
	rt.engine.OnReplace(func(*index.Index) { rt.cache.Purge() })

	rt.executor = executor.New(
		rt.engine,
		rt.analyzer,
		ranker.New(cfg.Search.K1, cfg.Search.B),
		executor.Config{
			FuzzyMaxDistance: cfg.Search.FuzzyMaxDistance,
			MaxSuggestions:   cfg.Search.MaxSuggestions,
			DefaultLimit:     cfg.Search.DefaultLimit,
			MaxResults:       cfg.Search.MaxResults,
		},
		executor.WithCache(rt.cache),
		executor.WithMetrics(m),
		executor.WithHighlighter(highlight.New(highlight.Config{
			Width:      cfg.Snippet.Width,
			LeadLength: cfg.Snippet.LeadLength,
			Pre:        cfg.Snippet.Pre,
			Post:       cfg.Snippet.Post,
		})),
	)
	return rt, nil
}

func (rt *runtime) provider(ctx context.Context) (source.Provider, error) {
	switch rt.cfg.Corpus.Source {
	case config.SourcePostgres:
		client, err := postgres.New(ctx, rt.cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		rt.postgres = client
		rt.closers = append(rt.closers, client.Close)
		return source.NewPostgres(client.DB, rt.cfg.Postgres.DocumentQuery), nil
	default:
		return source.NewDirectory(rt.cfg.Corpus.Dir, rt.cfg.Corpus.Recursive), nil
	}
}

func (rt *runtime) store(ctx context.Context) (persist.Store, error) {
	switch rt.cfg.Index.Backend {
	case config.BackendRedis:
		client, err := pkgredis.NewClient(ctx, rt.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		rt.redis = client
		rt.closers = append(rt.closers, client.Close)
		return persist.NewRedisStore(client, rt.cfg.Index.RedisKey), nil
	default:
		return persist.NewFileStore(rt.cfg.Index.Path), nil
	}
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			slog.Warn("closing resource failed", "error", err)
		}
	}
	rt.closers = nil
}
