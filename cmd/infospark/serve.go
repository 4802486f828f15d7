package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/middleware"
)

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus", cfg.Corpus.Source, "backend", cfg.Index.Backend)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		ms.Start()
		defer ms.Shutdown(context.WithoutCancel(ctx))
	}

	rt, err := newRuntime(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer rt.Close()

	origin, err := rt.engine.LoadOrBuild(ctx)
	if err != nil {
		// serve whatever is active; an empty index answers every query
		// with no hits until a rebuild succeeds
		slog.Error("initial index preparation failed", "error", err)
	}
	slog.Info("index ready", "origin", origin, "documents", rt.engine.Current().DocumentCount())

	if cfg.Kafka.Enabled {
		// each instance needs every event, so the group is per instance
		group := cfg.Kafka.ConsumerGroup + "-" + rt.engine.InstanceID()
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, group, consumer.HandleMessage(rt.engine))
		reloads := consumer.New(kc)
		go func() {
			if err := reloads.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("index", func(context.Context) health.ComponentHealth {
		status := rt.engine.Status()
		if status.Stats.Documents == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents (%s)", status.Stats.Documents, status.Origin),
		}
	})
	if rt.redis != nil {
		checker.Register("redis", health.PingCheck(rt.redis, false))
	}
	if rt.postgres != nil {
		// only rebuilds need the source
		checker.Register("postgres", health.PingCheck(rt.postgres, true))
	}

	h := handler.New(rt.executor, rt.engine, rt.cache, cfg.Search.MaxResults)
	api := http.NewServeMux()
	h.Routes(api)

	mux := http.NewServeMux()
	// rebuilds run longer than a query, so only the rest of the API gets
	// the request timeout
	mux.Handle("POST /api/v1/index/rebuild", api)
	mux.Handle("/api/", middleware.Timeout(cfg.Server.RequestTimeout)(api))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(prometheus.DefaultGatherer))

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("search service stopped")
	return nil
}
