package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/builder"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/metrics"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "infospark",
		Usage: "Full-text search over a document corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"INFOSPARK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the logging level (debug, info, warn, error)",
			},
		},
		Before: loadConfig,
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Build the index from the corpus and persist it",
				Action: indexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Corpus directory (overrides corpus.dir)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Index file (overrides index.path)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run a single query and print the ranked hits",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of hits (0 uses search.defaultLimit)",
					},
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Corpus directory used when no index has been saved",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP search API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "HTTP port (overrides server.port)",
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func indexCommand(c *cli.Context) error {
	cfg := configFrom(c)
	if dir := c.String("dir"); dir != "" {
		cfg.Corpus.Source = config.SourceDirectory
		cfg.Corpus.Dir = dir
	}
	if out := c.String("output"); out != "" {
		cfg.Index.Backend = config.BackendFile
		cfg.Index.Path = out
	}
	cfg.Index.SaveAfterBuild = true

	ctx, stop := signalContext(c)
	defer stop()
	rt, err := newRuntime(ctx, cfg, metrics.New(nil))
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.engine.Rebuild(ctx)
	if res == nil {
		return fmt.Errorf("building index: %w", err)
	}
	printBuild(c.App.Writer, res)
	if err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	return nil
}

func printBuild(w io.Writer, res *builder.Result) {
	stats := res.Index.Stats()
	fmt.Fprintf(w, "Indexed %d documents (%d terms, %d tags) in %s\n",
		stats.Documents, stats.Terms, stats.Tags, res.Duration.Round(time.Millisecond))
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  skipped %s: %v\n", warn.Path, warn.Err)
	}
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("search needs a query: %w", apperrors.ErrInvalidInput)
	}
	cfg := configFrom(c)
	if dir := c.String("dir"); dir != "" {
		cfg.Corpus.Source = config.SourceDirectory
		cfg.Corpus.Dir = dir
	}

	ctx, stop := signalContext(c)
	defer stop()
	rt, err := newRuntime(ctx, cfg, metrics.New(nil))
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.engine.LoadOrBuild(ctx); err != nil {
		if rt.engine.Current().DocumentCount() == 0 {
			return fmt.Errorf("preparing index: %w", err)
		}
		slog.Warn("index built but not saved", "error", err)
	}
	res, err := rt.executor.Search(ctx, query, c.Int("limit"))
	if err != nil {
		return err
	}
	printResult(c.App.Writer, res)
	return nil
}

func printResult(w io.Writer, res *executor.Result) {
	if res.Ambiguity != "" {
		fmt.Fprintf(w, "Note: %s\n", res.Ambiguity)
	}
	if res.Corrected != "" {
		fmt.Fprintf(w, "Showing results for %q\n", res.Corrected)
	}
	if len(res.Hits) == 0 {
		fmt.Fprintln(w, "No results found")
	} else {
		fmt.Fprintf(w, "%d of %d results (%s query)\n\n", len(res.Hits), res.TotalHits, res.Kind)
	}
	for i, hit := range res.Hits {
		fmt.Fprintf(w, "%d. [%d] %s (score %.4f)\n", i+1, hit.DocID, hit.Title, hit.Score)
		fmt.Fprintf(w, "   %s\n", hit.Snippet)
		fmt.Fprintf(w, "   %s\n", hit.Path)
	}
	if len(res.Suggestions) > 0 {
		fmt.Fprintf(w, "Did you mean: %s\n", strings.Join(res.Suggestions, ", "))
	}
}

func serveCommand(c *cli.Context) error {
	cfg := configFrom(c)
	if port := c.Int("port"); port > 0 {
		cfg.Server.Port = port
	}
	ctx, stop := signalContext(c)
	defer stop()

	err := serve(ctx, cfg)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
