// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/ragquery"
	"github.com/poiesic/ragquery/ai"
	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/ingestion"
	"github.com/poiesic/ragquery/reembed"
	"github.com/poiesic/ragquery/retrieval"
	"github.com/poiesic/ragquery/translate"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragquery",
		Usage: "Answer questions over indexed web pages with query translation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Fetch web pages and add their chunks to the index",
				ArgsUsage: "URL...",
				Action:    indexCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:  "selector",
						Usage: "CSS selector for the page content to index (empty indexes the whole page)",
						Value: ingestion.DefaultSelector,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Maximum tokens per chunk",
						Value: ingestion.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Tokens shared by consecutive chunks",
						Value: ingestion.DefaultChunkOverlap,
					},
					&cli.StringFlag{
						Name:  "token-encoding",
						Usage: "tiktoken encoding chunks are measured in (empty measures characters)",
						Value: ingestion.DefaultTokenEncoding,
					},
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Drop previously indexed chunks of each URL that the new version no longer has",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report embedding progress on stderr",
					},
				),
			},
			{
				Name:      "ask",
				Usage:     "Answer a question with a query translation method",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:    "method",
						Aliases: []string{"m"},
						Usage:   "Query translation method (multi_query, fusion, decomposition)",
						Value:   string(core.MethodFusion),
					},
					&cli.StringSliceFlag{
						Name:  "url",
						Usage: "Index these pages before answering",
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "Number of query variants or sub-questions (0 uses the method default)",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Fragments retrieved per query",
						Value: retrieval.DefaultTopK,
					},
					&cli.Float64Flag{
						Name:  "rrf-k",
						Usage: "Reciprocal Rank Fusion constant",
						Value: translate.DefaultRRFK,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print generated queries, retrievals and sub-answers on stderr",
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Recompute the vectors of every indexed chunk with the configured embedding model",
				Action: reembedCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
				),
			},
			{
				Name:   "methods",
				Usage:  "List the supported query translation methods",
				Action: methodsCommand,
			},
		},
	}
}

// storeFlags are the database and model flags shared by every command that
// touches the index.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			Value:   "./ragquery_db",
			EnvVars: []string{"RAGQUERY_DB"},
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "OpenAI-compatible service host URL",
			Value:   "http://localhost:11434/v1",
			EnvVars: []string{"RAGQUERY_HOST"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for the model host",
			EnvVars: []string{"OPENAI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   "embeddinggemma",
			EnvVars: []string{"RAGQUERY_EMBEDDING_MODEL"},
		},
		&cli.StringFlag{
			Name:    "generation-model",
			Usage:   "Generation model name",
			Value:   "qwen2.5:3b",
			EnvVars: []string{"RAGQUERY_GENERATION_MODEL"},
		},
		&cli.Float64Flag{
			Name:  "temperature",
			Usage: "Sampling temperature",
		},
		&cli.Float64Flag{
			Name:  "rate-limit",
			Usage: "Maximum generation requests per second (0 is unlimited)",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Attempts per embedding or generation call",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff between attempts",
			Value: 500 * time.Millisecond,
		},
	}
}

func aiConfig(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGenerationModel(c.String("generation-model")),
		ai.WithTemperature(c.Float64("temperature")),
		ai.WithRequestsPerSecond(c.Float64("rate-limit")),
		ai.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
	)
}

func openDatabase(c *cli.Context) (*ragquery.Database, error) {
	cfg := aiConfig(c)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	db, err := ragquery.NewDatabase(c.String("db"), ragquery.WithAIConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func indexCommand(c *cli.Context) error {
	urls := c.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("at least one URL is required")
	}

	opts := []ingestion.Option{
		ingestion.WithSelector(c.String("selector")),
		ingestion.WithChunking(c.Int("chunk-size"), c.Int("chunk-overlap")),
		ingestion.WithReplace(c.Bool("replace")),
	}
	if encoding := c.String("token-encoding"); encoding != "" {
		opts = append(opts, ingestion.WithTokenEncoding(encoding))
	}
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(os.Stderr))
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return indexURLs(c.Context, db, urls, opts...)
}

func indexURLs(ctx context.Context, db *ragquery.Database, urls []string, opts ...ingestion.Option) error {
	loader, err := db.NewLoader(opts...)
	if err != nil {
		return fmt.Errorf("failed to create loader: %w", err)
	}
	for _, url := range urls {
		result, err := loader.Load(ctx, url)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", url, err)
		}
		fmt.Fprintf(os.Stderr, "%s: %d chunks, %d added, %d already indexed, %d removed\n",
			result.Source, result.Chunks, result.Added, result.Skipped, result.Removed)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a question is required")
	}
	method, err := core.ParseMethod(c.String("method"))
	if err != nil {
		return err
	}

	dispatcherOpts := []translate.Option{translate.WithRRFK(c.Float64("rrf-k"))}
	if n := c.Int("count"); n != 0 {
		dispatcherOpts = append(dispatcherOpts, translate.WithQueryCount(method, n))
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if urls := c.StringSlice("url"); len(urls) > 0 {
		if err := indexURLs(c.Context, db, urls, ingestion.WithTokenEncoding(ingestion.DefaultTokenEncoding)); err != nil {
			return err
		}
	}

	retriever, err := db.NewRetriever(retrieval.WithTopK(c.Int("top-k")))
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}
	dispatcher, err := db.NewDispatcher(retriever, dispatcherOpts...)
	if err != nil {
		return err
	}
	defer dispatcher.Release()

	var monitor translate.Monitor
	if c.Bool("verbose") {
		monitor = newTraceMonitor(os.Stderr)
	}

	answer, err := dispatcher.RunWithMonitor(c.Context, string(method), query, monitor)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, answer)
	return nil
}

func reembedCommand(c *cli.Context) error {
	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
	}
	if err := config.Validate(); err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := db.NewReembedder(config, os.Stderr).Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func methodsCommand(c *cli.Context) error {
	for _, m := range core.Methods {
		fmt.Fprintln(c.App.Writer, m)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
