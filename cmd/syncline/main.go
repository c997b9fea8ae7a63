// Copyright 2026 Meridian Systems
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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/meridianhq/syncline"
	"github.com/meridianhq/syncline/ai"
	aimock "github.com/meridianhq/syncline/ai/mock"
	"github.com/meridianhq/syncline/ai/openai"
	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/engine"
	"github.com/meridianhq/syncline/index/sqlitevec"
	"github.com/meridianhq/syncline/source"
	"github.com/meridianhq/syncline/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "syncline",
		Usage: "Multi-tenant sync engine for paged source exports",
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
				Name:   "sync",
				Usage:  "Run a sync for one (tenant, platform) pair",
				Action: syncCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB record store directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "index",
						Aliases:  []string{"i"},
						Usage:    "Path to SQLite search index file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Directory holding <tenant>_<platform>.json export files",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "tenant",
						Usage:    "Tenant identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "platform",
						Usage:    "Source platform identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Sync mode (incremental, full, force_rebuild)",
						Value: "incremental",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
					&cli.IntFlag{
						Name:  "dimensions",
						Usage: "Embedding vector dimension, must match the index",
						Value: 384,
					},
					&cli.BoolFlag{
						Name:  "mock-embedder",
						Usage: "Use deterministic offline embeddings instead of a service",
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Number of records per source page",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Number of objects per write batch",
						Value: 25,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent write workers (0 = CPU count / 2)",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 500 * time.Millisecond,
					},
					&cli.DurationFlag{
						Name:  "call-timeout",
						Usage: "Bound on each fetch, embed and store call",
						Value: 30 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Read back index writes to verify dual-store consistency",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the sync state of a (tenant, platform) pair",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB record store directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "tenant",
						Usage:    "Tenant identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "platform",
						Usage:    "Source platform identifier",
						Required: true,
					},
				},
			},
			{
				Name:   "runs",
				Usage:  "List run history for a (tenant, platform) pair",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB record store directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "tenant",
						Usage:    "Tenant identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "platform",
						Usage:    "Source platform identifier",
						Required: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Semantic search over synced records",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "index",
						Aliases:  []string{"i"},
						Usage:    "Path to SQLite search index file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "tenant",
						Usage:    "Tenant identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "platform",
						Usage:    "Source platform identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
					&cli.IntFlag{
						Name:  "dimensions",
						Usage: "Embedding vector dimension, must match the index",
						Value: 384,
					},
					&cli.BoolFlag{
						Name:  "mock-embedder",
						Usage: "Use deterministic offline embeddings instead of a service",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Number of results to return",
						Value:   10,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func syncCommand(c *cli.Context) error {
	ctx := context.Background()

	mode, err := core.ParseSyncMode(c.String("mode"))
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", c.String("mode"), err)
	}
	if c.Int("page-size") <= 0 {
		return fmt.Errorf("page-size must be greater than 0")
	}
	if c.Int("chunk-size") <= 0 {
		return fmt.Errorf("chunk-size must be greater than 0")
	}
	if c.Int("max-retries") <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	fetcher := source.NewFileFetcher(c.String("source"), c.Int("page-size"))

	engineOpts := []engine.Option{
		engine.WithChunkSize(c.Int("chunk-size")),
		engine.WithMaxRetries(c.Int("max-retries")),
		engine.WithRetryDelay(c.Duration("retry-delay")),
		engine.WithCallTimeout(c.Duration("call-timeout")),
		engine.WithVerifyWrites(c.Bool("verify")),
		engine.WithProgressWriter(os.Stderr),
	}
	if c.Int("pool-size") > 0 {
		engineOpts = append(engineOpts, engine.WithPoolSize(c.Int("pool-size")))
	}

	systemOpts := []syncline.SystemOption{
		syncline.WithIndexPath(c.String("index")),
		syncline.WithAIConfig(newAIConfig(c)),
		syncline.WithEngineOptions(engineOpts...),
	}
	if c.Bool("mock-embedder") {
		embedder := aimock.NewMockEmbedder()
		embedder.Dimensions = c.Int("dimensions")
		systemOpts = append(systemOpts, syncline.WithEmbedder(embedder))
	}

	system, err := syncline.NewSystem(c.String("db"), fetcher, systemOpts...)
	if err != nil {
		return fmt.Errorf("failed to open system: %w", err)
	}
	defer system.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Index: %s\n", c.String("index"))
	fmt.Fprintf(os.Stderr, "Tenant: %s  Platform: %s  Mode: %s\n", c.String("tenant"), c.String("platform"), mode)
	fmt.Fprintln(os.Stderr)

	runID, err := system.StartRun(ctx, c.String("tenant"), c.String("platform"), mode)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	// The run executes asynchronously; poll until it reaches a terminal
	// state.
	var run *core.Run
	for {
		time.Sleep(250 * time.Millisecond)
		run, err = system.GetRunStatus(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to read run status: %w", err)
		}
		if run.Status.Terminal() {
			break
		}
	}

	printRun(run)
	if run.Status == core.StatusFailed {
		return fmt.Errorf("sync run failed: %s", run.LastError)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	stores, err := badger.OpenStores(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer stores.Close()

	tenant := c.String("tenant")
	platform := c.String("platform")

	state, err := stores.States.Get(ctx, tenant, platform)
	if err != nil {
		return fmt.Errorf("failed to read sync state: %w", err)
	}
	if state == nil {
		fmt.Printf("%s/%s has never been synced\n", tenant, platform)
		return nil
	}

	fmt.Printf("Tenant:    %s\n", state.TenantID)
	fmt.Printf("Platform:  %s\n", state.Platform)
	if state.LastRunAt.IsZero() {
		fmt.Printf("Last run:  never completed\n")
	} else {
		fmt.Printf("Last run:  %s\n", state.LastRunAt.Format(time.RFC3339))
	}
	fmt.Printf("Objects:   %d\n", state.KnownIDCount)
	if state.ModeInProgress != "" {
		fmt.Printf("In flight: %s\n", state.ModeInProgress)
	}

	active, err := stores.Runs.ActiveRun(ctx, tenant, platform)
	if err != nil {
		return fmt.Errorf("failed to read active run: %w", err)
	}
	if active != nil {
		fmt.Println()
		printRun(active)
	}
	return nil
}

func runsCommand(c *cli.Context) error {
	ctx := context.Background()

	stores, err := badger.OpenStores(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer stores.Close()

	runs, err := stores.Runs.ListRuns(ctx, c.String("tenant"), c.String("platform"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}

	for i, run := range runs {
		if i > 0 {
			fmt.Println()
		}
		printRun(run)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query argument is required")
	}
	k := c.Int("limit")
	if k <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}

	idx, err := sqlitevec.Open(c.String("index"), c.Int("dimensions"))
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer idx.Close()

	var embedder ai.Embedder
	if c.Bool("mock-embedder") {
		m := aimock.NewMockEmbedder()
		m.Dimensions = c.Int("dimensions")
		embedder = m
	} else {
		embedder, err = openai.NewEmbedder(newAIConfig(c))
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	vector, err := embedder.EmbedText(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := idx.Search(ctx, c.String("tenant"), c.String("platform"), vector, k)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	for _, r := range results {
		fmt.Printf("%.4f  %s\n", r.Score, r.ID)
		for _, line := range strings.Split(strings.TrimSpace(r.Text), "\n") {
			fmt.Printf("        %s\n", line)
		}
	}
	return nil
}

func newAIConfig(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithDimensions(c.Int("dimensions")),
	)
}

func printRun(run *core.Run) {
	fmt.Printf("Run:       %s\n", run.ID)
	fmt.Printf("Mode:      %s\n", run.Mode)
	fmt.Printf("Status:    %s\n", run.Status)
	fmt.Printf("Started:   %s\n", run.StartedAt.Format(time.RFC3339))
	if !run.EndedAt.IsZero() {
		fmt.Printf("Ended:     %s\n", run.EndedAt.Format(time.RFC3339))
	}
	fmt.Printf("Fetched:   %d\n", run.Counts.Fetched)
	fmt.Printf("Added:     %d  Updated: %d  Unchanged: %d  Deleted: %d  Errors: %d\n",
		run.Counts.Added, run.Counts.Updated, run.Counts.Unchanged, run.Counts.Deleted, run.Counts.Errors)
	if run.LastError != "" {
		fmt.Printf("Error:     %s\n", run.LastError)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

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
