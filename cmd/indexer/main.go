// Command indexer runs one catalog ingestion from the command line. It is
// the operational counterpart to POST /admin/ingest: same pipeline, same
// checkpoint store, but a blocking run with the summary printed at the end.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tunescout/internal/config"
	"tunescout/internal/index"
	"tunescout/internal/infra/catalog"
	"tunescout/internal/infra/checkpoint"
	"tunescout/internal/infra/db"
	"tunescout/internal/infra/embedder"
	"tunescout/internal/observability/logging"
	"tunescout/internal/usecase/embed"
	"tunescout/internal/usecase/ingest"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	count := flag.Int("count", 0, "number of chart tracks to ingest (0 uses the configured default)")
	workers := flag.Int("workers", 0, "worker pool size (0 uses the configured default)")
	resume := flag.Bool("resume", false, "skip tracks already recorded in the checkpoint store")
	reset := flag.Bool("reset", false, "clear the checkpoint store and the index before ingesting")
	flag.Parse()

	logger := logging.NewTextLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if *count > 0 {
		cfg.Ingest.DefaultCount = *count
	}
	if *workers > 0 {
		cfg.Ingest.Workers = *workers
	}
	if *resume && *reset {
		logger.Error("--resume and --reset are mutually exclusive")
		os.Exit(2)
	}

	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	if err := db.MigrateUp(database.DB); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	checkpoints := checkpoint.NewStore(database)

	idx := index.NewFlat(cfg.Embed.Dim)
	if cfg.Snapshot.Enabled && !*reset {
		if err := idx.LoadSnapshot(cfg.Snapshot.Path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("failed to load index snapshot, starting empty",
					slog.String("path", cfg.Snapshot.Path),
					slog.Any("error", err))
			}
		} else {
			logger.Info("index snapshot loaded",
				slog.String("path", cfg.Snapshot.Path),
				slog.Int("tracks", idx.Count()))
		}
	}

	var pipe *ingest.Pipeline
	catalogClient := catalog.New(catalog.Config{
		BaseURL:    cfg.Catalog.BaseURL,
		Timeout:    cfg.Catalog.Timeout,
		RateLimit:  cfg.Catalog.RateLimit,
		RateWindow: cfg.Catalog.RateWindow,
		OnRetry: func(attempt int, err error) {
			if pipe != nil {
				pipe.NoteRetry(attempt, err)
			}
		},
	})

	embedCfg := embedder.DefaultConfig(cfg.Embed.BaseURL)
	embedCfg.Timeout = cfg.Embed.Timeout
	embedClient := embedder.New(embedCfg)

	contract, err := embed.NewContract(embedClient, embed.Config{
		SampleRate: cfg.Embed.SampleRate,
		Window:     time.Duration(cfg.Embed.WindowSec) * time.Second,
		Dim:        cfg.Embed.Dim,
	})
	if err != nil {
		logger.Error("failed to create embedding contract", slog.Any("error", err))
		os.Exit(1)
	}

	pipe = ingest.NewPipeline(catalogClient, contract, idx, checkpoints, cfg.Ingest.Workers)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Ingest.Timeout)
	defer cancel()

	// Ctrl-C requests a cooperative stop; progress so far stays
	// checkpointed and a second signal kills the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("stop requested, finishing in-flight tracks")
		pipe.Stop()
		signal.Stop(sigCh)
	}()

	logger.Info("ingestion starting",
		slog.Int("target", cfg.Ingest.DefaultCount),
		slog.Int("workers", cfg.Ingest.Workers),
		slog.Bool("resume", *resume),
		slog.Bool("reset", *reset))

	stats, err := pipe.Run(ctx, ingest.Options{
		TargetCount: cfg.Ingest.DefaultCount,
		Resume:      *resume,
		Reset:       *reset,
	})
	if err != nil {
		logger.Error("ingestion failed", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Snapshot.Enabled {
		if err := idx.SaveSnapshot(cfg.Snapshot.Path); err != nil {
			logger.Error("failed to save index snapshot",
				slog.String("path", cfg.Snapshot.Path),
				slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("index snapshot saved", slog.String("path", cfg.Snapshot.Path))
	}

	logger.Info("ingestion completed",
		slog.Int("target", stats.Target),
		slog.Int64("succeeded", stats.Succeeded),
		slog.Int64("skipped", stats.SkippedAlreadyIndexed),
		slog.Int64("failed_permanent", stats.FailedPermanent),
		slog.Int64("transient_retries", stats.TransientRetries),
		slog.Int("indexed_total", idx.Count()),
		slog.Duration("duration", stats.Duration),
	)
}
