package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"tunescout/internal/config"
	"tunescout/internal/handler/http/respond"
	"tunescout/internal/index"
	"tunescout/internal/infra/catalog"
	"tunescout/internal/infra/checkpoint"
	"tunescout/internal/infra/db"
	"tunescout/internal/infra/embedder"
	workerPkg "tunescout/internal/infra/worker"
	"tunescout/internal/observability/logging"
	"tunescout/internal/usecase/embed"
	"tunescout/internal/usecase/ingest"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	appConfig, err := config.Load("")
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
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

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics(prometheus.DefaultRegisterer)
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("refresh_schedule", workerConfig.RefreshSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("ingest_workers", workerConfig.IngestWorkers),
		slog.Int("ingest_count", workerConfig.IngestCount),
		slog.Duration("ingest_timeout", workerConfig.IngestTimeout))

	// Metrics, liveness and readiness on one port
	ops := startOpsServer(ctx, logger)

	pipe, idx := setupPipeline(logger, appConfig, database)

	startCronWorker(logger, appConfig, pipe, idx, workerConfig, workerMetrics, ops)
}

// setupPipeline wires the ingestion pipeline from the application
// configuration. The worker runs the same pipeline as the API binary, but
// against its own index instance: its job is keeping the on-disk snapshot
// fresh for the next API start and the checkpoint store current.
func setupPipeline(logger *slog.Logger, cfg *config.AppConfig, database *sqlx.DB) (*ingest.Pipeline, *index.Flat) {
	checkpoints := checkpoint.NewStore(database)

	// Resumed runs only ingest chart churn, so the existing snapshot must
	// be loaded first or the refreshed snapshot would lose the rest.
	idx := index.NewFlat(cfg.Embed.Dim)
	if cfg.Snapshot.Enabled {
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
	catalogCfg := catalog.Config{
		BaseURL:    cfg.Catalog.BaseURL,
		Timeout:    cfg.Catalog.Timeout,
		RateLimit:  cfg.Catalog.RateLimit,
		RateWindow: cfg.Catalog.RateWindow,
		OnRetry: func(attempt int, err error) {
			if pipe != nil {
				pipe.NoteRetry(attempt, err)
			}
		},
	}
	catalogClient := catalog.New(catalogCfg)

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
	return pipe, idx
}

// startCronWorker starts the cron scheduler and runs the re-ingestion job
// on the configured schedule.
func startCronWorker(logger *slog.Logger, appConfig *config.AppConfig, pipe *ingest.Pipeline, idx *index.Flat, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, ops *opsServer) {
	// Load timezone
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.RefreshSchedule, func() {
		runRefreshJob(logger, appConfig, pipe, idx, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	// Mark as ready after cron is set up
	ops.SetReady(true)

	logger.Info("worker started", slog.String("schedule", cfg.RefreshSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

// runRefreshJob executes a single scheduled re-ingestion with timeout and
// error handling. Resume skips tracks already recorded in the checkpoint
// store, so a daily run only pays for chart churn.
func runRefreshJob(logger *slog.Logger, appConfig *config.AppConfig, pipe *ingest.Pipeline, idx *index.Flat, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")
	logger.Info("scheduled ingestion started", slog.Int("target", cfg.IngestCount))

	// 取り込み処理のタイムアウト（設定から取得）
	ctx, cancel := context.WithTimeout(context.Background(), cfg.IngestTimeout)
	defer cancel()

	stats, err := pipe.Run(ctx, ingest.Options{
		TargetCount: cfg.IngestCount,
		Resume:      true,
	})
	if err != nil {
		// 機密情報をマスクしてログ出力
		logger.Error("scheduled ingestion failed", slog.String("error", respond.SanitizeError(err)))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		return
	}

	// Record metrics
	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordTracksIndexed(int(stats.Succeeded))
	metrics.RecordLastSuccess()

	// Persist the refreshed index for the next API start
	if appConfig.Snapshot.Enabled {
		if err := idx.SaveSnapshot(appConfig.Snapshot.Path); err != nil {
			logger.Error("failed to save index snapshot", slog.Any("error", err))
		}
	}

	logger.Info("scheduled ingestion completed",
		slog.Int("target", stats.Target),
		slog.Int64("succeeded", stats.Succeeded),
		slog.Int64("skipped", stats.SkippedAlreadyIndexed),
		slog.Int64("failed_permanent", stats.FailedPermanent),
		slog.Int64("transient_retries", stats.TransientRetries),
		slog.Duration("duration", stats.Duration),
	)
}
