package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"tunescout/internal/config"
	"tunescout/internal/index"
	"tunescout/internal/infra/catalog"
	"tunescout/internal/infra/checkpoint"
	"tunescout/internal/infra/db"
	"tunescout/internal/infra/embedder"
	"tunescout/internal/infra/summarizer"
	"tunescout/internal/infra/transcriber"
	"tunescout/internal/observability/logging"
	"tunescout/internal/observability/slo"
	"tunescout/internal/observability/tracing"
	"tunescout/internal/usecase/embed"
	"tunescout/internal/usecase/identify"
	"tunescout/internal/usecase/ingest"
	"tunescout/internal/usecase/recommend"

	hhttp "tunescout/internal/handler/http"
	hadmin "tunescout/internal/handler/http/admin"
	"tunescout/internal/handler/http/requestid"
	htrack "tunescout/internal/handler/http/track"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	version := getVersion()
	components := setupServer(logger, cfg, database, version)

	runServer(logger, cfg, components, version)
}

// initDatabase opens the checkpoint database and runs migrations.
func initDatabase(logger *slog.Logger) *sqlx.DB {
	database := db.Open()
	if err := db.MigrateUp(database.DB); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler  http.Handler
	Index    *index.Flat
	Pipeline *ingest.Pipeline
	SLO      *slo.Tracker
}

// setupServer wires the domain components and returns the HTTP handler
// with all routes and middleware applied.
func setupServer(logger *slog.Logger, cfg *config.AppConfig, database *sqlx.DB, version string) *ServerComponents {
	checkpoints := checkpoint.NewStore(database)

	idx := index.NewFlat(cfg.Embed.Dim)
	if cfg.Snapshot.Enabled {
		if err := idx.LoadSnapshot(cfg.Snapshot.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Info("no index snapshot found, starting empty",
					slog.String("path", cfg.Snapshot.Path))
			} else {
				// 壊れたスナップショットは無視して空から始める
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

	// The catalog client is constructed before the pipeline, so retry
	// notifications go through a pointer that is filled in just below.
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

	engine := recommend.NewEngine(idx, cfg.Rerank.TieBand)
	recSvc := recommend.NewService(catalogClient, contract, engine)

	orchestrator := identify.NewOrchestrator(
		buildTranscriber(logger),
		contract,
		idx,
		engine,
		buildSummarizer(logger),
		cfg.Identify.ConfidenceThreshold,
	)

	pipe = ingest.NewPipeline(catalogClient, contract, idx, checkpoints, cfg.Ingest.Workers)

	sloTracker := slo.NewTracker()

	mux := setupRoutes(cfg, database, version, idx, embedClient, checkpoints, catalogClient, recSvc, orchestrator, pipe)
	handler := applyMiddleware(logger, cfg, mux, sloTracker)

	return &ServerComponents{
		Handler:  handler,
		Index:    idx,
		Pipeline: pipe,
		SLO:      sloTracker,
	}
}

// buildTranscriber selects the voice transcription backend. Without an
// OpenAI key the stage is skipped entirely, which degrades identification
// to embedding-only matching.
func buildTranscriber(logger *slog.Logger) identify.Transcriber {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Info("OPENAI_API_KEY not set, transcription stage disabled")
		return nil
	}
	logger.Info("Whisper transcription enabled")
	return transcriber.NewWhisper(apiKey)
}

// buildSummarizer selects the track blurb backend. Without an Anthropic
// key a no-op summarizer keeps the response shape stable.
func buildSummarizer(logger *slog.Logger) identify.Summarizer {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		logger.Info("ANTHROPIC_API_KEY not set, summaries disabled")
		return summarizer.NewNoOp()
	}
	logger.Info("Claude summaries enabled")
	return summarizer.NewClaude(apiKey)
}

// setupRoutes registers all HTTP routes.
func setupRoutes(
	cfg *config.AppConfig,
	database *sqlx.DB,
	version string,
	idx *index.Flat,
	embedClient *embedder.HTTPClient,
	checkpoints *checkpoint.Store,
	catalogClient *catalog.Client,
	recSvc *recommend.Service,
	orchestrator *identify.Orchestrator,
	pipe *ingest.Pipeline,
) *http.ServeMux {
	mux := http.NewServeMux()

	htrack.Register(mux, catalogClient, recSvc, orchestrator)
	hadmin.Register(mux, pipe, idx, checkpoints, hadmin.IngestConfig{
		DefaultCount: cfg.Ingest.DefaultCount,
		Timeout:      cfg.Ingest.Timeout,
		AfterRun: func() {
			// ラン直後に永続化しないと、次の定期保存までの間に落ちた
			// 場合チェックポイントだけが残って索引と食い違う
			if cfg.Snapshot.Enabled {
				saveSnapshot(slog.Default(), cfg, idx)
			}
		},
	})

	// ヘルスチェックエンドポイント
	mux.Handle("/health", &hhttp.HealthHandler{DB: database.DB, Index: idx, Embed: embedClient, Version: version})
	mux.Handle("/ready", &hhttp.ReadyHandler{DB: database.DB})
	mux.Handle("/live", &hhttp.LiveHandler{})
	mux.Handle("/metrics", hhttp.MetricsHandler())

	return mux
}

// applyMiddleware wraps the handler with the middleware chain.
// Order (outermost first): Request ID → Recovery → Rate Limit → Logging →
// SLO → Tracing → Timeout → Body Limit → Input Validation → Metrics
func applyMiddleware(logger *slog.Logger, cfg *config.AppConfig, handler http.Handler, sloTracker *slo.Tracker) http.Handler {
	rateLimiter := hhttp.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitWindow)

	chain := handler

	// Apply in reverse order (innermost to outermost)
	chain = hhttp.MetricsMiddleware(chain)
	chain = hhttp.InputValidation()(chain)
	chain = hhttp.LimitRequestBody(cfg.Server.MaxBodyBytes)(chain)
	chain = hhttp.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = tracing.Middleware(chain)
	chain = sloTracker.Middleware(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = rateLimiter.Limit(chain)
	chain = hhttp.Recover(logger)(chain)
	chain = requestid.Middleware(chain)

	return chain
}

// runServer starts the HTTP server and handles graceful shutdown.
// When snapshots are enabled the index is persisted periodically and once
// more on shutdown.
func runServer(logger *slog.Logger, cfg *config.AppConfig, components *ServerComponents, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Snapshot.Enabled {
		go runSnapshotLoop(ctx, logger, cfg, components.Index)
	}
	go components.SLO.Run(ctx, time.Minute)

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version),
			slog.Int("index_tracks", components.Index.Count()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Stop a running ingestion cooperatively before the server closes
	components.Pipeline.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}

	if cfg.Snapshot.Enabled {
		saveSnapshot(logger, cfg, components.Index)
	}
	logger.Info("server stopped")
}

// runSnapshotLoop persists the index at the configured interval until the
// context is cancelled.
func runSnapshotLoop(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig, idx *index.Flat) {
	ticker := time.NewTicker(cfg.Snapshot.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveSnapshot(logger, cfg, idx)
		}
	}
}

func saveSnapshot(logger *slog.Logger, cfg *config.AppConfig, idx *index.Flat) {
	if err := idx.SaveSnapshot(cfg.Snapshot.Path); err != nil {
		logger.Error("failed to save index snapshot",
			slog.String("path", cfg.Snapshot.Path),
			slog.Any("error", err))
		return
	}
	logger.Info("index snapshot saved",
		slog.String("path", cfg.Snapshot.Path),
		slog.Int("tracks", idx.Count()))
}
