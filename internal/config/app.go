// Package config holds the application configuration for the API server,
// the indexer and the worker. Settings come from an optional YAML file with
// environment variable overrides, so deployments can ship a base file and
// tune individual values per environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "tunescout/pkg/config"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

// CatalogConfig holds the catalog API client settings.
type CatalogConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// EmbedConfig holds the embedding backend and contract settings.
type EmbedConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	SampleRate int           `yaml:"sample_rate"`
	WindowSec  int           `yaml:"window_sec"`
	Dim        int           `yaml:"dim"`
}

// IdentifyConfig holds voice identification settings.
type IdentifyConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	SimilarCount        int     `yaml:"similar_count"`
}

// RerankConfig holds popularity rerank settings.
type RerankConfig struct {
	TieBand float64 `yaml:"tie_band"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	Workers      int           `yaml:"workers"`
	DefaultCount int           `yaml:"default_count"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SnapshotConfig holds index snapshot persistence settings.
type SnapshotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
}

// AppConfig is the full application configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Embed    EmbedConfig    `yaml:"embed"`
	Identify IdentifyConfig `yaml:"identify"`
	Rerank   RerankConfig   `yaml:"rerank"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// Default returns the built-in configuration defaults.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    90 * time.Second,
			IdleTimeout:     120 * time.Second,
			RequestTimeout:  60 * time.Second,
			MaxBodyBytes:    12 << 20,
			RateLimit:       60,
			RateLimitWindow: time.Minute,
		},
		Catalog: CatalogConfig{
			BaseURL:    "https://api.deezer.com",
			Timeout:    15 * time.Second,
			RateLimit:  50,
			RateWindow: 5 * time.Second,
		},
		Embed: EmbedConfig{
			BaseURL:    "http://localhost:8500",
			Timeout:    60 * time.Second,
			SampleRate: 48000,
			WindowSec:  30,
			Dim:        512,
		},
		Identify: IdentifyConfig{
			ConfidenceThreshold: 0.50,
			SimilarCount:        3,
		},
		Rerank: RerankConfig{
			TieBand: 0.02,
		},
		Ingest: IngestConfig{
			Workers:      4,
			DefaultCount: 1000,
			Timeout:      2 * time.Hour,
		},
		Snapshot: SnapshotConfig{
			Enabled:  true,
			Path:     "index.snapshot",
			Interval: 15 * time.Minute,
		},
	}
}

// Load builds the application configuration. It starts from defaults,
// merges the YAML file named by CONFIG_PATH (or the path argument) when one
// exists, and finally applies environment variable overrides.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		// #nosec G304 -- path is provided by trusted source (CLI arg or env), not user input
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides layers environment variables over the current values.
func applyEnvOverrides(cfg *AppConfig) {
	cfg.Server.Port = pkgconfig.GetEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.RequestTimeout = pkgconfig.GetEnvDuration("SERVER_REQUEST_TIMEOUT", cfg.Server.RequestTimeout)
	cfg.Server.RateLimit = pkgconfig.GetEnvInt("SERVER_RATE_LIMIT", cfg.Server.RateLimit)

	cfg.Catalog.BaseURL = pkgconfig.GetEnvString("CATALOG_BASE_URL", cfg.Catalog.BaseURL)
	cfg.Catalog.RateLimit = pkgconfig.GetEnvInt("CATALOG_RATE_LIMIT", cfg.Catalog.RateLimit)
	cfg.Catalog.RateWindow = pkgconfig.GetEnvDuration("CATALOG_RATE_WINDOW", cfg.Catalog.RateWindow)

	cfg.Embed.BaseURL = pkgconfig.GetEnvString("EMBED_BASE_URL", cfg.Embed.BaseURL)
	cfg.Embed.Dim = pkgconfig.GetEnvInt("EMBED_DIM", cfg.Embed.Dim)
	cfg.Embed.SampleRate = pkgconfig.GetEnvInt("EMBED_SAMPLE_RATE", cfg.Embed.SampleRate)

	cfg.Identify.ConfidenceThreshold = pkgconfig.GetEnvFloat64("IDENTIFY_CONFIDENCE_THRESHOLD", cfg.Identify.ConfidenceThreshold)
	cfg.Identify.SimilarCount = pkgconfig.GetEnvInt("IDENTIFY_SIMILAR_COUNT", cfg.Identify.SimilarCount)

	cfg.Rerank.TieBand = pkgconfig.GetEnvFloat64("RERANK_TIE_BAND", cfg.Rerank.TieBand)

	cfg.Ingest.Workers = pkgconfig.GetEnvInt("INGEST_WORKERS", cfg.Ingest.Workers)
	cfg.Ingest.DefaultCount = pkgconfig.GetEnvInt("INGEST_DEFAULT_COUNT", cfg.Ingest.DefaultCount)
	cfg.Ingest.Timeout = pkgconfig.GetEnvDuration("INGEST_TIMEOUT", cfg.Ingest.Timeout)

	cfg.Snapshot.Enabled = pkgconfig.GetEnvBool("SNAPSHOT_ENABLED", cfg.Snapshot.Enabled)
	cfg.Snapshot.Path = pkgconfig.GetEnvString("SNAPSHOT_PATH", cfg.Snapshot.Path)
	cfg.Snapshot.Interval = pkgconfig.GetEnvDuration("SNAPSHOT_INTERVAL", cfg.Snapshot.Interval)
}

// Validate checks the configuration for values the application cannot
// operate with.
func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Server.RequestTimeout); err != nil {
		return fmt.Errorf("server request timeout: %w", err)
	}
	if err := pkgconfig.ValidateNonNegativeDuration(c.Server.IdleTimeout); err != nil {
		return fmt.Errorf("server idle timeout: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Server.RateLimitWindow); err != nil {
		return fmt.Errorf("server rate limit window: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Catalog.RateWindow); err != nil {
		return fmt.Errorf("catalog rate window: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Ingest.Timeout); err != nil {
		return fmt.Errorf("ingest timeout: %w", err)
	}
	if c.Snapshot.Enabled {
		if err := pkgconfig.ValidateDurationRange(c.Snapshot.Interval, time.Minute, 24*time.Hour); err != nil {
			return fmt.Errorf("snapshot interval: %w", err)
		}
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required")
	}
	if c.Embed.BaseURL == "" {
		return fmt.Errorf("embed base URL is required")
	}
	if c.Embed.Dim <= 0 {
		return fmt.Errorf("embed dimension must be positive: %d", c.Embed.Dim)
	}
	if c.Embed.SampleRate <= 0 {
		return fmt.Errorf("embed sample rate must be positive: %d", c.Embed.SampleRate)
	}
	if c.Identify.ConfidenceThreshold <= 0 || c.Identify.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in (0,1]: %f", c.Identify.ConfidenceThreshold)
	}
	if c.Rerank.TieBand < 0 {
		return fmt.Errorf("tie band must be non-negative: %f", c.Rerank.TieBand)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest workers must be positive: %d", c.Ingest.Workers)
	}
	return nil
}
