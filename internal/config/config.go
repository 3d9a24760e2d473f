// Package config provides configuration loading for tenantrag.
//
// Configuration is assembled from three layers, highest precedence first:
// environment variables (TENANTRAG_ prefix), an optional YAML file, and the
// defaults returned by Default.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete tenantrag configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	TenantStore TenantStoreConfig `koanf:"tenantstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Indexer     IndexerConfig     `koanf:"indexer"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string            `koanf:"level"`
	Format string            `koanf:"format"`
	Fields map[string]string `koanf:"fields"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc or http/protobuf
	ServiceName string  `koanf:"service_name"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// TenantStoreConfig selects where tenant records are persisted.
type TenantStoreConfig struct {
	Provider      string `koanf:"provider"` // memory, postgres, redis, sqlite
	PostgresDSN   Secret `koanf:"postgres_dsn"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword Secret `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	SQLitePath    string `koanf:"sqlite_path"`
}

// EmbeddingsConfig configures the embedding provider and the gateway around it.
type EmbeddingsConfig struct {
	Provider  string   `koanf:"provider"` // tei, openai, ollama, fastembed
	BaseURL   string   `koanf:"base_url"`
	Model     string   `koanf:"model"`
	APIKey    Secret   `koanf:"api_key"`
	Dimension int      `koanf:"dimension"`
	CacheDir  string   `koanf:"cache_dir"`
	Timeout   Duration `koanf:"timeout"`

	// MaxAttempts of 1 disables retries.
	MaxAttempts  int      `koanf:"max_attempts"`
	RetryBackoff Duration `koanf:"retry_backoff"`

	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// VectorStoreConfig selects the shared vector index backend.
type VectorStoreConfig struct {
	Provider   string         `koanf:"provider"` // qdrant, pgvector, chromem, memory
	Collection string         `koanf:"collection"`
	Qdrant     QdrantConfig   `koanf:"qdrant"`
	Pgvector   PgvectorConfig `koanf:"pgvector"`
	Chromem    ChromemConfig  `koanf:"chromem"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	UseTLS         bool     `koanf:"use_tls"`
	APIKey         Secret   `koanf:"api_key"`
	RequestTimeout Duration `koanf:"request_timeout"`
}

// PgvectorConfig holds PostgreSQL + pgvector settings.
type PgvectorConfig struct {
	DSN   Secret `koanf:"dsn"`
	Table string `koanf:"table"`
}

// ChromemConfig holds embedded chromem-go settings.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// RetrievalConfig tunes the hybrid retrieval engine.
type RetrievalConfig struct {
	ScoreThreshold      float64            `koanf:"score_threshold"`
	ApproxThreshold     float64            `koanf:"approx_threshold"`
	CandidateMultiplier int                `koanf:"candidate_multiplier"`
	DefaultLimit        int                `koanf:"default_limit"`
	MaxLimit            int                `koanf:"max_limit"`
	ScanBatchSize       int                `koanf:"scan_batch_size"`
	MaxScanPoints       int                `koanf:"max_scan_points"`
	Timeout             Duration           `koanf:"timeout"`
	Boosts              map[string]float64 `koanf:"boosts"`
}

// IndexerConfig tunes chunk indexing.
type IndexerConfig struct {
	UpsertBatchSize   int `koanf:"upsert_batch_size"`
	MaxEmbeddingChars int `koanf:"max_embedding_chars"`
}

// Default returns a configuration that runs entirely in-process.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8088,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			ServiceName: "tenantrag",
			Insecure:    true,
			SampleRate:  1.0,
		},
		TenantStore: TenantStoreConfig{
			Provider:   "memory",
			RedisAddr:  "localhost:6379",
			SQLitePath: "tenantrag.db",
		},
		Embeddings: EmbeddingsConfig{
			Provider:     "tei",
			BaseURL:      "http://localhost:8080",
			Model:        "BAAI/bge-small-en-v1.5",
			Dimension:    384,
			Timeout:      Duration(30 * time.Second),
			MaxAttempts:  1,
			RetryBackoff: Duration(200 * time.Millisecond),
		},
		VectorStore: VectorStoreConfig{
			Provider:   "qdrant",
			Collection: "tenant_chunks",
			Qdrant: QdrantConfig{
				Host:           "localhost",
				Port:           6334,
				RequestTimeout: Duration(30 * time.Second),
			},
			Pgvector: PgvectorConfig{
				Table: "tenant_chunks",
			},
			Chromem: ChromemConfig{
				Path:     "data/chromem",
				Compress: true,
			},
		},
		Retrieval: RetrievalConfig{
			ScoreThreshold:      0.7,
			ApproxThreshold:     0.3,
			CandidateMultiplier: 2,
			DefaultLimit:        10,
			MaxLimit:            100,
			ScanBatchSize:       500,
			MaxScanPoints:       50000,
			Timeout:             Duration(30 * time.Second),
			Boosts: map[string]float64{
				"extracted_product": 1.3,
				"extracted_service": 1.3,
				"product":           1.2,
				"service":           1.2,
				"company_info":      1.1,
			},
		},
		Indexer: IndexerConfig{
			UpsertBatchSize:   64,
			MaxEmbeddingChars: 8000,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	switch c.TenantStore.Provider {
	case "memory":
	case "postgres":
		if !c.TenantStore.PostgresDSN.IsSet() {
			errs = append(errs, errors.New("tenantstore.postgres_dsn is required for postgres provider"))
		}
	case "redis":
		if c.TenantStore.RedisAddr == "" {
			errs = append(errs, errors.New("tenantstore.redis_addr is required for redis provider"))
		}
	case "sqlite":
		if c.TenantStore.SQLitePath == "" {
			errs = append(errs, errors.New("tenantstore.sqlite_path is required for sqlite provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tenantstore.provider %q", c.TenantStore.Provider))
	}

	switch c.Embeddings.Provider {
	case "tei", "openai", "ollama", "fastembed":
	default:
		errs = append(errs, fmt.Errorf("unknown embeddings.provider %q", c.Embeddings.Provider))
	}
	if c.Embeddings.Dimension <= 0 {
		errs = append(errs, errors.New("embeddings.dimension must be positive"))
	}
	if c.Embeddings.MaxAttempts < 1 {
		errs = append(errs, errors.New("embeddings.max_attempts must be >= 1"))
	}
	if c.Embeddings.RateLimit < 0 {
		errs = append(errs, errors.New("embeddings.rate_limit cannot be negative"))
	}

	switch c.VectorStore.Provider {
	case "qdrant", "chromem", "memory":
	case "pgvector":
		if !c.VectorStore.Pgvector.DSN.IsSet() {
			errs = append(errs, errors.New("vectorstore.pgvector.dsn is required for pgvector provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vectorstore.provider %q", c.VectorStore.Provider))
	}
	if strings.TrimSpace(c.VectorStore.Collection) == "" {
		errs = append(errs, errors.New("vectorstore.collection is required"))
	}

	r := c.Retrieval
	if r.ScoreThreshold < 0 || r.ScoreThreshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval.score_threshold must be in [0,1], got %v", r.ScoreThreshold))
	}
	if r.ApproxThreshold < 0 || r.ApproxThreshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval.approx_threshold must be in [0,1], got %v", r.ApproxThreshold))
	}
	if r.CandidateMultiplier < 1 {
		errs = append(errs, errors.New("retrieval.candidate_multiplier must be >= 1"))
	}
	if r.DefaultLimit < 1 || r.MaxLimit < r.DefaultLimit {
		errs = append(errs, fmt.Errorf("retrieval limits invalid: default=%d max=%d", r.DefaultLimit, r.MaxLimit))
	}
	if r.ScanBatchSize < 1 {
		errs = append(errs, errors.New("retrieval.scan_batch_size must be positive"))
	}
	if r.MaxScanPoints < r.ScanBatchSize {
		errs = append(errs, errors.New("retrieval.max_scan_points must be >= scan_batch_size"))
	}
	for ct, boost := range r.Boosts {
		if boost <= 0 {
			errs = append(errs, fmt.Errorf("retrieval.boosts.%s must be positive, got %v", ct, boost))
		}
	}

	if c.Indexer.UpsertBatchSize < 1 {
		errs = append(errs, errors.New("indexer.upsert_batch_size must be positive"))
	}
	if c.Indexer.MaxEmbeddingChars < 1 {
		errs = append(errs, errors.New("indexer.max_embedding_chars must be positive"))
	}

	return errors.Join(errs...)
}
