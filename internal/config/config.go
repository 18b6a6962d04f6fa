package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"8000"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Database DatabaseConfig

	KOS KOSConfig

	Search SearchConfig

	Otel OtelConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"kos"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"kos"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
	// SlowQuery is the duration above which a query is logged at warn
	SlowQuery time.Duration `env:"DB_SLOW_QUERY" envDefault:"3s"`
	// AutoMigrate applies pending goose migrations on startup
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// KOSConfig holds settings of the KOS API surface
type KOSConfig struct {
	// AuthToken guards every mutating route (X-KOS-Auth-Token header)
	AuthToken string `env:"KOS_AUTH_TOKEN" envDefault:""`

	// BaseURL is the public base URL; IRIs under it resolve through the catch-all route
	BaseURL string `env:"KOS_BASE_URL" envDefault:"http://localhost:8000"`

	// MutationRate and MutationBurst bound writes per second across the API (0 disables)
	MutationRate  float64 `env:"KOS_MUTATION_RATE" envDefault:"0"`
	MutationBurst int     `env:"KOS_MUTATION_BURST" envDefault:"20"`
}

// SearchConfig holds Weaviate search index settings
type SearchConfig struct {
	URL       string   `env:"WEAVIATE_URL" envDefault:""`
	APIKey    string   `env:"WEAVIATE_API_KEY" envDefault:""`
	Languages []string `env:"SEARCH_LANGUAGES" envSeparator:"," envDefault:"en,de,es,dk,fr,pt,it"`

	// Vectorizer is the Weaviate module that embeds concepts for semantic search
	Vectorizer string `env:"SEARCH_VECTORIZER" envDefault:"text2vec-transformers"`

	// ExcludeIfLanguageMissing skips indexing a concept in languages without a prefLabel
	ExcludeIfLanguageMissing bool `env:"SEARCH_EXCLUDE_IF_LANGUAGE_MISSING" envDefault:"true"`

	// ReindexSchedule is a cron spec (with seconds) for full reindexing; empty disables
	ReindexSchedule string `env:"SEARCH_REINDEX_SCHEDULE" envDefault:""`

	// WriteRate bounds index writes per second during reindexing
	WriteRate float64 `env:"SEARCH_WRITE_RATE" envDefault:"50"`

	Timeout time.Duration `env:"SEARCH_TIMEOUT" envDefault:"10s"`
}

// IsConfigured returns true if a search backend URL is set
func (s *SearchConfig) IsConfigured() bool {
	return strings.TrimSpace(s.URL) != ""
}

// OtelConfig holds OpenTelemetry exporter settings
type OtelConfig struct {
	ExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"emergent-kos"`
	SamplingRate     float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
}

// Enabled returns true if an OTLP endpoint is configured
func (o *OtelConfig) Enabled() bool {
	return o.ExporterEndpoint != ""
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.KOS.AuthToken == "" {
		log.Warn("KOS_AUTH_TOKEN not set; all mutating requests will be rejected")
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.Bool("search_configured", cfg.Search.IsConfigured()),
		slog.Any("search_languages", cfg.Search.Languages),
	)

	return cfg, nil
}
