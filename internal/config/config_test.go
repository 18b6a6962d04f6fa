package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, []string{"en", "de", "es", "dk", "fr", "pt", "it"}, cfg.Search.Languages)
	assert.True(t, cfg.Search.ExcludeIfLanguageMissing)
	assert.False(t, cfg.Search.IsConfigured())
	assert.False(t, cfg.Otel.Enabled())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestNewConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "kosdb")
	t.Setenv("KOS_AUTH_TOKEN", "secret")
	t.Setenv("WEAVIATE_URL", "http://weaviate:8080")
	t.Setenv("SEARCH_LANGUAGES", "en,fr")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel:4318")

	cfg, err := NewConfig(slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.ServerPort)
	assert.Equal(t, "postgres://u:p@db:5432/kosdb?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "secret", cfg.KOS.AuthToken)
	assert.True(t, cfg.Search.IsConfigured())
	assert.Equal(t, []string{"en", "fr"}, cfg.Search.Languages)
	assert.True(t, cfg.Otel.Enabled())
}

func TestNewConfig_InvalidValue(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := NewConfig(slog.Default())
	assert.Error(t, err)
}
