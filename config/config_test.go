package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromBytesAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfigFromBytes([]byte(`
models:
  m1:
    base_url: http://localhost:9999/v1/chat
`))
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Persistence.Dialect)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, 0.20, cfg.Budget.WarningThreshold)
	require.Equal(t, "otlp", cfg.Observability.Tracing.Exporter)
	require.Equal(t, ":9090", cfg.Observability.Metrics.Listen)
	require.Equal(t, "./", cfg.Executors.File.WorkingDirectory)
}

func TestLoadConfigFromBytesExpandsEnvVars(t *testing.T) {
	t.Setenv("QUORACLE_TEST_API_KEY", "sk-from-env")

	cfg, err := LoadConfigFromBytes([]byte(`
models:
  m1:
    base_url: http://localhost:9999/v1/chat
    api_key: ${QUORACLE_TEST_API_KEY}
`))
	require.NoError(t, err)
	require.Equal(t, "sk-from-env", cfg.Models["m1"].APIKey)
}

func TestLoadConfigFromBytesExpandsDefaultSyntax(t *testing.T) {
	os.Unsetenv("QUORACLE_TEST_MISSING")
	cfg, err := LoadConfigFromBytes([]byte(`
models:
  m1:
    base_url: http://localhost:9999/v1/chat
    api_key: ${QUORACLE_TEST_MISSING:-fallback-key}
`))
	require.NoError(t, err)
	require.Equal(t, "fallback-key", cfg.Models["m1"].APIKey)
}

func TestValidateRejectsUnknownDialect(t *testing.T) {
	cfg := &Config{Persistence: PersistenceConfig{Dialect: "mongodb", DSN: "x"}}
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresDSNForNonMemoryDialect(t *testing.T) {
	cfg := &Config{Persistence: PersistenceConfig{Dialect: "sqlite"}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsProfileReferencingUnconfiguredModel(t *testing.T) {
	cfg := &Config{
		Persistence: PersistenceConfig{Dialect: "memory"},
		Profiles: map[string]ProfileConfig{
			"default": {Models: []string{"missing-model"}},
		},
	}
	cfg.SetDefaults()
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsProfileWithConfiguredModel(t *testing.T) {
	cfg := &Config{
		Persistence: PersistenceConfig{Dialect: "memory"},
		Models: map[string]ModelConfig{
			"m1": {BaseURL: "http://localhost:9999"},
		},
		Profiles: map[string]ProfileConfig{
			"default": {Models: []string{"m1"}},
		},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsNegativeBudgetDefault(t *testing.T) {
	neg := -5.0
	cfg := &Config{
		Persistence: PersistenceConfig{Dialect: "memory"},
		Budget:      BudgetConfig{DefaultLimit: &neg},
	}
	cfg.SetDefaults()
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadTracingExporter(t *testing.T) {
	cfg := &Config{
		Persistence:   PersistenceConfig{Dialect: "memory"},
		Observability: ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "jaeger"}},
	}
	require.Error(t, cfg.Validate())
}
