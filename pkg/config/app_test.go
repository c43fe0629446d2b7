package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.0, cfg.Timing.Scale)
	assert.Equal(t, time.Second, cfg.Timing.SettleDelay)
}

func TestLoadApp(t *testing.T) {
	path := createTempFile(t, "playground.yaml", `
server:
  api_addr: ":9000"
timing:
  scale: 0.1
  settle_delay: 50ms
observability:
  log_level: debug
`)
	t.Setenv("PLAYGROUND_SCHEDULER_WORKERS", "8")
	t.Setenv("PLAYGROUND_OBSERVABILITY_LOG_FORMAT", "text")

	cfg, err := LoadApp(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.APIAddr)
	assert.Equal(t, ":8081", cfg.Server.WSAddr, "defaults survive partial files")
	assert.Equal(t, 0.1, cfg.Timing.Scale)
	assert.Equal(t, 50*time.Millisecond, cfg.Timing.SettleDelay)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "text", cfg.Observability.LogFormat)
}

func TestLoadApp_ConfigPathEnv(t *testing.T) {
	path := createTempFile(t, "playground.json", `{"api": {"jwt_secret": "s3cret"}}`)
	t.Setenv(EnvConfigPath, path)

	cfg, err := LoadApp("")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.API.JWTSecret)
}

func TestLoadApp_NoFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := LoadApp("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestAppConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"no workers", func(c *AppConfig) { c.Scheduler.Workers = 0 }},
		{"zero scale", func(c *AppConfig) { c.Timing.Scale = 0 }},
		{"bad level", func(c *AppConfig) { c.Observability.LogLevel = "trace" }},
		{"bad exporter", func(c *AppConfig) { c.Observability.TracingExporter = "jaeger" }},
		{"zipkin without endpoint", func(c *AppConfig) { c.Observability.TracingExporter = "zipkin" }},
		{"sample rate", func(c *AppConfig) { c.Observability.SampleRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
