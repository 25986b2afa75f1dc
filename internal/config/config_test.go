package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "https://r.jina.ai", cfg.Reader.BaseURL)
	assert.Equal(t, 2, cfg.Extraction.MaxConcurrency)
	assert.Equal(t, 10, cfg.Extraction.MaxPages)
	assert.Equal(t, 5, cfg.Extraction.PreviewLimit)
	assert.Equal(t, 60, cfg.Websocket.HeartbeatTimeoutSecs)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EXTRACTION_SERVER_PORT", "9999")
	t.Setenv("EXTRACTION_EXTRACTION_MAX_CONCURRENCY", "8")
	t.Setenv("EXTRACTION_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Extraction.MaxConcurrency)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestDurationHelpers(t *testing.T) {
	cfg := Config{
		Extraction: ExtractionConfig{StartDelaySecs: 2},
		Websocket:  WebsocketConfig{HeartbeatTimeoutSecs: 60, SweepIntervalSecs: 15},
		Tasks:      TasksConfig{PollIntervalMS: 250},
		Retry:      RetryConfig{InitialBackoffMS: 500},
	}
	assert.Equal(t, 2*time.Second, cfg.Extraction.StartDelay())
	assert.Equal(t, time.Minute, cfg.Websocket.HeartbeatTimeout())
	assert.Equal(t, 15*time.Second, cfg.Websocket.SweepInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.Tasks.PollInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialBackoff())
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "verbose", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
