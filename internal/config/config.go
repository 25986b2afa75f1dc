// Package config loads the service configuration from config.yaml and
// EXTRACTION_* environment variables, with defaults for everything that
// is not a credential.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Reader     ReaderConfig     `yaml:"reader" mapstructure:"reader"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Websocket  WebsocketConfig  `yaml:"websocket" mapstructure:"websocket"`
	Tasks      TasksConfig      `yaml:"tasks" mapstructure:"tasks"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ReaderConfig holds reader-proxy settings.
type ReaderConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateRPS   float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// ExtractionConfig tunes the pipeline itself.
type ExtractionConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	MaxPages       int `yaml:"max_pages" mapstructure:"max_pages"`
	PageCharLimit  int `yaml:"page_char_limit" mapstructure:"page_char_limit"`
	StartDelaySecs int `yaml:"start_delay_secs" mapstructure:"start_delay_secs"`
	PreviewLimit   int `yaml:"preview_limit" mapstructure:"preview_limit"`
}

// WebsocketConfig tunes the progress channel's liveness checks.
type WebsocketConfig struct {
	HeartbeatTimeoutSecs int `yaml:"heartbeat_timeout_secs" mapstructure:"heartbeat_timeout_secs"`
	SweepIntervalSecs    int `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
}

// TasksConfig tunes the polling facade.
type TasksConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// RetryConfig tunes outbound call retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// StartDelay returns the orchestrator grace period as a duration.
func (c ExtractionConfig) StartDelay() time.Duration {
	return time.Duration(c.StartDelaySecs) * time.Second
}

// HeartbeatTimeout returns the liveness window as a duration.
func (c WebsocketConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSecs) * time.Second
}

// SweepInterval returns the reaper period as a duration.
func (c WebsocketConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}

// PollInterval returns the SSE poll period as a duration.
func (c TasksConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// InitialBackoff returns the retry base delay as a duration.
func (c RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

// Load reads config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXTRACTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("reader.rate_rps", 2.0)
	v.SetDefault("reader.rate_burst", 4)
	v.SetDefault("extraction.max_concurrency", 2)
	v.SetDefault("extraction.max_pages", 10)
	v.SetDefault("extraction.page_char_limit", 50000)
	v.SetDefault("extraction.start_delay_secs", 2)
	v.SetDefault("extraction.preview_limit", 5)
	v.SetDefault("websocket.heartbeat_timeout_secs", 60)
	v.SetDefault("websocket.sweep_interval_secs", 15)
	v.SetDefault("tasks.poll_interval_ms", 1000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger builds the global zap logger from LogConfig.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
