// Package config loads the CLI harness's JSON configuration: the
// provider groups handed to providers.NewFromConfig plus engine-level
// tuning knobs.
package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

// Config maps directly to the config.json file.
type Config struct {
	// LLM holds the provider-group configuration in raw JSON, consumed
	// by providers.NewFromConfig.
	LLM jsoniter.RawMessage `json:"llm"`
	// SystemPrompt is sent as the initial system message of every
	// conversation the CLI starts.
	SystemPrompt string `json:"system_prompt"`
}

// Validate ensures the configuration contains all mandatory fields.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return fmt.Errorf("mandatory 'llm' configuration is missing or empty")
	}
	return nil
}

// SystemConfig defines engine-level technical parameters, usually
// stored in system.json.
type SystemConfig struct {
	// MaxRetries is the number of times a transient LLM or network
	// error is retried before giving up.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the wait between consecutive retry attempts.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs is the hard cutoff for one LLM request; the context
	// is cancelled when exceeded.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// ShowThinking streams reasoning blocks to the terminal as they
	// arrive instead of suppressing them.
	ShowThinking bool `json:"show_thinking"`
	// DebugChunks saves every raw provider chunk under debug/ for
	// inspection.
	DebugChunks bool `json:"debug_chunks"`
	// LogLevel sets the minimum severity for log output: "debug",
	// "info", "warn", "error".
	LogLevel string `json:"log_level"`
	// CacheEnabled attaches an in-memory generation cache to the model.
	CacheEnabled bool `json:"cache_enabled"`
	// RateLimitTPM caps estimated tokens per minute; 0 disables the
	// limiter.
	RateLimitTPM float64 `json:"rate_limit_tpm"`
	// HistoryStorage is the directory session histories persist under;
	// empty keeps them in memory only.
	HistoryStorage string `json:"history_storage"`
}

// DefaultSystemConfig returns a SystemConfig initialized with safe defaults.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:   3,
		RetryDelayMs: 500,
		LLMTimeoutMs: 600000,
		ShowThinking: true,
		LogLevel:     "info",
	}
}

// Load reads and parses config.json and system.json from the working
// directory.
func Load() (*Config, *SystemConfig, error) {
	appPath := "config.json"
	if _, err := os.Stat(appPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config file '%s' not found. please create one", appPath)
	}

	appFile, err := os.ReadFile(appPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, LoadSystemConfig("system.json"), nil
}

// LoadSystemConfig attempts to load system settings, returning
// defaults if the file is missing or malformed.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg); err != nil {
		return cfg
	}

	return cfg
}
