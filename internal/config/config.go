// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.loupe/config.yaml or ./config.yaml)
//  3. Default values
//
// Main categories:
//   - LLM: Anthropic model, max tokens, temperature, system prompts
//   - Embedding: text and image embedder models
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: per-modality similarity thresholds and limits (see retrieval.go)
//   - Tracing: OTLP export to a local collector
//
// Validation is fail-fast: Load returns an error for out-of-range values so
// misconfiguration is caught at startup, not mid-pipeline.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the LLM model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates an embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidThreshold indicates a similarity threshold is outside [0,1].
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidLimit indicates a retrieval limit is not positive.
	ErrInvalidLimit = errors.New("invalid retrieval limit")
)

const (
	// DefaultModel is the default Anthropic model for both pipeline stages.
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultEmbedderModel is the default text embedder (Gemini).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultInitialSystemPrompt steers the tool-selection call.
	DefaultInitialSystemPrompt = "Identify the best tool(s) to answer the user's query based on " +
		"the available data sources (documents, images, video transcripts)."

	// DefaultFinalSystemPrompt steers the answer-generation call.
	DefaultFinalSystemPrompt = "Based on the provided context and the user's query, provide a clear " +
		"and helpful answer. Cite specific sources when possible."

	// DefaultUserID is the single-user/local-mode user identifier.
	DefaultUserID = "local_user"

	// DefaultConversationID groups turns when the caller supplies none.
	DefaultConversationID = "default"
)

// Config stores application configuration.
type Config struct {
	// LLM configuration
	Model               string  `mapstructure:"model" json:"model"`
	MaxTokens           int     `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature         float64 `mapstructure:"temperature" json:"temperature"`
	InitialSystemPrompt string  `mapstructure:"initial_system_prompt" json:"initial_system_prompt"`
	FinalSystemPrompt   string  `mapstructure:"final_system_prompt" json:"final_system_prompt"`

	// Embedding configuration. The text embedder backs document chunks,
	// transcript sentences, and chat history; the image embedder backs
	// images and video keyframes. Both sit behind the same index interface.
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	ImageEmbedderModel string `mapstructure:"image_embedder_model" json:"image_embedder_model"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Retrieval policy (see retrieval.go)
	Retrieval RetrievalConfig `mapstructure:"retrieval" json:"retrieval"`

	// Web search tool configuration
	WebSearchMaxResults int `mapstructure:"web_search_max_results" json:"web_search_max_results"`

	// Tracing configuration (optional; empty host disables export)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// TracingConfig configures OTLP trace export to a local collector.
type TracingConfig struct {
	CollectorHost string `mapstructure:"collector_host" json:"collector_host"`
	ServiceName   string `mapstructure:"service_name" json:"service_name"`
	Environment   string `mapstructure:"environment" json:"environment"`
	Enabled       bool   `mapstructure:"enabled" json:"enabled"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".loupe")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// LLM defaults
	viper.SetDefault("model", DefaultModel)
	viper.SetDefault("max_tokens", 1024)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("initial_system_prompt", DefaultInitialSystemPrompt)
	viper.SetDefault("final_system_prompt", DefaultFinalSystemPrompt)

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("image_embedder_model", DefaultEmbedderModel)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "loupe")
	viper.SetDefault("postgres_password", "loupe_dev_password")
	viper.SetDefault("postgres_db_name", "loupe")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Retrieval policy defaults (see retrieval.go)
	setRetrievalDefaults()

	// Web search defaults
	viper.SetDefault("web_search_max_results", 5)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_host", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "loupe")
}

// bindEnvVariables binds environment overrides explicitly.
//
// API keys are not bound here: ANTHROPIC_API_KEY is read by the Anthropic SDK
// and GEMINI_API_KEY by the Genkit googlegenai plugin.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model", "LOUPE_MODEL")
	mustBind("max_tokens", "LOUPE_MAX_TOKENS")
	mustBind("temperature", "LOUPE_TEMPERATURE")
	mustBind("embedder_model", "LOUPE_EMBEDDER_MODEL")
	mustBind("image_embedder_model", "LOUPE_IMAGE_EMBEDDER_MODEL")
	mustBind("tracing.enabled", "LOUPE_TRACING_ENABLED")
	mustBind("tracing.collector_host", "LOUPE_TRACING_COLLECTOR")
}
