// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or /etc/deepen/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, model, embedder for the generation and retrieval layers
//   - Storage: PostgreSQL connection (see storage.go)
//   - Server: HTTP listen address and request timeouts
//   - Tracing: OTLP trace export (optional)
//
// Security: sensitive values (passwords, API keys) are never logged.
// Validation: range checks live in validation.go with sentinel errors so
// callers can use errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRetrievalLimit indicates the retrieval limit is out of range.
	ErrInvalidRetrievalLimit = errors.New("invalid retrieval limit")

	// ErrInvalidChatTimeout indicates the chat timeout is out of range.
	ErrInvalidChatTimeout = errors.New("invalid chat timeout")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// Output is truncated to 768 dimensions to match the pgvector schema;
	// see knowledge.VectorDimension.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultRetrievalLimit is the default fragment count requested from
	// the retrieval layer per aggregation.
	DefaultRetrievalLimit = 20

	// MaxRetrievalLimit bounds the per-request fragment count.
	MaxRetrievalLimit = 100

	// DefaultChatTimeout is the default deadline for non-streaming chat
	// requests.
	DefaultChatTimeout = 60 * time.Second
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider"`
	ModelName     string `mapstructure:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host"`

	// HTTP server configuration
	ListenAddr string `mapstructure:"listen_addr"`

	// Context aggregation configuration
	RetrievalLimit int           `mapstructure:"retrieval_limit"`
	ChatTimeout    time.Duration `mapstructure:"chat_timeout"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Tracing configuration (see tracing.go)
	Tracing TracingConfig `mapstructure:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/deepen")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes priority over individual postgres_* settings.
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
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Server defaults
	viper.SetDefault("listen_addr", "127.0.0.1:3500")

	// Aggregation defaults
	viper.SetDefault("retrieval_limit", DefaultRetrievalLimit)
	viper.SetDefault("chat_timeout", DefaultChatTimeout)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "deepen")
	viper.SetDefault("postgres_password", "deepen_dev_password")
	viper.SetDefault("postgres_db_name", "deepen")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.service_name", "deepen-backend")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// API keys for the AI providers (GEMINI_API_KEY, OPENAI_API_KEY) are read
// directly by Genkit, not via Viper; Validate() only checks provider names.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "DEEPEN_PROVIDER")
	mustBind("model_name", "DEEPEN_MODEL_NAME")
	mustBind("embedder_model", "DEEPEN_EMBEDDER_MODEL")
	mustBind("ollama_host", "DEEPEN_OLLAMA_HOST")
	mustBind("listen_addr", "DEEPEN_LISTEN_ADDR")
	mustBind("tracing.enabled", "DEEPEN_TRACING_ENABLED")
	mustBind("tracing.endpoint", "DEEPEN_TRACING_ENDPOINT")
}

// TracingConfig holds OTLP trace export settings.
// Traces are exported via OTLP HTTP to a local collector which handles
// authentication, buffering, and forwarding.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}
