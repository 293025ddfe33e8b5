package config

import (
	"errors"
	"testing"
	"time"
)

// validConfig returns a configuration that passes Validate().
// Tests mutate single fields to trigger specific failures.
func validConfig() *Config {
	return &Config{
		Provider:         ProviderGemini,
		ModelName:        "gemini-2.5-flash",
		EmbedderModel:    DefaultGeminiEmbedderModel,
		OllamaHost:       "http://localhost:11434",
		ListenAddr:       "127.0.0.1:3500",
		RetrievalLimit:   DefaultRetrievalLimit,
		ChatTimeout:      DefaultChatTimeout,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "deepen",
		PostgresPassword: "secret",
		PostgresDBName:   "deepen",
		PostgresSSLMode:  "disable",
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() = %v, want ErrConfigNil", err)
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "  " },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name: "ollama provider with bad host",
			mutate: func(c *Config) {
				c.Provider = ProviderOllama
				c.OllamaHost = "not a url"
			},
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port too high",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "postgres port zero",
			mutate:  func(c *Config) { c.PostgresPort = 0 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "bad ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "maybe" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
		{
			name:    "retrieval limit zero",
			mutate:  func(c *Config) { c.RetrievalLimit = 0 },
			wantErr: ErrInvalidRetrievalLimit,
		},
		{
			name:    "retrieval limit over max",
			mutate:  func(c *Config) { c.RetrievalLimit = MaxRetrievalLimit + 1 },
			wantErr: ErrInvalidRetrievalLimit,
		},
		{
			name:    "chat timeout negative",
			mutate:  func(c *Config) { c.ChatTimeout = -time.Second },
			wantErr: ErrInvalidChatTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOllamaHostIgnoredForOtherProviders(t *testing.T) {
	cfg := validConfig()
	cfg.OllamaHost = "garbage"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil (ollama host only checked for ollama provider)", err)
	}
}
