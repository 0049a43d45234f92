package config

import (
	"errors"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Provider.Engine != ProviderNone {
		t.Errorf("default engine = %q, want %q", cfg.Provider.Engine, ProviderNone)
	}
	if cfg.Provider.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("default openai model = %q", cfg.Provider.OpenAIModel)
	}
	if cfg.Coverage.CharsPerPage != 2500 {
		t.Errorf("chars per page = %d, want 2500", cfg.Coverage.CharsPerPage)
	}
	if cfg.Coverage.DefaultLevel != LevelMedium {
		t.Errorf("default level = %q, want medium", cfg.Coverage.DefaultLevel)
	}
	if cfg.Pipeline.Concurrency < 1 {
		t.Errorf("concurrency = %d", cfg.Pipeline.Concurrency)
	}
	if cfg.Export.DefaultDeckName != "Generated Flashcards" {
		t.Errorf("default deck name = %q", cfg.Export.DefaultDeckName)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("WORKER_CONCURRENCY", "9")
	t.Setenv("CHUNK_TARGET_CHARS", "not-a-number")

	cfg := FromEnv()
	if cfg.Provider.Engine != ProviderOpenAI {
		t.Errorf("engine = %q, want lowercased openai", cfg.Provider.Engine)
	}
	if cfg.Pipeline.Concurrency != 9 {
		t.Errorf("concurrency = %d, want 9", cfg.Pipeline.Concurrency)
	}
	if cfg.Pipeline.ChunkTargetChars != 6000 {
		t.Errorf("bad int should fall back to default, got %d", cfg.Pipeline.ChunkTargetChars)
	}
}

func TestValidate(t *testing.T) {
	base := FromEnv()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"none ok", func(c *Config) {}, ""},
		{"openai without key", func(c *Config) {
			c.Provider.Engine = ProviderOpenAI
			c.Provider.OpenAIKey = ""
		}, "OPENAI_API_KEY"},
		{"openai with key", func(c *Config) {
			c.Provider.Engine = ProviderOpenAI
			c.Provider.OpenAIKey = "sk-test"
		}, ""},
		{"transformers without url", func(c *Config) {
			c.Provider.Engine = ProviderTransformers
		}, "LOCAL_MODEL_URL"},
		{"unknown provider", func(c *Config) {
			c.Provider.Engine = "bard"
		}, "AI_PROVIDER"},
		{"unknown level", func(c *Config) {
			c.Coverage.DefaultLevel = "extreme"
		}, "COVERAGE_LEVEL"},
		{"passphrase without bucket", func(c *Config) {
			c.Archive.Passphrase = "secret"
		}, "DECK_S3_BUCKET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("want ConfigError, got %v", err)
			}
			if ce.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", ce.Key, tt.wantKey)
			}
		})
	}
}
