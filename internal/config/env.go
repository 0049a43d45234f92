package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted for AI_PROVIDER.
const (
	ProviderOpenAI       = "openai"
	ProviderTransformers = "transformers"
	ProviderNone         = "none"
)

// Coverage level names.
const (
	LevelMinimal = "minimal"
	LevelMedium  = "medium"
	LevelMaximum = "maximum"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ProviderConfig selects the content analyzer and its credentials.
type ProviderConfig struct {
	Engine string // "openai"|"transformers"|"none"

	OpenAIKey   string
	OpenAIModel string

	// LocalModelURL is the base URL of a local summarization server
	// (transformers engine). LocalModelName is informational, threaded
	// into requests so the server can pick the model.
	LocalModelURL  string
	LocalModelName string
}

// PipelineConfig bounds chunking and analysis work.
type PipelineConfig struct {
	ChunkTargetChars   int
	Concurrency        int
	RequestTimeout     time.Duration
	MaxInflightPerProv int
	BreakerBaseBackoff time.Duration
	BreakerMaxBackoff  time.Duration
	JobTTL             time.Duration
}

// CoverageConfig normalizes document length into planner units.
type CoverageConfig struct {
	CharsPerPage int
	DefaultLevel string
}

// WebConfig holds HTTP server settings.
type WebConfig struct {
	Port         string
	UploadDir    string
	MaxUploadMB  int
	FetchTimeout time.Duration
}

// ExportConfig defines the deck export boundary.
type ExportConfig struct {
	OutputDir       string
	DefaultDeckName string
	// APKGServiceURL, when set, points at an external .apkg packaging
	// service. Empty means decks are exported as Anki-importable TSV only.
	APKGServiceURL string
}

// ArchiveConfig defines optional S3 archival of exported decks.
type ArchiveConfig struct {
	S3Bucket   string
	Passphrase string // non-empty enables encryption at rest
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Provider ProviderConfig
	Pipeline PipelineConfig
	Coverage CoverageConfig
	Web      WebConfig
	Export   ExportConfig
	Archive  ArchiveConfig
	RedisURL string
}

// ConfigError is a pre-flight configuration failure. Processing never
// starts with an invalid configuration.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Message)
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/cardforge.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_cardforge",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Provider defaults
	cfg.Provider = ProviderConfig{
		Engine:         strings.ToLower(getEnv("AI_PROVIDER", ProviderNone)),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LocalModelURL:  getEnv("LOCAL_MODEL_URL", ""),
		LocalModelName: getEnv("LOCAL_MODEL_NAME", "facebook/bart-large-cnn"),
	}

	// Pipeline defaults
	cfg.Pipeline = PipelineConfig{
		ChunkTargetChars:   parseInt(getEnv("CHUNK_TARGET_CHARS", "6000"), 6000),
		Concurrency:        parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
		RequestTimeout:     parseDuration(getEnv("REQUEST_TIMEOUT", "60s"), 60*time.Second),
		MaxInflightPerProv: parseInt(getEnv("MAX_INFLIGHT_PER_PROVIDER", "2"), 2),
		BreakerBaseBackoff: parseDuration(getEnv("BREAKER_BASE_BACKOFF", "30s"), 30*time.Second),
		BreakerMaxBackoff:  parseDuration(getEnv("BREAKER_MAX_BACKOFF", "5m"), 5*time.Minute),
		JobTTL:             parseDuration(getEnv("JOB_TTL", "24h"), 24*time.Hour),
	}

	// Coverage defaults
	cfg.Coverage = CoverageConfig{
		CharsPerPage: parseInt(getEnv("CHARS_PER_PAGE", "2500"), 2500),
		DefaultLevel: strings.ToLower(getEnv("COVERAGE_LEVEL", LevelMedium)),
	}

	// Web defaults
	cfg.Web = WebConfig{
		Port:         getEnv("PORT", "8080"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadMB:  parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64),
		FetchTimeout: parseDuration(getEnv("URL_FETCH_TIMEOUT", "15s"), 15*time.Second),
	}

	// Export defaults
	cfg.Export = ExportConfig{
		OutputDir:       getEnv("DECK_OUTPUT_DIR", "decks"),
		DefaultDeckName: getEnv("DEFAULT_DECK_NAME", "Generated Flashcards"),
		APKGServiceURL:  getEnv("APKG_SERVICE_URL", ""),
	}

	// Archive defaults
	cfg.Archive = ArchiveConfig{
		S3Bucket:   getEnv("DECK_S3_BUCKET", ""),
		Passphrase: getEnv("DECK_ARCHIVE_PASSPHRASE", ""),
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")

	return cfg
}

// Validate checks configuration coherence. Missing credentials for the
// chosen engine are reported here, before any document is accepted.
func (c Config) Validate() error {
	switch c.Provider.Engine {
	case ProviderOpenAI:
		if c.Provider.OpenAIKey == "" {
			return &ConfigError{Key: "OPENAI_API_KEY", Message: "required when AI_PROVIDER=openai"}
		}
	case ProviderTransformers:
		if c.Provider.LocalModelURL == "" {
			return &ConfigError{Key: "LOCAL_MODEL_URL", Message: "required when AI_PROVIDER=transformers"}
		}
	case ProviderNone:
		// heuristic only
	default:
		return &ConfigError{Key: "AI_PROVIDER", Message: fmt.Sprintf("unknown provider %q", c.Provider.Engine)}
	}

	switch c.Coverage.DefaultLevel {
	case LevelMinimal, LevelMedium, LevelMaximum:
	default:
		return &ConfigError{Key: "COVERAGE_LEVEL", Message: fmt.Sprintf("unknown level %q", c.Coverage.DefaultLevel)}
	}

	if c.Archive.Passphrase != "" && c.Archive.S3Bucket == "" {
		return &ConfigError{Key: "DECK_S3_BUCKET", Message: "required when DECK_ARCHIVE_PASSPHRASE is set"}
	}

	if c.Pipeline.Concurrency < 1 {
		return &ConfigError{Key: "WORKER_CONCURRENCY", Message: "must be at least 1"}
	}
	return nil
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
