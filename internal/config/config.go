// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kennis/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model, temperature, max tokens, embedder
//   - Storage: PostgreSQL connection (see storage.go)
//   - Search: top-k, relation expansion limit
//   - Tags: suggestion count and diversity weighting
//   - Fetch: web article fetching (see fetch.go)
//   - Tracing: OTLP trace export (see observability.go)
//
// Security: sensitive data (passwords) is never logged; the config directory
// uses 0750 permissions.
//
// Error handling uses sentinel errors so callers can check with errors.Is(),
// wrapped with context via fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidCacheSize indicates the embedding cache size is out of range.
	ErrInvalidCacheSize = errors.New("invalid cache size")

	// ErrInvalidCacheTTL indicates the embedding cache TTL is out of range.
	ErrInvalidCacheTTL = errors.New("invalid cache TTL")

	// ErrInvalidTopK indicates the search top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid search top-k")

	// ErrInvalidRelatedLimit indicates the relation expansion limit is out of range.
	ErrInvalidRelatedLimit = errors.New("invalid related limit")

	// ErrInvalidTagSuggestions indicates the tag suggestion count is out of range.
	ErrInvalidTagSuggestions = errors.New("invalid tag suggestion count")

	// ErrInvalidTagDiversity indicates the tag diversity weight is out of range.
	ErrInvalidTagDiversity = errors.New("invalid tag diversity weight")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidServerAddr indicates the HTTP server address is invalid.
	ErrInvalidServerAddr = errors.New("invalid server address")
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality (Matryoshka Representation
	// Learning). The pgvector schema uses 768 dimensions; see embed.VectorDimension.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultSearchTopK is the default number of search results.
	DefaultSearchTopK = 5

	// DefaultRelatedLimit is the default number of expansion notes per seed.
	DefaultRelatedLimit = 3

	// DefaultTagSuggestions is the default number of suggested tags.
	DefaultTagSuggestions = 6

	// DefaultTagDiversity is the default MMR relevance/diversity weight.
	DefaultTagDiversity = 0.7

	// DefaultCacheSize is the default embedding cache capacity (entries).
	DefaultCacheSize = 512
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // Model identifier (e.g., "gemini-2.5-flash", "llama3.3", "gpt-4o")
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration. cache_ttl_minutes caps entry age; 0 keeps
	// entries until capacity eviction.
	EmbedderModel   string `mapstructure:"embedder_model" json:"embedder_model"`
	CacheSize       int    `mapstructure:"cache_size" json:"cache_size"` // embedding cache entries, 0 disables
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes" json:"cache_ttl_minutes"`

	// Search configuration
	SearchTopK         int `mapstructure:"search_top_k" json:"search_top_k"`
	SearchRelatedLimit int `mapstructure:"search_related_limit" json:"search_related_limit"`

	// Tag suggestion configuration
	TagSuggestions int      `mapstructure:"tag_suggestions" json:"tag_suggestions"`
	TagDiversity   float64  `mapstructure:"tag_diversity" json:"tag_diversity"` // MMR lambda: 1.0 = pure relevance, 0.0 = pure diversity
	TagTaxonomy    []string `mapstructure:"tag_taxonomy" json:"tag_taxonomy"`   // controlled vocabulary; suggested tags snap to near terms

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Web fetch configuration (see fetch.go for type definition)
	Fetch FetchConfig `mapstructure:"fetch" json:"fetch"`

	// HTTP server configuration (serve mode only)
	ServerAddr  string   `mapstructure:"server_addr" json:"server_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)

	// Observability configuration (see observability.go for type definition)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration from the default search locations.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from an explicit file. An empty path falls
// back to the default search locations (~/.kennis, then the current
// directory), where a missing file is fine; an explicit file must exist.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		// Configuration directory: ~/.kennis/
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting user home directory: %w", err)
		}

		configDir := filepath.Join(home, ".kennis")

		// Ensure directory exists (0750 keeps the config private to the user)
		if err := os.MkdirAll(configDir, 0o750); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".") // Also support current directory
	}

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists). An explicit file surfaces its
	// open error here; only the default search treats absence as fine.
	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults. Temperature 0.2 keeps answers grounded in the supplied context.
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.2)
	viper.SetDefault("max_tokens", 2048)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("cache_size", DefaultCacheSize)
	viper.SetDefault("cache_ttl_minutes", 0)

	// Search defaults
	viper.SetDefault("search_top_k", DefaultSearchTopK)
	viper.SetDefault("search_related_limit", DefaultRelatedLimit)

	// Tag suggestion defaults
	viper.SetDefault("tag_suggestions", DefaultTagSuggestions)
	viper.SetDefault("tag_diversity", DefaultTagDiversity)
	viper.SetDefault("tag_taxonomy", []string{})

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "kennis")
	viper.SetDefault("postgres_password", "kennis_dev_password")
	viper.SetDefault("postgres_db_name", "kennis")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Web fetch defaults
	viper.SetDefault("fetch.parallelism", 2)
	viper.SetDefault("fetch.delay_ms", 1000)
	viper.SetDefault("fetch.timeout_ms", 30000)
	viper.SetDefault("fetch.max_body_bytes", 10<<20)
	viper.SetDefault("fetch.allow_private", false)

	// Server defaults
	viper.SetDefault("server_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)

	// Tracing defaults (disabled until an endpoint is configured)
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "kennis")
}

// bindEnvVariables binds environment variables explicitly.
//
// GEMINI_API_KEY is read directly by Genkit (not via Viper) and its presence
// is checked in cfg.Validate() based on the selected provider.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// AI provider and model overrides
	mustBind("provider", "KENNIS_PROVIDER")
	mustBind("model_name", "KENNIS_MODEL_NAME")
	mustBind("ollama_host", "KENNIS_OLLAMA_HOST")
	mustBind("embedder_model", "KENNIS_EMBEDDER_MODEL")

	// Server overrides
	mustBind("server_addr", "KENNIS_SERVER_ADDR")
	mustBind("cors_origins", "KENNIS_CORS_ORIGINS")
	mustBind("trust_proxy", "KENNIS_TRUST_PROXY")

	// Tracing overrides (standard OTLP endpoint variable)
	mustBind("tracing.enabled", "KENNIS_TRACING_ENABLED")
	mustBind("tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")

	// NOTE: DATABASE_URL is handled separately in parseDatabaseURL
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches with
// real password characters.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
//
// This defends against accidental logging of real secrets. It is not
// cryptographically secure: if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//
// When adding new sensitive fields, update this method or the nested struct's
// MarshalJSON.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// FullEmbedderName returns the provider-qualified embedder name for Genkit.
func (c *Config) FullEmbedderName() string {
	if strings.Contains(c.EmbedderModel, "/") {
		return c.EmbedderModel
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.EmbedderModel
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.EmbedderModel
	default:
		return ProviderGoogleAI + "/" + c.EmbedderModel
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
