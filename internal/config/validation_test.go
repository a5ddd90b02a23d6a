package config

import (
	"errors"
	"testing"
)

// validBaseConfig returns a Config with all required fields set for the given provider.
func validBaseConfig(provider string) *Config {
	cfg := &Config{
		Provider:           provider,
		ModelName:          "gemini-2.5-flash",
		Temperature:        0.2,
		MaxTokens:          2048,
		EmbedderModel:      DefaultGeminiEmbedderModel,
		CacheSize:          DefaultCacheSize,
		SearchTopK:         DefaultSearchTopK,
		SearchRelatedLimit: DefaultRelatedLimit,
		TagSuggestions:     DefaultTagSuggestions,
		TagDiversity:       DefaultTagDiversity,
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "kennis",
		PostgresPassword:   "test_password",
		PostgresDBName:     "kennis",
		PostgresSSLMode:    "disable",
		ServerAddr:         ":8080",
	}
	switch provider {
	case ProviderOllama:
		cfg.ModelName = "llama3.3"
		cfg.OllamaHost = "http://localhost:11434"
	case ProviderOpenAI:
		cfg.ModelName = "gpt-4o"
	}
	return cfg
}

func TestValidateSuccess(t *testing.T) {
	providers := []string{ProviderGemini, ProviderOllama, ProviderOpenAI}

	for _, provider := range providers {
		t.Run(provider, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-api-key")

			cfg := validBaseConfig(provider)
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() unexpected error with valid config (provider %q): %v", provider, err)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil config = %v, want ErrConfigNil", err)
	}
}

func TestValidateMissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validBaseConfig(ProviderGemini)
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() without GEMINI_API_KEY = %v, want ErrMissingAPIKey", err)
	}

	// Ollama does not need the Gemini key
	cfg = validBaseConfig(ProviderOllama)
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() for ollama without GEMINI_API_KEY: %v", err)
	}
}

func TestValidateFieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty model name", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"temperature too low", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"max tokens zero", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"max tokens too high", func(c *Config) { c.MaxTokens = 3000000 }, ErrInvalidMaxTokens},
		{"empty embedder model", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"negative cache size", func(c *Config) { c.CacheSize = -1 }, ErrInvalidCacheSize},
		{"negative cache ttl", func(c *Config) { c.CacheTTLMinutes = -1 }, ErrInvalidCacheTTL},
		{"top-k zero", func(c *Config) { c.SearchTopK = 0 }, ErrInvalidTopK},
		{"top-k too high", func(c *Config) { c.SearchTopK = 51 }, ErrInvalidTopK},
		{"related limit negative", func(c *Config) { c.SearchRelatedLimit = -1 }, ErrInvalidRelatedLimit},
		{"related limit too high", func(c *Config) { c.SearchRelatedLimit = 21 }, ErrInvalidRelatedLimit},
		{"tag suggestions zero", func(c *Config) { c.TagSuggestions = 0 }, ErrInvalidTagSuggestions},
		{"tag suggestions too high", func(c *Config) { c.TagSuggestions = 21 }, ErrInvalidTagSuggestions},
		{"tag diversity negative", func(c *Config) { c.TagDiversity = -0.1 }, ErrInvalidTagDiversity},
		{"tag diversity above one", func(c *Config) { c.TagDiversity = 1.1 }, ErrInvalidTagDiversity},
		{"empty postgres host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"postgres port zero", func(c *Config) { c.PostgresPort = 0 }, ErrInvalidPostgresPort},
		{"postgres port too high", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty postgres db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"empty postgres password", func(c *Config) { c.PostgresPassword = "" }, ErrInvalidPostgresPassword},
		{"short postgres password", func(c *Config) { c.PostgresPassword = "short" }, ErrInvalidPostgresPassword},
		{"deprecated ssl mode", func(c *Config) { c.PostgresSSLMode = "prefer" }, ErrInvalidPostgresSSLMode},
		{"empty ssl mode", func(c *Config) { c.PostgresSSLMode = "" }, ErrInvalidPostgresSSLMode},
		{"empty server addr", func(c *Config) { c.ServerAddr = "" }, ErrInvalidServerAddr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-api-key")

			cfg := validBaseConfig(ProviderGemini)
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSSLModes(t *testing.T) {
	valid := []string{"disable", "require", "verify-ca", "verify-full"}

	for _, mode := range valid {
		t.Run(mode, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-api-key")

			cfg := validBaseConfig(ProviderGemini)
			cfg.PostgresSSLMode = mode
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() with sslmode %q: %v", mode, err)
			}
		})
	}
}
