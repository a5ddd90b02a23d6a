package config

// FetchConfig holds web article fetching configuration.
// Used by internal/fetch when saving a note from a URL.
type FetchConfig struct {
	// Parallelism is max concurrent requests per domain (default: 2)
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	// DelayMs is delay between requests in milliseconds (default: 1000)
	DelayMs int `mapstructure:"delay_ms" json:"delay_ms"`
	// TimeoutMs is request timeout in milliseconds (default: 30000)
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
	// MaxBodyBytes caps the response body size (default: 10 MiB)
	MaxBodyBytes int `mapstructure:"max_body_bytes" json:"max_body_bytes"`
	// AllowPrivate permits fetching from loopback and private networks,
	// for intranet sources (default: false)
	AllowPrivate bool `mapstructure:"allow_private" json:"allow_private"`
}
