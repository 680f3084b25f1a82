// Package config loads and validates ingest service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Guard   GuardConfig   `mapstructure:"guard"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// IngestConfig governs per-request budgets and extraction behavior.
type IngestConfig struct {
	DefaultMaxSizeMB      int     `mapstructure:"default_max_size_mb"`
	MaxSizeCeilingMB      int     `mapstructure:"max_size_ceiling_mb"`
	DefaultTimeoutSeconds int     `mapstructure:"default_timeout_seconds"`
	TimeoutCeilingSeconds int     `mapstructure:"timeout_ceiling_seconds"`
	QualityThreshold      float64 `mapstructure:"quality_threshold"`
	EnforceThreshold      bool    `mapstructure:"enforce_threshold"`
	TempDir               string  `mapstructure:"temp_dir"`
	SentinelPattern       string  `mapstructure:"sentinel_pattern"`
}

// HTTPConfig configures the downloader's HTTP client.
type HTTPConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	MaxRedirects     int    `mapstructure:"max_redirects"`
}

// GuardConfig tunes URL validation.
type GuardConfig struct {
	BlockedDomains []string `mapstructure:"blocked_domains"`
}

// StorageConfig selects and configures the blob store for completed assets.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"` // gcs, local, memory or none
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// JobsConfig sizes the async worker pool.
type JobsConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("ingest.default_max_size_mb", 100)
	v.SetDefault("ingest.max_size_ceiling_mb", 500)
	v.SetDefault("ingest.default_timeout_seconds", 120)
	v.SetDefault("ingest.timeout_ceiling_seconds", 600)
	v.SetDefault("ingest.quality_threshold", 0.5)
	v.SetDefault("ingest.enforce_threshold", false)
	v.SetDefault("http.user_agent", "tracklab-ingest/0.1")
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.prefix", "assets")
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.queue_depth", 64)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Ingest.DefaultMaxSizeMB <= 0 {
		return fmt.Errorf("ingest.default_max_size_mb must be > 0")
	}
	if c.Ingest.MaxSizeCeilingMB < c.Ingest.DefaultMaxSizeMB {
		return fmt.Errorf("ingest.max_size_ceiling_mb must be >= default_max_size_mb")
	}
	if c.Ingest.DefaultTimeoutSeconds <= 0 {
		return fmt.Errorf("ingest.default_timeout_seconds must be > 0")
	}
	if c.Ingest.TimeoutCeilingSeconds < c.Ingest.DefaultTimeoutSeconds {
		return fmt.Errorf("ingest.timeout_ceiling_seconds must be >= default_timeout_seconds")
	}
	if c.Ingest.QualityThreshold < 0 || c.Ingest.QualityThreshold > 1 {
		return fmt.Errorf("ingest.quality_threshold must be in [0,1]")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0")
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local provider")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("storage.provider %q is not one of gcs, local, memory, none", c.Storage.Provider)
	}
	if c.DB.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// MaxBytesDefault converts the configured size default to bytes.
func (c Config) MaxBytesDefault() int64 {
	return int64(c.Ingest.DefaultMaxSizeMB) * 1024 * 1024
}

// MaxBytesCeiling converts the configured size ceiling to bytes.
func (c Config) MaxBytesCeiling() int64 {
	return int64(c.Ingest.MaxSizeCeilingMB) * 1024 * 1024
}

// TimeoutDefault converts the configured timeout default to a duration.
func (c Config) TimeoutDefault() time.Duration {
	return time.Duration(c.Ingest.DefaultTimeoutSeconds) * time.Second
}

// TimeoutCeiling converts the configured timeout ceiling to a duration.
func (c Config) TimeoutCeiling() time.Duration {
	return time.Duration(c.Ingest.TimeoutCeilingSeconds) * time.Second
}

// BackoffInitial converts the configured initial backoff to a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the configured backoff ceiling to a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
