package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
ingest:
  default_max_size_mb: 50
  max_size_ceiling_mb: 200
  default_timeout_seconds: 60
  timeout_ceiling_seconds: 300
  quality_threshold: 0.7
  enforce_threshold: true
  temp_dir: /tmp/ingest
http:
  user_agent: custom-agent
  max_retries: 5
  backoff_initial_ms: 100
  backoff_max_ms: 1000
  max_redirects: 3
guard:
  blocked_domains:
    - blocked.example.com
    - "*.internal.example.com"
storage:
  provider: local
  local_dir: /var/ingest/blobs
  prefix: audio
db:
  enabled: true
  dsn: postgres://ingest@localhost/ingest
pubsub:
  enabled: true
  project_id: my-project
  topic_name: ingest-events
jobs:
  workers: 8
  queue_depth: 256
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Ingest.QualityThreshold != 0.7 || !cfg.Ingest.EnforceThreshold {
		t.Fatalf("expected ingest overrides to apply: %+v", cfg.Ingest)
	}
	if got := cfg.MaxBytesDefault(); got != 50*1024*1024 {
		t.Fatalf("expected 50MB default, got %d", got)
	}
	if got := cfg.TimeoutCeiling(); got != 300*time.Second {
		t.Fatalf("expected 300s ceiling, got %v", got)
	}
	if len(cfg.Guard.BlockedDomains) != 2 {
		t.Fatalf("expected blocked domains to load: %+v", cfg.Guard.BlockedDomains)
	}
	if cfg.Storage.Provider != "local" || cfg.Storage.LocalDir != "/var/ingest/blobs" {
		t.Fatalf("expected local storage config: %+v", cfg.Storage)
	}
	if cfg.Jobs.Workers != 8 || cfg.Jobs.QueueDepth != 256 {
		t.Fatalf("expected jobs overrides to apply: %+v", cfg.Jobs)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides to apply: %+v", cfg.Logging)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.HTTP.MaxRetries != 3 {
		t.Fatalf("expected default max_retries 3, got %d", cfg.HTTP.MaxRetries)
	}
	if got := cfg.BackoffInitial(); got != 250*time.Millisecond {
		t.Fatalf("expected default initial backoff 250ms, got %v", got)
	}
	if cfg.Storage.Provider != "none" {
		t.Fatalf("expected default storage provider none, got %q", cfg.Storage.Provider)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "ceiling below default",
			mutate: func(c *Config) { c.Ingest.MaxSizeCeilingMB = 10 },
			want:   "max_size_ceiling_mb",
		},
		{
			name:   "threshold above one",
			mutate: func(c *Config) { c.Ingest.QualityThreshold = 1.5 },
			want:   "quality_threshold",
		},
		{
			name:   "unknown storage provider",
			mutate: func(c *Config) { c.Storage.Provider = "s3" },
			want:   "storage.provider",
		},
		{
			name:   "auth without key",
			mutate: func(c *Config) { c.Auth.Enabled = true },
			want:   "auth.api_key",
		},
		{
			name:   "db without dsn",
			mutate: func(c *Config) { c.DB.Enabled = true },
			want:   "db.dsn",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tc.mutate(&cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
