package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawl.Concurrency != 4 || cfg.Crawl.MaxRecursionDepth != 3 {
		t.Fatalf("unexpected crawl defaults: %+v", cfg.Crawl)
	}
	if cfg.Crawl.CircuitFailureThreshold != 5 {
		t.Fatalf("expected circuit threshold 5, got %d", cfg.Crawl.CircuitFailureThreshold)
	}
	if cfg.State.Provider != "fs" {
		t.Fatalf("expected fs provider, got %q", cfg.State.Provider)
	}
	if cfg.Report.Publisher != "none" {
		t.Fatalf("expected publisher none, got %q", cfg.Report.Publisher)
	}
	if got := cfg.FetchTimeout(); got != 15*time.Second {
		t.Fatalf("expected fetch timeout 15s, got %v", got)
	}
	if got := cfg.PassTimeout(); got != 0 {
		t.Fatalf("expected no pass timeout, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawl:
  concurrency: 8
  max_recursion_depth: 5
  circuit_failure_threshold: 3
  pass_timeout_seconds: 600
  user_agent: hunter-agent
  sites_file: domains.txt
  sitemap_fallback: false
http:
  fetch_timeout_seconds: 45
  retry_count: 4
search:
  phrase: dragon ball
  case_sensitive: true
  context_bytes: 120
state:
  provider: gcs
  gcs_bucket: hunter-state
  gcs_prefix: prod
report:
  publisher: pubsub
  project_id: my-project
  topic: pass-reports
server:
  metrics_port: 9090
logging:
  development: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawl.Concurrency != 8 || cfg.Crawl.SitemapFallback != false {
		t.Fatalf("expected crawl overrides to apply: %+v", cfg.Crawl)
	}
	if cfg.Search.Phrase != "dragon ball" || !cfg.Search.CaseSensitive {
		t.Fatalf("expected search overrides to apply: %+v", cfg.Search)
	}
	if cfg.State.Provider != "gcs" || cfg.State.GCSBucket != "hunter-state" {
		t.Fatalf("expected gcs state config: %+v", cfg.State)
	}
	if cfg.Report.Topic != "pass-reports" {
		t.Fatalf("expected report topic override: %+v", cfg.Report)
	}
	if got := cfg.PassTimeout(); got != 10*time.Minute {
		t.Fatalf("expected pass timeout 10m, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Crawl: CrawlConfig{
			Concurrency:             1,
			MaxRecursionDepth:       1,
			CircuitFailureThreshold: 5,
		},
		HTTP:   HTTPConfig{FetchTimeoutSeconds: 10},
		State:  StateConfig{Provider: "fs"},
		Report: ReportConfig{Publisher: "none"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Crawl.Concurrency = 0
				return c
			}(),
			want: "crawl.concurrency",
		},
		{
			name: "invalid depth",
			cfg: func() Config {
				c := base
				c.Crawl.MaxRecursionDepth = 0
				return c
			}(),
			want: "crawl.max_recursion_depth",
		},
		{
			name: "invalid threshold",
			cfg: func() Config {
				c := base
				c.Crawl.CircuitFailureThreshold = 0
				return c
			}(),
			want: "crawl.circuit_failure_threshold",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.FetchTimeoutSeconds = 0
				return c
			}(),
			want: "http.fetch_timeout_seconds",
		},
		{
			name: "gcs missing bucket",
			cfg: func() Config {
				c := base
				c.State.Provider = "gcs"
				return c
			}(),
			want: "state.gcs_bucket",
		},
		{
			name: "postgres missing dsn",
			cfg: func() Config {
				c := base
				c.State.Provider = "postgres"
				return c
			}(),
			want: "state.postgres_dsn",
		},
		{
			name: "unknown provider",
			cfg: func() Config {
				c := base
				c.State.Provider = "redis"
				return c
			}(),
			want: "state.provider",
		},
		{
			name: "pubsub missing topic",
			cfg: func() Config {
				c := base
				c.Report.Publisher = "pubsub"
				c.Report.ProjectID = "p"
				return c
			}(),
			want: "report.project_id and report.topic",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
