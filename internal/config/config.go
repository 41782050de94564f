// Package config loads and validates hunter configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Search  SearchConfig  `mapstructure:"search"`
	State   StateConfig   `mapstructure:"state"`
	Report  ReportConfig  `mapstructure:"report"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlConfig governs pass behavior and the circuit breaker.
type CrawlConfig struct {
	Concurrency             int    `mapstructure:"concurrency"`
	MaxRecursionDepth       int    `mapstructure:"max_recursion_depth"`
	CircuitFailureThreshold int    `mapstructure:"circuit_failure_threshold"`
	PassTimeoutSeconds      int    `mapstructure:"pass_timeout_seconds"`
	UserAgent               string `mapstructure:"user_agent"`
	SitesFile               string `mapstructure:"sites_file"`
	SitemapFallback         bool   `mapstructure:"sitemap_fallback"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`
	RetryCount          int `mapstructure:"retry_count"`
	MaxBodyBytes        int `mapstructure:"max_body_bytes"`
}

// SearchConfig defines the phrase scan.
type SearchConfig struct {
	Phrase        string `mapstructure:"phrase"`
	CaseSensitive bool   `mapstructure:"case_sensitive"`
	ContextBytes  int    `mapstructure:"context_bytes"`
}

// StateConfig selects and configures the state store backend.
type StateConfig struct {
	// Provider is one of fs, gcs, postgres, memory.
	Provider    string `mapstructure:"provider"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	GCSPrefix   string `mapstructure:"gcs_prefix"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ReportConfig holds metadata for publish-subscribe report delivery.
type ReportConfig struct {
	// Publisher is one of none, pubsub, memory.
	Publisher string `mapstructure:"publisher"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the metrics/health endpoint. A zero port disables it.
type ServerConfig struct {
	MetricsPort int `mapstructure:"metrics_port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HUNTER")
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
	v.SetDefault("crawl.concurrency", 4)
	v.SetDefault("crawl.max_recursion_depth", 3)
	v.SetDefault("crawl.circuit_failure_threshold", 5)
	v.SetDefault("crawl.pass_timeout_seconds", 0)
	v.SetDefault("crawl.user_agent", "sitemap-hunter/0.1")
	v.SetDefault("crawl.sites_file", "sites.txt")
	v.SetDefault("crawl.sitemap_fallback", true)
	v.SetDefault("http.fetch_timeout_seconds", 15)
	v.SetDefault("http.retry_count", 2)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("search.case_sensitive", false)
	v.SetDefault("search.context_bytes", 48)
	v.SetDefault("state.provider", "fs")
	v.SetDefault("state.base_dir", ".hunter-state")
	v.SetDefault("report.publisher", "none")
	v.SetDefault("server.metrics_port", 0)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Crawl.MaxRecursionDepth <= 0 {
		return fmt.Errorf("crawl.max_recursion_depth must be > 0")
	}
	if c.Crawl.CircuitFailureThreshold <= 0 {
		return fmt.Errorf("crawl.circuit_failure_threshold must be > 0")
	}
	if c.HTTP.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("http.fetch_timeout_seconds must be > 0")
	}
	if c.HTTP.RetryCount < 0 {
		return fmt.Errorf("http.retry_count must be >= 0")
	}
	switch c.State.Provider {
	case "fs", "memory":
	case "gcs":
		if c.State.GCSBucket == "" {
			return fmt.Errorf("state.gcs_bucket must be set when provider is gcs")
		}
	case "postgres":
		if c.State.PostgresDSN == "" {
			return fmt.Errorf("state.postgres_dsn must be set when provider is postgres")
		}
	default:
		return fmt.Errorf("state.provider must be one of fs, gcs, postgres, memory")
	}
	switch c.Report.Publisher {
	case "none", "memory":
	case "pubsub":
		if c.Report.ProjectID == "" || c.Report.Topic == "" {
			return fmt.Errorf("report.project_id and report.topic must be set when publisher is pubsub")
		}
	default:
		return fmt.Errorf("report.publisher must be one of none, pubsub, memory")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.FetchTimeoutSeconds) * time.Second
}

// PassTimeout converts the pass budget into a duration; zero means no limit.
func (c Config) PassTimeout() time.Duration {
	return time.Duration(c.Crawl.PassTimeoutSeconds) * time.Second
}
