package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// ConfigError is the only error class that aborts a run. It is raised during
// Load/Validate, always before any aggregation work starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Aggregator AggregatorConfig `mapstructure:"aggregator" yaml:"aggregator"`
	Sources    SourcesConfig    `mapstructure:"sources" yaml:"sources"`
	Scoring    ScoringConfig    `mapstructure:"scoring" yaml:"scoring"`
	Enrich     EnrichConfig     `mapstructure:"enrich" yaml:"enrich"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// CacheConfig tunes the on-disk vulnerability cache.
type CacheConfig struct {
	Dir string        `mapstructure:"dir" yaml:"dir"`
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// NoCache skips cache reads for the run but still writes through, so a
	// forced-fresh run warms the cache for the next one.
	NoCache bool `mapstructure:"no_cache" yaml:"no_cache"`

	// ClearCache deletes the backing directory before the run starts.
	ClearCache bool `mapstructure:"clear_cache" yaml:"clear_cache"`
}

// AggregatorConfig bounds the concurrent fetch fan-out.
type AggregatorConfig struct {
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`
	GlobalTimeout time.Duration `mapstructure:"global_timeout" yaml:"global_timeout"`

	// Retry policy applied uniformly to every source call.
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay" yaml:"retry_max_delay"`
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
}

// SourcesConfig selects and configures the vulnerability databases to query.
type SourcesConfig struct {
	Enabled []string `mapstructure:"enabled" yaml:"enabled"`

	OSVBaseURL string `mapstructure:"osv_base_url" yaml:"osv_base_url"`
	NVDBaseURL string `mapstructure:"nvd_base_url" yaml:"nvd_base_url"`
	NVDAPIKey  string `mapstructure:"nvd_api_key" yaml:"-"`

	GitHubBaseURL string `mapstructure:"github_base_url" yaml:"github_base_url"`
	GitHubToken   string `mapstructure:"github_token" yaml:"-"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// ScoringConfig drives the composite risk computation.
type ScoringConfig struct {
	Weights          map[string]float64 `mapstructure:"weights" yaml:"weights"`
	MaxScore         float64            `mapstructure:"max_score" yaml:"max_score"`
	NotableThreshold float64            `mapstructure:"notable_threshold" yaml:"notable_threshold"`
}

// EnrichConfig controls registry metadata enrichment.
type EnrichConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	NPMRegistryURL  string        `mapstructure:"npm_registry_url" yaml:"npm_registry_url"`
	PyPIRegistryURL string        `mapstructure:"pypi_registry_url" yaml:"pypi_registry_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// HistoryConfig controls the sqlite trend store.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// WeightConfig converts the raw string-keyed weight map into the typed form
// the scorer consumes.
func (c *Config) WeightConfig() schemas.WeightConfig {
	wc := make(schemas.WeightConfig, len(c.Scoring.Weights))
	for name, w := range c.Scoring.Weights {
		wc[schemas.Component(name)] = w
	}
	return wc
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "dep-risk-profiler")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.no_cache", false)
	v.SetDefault("cache.clear_cache", false)

	v.SetDefault("aggregator.concurrency", 16)
	v.SetDefault("aggregator.global_timeout", "120s")
	v.SetDefault("aggregator.retry_base_delay", "500ms")
	v.SetDefault("aggregator.retry_max_delay", "8s")
	v.SetDefault("aggregator.retry_max_attempts", 3)

	v.SetDefault("sources.enabled", []string{"osv", "nvd"})
	v.SetDefault("sources.osv_base_url", "https://api.osv.dev/v1")
	v.SetDefault("sources.nvd_base_url", "https://services.nvd.nist.gov/rest/json/cves/2.0")
	v.SetDefault("sources.github_base_url", "https://api.github.com/graphql")
	v.SetDefault("sources.request_timeout", "10s")

	v.SetDefault("scoring.max_score", 5.0)
	v.SetDefault("scoring.notable_threshold", 0.75)
	v.SetDefault("scoring.weights", map[string]float64{
		string(schemas.ComponentStaleness):       0.25,
		string(schemas.ComponentMaintainers):     0.2,
		string(schemas.ComponentDeprecation):     0.3,
		string(schemas.ComponentExploit):         0.5,
		string(schemas.ComponentVersionDrift):    0.15,
		string(schemas.ComponentHealth):          0.1,
		string(schemas.ComponentLicense):         0.3,
		string(schemas.ComponentCommunity):       0.2,
		string(schemas.ComponentSecurityPosture): 0.25,
	})

	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.npm_registry_url", "https://registry.npmjs.org")
	v.SetDefault("enrich.pypi_registry_url", "https://pypi.org/pypi")
	v.SetDefault("enrich.request_timeout", "10s")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", defaultHistoryPath())
}

// NewDefaultConfig creates a configuration populated with default values.
// Used by tests that do not go through viper.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate enforces the invariants that must hold before a run begins.
// Violations are fatal; nothing downstream re-checks them.
func (c *Config) Validate() error {
	var sum float64
	for name, w := range c.Scoring.Weights {
		if w < 0 {
			return &ConfigError{
				Field:  "scoring.weights." + name,
				Reason: "weight must be non-negative",
			}
		}
		sum += w
	}
	if sum <= 0 {
		return &ConfigError{
			Field:  "scoring.weights",
			Reason: "at least one weight must be positive",
		}
	}
	if c.Scoring.MaxScore <= 0 {
		return &ConfigError{Field: "scoring.max_score", Reason: "must be positive"}
	}
	if c.Scoring.NotableThreshold < 0 || c.Scoring.NotableThreshold > 1 {
		return &ConfigError{Field: "scoring.notable_threshold", Reason: "must be in [0,1]"}
	}

	if c.Aggregator.Concurrency <= 0 {
		return &ConfigError{Field: "aggregator.concurrency", Reason: "must be positive"}
	}
	if c.Aggregator.GlobalTimeout <= 0 {
		return &ConfigError{Field: "aggregator.global_timeout", Reason: "must be positive"}
	}
	if c.Aggregator.RetryMaxAttempts < 1 {
		return &ConfigError{Field: "aggregator.retry_max_attempts", Reason: "must be at least 1"}
	}

	if c.Cache.TTL <= 0 {
		return &ConfigError{Field: "cache.ttl", Reason: "must be positive"}
	}
	if c.Cache.Dir == "" {
		return &ConfigError{Field: "cache.dir", Reason: "must not be empty"}
	}
	if err := ensureWritableDir(c.Cache.Dir); err != nil {
		return &ConfigError{Field: "cache.dir", Reason: err.Error()}
	}

	for _, s := range c.Sources.Enabled {
		switch strings.ToLower(s) {
		case "osv", "nvd", "github":
		default:
			return &ConfigError{Field: "sources.enabled", Reason: "unknown source " + s}
		}
	}

	return nil
}

// ensureWritableDir creates the directory if needed and confirms it can be
// written to, so cache failures surface as ConfigError instead of mid-run.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "dep-risk-profiler", "vuln-cache")
	}
	return filepath.Join(home, ".dep-risk-profiler", "vuln-cache")
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "dep-risk-profiler", "history.db")
	}
	return filepath.Join(home, ".dep-risk-profiler", "history.db")
}
