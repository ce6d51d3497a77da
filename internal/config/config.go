// Package config loads and validates vodsearch configuration.
//
// Configuration is resolved in three layers, lowest priority first:
//  1. Built-in defaults (DefaultConfig)
//  2. YAML config file (~/.vodsearch/config.yaml or --config)
//  3. Environment variables (VODSEARCH_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// StatusBackend selects the status store implementation.
const (
	// StatusBackendRedis uses a shared Redis instance (default for serve).
	StatusBackendRedis = "redis"
	// StatusBackendMemory keeps job state in-process (tests, one-shot CLI runs).
	StatusBackendMemory = "memory"
)

// Config represents the complete vodsearch configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Status   StatusConfig   `yaml:"status" json:"status"`
	Indexing IndexingConfig `yaml:"indexing" json:"indexing"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Catalog  CatalogConfig  `yaml:"catalog" json:"catalog"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// DataDir holds the per-collection bleve indexes and the SQLite
	// document store. Defaults to ~/.vodsearch.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// StatusConfig configures the external job status store.
type StatusConfig struct {
	// Backend selects the store: "redis" or "memory".
	Backend string `yaml:"backend" json:"backend"`

	// RedisAddr is the host:port of the Redis instance.
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`

	// RedisDB is the Redis logical database number.
	RedisDB int `yaml:"redis_db" json:"redis_db"`

	// JobTTL bounds how long a terminal job record stays readable.
	// The per-collection lock carries the same TTL.
	JobTTL time.Duration `yaml:"job_ttl" json:"job_ttl"`
}

// IndexingConfig configures the job orchestrator and workers.
type IndexingConfig struct {
	// Workers bounds fan-out parallelism for per-item units of work.
	Workers int `yaml:"workers" json:"workers"`

	// PollInterval is the orchestrator's progress poll interval.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// TranscriptTimeout bounds a single transcript fetch attempt.
	TranscriptTimeout time.Duration `yaml:"transcript_timeout" json:"transcript_timeout"`

	// IndexTimeout bounds a single index write.
	IndexTimeout time.Duration `yaml:"index_timeout" json:"index_timeout"`

	// MaxRetries is the per-item transcript fetch retry budget.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RetryDelay is the initial backoff before the first retry.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// SearchConfig configures the query engine.
type SearchConfig struct {
	// MaxResults caps the page size a caller may request.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// FacetSize is the number of channel facet buckets returned.
	FacetSize int `yaml:"facet_size" json:"facet_size"`

	// OpenIndexes bounds the number of per-collection indexes kept open.
	OpenIndexes int `yaml:"open_indexes" json:"open_indexes"`
}

// CatalogConfig configures the upstream catalog collaborator.
type CatalogConfig struct {
	// BaseURL of the catalog API. Defaults to the YouTube Data API.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKey authenticates catalog requests.
	APIKey string `yaml:"api_key" json:"api_key"`

	// PageSize is the per-page item count for catalog enumeration.
	PageSize int `yaml:"page_size" json:"page_size"`

	// Timeout bounds a single catalog HTTP request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ServerConfig configures the HTTP API daemon.
type ServerConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Status: StatusConfig{
			Backend:   StatusBackendRedis,
			RedisAddr: "localhost:6379",
			RedisDB:   0,
			JobTTL:    2 * time.Hour,
		},
		Indexing: IndexingConfig{
			Workers:           workers,
			PollInterval:      2 * time.Second,
			TranscriptTimeout: 30 * time.Second,
			IndexTimeout:      15 * time.Second,
			MaxRetries:        3,
			RetryDelay:        1 * time.Second,
		},
		Search: SearchConfig{
			MaxResults:  100,
			FacetSize:   100,
			OpenIndexes: 16,
		},
		Catalog: CatalogConfig{
			BaseURL:  "https://www.googleapis.com/youtube/v3",
			PageSize: 50,
			Timeout:  30 * time.Second,
		},
		Server: ServerConfig{
			Addr:     "localhost:8080",
			LogLevel: "info",
		},
	}
}

// defaultDataDir returns ~/.vodsearch, falling back to the temp dir.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".vodsearch")
	}
	return filepath.Join(home, ".vodsearch")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads configuration from the given path, merged over defaults and
// under environment overrides. A missing file is not an error; the defaults
// are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies VODSEARCH_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VODSEARCH_DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("VODSEARCH_REDIS_ADDR"); v != "" {
		cfg.Status.RedisAddr = v
	}
	if v := os.Getenv("VODSEARCH_STATUS_BACKEND"); v != "" {
		cfg.Status.Backend = v
	}
	if v := os.Getenv("VODSEARCH_API_KEY"); v != "" {
		cfg.Catalog.APIKey = v
	}
	if v := os.Getenv("VODSEARCH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("VODSEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Indexing.Workers = n
		}
	}
	if v := os.Getenv("VODSEARCH_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	switch c.Status.Backend {
	case StatusBackendRedis, StatusBackendMemory:
	default:
		return fmt.Errorf("status.backend must be %q or %q, got %q",
			StatusBackendRedis, StatusBackendMemory, c.Status.Backend)
	}
	if c.Status.Backend == StatusBackendRedis && c.Status.RedisAddr == "" {
		return fmt.Errorf("status.redis_addr must be set for the redis backend")
	}
	if c.Status.JobTTL <= 0 {
		return fmt.Errorf("status.job_ttl must be positive")
	}
	if c.Indexing.Workers < 1 {
		return fmt.Errorf("indexing.workers must be at least 1")
	}
	if c.Indexing.PollInterval <= 0 {
		return fmt.Errorf("indexing.poll_interval must be positive")
	}
	if c.Indexing.MaxRetries < 0 {
		return fmt.Errorf("indexing.max_retries must not be negative")
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be at least 1")
	}
	if c.Search.FacetSize < 1 {
		return fmt.Errorf("search.facet_size must be at least 1")
	}
	if c.Search.OpenIndexes < 1 {
		return fmt.Errorf("search.open_indexes must be at least 1")
	}
	if c.Catalog.PageSize < 1 || c.Catalog.PageSize > 50 {
		// The upstream API caps page size at 50.
		return fmt.Errorf("catalog.page_size must be in [1,50]")
	}
	return nil
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
