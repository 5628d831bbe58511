// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and PAUSEMAP_ env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// DateLayout is the layout used for every configured date.
const DateLayout = "2006-01-02"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address for `serve`, e.g. ":9080".
	Addr string `koanf:"addr"`
	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `koanf:"cors_origins"`

	// StorageDir is the root for raw, processed, outputs and samples.
	StorageDir string `koanf:"storage_dir"`

	// StartDate and EndDate bound every fetch and reconciliation (inclusive).
	StartDate string `koanf:"start_date"`
	EndDate   string `koanf:"end_date"`

	// Country is the ISO3 code used for OWID metrics and World Bank indicators.
	Country string `koanf:"country"`

	GDELTURL              string `koanf:"gdelt_url"`
	OWIDURL               string `koanf:"owid_url"`
	WorldBankDocsURL      string `koanf:"worldbank_docs_url"`
	WorldBankIndicatorURL string `koanf:"worldbank_indicator_url"`

	// Indicators maps a category name to World Bank indicator codes.
	Indicators map[string][]string `koanf:"indicators"`

	// HealthMetrics restricts which OWID metric fields reach the health frame.
	// Empty means every numeric field.
	HealthMetrics []string `koanf:"health_metrics"`

	// FetchParallel bounds concurrent upstream downloads.
	FetchParallel int `koanf:"fetch_parallel"`
	// HTTPTimeout applies to each upstream request.
	HTTPTimeout time.Duration `koanf:"http_timeout"`
	// GDELTDedupeSize bounds the GLOBALEVENTID de-duplication set.
	GDELTDedupeSize int `koanf:"gdelt_dedupe_size"`

	// CacheBackend selects the raw payload cache: file, redis or s3.
	CacheBackend string        `koanf:"cache_backend"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	RedisAddr    string        `koanf:"redis_addr"`
	RedisPrefix  string        `koanf:"redis_prefix"`
	S3Bucket     string        `koanf:"s3_bucket"`
	S3Region     string        `koanf:"s3_region"`
	S3Prefix     string        `koanf:"s3_prefix"`

	// Repository selects where summaries are persisted: memory or postgres.
	Repository  string `koanf:"repository"`
	DatabaseDSN string `koanf:"database_dsn"`

	// OutputFormat is json or yaml.
	OutputFormat string `koanf:"output_format"`
}

// New creates a Config populated with defaults: April 2020, the first full
// month of the UK lockdown.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		CORSOrigins:           []string{"*"},
		StorageDir:            "storage",
		StartDate:             "2020-04-01",
		EndDate:               "2020-04-30",
		Country:               "GBR",
		GDELTURL:              "http://data.gdeltproject.org/events/{date}.export.CSV.zip",
		OWIDURL:               "https://covid.ourworldindata.org/data/owid-covid-data.json",
		WorldBankDocsURL:      "https://search.worldbank.org/api/v3/wds",
		WorldBankIndicatorURL: "https://api.worldbank.org/v2/country/{country}/indicator/{indicator}",
		Indicators: map[string][]string{
			"gdp":        {"NY.GDP.MKTP.KD.ZG"},
			"employment": {"SL.UEM.TOTL.ZS"},
			"trade":      {"NE.TRD.GNFS.ZS"},
		},
		FetchParallel:   runtime.NumCPU(),
		HTTPTimeout:     60 * time.Second,
		GDELTDedupeSize: 2_000_000,
		CacheBackend:    "file",
		CacheTTL:        0,
		RedisAddr:       "localhost:6379",
		RedisPrefix:     "pausemap:raw:",
		S3Region:        "us-east-1",
		S3Prefix:        "pausemap/raw/",
		Repository:      "memory",
		OutputFormat:    "json",
	}
}

// Start returns the parsed StartDate.
func (c *Config) Start() time.Time {
	t, _ := time.Parse(DateLayout, c.StartDate)
	return t
}

// End returns the parsed EndDate.
func (c *Config) End() time.Time {
	t, _ := time.Parse(DateLayout, c.EndDate)
	return t
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.StorageDir) == "" {
		return fmt.Errorf("%w: storage_dir must not be empty", ErrInvalidConfig)
	}
	start, err := time.Parse(DateLayout, c.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start_date: %v", ErrInvalidConfig, err)
	}
	end, err := time.Parse(DateLayout, c.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end_date: %v", ErrInvalidConfig, err)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end_date %s is before start_date %s", ErrInvalidConfig, c.EndDate, c.StartDate)
	}
	if c.FetchParallel < 1 {
		return fmt.Errorf("%w: fetch_parallel must be positive", ErrInvalidConfig)
	}
	switch c.CacheBackend {
	case "file", "redis":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: s3_bucket is required for the s3 cache backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache_backend %q", ErrInvalidConfig, c.CacheBackend)
	}
	switch c.Repository {
	case "memory":
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: database_dsn is required for the postgres repository", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown repository %q", ErrInvalidConfig, c.Repository)
	}
	switch c.OutputFormat {
	case "json", "yaml":
	default:
		return fmt.Errorf("%w: unknown output_format %q", ErrInvalidConfig, c.OutputFormat)
	}
	return nil
}
