package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/pairing"
)

// FileName is the default config file written by `taxprep init`.
const FileName = "taxprep.yaml"

// Environment variables that override file settings.
const (
	EnvEnrichEndpoint = "TAXPREP_ENRICH_ENDPOINT"
	EnvCacheDB        = "TAXPREP_CACHE_DB"
	EnvLogLevel       = "TAXPREP_LOG_LEVEL"
	EnvPort           = "PORT"
)

// Config represents the top-level taxprep.yaml configuration.
type Config struct {
	Taxpayer   TaxpayerConfig   `yaml:"taxpayer"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Pairing    pairing.Params   `yaml:"pairing"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	RulesPath  string           `yaml:"rules_path,omitempty"` // empty means the built-in tables
	LogLevel   string           `yaml:"log_level"`
}

// TaxpayerConfig describes the person the draft is prepared for.
type TaxpayerConfig struct {
	Occupation string   `yaml:"occupation"`
	Employers  []string `yaml:"employers,omitempty"`
}

// AnalysisConfig holds the per-run switches.
type AnalysisConfig struct {
	IncludePossible bool `yaml:"include_possible"`
	StrictTransfers bool `yaml:"strict_transfers"`
	ReviewLimit     int  `yaml:"review_limit"`
}

// EnrichmentConfig controls the merchant enrichment client and service.
type EnrichmentConfig struct {
	Endpoint          string        `yaml:"endpoint,omitempty"` // empty means in-process lookup
	BatchSize         int           `yaml:"batch_size"`
	MaxBatch          int           `yaml:"max_batch"`
	Concurrency       int           `yaml:"concurrency"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CacheDB           string        `yaml:"cache_db"`
	Addr              string        `yaml:"addr"`
}

// Load reads a taxprep.yaml file from disk. Missing sections keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("", nil)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default("", nil), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(occupation string, employers []string) *Config {
	return &Config{
		Taxpayer: TaxpayerConfig{
			Occupation: occupation,
			Employers:  employers,
		},
		Analysis: AnalysisConfig{
			StrictTransfers: true,
			ReviewLimit:     80,
		},
		Pairing: pairing.DefaultParams(),
		Enrichment: EnrichmentConfig{
			BatchSize:         20,
			MaxBatch:          250,
			Concurrency:       3,
			Timeout:           15 * time.Second,
			RequestsPerSecond: 2,
			CacheDB:           "merchant-intel.db",
			Addr:              ":3000",
		},
		LogLevel: "info",
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Analysis.ReviewLimit < 0 {
		problems = append(problems, "analysis.review_limit must not be negative")
	}
	if c.Pairing.TransferWindowDays < 0 || c.Pairing.ReversalWindowDays < 0 {
		problems = append(problems, "pairing windows must not be negative")
	}
	if c.Pairing.ReversalMinScore < 0 || c.Pairing.ReversalMinScore > 2 {
		problems = append(problems, "pairing.reversal_min_score must be between 0 and 2")
	}
	e := c.Enrichment
	if e.BatchSize <= 0 || e.MaxBatch <= 0 || e.BatchSize > e.MaxBatch {
		problems = append(problems, "enrichment.batch_size must be positive and at most max_batch")
	}
	if e.Concurrency <= 0 {
		problems = append(problems, "enrichment.concurrency must be positive")
	}
	if e.Timeout <= 0 {
		problems = append(problems, "enrichment.timeout must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ApplyEnv overlays environment settings on cfg. Values already in the
// process environment win over those read from envFile; a missing envFile
// is not an error.
func ApplyEnv(cfg *Config, envFile string) error {
	fileEnv := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileEnv = vals
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	getEnv := func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		return fileEnv[key]
	}

	if v := getEnv(EnvEnrichEndpoint); v != "" {
		cfg.Enrichment.Endpoint = v
	}
	if v := getEnv(EnvCacheDB); v != "" {
		cfg.Enrichment.CacheDB = v
	}
	if v := getEnv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv(EnvPort); v != "" {
		cfg.Enrichment.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	return nil
}
