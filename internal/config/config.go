package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/quantmill/marketlake/internal/catalog"
	"github.com/quantmill/marketlake/internal/lakestore"
	"github.com/quantmill/marketlake/internal/logging"
	"github.com/quantmill/marketlake/internal/source"
)

// Config is the full process configuration: a YAML file with
// environment-variable overrides on top.
type Config struct {
	Bronze  source.ScannerConfig  `yaml:"bronze"`
	Lake    lakestore.Config      `yaml:"lake"`
	Catalog catalog.CatalogConfig `yaml:"catalog"`
	Logging logging.Config        `yaml:"logging"`
	Ingest  IngestConfig          `yaml:"ingest"`
	Metrics MetricsConfig         `yaml:"metrics"`
}

type IngestConfig struct {
	Workers int  `yaml:"workers"`
	Force   bool `yaml:"force"`
	DryRun  bool `yaml:"dry_run"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the YAML file at path (skipped when path is empty), layers
// environment overrides, fills defaults, and validates.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Bronze.BucketURL, "BRONZE_BUCKET_URL")
	setString(&cfg.Bronze.Prefix, "BRONZE_PREFIX")
	setString(&cfg.Lake.BucketURL, "LAKE_BUCKET_URL")
	setString(&cfg.Lake.Prefix, "LAKE_PREFIX")
	setString(&cfg.Lake.QuarantinePrefix, "QUARANTINE_PREFIX")
	setString(&cfg.Catalog.PostgresDSN, "CATALOG_DSN")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Metrics.Addr, "METRICS_ADDR")
	setInt(&cfg.Ingest.Workers, "INGEST_WORKERS")
	setBool(&cfg.Ingest.Force, "INGEST_FORCE")
	setBool(&cfg.Ingest.DryRun, "INGEST_DRY_RUN")
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate fails fast on settings the process cannot run without.
func (c Config) Validate() error {
	if c.Bronze.BucketURL == "" {
		return fmt.Errorf("bronze bucket URL is required")
	}
	if c.Lake.BucketURL == "" {
		return fmt.Errorf("lake bucket URL is required")
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest workers must be at least 1, got %d", c.Ingest.Workers)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}
