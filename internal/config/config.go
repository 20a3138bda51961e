// Package config loads schemareg settings from defaults, schemareg.yaml,
// SCHEMAREG_* environment variables and command flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/schemareg/internal/db"
	"github.com/example/schemareg/internal/tracing"
)

const (
	// EnvPrefix prefixes every environment override, e.g. SCHEMAREG_DATABASE_DRIVER.
	EnvPrefix = "SCHEMAREG"

	maxWalkDepth = 25
)

// FileNames are the config file names looked up while walking towards the repo root.
var FileNames = []string{"schemareg.yaml", "schemareg.yml"}

// Config represents the schemareg configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
	Tracing  tracing.Config `mapstructure:"tracing" json:"tracing"`
	Ingest   IngestConfig   `mapstructure:"ingest" json:"ingest"`
	Resolver ResolverConfig `mapstructure:"resolver" json:"resolver"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" json:"driver"` // "sqlite" or "postgres"
	Path   string `mapstructure:"path" json:"path"`     // sqlite file
	URL    string `mapstructure:"url" json:"url"`       // postgres connection string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"` // empty logs to stderr
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	// FullPass recomputes historical versions on every batch.
	FullPass bool `mapstructure:"full_pass" json:"full_pass"`
}

// ResolverConfig tunes the compiled pattern cache.
type ResolverConfig struct {
	CacheExpiration time.Duration `mapstructure:"cache_expiration" json:"cache_expiration"`
	CacheCleanup    time.Duration `mapstructure:"cache_cleanup" json:"cache_cleanup"`
}

// Load discovers and loads configuration with precedence
// flags > env > config file > defaults. v may carry bound flags; nil starts
// from a fresh viper instance.
//
// Returns the loaded config and the path of the config file used (empty if none).
func Load(v *viper.Viper, explicitPath string) (*Config, string, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", db.DriverSQLite)
	v.SetDefault("database.path", "")
	v.SetDefault("database.url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("ingest.full_pass", false)

	v.SetDefault("resolver.cache_expiration", 30*time.Minute)
	v.SetDefault("resolver.cache_cleanup", time.Hour)
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case db.DriverSQLite:
	case db.DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the %s driver", db.DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q (want %s or %s)", c.Database.Driver, db.DriverSQLite, db.DriverPostgres)
	}

	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unsupported tracing.exporter %q", c.Tracing.Exporter)
	}
	return nil
}

// SQLitePath returns the configured sqlite file, falling back to ~/.schemareg/schemareg.db.
func (c *Config) SQLitePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	return db.DefaultSQLitePath()
}

// findConfigFile returns explicitPath if given, otherwise walks up from cwd
// looking for schemareg.yaml, stopping at a .git directory.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}
