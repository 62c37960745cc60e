// Package loader handles configuration file loading and validation.
//
// This package is responsible for:
//   - Loading the .env file and the YAML configuration file
//   - Expanding environment variables and applying SOILWATCH_* overrides
//   - Validating the merged configuration
//   - Converting between YAML and internal representations
package loader

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/export"
	"github.com/xtxerr/soilwatch/internal/logging"
	"github.com/xtxerr/soilwatch/internal/mirror"
	"github.com/xtxerr/soilwatch/internal/server"
	"github.com/xtxerr/soilwatch/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SOILWATCH_"

// =============================================================================
// Load
// =============================================================================

// LoadEnv loads KEY=VALUE pairs from a .env file into the process
// environment. Variables already set are not overwritten and a missing
// file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load loads configuration from a YAML file, applies environment
// overrides and validates the result. An empty path yields the defaults
// with overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides cfg from SOILWATCH_* variables found by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	str("LISTEN", &cfg.Listen)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_DSN", &cfg.Store.DSN)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("EXPORT_DIR", &cfg.Export.Dir)
	str("MIRROR_URL", &cfg.Mirror.URL)
	str("MIRROR_TOKEN", &cfg.Mirror.Token)
	str("MIRROR_ORG", &cfg.Mirror.Org)
	str("MIRROR_BUCKET", &cfg.Mirror.Bucket)

	var errs []error
	boolean := func(name string, dst *bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, errors.NewInvalidValue(EnvPrefix+name, v, "must be a boolean"))
			return
		}
		*dst = b
	}

	boolean("LOG_JSON", &cfg.Logging.JSON)
	boolean("EXPORT_ENABLED", &cfg.Export.Enabled)
	boolean("MIRROR_ENABLED", &cfg.Mirror.Enabled)

	return errors.Join(errs...)
}

// =============================================================================
// Validate
// =============================================================================

// Validate checks the configuration and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Listen) == "" {
		errs = append(errs, errors.NewMissingField("listen"))
	}

	for name, d := range map[string]Duration{
		"http.read_timeout":       cfg.HTTP.ReadTimeout,
		"http.write_timeout":      cfg.HTTP.WriteTimeout,
		"http.idle_timeout":       cfg.HTTP.IdleTimeout,
		"http.shutdown_timeout":   cfg.HTTP.ShutdownTimeout,
		"store.conn_max_lifetime": cfg.Store.ConnMaxLifetime,
		"store.query_timeout":     cfg.Store.QueryTimeout,
		"export.timeout":          cfg.Export.Timeout,
		"mirror.timeout":          cfg.Mirror.Timeout,
	} {
		if d < 0 {
			errs = append(errs, errors.NewInvalidValue(name, d.Duration(), "must not be negative"))
		}
	}

	if err := store.ValidateDriver(cfg.Store.Driver); err != nil {
		errs = append(errs, fmt.Errorf("store.driver: %w: %w", errors.ErrInvalidConfig, err))
	}
	if cfg.Store.MaxOpenConns < 0 {
		errs = append(errs, errors.NewInvalidValue("store.max_open_conns", cfg.Store.MaxOpenConns, "must not be negative"))
	}
	if cfg.Store.MaxIdleConns < 0 {
		errs = append(errs, errors.NewInvalidValue("store.max_idle_conns", cfg.Store.MaxIdleConns, "must not be negative"))
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, errors.NewInvalidValue("logging.level", cfg.Logging.Level, "must be debug, info, warn or error"))
	}

	if err := ToExportConfig(cfg).Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := ToMirrorConfig(cfg).Validate(); err != nil {
		errs = append(errs, err)
	}

	if a := cfg.Stats.Accuracy; a <= 0 || a >= 1 {
		errs = append(errs, errors.NewInvalidValue("stats.accuracy", a, "must be between 0 and 1"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", errors.ErrInvalidConfig, errors.Join(errs...))
}

// =============================================================================
// Conversion: Config → Component Configs
// =============================================================================

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return level
}

// ToServerConfig converts the listen and http sections.
func ToServerConfig(cfg *Config) server.Config {
	return server.Config{
		Listen:          cfg.Listen,
		ReadTimeout:     cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout:    cfg.HTTP.WriteTimeout.Duration(),
		IdleTimeout:     cfg.HTTP.IdleTimeout.Duration(),
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout.Duration(),
		CORSOrigins:     cfg.HTTP.CORSOrigins,
	}
}

// ToStoreConfig converts the store section.
func ToStoreConfig(cfg *Config) store.Config {
	return store.Config{
		Driver:          cfg.Store.Driver,
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime.Duration(),
		QueryTimeout:    cfg.Store.QueryTimeout.Duration(),
	}
}

// ToExportConfig converts the export section.
func ToExportConfig(cfg *Config) export.Config {
	return export.Config{
		Enabled:     cfg.Export.Enabled,
		Dir:         cfg.Export.Dir,
		Schedule:    cfg.Export.Schedule,
		Compression: cfg.Export.Compression,
	}
}

// ToMirrorConfig converts the mirror section.
func ToMirrorConfig(cfg *Config) mirror.Config {
	return mirror.Config{
		Enabled:   cfg.Mirror.Enabled,
		URL:       cfg.Mirror.URL,
		Token:     cfg.Mirror.Token,
		Org:       cfg.Mirror.Org,
		Bucket:    cfg.Mirror.Bucket,
		Timeout:   cfg.Mirror.Timeout.Duration(),
		QueueSize: cfg.Mirror.QueueSize,
	}
}
