// Package loader - Configuration Types
//
// Defines the YAML configuration structure for soilwatchd.
//
//	listen:   HTTP listen address
//	http:     server timeouts, CORS origins
//	store:    record store engine and pool
//	logging:  level and format
//	export:   scheduled Parquet snapshots
//	mirror:   optional InfluxDB copy of ingested points
//	stats:    latency sketch accuracy
package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/soilwatch/config"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for soilwatchd.
type Config struct {
	// Listen is the HTTP server listen address.
	// Format: "host:port" or ":port"
	// Default: "0.0.0.0:8000"
	Listen string `yaml:"listen"`

	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Export  ExportConfig  `yaml:"export"`
	Mirror  MirrorConfig  `yaml:"mirror"`
	Stats   StatsConfig   `yaml:"stats"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// CORSOrigins lists browser origins allowed to call the API.
	// Empty allows every origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

// StoreConfig configures the record store.
type StoreConfig struct {
	// Driver is one of duckdb, sqlite3 or pgx.
	Driver string `yaml:"driver"`

	// DSN is the driver connection string. For duckdb and sqlite3 it
	// is a file path; empty means in-memory.
	DSN string `yaml:"dsn"`

	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    Duration `yaml:"query_timeout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ExportConfig configures Parquet snapshots.
type ExportConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Dir         string   `yaml:"dir"`
	Schedule    string   `yaml:"schedule"`
	Compression string   `yaml:"compression"`
	Timeout     Duration `yaml:"timeout"`
}

// MirrorConfig configures the InfluxDB mirror.
type MirrorConfig struct {
	Enabled   bool     `yaml:"enabled"`
	URL       string   `yaml:"url"`
	Token     string   `yaml:"token"`
	Org       string   `yaml:"org"`
	Bucket    string   `yaml:"bucket"`
	Timeout   Duration `yaml:"timeout"`
	QueueSize int      `yaml:"queue_size"`
}

// StatsConfig configures request statistics.
type StatsConfig struct {
	// Accuracy is the relative accuracy of latency quantiles, in (0, 1).
	Accuracy float64 `yaml:"accuracy"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: config.DefaultListenAddress,

		HTTP: HTTPConfig{
			ReadTimeout:     Duration(config.DefaultReadTimeout),
			WriteTimeout:    Duration(config.DefaultWriteTimeout),
			IdleTimeout:     Duration(config.DefaultIdleTimeout),
			ShutdownTimeout: Duration(config.DefaultShutdownTimeout),
		},

		Store: StoreConfig{
			Driver:          config.DefaultStoreDriver,
			DSN:             config.DefaultStoreDSN,
			MaxOpenConns:    config.DefaultMaxOpenConns,
			MaxIdleConns:    config.DefaultMaxIdleConns,
			ConnMaxLifetime: Duration(config.DefaultConnMaxLifetime),
			QueryTimeout:    Duration(config.DefaultQueryTimeout),
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Export: ExportConfig{
			Dir:         config.DefaultExportDir,
			Schedule:    config.DefaultExportSchedule,
			Compression: config.DefaultExportCompression,
			Timeout:     Duration(config.DefaultExportTimeout),
		},

		Mirror: MirrorConfig{
			Timeout:   Duration(config.DefaultMirrorTimeout),
			QueueSize: config.DefaultMirrorQueueSize,
		},

		Stats: StatsConfig{
			Accuracy: config.DefaultSketchAccuracy,
		},
	}
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Strings use time.ParseDuration; plain integers are seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
