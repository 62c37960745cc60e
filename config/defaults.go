// Package config provides configuration defaults for soilwatch.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or SOILWATCH_* environment
// variables.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default HTTP listen address.
	// Override via config: listen
	DefaultListenAddress = "0.0.0.0:8000"

	// DefaultReadTimeout bounds reading a full request.
	// Override via config: http.read_timeout
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout bounds writing a response.
	// Override via config: http.write_timeout
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout is how long keep-alive connections stay open.
	// Override via config: http.idle_timeout
	DefaultIdleTimeout = 60 * time.Second

	// DefaultMaxBodyBytes limits a POST payload.
	DefaultMaxBodyBytes = 1 << 20
)

// =============================================================================
// Store Defaults
// =============================================================================

const (
	// DefaultStoreDriver is the embedded engine used when none is configured.
	// Override via config: store.driver
	DefaultStoreDriver = "duckdb"

	// DefaultStoreDSN is the DuckDB database file.
	// Override via config: store.dsn
	DefaultStoreDSN = "soilwatch.duckdb"

	// DefaultMaxOpenConns is the connection pool size.
	// Override via config: store.max_open_conns
	DefaultMaxOpenConns = 25

	// DefaultMaxIdleConns is the number of idle pooled connections.
	// Override via config: store.max_idle_conns
	DefaultMaxIdleConns = 5

	// DefaultConnMaxLifetime recycles pooled connections.
	// Override via config: store.conn_max_lifetime
	DefaultConnMaxLifetime = 5 * time.Minute

	// DefaultQueryTimeout bounds one statement.
	// Override via config: store.query_timeout
	DefaultQueryTimeout = 30 * time.Second
)

// =============================================================================
// Export Defaults
// =============================================================================

const (
	// DefaultExportDir receives the Parquet snapshots.
	// Override via config: export.dir
	DefaultExportDir = "export"

	// DefaultExportSchedule is a standard cron expression or descriptor.
	// Override via config: export.schedule
	DefaultExportSchedule = "@daily"

	// DefaultExportCompression is one of none, snappy, gzip, zstd, lz4.
	// Override via config: export.compression
	DefaultExportCompression = "zstd"

	// DefaultExportTimeout bounds one scheduled export.
	DefaultExportTimeout = 10 * time.Minute
)

// =============================================================================
// Mirror Defaults
// =============================================================================

const (
	// DefaultMirrorTimeout bounds one InfluxDB write.
	// Override via config: mirror.timeout
	DefaultMirrorTimeout = 5 * time.Second

	// DefaultMirrorQueueSize is the number of points buffered before
	// new points are dropped.
	// Override via config: mirror.queue_size
	DefaultMirrorQueueSize = 1024
)

// =============================================================================
// Stats Defaults
// =============================================================================

const (
	// DefaultSketchAccuracy is the relative accuracy of latency quantiles.
	// Override via config: stats.accuracy
	DefaultSketchAccuracy = 0.01
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultShutdownTimeout is how long in-flight requests may finish
	// after a shutdown signal.
	// Override via config: http.shutdown_timeout
	DefaultShutdownTimeout = 10 * time.Second
)
