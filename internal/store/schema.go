package store

import (
	"context"
	"fmt"
)

// =============================================================================
// Schema Migration
// =============================================================================

// Timestamps are BIGINT Unix nanoseconds in UTC and percentages are BIGINT
// hundredths, so DuckDB, SQLite and PostgreSQL all round-trip them exactly.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "collector_status",
		sql: `CREATE TABLE IF NOT EXISTS collector_status (
			collector_id   BIGINT NOT NULL,
			start_date_ns  BIGINT NOT NULL,
			end_date_ns    BIGINT,
			crop           TEXT   NOT NULL,
			PRIMARY KEY (collector_id, start_date_ns)
		)`,
	},
	{
		name: "collector_record",
		sql: `CREATE TABLE IF NOT EXISTS collector_record (
			collector_id        BIGINT NOT NULL,
			collection_date_ns  BIGINT NOT NULL,
			read_humidity       BIGINT NOT NULL,
			PRIMARY KEY (collector_id, collection_date_ns)
		)`,
	},
	{
		name: "calculated_humidity",
		sql: `CREATE TABLE IF NOT EXISTS calculated_humidity (
			collector_id         BIGINT NOT NULL,
			calculation_date_ns  BIGINT NOT NULL,
			humidity_centi       BIGINT NOT NULL,
			PRIMARY KEY (collector_id, calculation_date_ns)
		)`,
	},
	{
		name: "receptor_status",
		sql: `CREATE TABLE IF NOT EXISTS receptor_status (
			update_date_ns     BIGINT NOT NULL PRIMARY KEY,
			records_in_buffer  BIGINT NOT NULL
		)`,
	},
}

// migrate creates the tables. It is idempotent - safe to run on every start.
func (s *Store) migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		log.Debug("applied migration", "name", m.name)
	}
	return nil
}
