package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/marcboeker/go-duckdb"
	"github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// dialect captures what differs between engines. The SQL itself is
// shared: every engine supports window functions, LIMIT/OFFSET and
// INSERT ... RETURNING.
type dialect struct {
	name       string
	driverName string
	dollarArgs bool

	// readOnlyTx is false for engines that reject sql.TxOptions.ReadOnly.
	readOnlyTx bool
}

func lookupDialect(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverDuckDB:
		return dialect{name: DriverDuckDB, driverName: "duckdb"}, nil
	case DriverSQLite, "sqlite":
		return dialect{name: DriverSQLite, driverName: "sqlite3", readOnlyTx: true}, nil
	case DriverPostgres, "postgres", "postgresql":
		return dialect{name: DriverPostgres, driverName: "pgx", dollarArgs: true, readOnlyTx: true}, nil
	default:
		return dialect{}, fmt.Errorf("%q: %w", driver, ErrUnknownDriver)
	}
}

// ValidateDriver reports whether driver names a supported engine.
func ValidateDriver(driver string) error {
	_, err := lookupDialect(driver)
	return err
}

// prepareDSN adds engine options the store relies on.
func (d dialect) prepareDSN(dsn string) string {
	if d.name != DriverSQLite {
		return dsn
	}
	if dsn == "" {
		dsn = ":memory:"
	}
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_journal_mode=WAL"
}

// singleConn reports whether every connection must share one handle.
// Each SQLite in-memory connection would otherwise see its own database.
func (d dialect) singleConn(dsn string) bool {
	return d.name == DriverSQLite && (dsn == "" || strings.HasPrefix(dsn, ":memory:"))
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d dialect) rebind(query string) string {
	if !d.dollarArgs {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// isDuplicateKey reports whether err is a primary key or unique violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	var duckErr *duckdb.Error
	if errors.As(err, &duckErr) && duckErr.Type == duckdb.ErrorTypeConstraint {
		return true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	// Older DuckDB builds only report the constraint in the message.
	msg := err.Error()
	return strings.Contains(msg, "Constraint Error") && strings.Contains(msg, "Duplicate key")
}

// classify maps a driver error to the store's sentinel errors.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if isDuplicateKey(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDatabase, err)
}
