package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xtxerr/soilwatch/internal/constants"
	"github.com/xtxerr/soilwatch/internal/types"
	"github.com/xtxerr/soilwatch/internal/validation"
)

// =============================================================================
// Series
// =============================================================================

// Series is one append-only, time-keyed table. A grouped series is keyed
// by (collector_id, timestamp) and an ungrouped series by timestamp alone.
//
// The four record kinds are instances of Series; the ranking and window
// logic below is shared by all of them.
type Series[E types.Entry] struct {
	store   *Store
	table   string
	grouped bool

	// order is the timestamp column that defines "most recent".
	order string

	// columns are the entry's columns, timestamp first.
	columns []string

	// values returns the driver arguments for columns, in order.
	values func(E) []any

	// decode reads one entry from columns, in order.
	decode func(scan func(dest ...any) error) (E, error)
}

// Table returns the table name.
func (s *Series[E]) Table() string {
	return s.table
}

// Grouped reports whether entries carry a collector_id.
func (s *Series[E]) Grouped() bool {
	return s.grouped
}

func (s *Series[E]) columnList() string {
	return strings.Join(s.columns, ", ")
}

func (s *Series[E]) requireGrouped(op string) error {
	if !s.grouped {
		return fmt.Errorf("%s: %s has no collector key: %w", op, s.table, ErrDatabase)
	}
	return nil
}

// =============================================================================
// Insert
// =============================================================================

// Insert stores e for collectorID if the key is absent and returns the
// stored row. A colliding key returns ErrDuplicateKey.
func (s *Series[E]) Insert(ctx context.Context, collectorID int64, e E) (E, error) {
	if err := s.requireGrouped("insert"); err != nil {
		var zero E
		return zero, err
	}
	return s.insert(ctx, []string{constants.ColCollectorID}, []any{collectorID}, e)
}

// Append stores e in an ungrouped series.
func (s *Series[E]) Append(ctx context.Context, e E) (E, error) {
	if s.grouped {
		var zero E
		return zero, fmt.Errorf("append: %s requires a collector: %w", s.table, ErrDatabase)
	}
	return s.insert(ctx, nil, nil, e)
}

func (s *Series[E]) insert(ctx context.Context, keyCols []string, keyArgs []any, e E) (E, error) {
	var zero E

	db, err := s.store.conn()
	if err != nil {
		return zero, err
	}

	cols := append(append([]string{}, keyCols...), s.columns...)
	args := append(append([]any{}, keyArgs...), s.values(e)...)

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		s.table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		s.columnList(),
	)

	ctx, cancel := s.store.withTimeout(ctx)
	defer cancel()

	row := db.QueryRowContext(ctx, s.store.dialect.rebind(query), args...)
	stored, err := s.decode(row.Scan)
	if err != nil {
		return zero, classify(err, "insert "+s.table)
	}
	return stored, nil
}

// =============================================================================
// Windows
// =============================================================================

// Device returns rows [offset, offset+limit) of one collector, most recent
// first. A collector without rows in that range returns ErrNotFound.
func (s *Series[E]) Device(ctx context.Context, collectorID int64, w validation.Window) (types.Group[E], error) {
	group := types.Group[E]{CollectorID: collectorID}

	if err := s.requireGrouped("device window"); err != nil {
		return group, err
	}
	if err := w.Validate(); err != nil {
		return group, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ? ORDER BY %s DESC LIMIT ? OFFSET ?",
		s.columnList(), s.table, constants.ColCollectorID, s.order,
	)

	data, err := s.list(ctx, query, collectorID, w.Limit, w.Offset)
	if err != nil {
		return group, err
	}
	if len(data) == 0 {
		return group, fmt.Errorf("%s collector %d: %w", s.table, collectorID, ErrNotFound)
	}

	group.Data = data
	return group, nil
}

// Latest returns rows [offset, offset+limit) of an ungrouped series, most
// recent first. An empty window returns ErrNotFound.
func (s *Series[E]) Latest(ctx context.Context, w validation.Window) ([]E, error) {
	if s.grouped {
		return nil, fmt.Errorf("latest: %s is grouped by collector: %w", s.table, ErrDatabase)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s DESC LIMIT ? OFFSET ?",
		s.columnList(), s.table, s.order,
	)

	data, err := s.list(ctx, query, w.Limit, w.Offset)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", s.table, ErrNotFound)
	}
	return data, nil
}

// AllDevices ranks every collector's rows independently (rank 0 is the
// collector's most recent row) and keeps ranks in the closed interval
// [offset, offset+limit], so each collector contributes up to limit+1
// rows. Groups are ordered by ascending collector_id and collectors with
// no qualifying rows are omitted. An empty result is not an error.
func (s *Series[E]) AllDevices(ctx context.Context, w validation.Window) ([]types.Group[E], error) {
	if err := s.requireGrouped("all-devices window"); err != nil {
		return nil, err
	}

	lo, hi, err := w.InclusiveRange()
	if err != nil {
		return nil, err
	}

	db, err := s.store.conn()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %[1]s, %[2]s, rn FROM (
		SELECT %[1]s, %[2]s,
			ROW_NUMBER() OVER (PARTITION BY %[1]s ORDER BY %[3]s DESC) - 1 AS rn
		FROM %[4]s
	) ranked
	WHERE rn BETWEEN ? AND ?
	ORDER BY %[1]s, rn`,
		constants.ColCollectorID, s.columnList(), s.order, s.table,
	)

	ctx, cancel := s.store.withTimeout(ctx)
	defer cancel()

	rows, err := db.QueryContext(ctx, s.store.dialect.rebind(query), lo, hi)
	if err != nil {
		return nil, classify(err, "rank "+s.table)
	}
	defer rows.Close()

	groups := []types.Group[E]{}
	for rows.Next() {
		var (
			collectorID int64
			rank        int64
		)
		e, err := s.decode(func(dest ...any) error {
			all := make([]any, 0, len(dest)+2)
			all = append(all, &collectorID)
			all = append(all, dest...)
			all = append(all, &rank)
			return rows.Scan(all...)
		})
		if err != nil {
			return nil, classify(err, "scan "+s.table)
		}

		n := len(groups)
		if n == 0 || groups[n-1].CollectorID != collectorID {
			groups = append(groups, types.Group[E]{CollectorID: collectorID})
			n++
		}
		groups[n-1].Data = append(groups[n-1].Data, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate "+s.table)
	}

	return groups, nil
}

// list runs a query returning entry columns.
func (s *Series[E]) list(ctx context.Context, query string, args ...any) ([]E, error) {
	db, err := s.store.conn()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.store.withTimeout(ctx)
	defer cancel()

	rows, err := db.QueryContext(ctx, s.store.dialect.rebind(query), args...)
	if err != nil {
		return nil, classify(err, "query "+s.table)
	}
	defer rows.Close()

	var out []E
	for rows.Next() {
		e, err := s.decode(rows.Scan)
		if err != nil {
			return nil, classify(err, "scan "+s.table)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate "+s.table)
	}
	return out, nil
}

// =============================================================================
// Full Scans
// =============================================================================

// Each streams every row of the table in key order inside tx.
// collectorID is zero for ungrouped series.
func (s *Series[E]) Each(ctx context.Context, tx *sql.Tx, fn func(collectorID int64, e E) error) error {
	cols := s.columnList()
	order := s.order
	if s.grouped {
		cols = constants.ColCollectorID + ", " + cols
		order = constants.ColCollectorID + ", " + order
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", cols, s.table, order)

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return classify(err, "scan "+s.table)
	}
	defer rows.Close()

	for rows.Next() {
		var collectorID int64
		e, err := s.decode(func(dest ...any) error {
			if !s.grouped {
				return rows.Scan(dest...)
			}
			return rows.Scan(append([]any{&collectorID}, dest...)...)
		})
		if err != nil {
			return classify(err, "scan "+s.table)
		}
		if err := fn(collectorID, e); err != nil {
			return err
		}
	}
	return classify(rows.Err(), "iterate "+s.table)
}

// Count returns the number of stored rows.
func (s *Series[E]) Count(ctx context.Context) (int64, error) {
	db, err := s.store.conn()
	if err != nil {
		return 0, err
	}

	ctx, cancel := s.store.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n); err != nil {
		return 0, classify(err, "count "+s.table)
	}
	return n, nil
}
