// Package export writes snapshots of the record tables to Parquet files.
//
// One run produces one file per table, named <table>-<UTC stamp>.parquet,
// all read inside a single read-only transaction.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xtxerr/soilwatch/config"
	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/logging"
	"github.com/xtxerr/soilwatch/internal/store"
	"github.com/xtxerr/soilwatch/internal/types"
)

var log = logging.Component("export")

// stampLayout names files by export time in UTC.
const stampLayout = "20060102T150405.000Z"

// Config configures scheduled exports.
type Config struct {
	Enabled     bool
	Dir         string
	Schedule    string
	Compression string
}

// DefaultConfig returns a disabled export configuration.
func DefaultConfig() Config {
	return Config{
		Dir:         config.DefaultExportDir,
		Schedule:    config.DefaultExportSchedule,
		Compression: config.DefaultExportCompression,
	}
}

// Validate checks the compression name, and the rest of an enabled
// configuration.
func (c Config) Validate() error {
	if _, err := ParseCompressionType(c.Compression); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.Dir == "" {
		errs = append(errs, errors.NewMissingField("export.dir"))
	}
	if err := ValidateSchedule(c.Schedule); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TableResult describes one written file.
type TableResult struct {
	Table string `json:"table"`
	Path  string `json:"path"`
	Rows  int64  `json:"rows"`
}

// Result describes one export run.
type Result struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Tables   []TableResult `json:"tables"`
}

// Rows returns the total number of exported rows.
func (r Result) Rows() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.Rows
	}
	return n
}

// Exporter writes table snapshots.
type Exporter struct {
	store *store.Store
	dir   string
	opts  Options
	now   func() time.Time
}

// New creates an Exporter writing into dir.
func New(s *store.Store, dir string, opts Options) *Exporter {
	return &Exporter{
		store: s,
		dir:   dir,
		opts:  opts,
		now:   time.Now,
	}
}

// NewFromConfig creates an Exporter from cfg.
func NewFromConfig(s *store.Store, cfg Config) (*Exporter, error) {
	compression, err := ParseCompressionType(cfg.Compression)
	if err != nil {
		return nil, err
	}
	opts := DefaultOptions()
	opts.Compression = compression
	return New(s, cfg.Dir, opts), nil
}

// Run exports all four tables.
func (e *Exporter) Run(ctx context.Context) (Result, error) {
	started := e.now().UTC()
	res := Result{Started: started}
	stamp := started.Format(stampLayout)

	err := e.store.Snapshot(ctx, func(tx *sql.Tx) error {
		steps := []func() (TableResult, error){
			func() (TableResult, error) {
				return exportSeries(ctx, tx, e.store.Statuses, e.path(e.store.Statuses.Table(), stamp), e.opts, StatusToRow)
			},
			func() (TableResult, error) {
				return exportSeries(ctx, tx, e.store.Records, e.path(e.store.Records.Table(), stamp), e.opts, RecordToRow)
			},
			func() (TableResult, error) {
				return exportSeries(ctx, tx, e.store.Humidities, e.path(e.store.Humidities.Table(), stamp), e.opts, HumidityToRow)
			},
			func() (TableResult, error) {
				return exportSeries(ctx, tx, e.store.Gateway, e.path(e.store.Gateway.Table(), stamp), e.opts, GatewayToRow)
			},
		}
		for _, step := range steps {
			tr, err := step()
			if err != nil {
				return err
			}
			res.Tables = append(res.Tables, tr)
		}
		return nil
	})
	res.Duration = time.Since(started)
	if err != nil {
		return res, fmt.Errorf("export: %w", err)
	}

	log.Info("export complete", "dir", e.dir, "rows", res.Rows(), "duration", res.Duration)
	return res, nil
}

func (e *Exporter) path(table, stamp string) string {
	return filepath.Join(e.dir, table+"-"+stamp+".parquet")
}

func exportSeries[E types.Entry, R any](ctx context.Context, tx *sql.Tx, s *store.Series[E], path string, opts Options, toRow func(int64, E) R) (TableResult, error) {
	w, err := newTableWriter[R](path, opts)
	if err != nil {
		return TableResult{}, err
	}

	err = s.Each(ctx, tx, func(collectorID int64, entry E) error {
		return w.Add(toRow(collectorID, entry))
	})
	if err != nil {
		w.Abort()
		return TableResult{}, fmt.Errorf("%s: %w", s.Table(), err)
	}
	if err := w.Close(); err != nil {
		return TableResult{}, fmt.Errorf("%s: %w", s.Table(), err)
	}

	log.Debug("table exported", "table", s.Table(), "rows", w.RowCount(), "path", path)
	return TableResult{Table: s.Table(), Path: path, Rows: w.RowCount()}, nil
}
