package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/soilwatch/internal/errors"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// BatchSize is the number of rows buffered before each Write call.
	BatchSize int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionZstd,
		BatchSize:   4096,
	}
}

// ParseCompressionType parses a compression type string. The empty
// string means none.
func ParseCompressionType(s string) (CompressionType, error) {
	switch strings.ToLower(s) {
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "gzip":
		return CompressionGzip, nil
	case "none", "":
		return CompressionNone, nil
	default:
		return CompressionNone, errors.NewInvalidValue("export.compression", s, "must be one of none, snappy, zstd, lz4, gzip")
	}
}

func (ct CompressionType) String() string {
	switch ct {
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionGzip:
		return "gzip"
	default:
		return "none"
	}
}

// codec returns the parquet-go compression codec.
func (ct CompressionType) codec() compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")

// =============================================================================
// Table Writer
// =============================================================================

// tableWriter writes rows of one table to a temporary file and renames
// it into place on Close, so readers never see a partial file.
type tableWriter[R any] struct {
	mu       sync.Mutex
	path     string
	tmp      string
	file     *os.File
	writer   *parquet.GenericWriter[R]
	batch    []R
	rowCount int64
	closed   bool
}

func newTableWriter[R any](path string, opts Options) (*tableWriter[R], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultOptions().BatchSize
	}

	return &tableWriter[R]{
		path:   path,
		tmp:    tmp,
		file:   f,
		writer: parquet.NewGenericWriter[R](f, parquet.Compression(opts.Compression.codec())),
		batch:  make([]R, 0, opts.BatchSize),
	}, nil
}

// Add buffers one row and flushes a full batch.
func (w *tableWriter[R]) Add(row R) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	w.batch = append(w.batch, row)
	if len(w.batch) == cap(w.batch) {
		return w.flush()
	}
	return nil
}

func (w *tableWriter[R]) flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	n, err := w.writer.Write(w.batch)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.rowCount += int64(n)
	w.batch = w.batch[:0]
	return nil
}

// Close flushes, closes and renames the file into place.
func (w *tableWriter[R]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flush(); err != nil {
		w.discard()
		return err
	}
	if err := w.writer.Close(); err != nil {
		w.discard()
		return fmt.Errorf("close writer: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// Abort closes the writer and removes the partial file.
func (w *tableWriter[R]) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.discard()
}

func (w *tableWriter[R]) discard() {
	w.file.Close()
	os.Remove(w.tmp)
}

// RowCount returns the number of rows written.
func (w *tableWriter[R]) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// =============================================================================
// Reader
// =============================================================================

// ReadRows reads every row of a file written by this package.
func ReadRows[R any](path string) ([]R, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[R](f)
	defer reader.Close()

	rows := make([]R, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows[:n], nil
}
