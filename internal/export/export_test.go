package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/store"
	tu "github.com/xtxerr/soilwatch/internal/testing"
	"github.com/xtxerr/soilwatch/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "export.duckdb")
	s, err := store.New(cfg)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	base := tu.Date(2024, 5, 1)
	end := base.Add(48 * time.Hour)

	if _, err := s.Statuses.Insert(ctx, 2, types.StatusEntry{StartDate: base, EndDate: &end, Crop: "soy"}); err != nil {
		t.Fatalf("Insert status: %v", err)
	}
	if _, err := s.Statuses.Insert(ctx, 1, types.StatusEntry{StartDate: base, Crop: "corn"}); err != nil {
		t.Fatalf("Insert status: %v", err)
	}
	for h := 0; h < 3; h++ {
		at := base.Add(time.Duration(h) * time.Hour)
		if _, err := s.Records.Insert(ctx, 1, types.RecordEntry{CollectionDate: at, ReadHumidity: int64(500 + h)}); err != nil {
			t.Fatalf("Insert record: %v", err)
		}
	}
	p, _ := types.ParsePercentage("37.25")
	if _, err := s.Humidities.Insert(ctx, 1, types.HumidityEntry{CalculationDate: base, HumidityPercentage: p}); err != nil {
		t.Fatalf("Insert humidity: %v", err)
	}
	if _, err := s.Gateway.Append(ctx, types.GatewayEntry{UpdateDate: base, RecordsInBuffer: 12}); err != nil {
		t.Fatalf("Append gateway: %v", err)
	}
}

func TestExportRun(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	dir := filepath.Join(t.TempDir(), "out")
	e := New(s, dir, DefaultOptions())
	e.now = func() time.Time { return time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC) }

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Tables) != 4 || res.Rows() != 7 {
		t.Fatalf("Result = %+v", res)
	}

	want := map[string]int64{
		"collector_status":    2,
		"collector_record":    3,
		"calculated_humidity": 1,
		"receptor_status":     1,
	}
	for _, tr := range res.Tables {
		if want[tr.Table] != tr.Rows {
			t.Errorf("%s rows = %d, want %d", tr.Table, tr.Rows, want[tr.Table])
		}
		if filepath.Base(tr.Path) != tr.Table+"-20240601T030000.000Z.parquet" {
			t.Errorf("path = %s", tr.Path)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, de := range entries {
		if strings.HasSuffix(de.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", de.Name())
		}
	}

	statuses, err := ReadRows[StatusRow](res.Tables[0].Path)
	if err != nil {
		t.Fatalf("ReadRows status: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("status rows = %d", len(statuses))
	}
	id, first := RowToStatus(statuses[0])
	if id != 1 || first.Crop != "corn" || first.EndDate != nil {
		t.Errorf("first status = %d %+v", id, first)
	}
	id, second := RowToStatus(statuses[1])
	if id != 2 || second.EndDate == nil || !second.EndDate.Equal(tu.Date(2024, 5, 3)) {
		t.Errorf("second status = %d %+v", id, second)
	}

	humidity, err := ReadRows[HumidityRow](res.Tables[2].Path)
	if err != nil {
		t.Fatalf("ReadRows humidity: %v", err)
	}
	if len(humidity) != 1 || humidity[0].HumidityCenti != 3725 {
		t.Errorf("humidity rows = %+v", humidity)
	}

	gateway, err := ReadRows[GatewayRow](res.Tables[3].Path)
	if err != nil {
		t.Fatalf("ReadRows gateway: %v", err)
	}
	if len(gateway) != 1 || gateway[0].RecordsInBuffer != 12 {
		t.Errorf("gateway rows = %+v", gateway)
	}
}

func TestExportEmptyStore(t *testing.T) {
	s := newTestStore(t)
	e := New(s, t.TempDir(), Options{Compression: CompressionNone})

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rows() != 0 || len(res.Tables) != 4 {
		t.Errorf("Result = %+v", res)
	}
	rows, err := ReadRows[RecordRow](res.Tables[1].Path)
	if err != nil || len(rows) != 0 {
		t.Errorf("ReadRows = %v, %v", rows, err)
	}
}

func TestExportClosedStore(t *testing.T) {
	s := newTestStore(t)
	s.Close()
	if _, err := New(s, t.TempDir(), DefaultOptions()).Run(context.Background()); err == nil {
		t.Error("Run on a closed store should fail")
	}
}

func TestTableWriterBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.parquet")
	w, err := newTableWriter[RecordRow](path, Options{Compression: CompressionSnappy, BatchSize: 3})
	if err != nil {
		t.Fatalf("newTableWriter: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := w.Add(RecordRow{CollectorID: 1, CollectionDateNs: int64(i), ReadHumidity: int64(i)}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.RowCount() != 10 {
		t.Errorf("RowCount = %d, want 10", w.RowCount())
	}
	if err := w.Add(RecordRow{}); err != ErrWriterClosed {
		t.Errorf("Add after Close: err = %v", err)
	}

	rows, err := ReadRows[RecordRow](path)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 10 || rows[9].ReadHumidity != 9 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestTableWriterAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.parquet")
	w, err := newTableWriter[GatewayRow](path, DefaultOptions())
	if err != nil {
		t.Fatalf("newTableWriter: %v", err)
	}
	w.Add(GatewayRow{UpdateDateNs: 1})
	w.Abort()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Abort left %d files", len(entries))
	}
}

func TestParseCompressionType(t *testing.T) {
	tests := map[string]CompressionType{
		"":       CompressionNone,
		"none":   CompressionNone,
		"snappy": CompressionSnappy,
		"ZSTD":   CompressionZstd,
		"lz4":    CompressionLZ4,
		"gzip":   CompressionGzip,
	}
	for in, want := range tests {
		got, err := ParseCompressionType(in)
		if err != nil || got != want {
			t.Errorf("ParseCompressionType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	for _, in := range []string{"brotli", "zstandard"} {
		if _, err := ParseCompressionType(in); !errors.Is(err, errors.ErrInvalidValue) {
			t.Errorf("ParseCompressionType(%q) error = %v, want ErrInvalidValue", in, err)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled config: %v", err)
	}

	cfg.Enabled = true
	cfg.Schedule = "not a schedule"
	if err := cfg.Validate(); err == nil {
		t.Error("bad schedule should fail")
	}

	cfg.Schedule = "0 3 * * *"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config: %v", err)
	}

	cfg.Compression = "zsdt"
	if err := cfg.Validate(); !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("unknown compression: err = %v", err)
	}
	cfg.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Error("unknown compression should fail even when disabled")
	}
	if _, err := NewFromConfig(nil, cfg); err == nil {
		t.Error("NewFromConfig should reject an unknown compression")
	}
}

func TestSchedulerRuns(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	sched, err := NewScheduler(New(s, t.TempDir(), DefaultOptions()), "@every 1s", time.Minute)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	err = tu.Eventually(5*time.Second, 20*time.Millisecond, func() bool {
		_, runs, _ := sched.Last()
		return runs >= 1
	})
	cancel()
	<-done
	if err != nil {
		t.Fatalf("scheduler never ran: %v", err)
	}

	res, _, runErr := sched.Last()
	if runErr != nil || res.Rows() != 7 {
		t.Errorf("Last = %+v, %v", res, runErr)
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewScheduler(nil, "every day", 0); err == nil {
		t.Error("NewScheduler should reject a bad spec")
	}
}
