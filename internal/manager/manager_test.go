package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	c "github.com/xtxerr/soilwatch/internal/constants"
	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/store"
	tu "github.com/xtxerr/soilwatch/internal/testing"
	"github.com/xtxerr/soilwatch/internal/types"
)

type recorder struct {
	mu     sync.Mutex
	points []types.Point
}

func (r *recorder) Observe(_ context.Context, p types.Point) {
	r.mu.Lock()
	r.points = append(r.points, p)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.points)
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "manager.duckdb")
	s, err := store.New(cfg)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, opts...)
}

func TestCreateAndGetStatus(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, WithObserver(rec))
	ctx := context.Background()

	stored, err := m.CreateStatus(ctx, 7, types.StatusEntry{StartDate: tu.Date(2024, 1, 1), Crop: "  soy "})
	if err != nil {
		t.Fatalf("CreateStatus: %v", err)
	}
	if stored.Crop != "  soy " {
		t.Errorf("Crop = %q, want %q as given", stored.Crop, "  soy ")
	}
	if _, err := m.CreateStatus(ctx, 7, types.StatusEntry{StartDate: tu.Date(2024, 2, 1), Crop: "corn"}); err != nil {
		t.Fatalf("CreateStatus: %v", err)
	}

	g, err := m.GetStatus(ctx, 7, c.DefaultOffset, c.DefaultDeviceLimit)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if g.CollectorID != 7 || g.Len() != 2 || g.Data[0].Crop != "corn" || g.Data[1].Crop != "  soy " {
		t.Errorf("GetStatus = %+v", g)
	}

	if rec.len() != 2 {
		t.Errorf("observer saw %d points, want 2", rec.len())
	}
}

func TestGetUnknownCollector(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetRecords(context.Background(), 404, 0, 100)
	if !errors.Is(err, errors.ErrCollectorNotFound) {
		t.Fatalf("err = %v, want ErrCollectorNotFound", err)
	}
	if !errors.IsNotFound(err) {
		t.Error("IsNotFound should hold")
	}
}

func TestCreateConflict(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, WithObserver(rec))
	ctx := context.Background()

	e := types.RecordEntry{CollectionDate: tu.Date(2024, 5, 5), ReadHumidity: 512}
	if _, err := m.CreateRecord(ctx, 1, e); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	e.ReadHumidity = 1
	_, err := m.CreateRecord(ctx, 1, e)
	if !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	g, err := m.GetRecords(ctx, 1, 0, 100)
	if err != nil {
		t.Fatalf("GetRecords: %v", err)
	}
	if g.Len() != 1 || g.Data[0].ReadHumidity != 512 {
		t.Errorf("stored row changed: %+v", g.Data)
	}
	if rec.len() != 1 {
		t.Errorf("observer saw %d points, want 1", rec.len())
	}

	summary := m.Stats().Get(c.KindRecord)
	if summary.Writes.Load() != 1 || summary.Conflicts.Load() != 1 {
		t.Errorf("writes=%d conflicts=%d", summary.Writes.Load(), summary.Conflicts.Load())
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"missing start_date", func() error {
			_, err := m.CreateStatus(ctx, 1, types.StatusEntry{Crop: "soy"})
			return err
		}},
		{"missing timestamp", func() error {
			_, err := m.CreateRecord(ctx, 1, types.RecordEntry{ReadHumidity: 1})
			return err
		}},
		{"reading overflows int32", func() error {
			_, err := m.CreateRecord(ctx, 1, types.RecordEntry{CollectionDate: tu.Date(2024, 1, 1), ReadHumidity: 1 << 40})
			return err
		}},
		{"percentage out of range", func() error {
			p, _ := types.ParsePercentage("1000.00")
			_, err := m.CreateCalculatedHumidity(ctx, 1, types.HumidityEntry{CalculationDate: tu.Date(2024, 1, 1), HumidityPercentage: p})
			return err
		}},
		{"gateway missing timestamp", func() error {
			_, err := m.CreateGatewayStatus(ctx, types.GatewayEntry{RecordsInBuffer: 3})
			return err
		}},
	}

	for _, tt := range tests {
		if err := tt.fn(); !errors.IsValidation(err) {
			t.Errorf("%s: err = %v, want validation error", tt.name, err)
		}
	}
}

func TestHumidityIsRounded(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	p, _ := types.ParsePercentage("42.125")
	stored, err := m.CreateCalculatedHumidity(ctx, 2, types.HumidityEntry{CalculationDate: tu.Date(2024, 1, 1), HumidityPercentage: p})
	if err != nil {
		t.Fatalf("CreateCalculatedHumidity: %v", err)
	}
	if stored.HumidityPercentage.String() != "42.13" {
		t.Errorf("stored = %s, want 42.13", stored.HumidityPercentage)
	}
}

func TestListWindows(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	base := tu.Date(2024, 1, 1)

	for id := int64(1); id <= 2; id++ {
		for h := 0; h < 3; h++ {
			e := types.RecordEntry{CollectionDate: base.Add(time.Duration(h) * time.Hour), ReadHumidity: id*10 + int64(h)}
			if _, err := m.CreateRecord(ctx, id, e); err != nil {
				t.Fatalf("CreateRecord: %v", err)
			}
		}
	}

	groups, err := m.ListRecords(ctx, c.DefaultOffset, c.DefaultListLimit)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	// limit=1 on the all-collector view yields ranks 0 and 1.
	for _, g := range groups {
		if g.Len() != 2 || g.Data[0].ReadHumidity != g.CollectorID*10+2 {
			t.Errorf("group %d = %+v", g.CollectorID, g.Data)
		}
	}

	if _, err := m.ListRecords(ctx, 0, 0); !errors.Is(err, errors.ErrInvalidWindow) {
		t.Errorf("limit=0: err = %v", err)
	}
	if _, err := m.GetRecords(ctx, 1, -1, 1); !errors.Is(err, errors.ErrInvalidWindow) {
		t.Errorf("offset=-1: err = %v", err)
	}

	empty, err := m.ListCalculatedHumidity(ctx, 0, 1)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListCalculatedHumidity = %v, %v; want empty", empty, err)
	}
}

func TestGatewayStatus(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.ListGatewayStatus(ctx, 0, 1); !errors.Is(err, errors.ErrStatusNotFound) {
		t.Fatalf("empty: err = %v, want ErrStatusNotFound", err)
	}

	at := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
	if _, err := m.CreateGatewayStatus(ctx, types.GatewayEntry{UpdateDate: at, RecordsInBuffer: 0}); err != nil {
		t.Fatalf("CreateGatewayStatus: %v", err)
	}
	if _, err := m.CreateGatewayStatus(ctx, types.GatewayEntry{UpdateDate: at, RecordsInBuffer: 5}); !errors.IsAlreadyExists(err) {
		t.Errorf("duplicate: err = %v", err)
	}

	got, err := m.ListGatewayStatus(ctx, 0, 1)
	if err != nil {
		t.Fatalf("ListGatewayStatus: %v", err)
	}
	if len(got) != 1 || !got[0].UpdateDate.Equal(at) || got[0].RecordsInBuffer != 0 {
		t.Errorf("ListGatewayStatus = %+v", got)
	}
}

func TestCancelledReadDoesNotFailOthers(t *testing.T) {
	cfg := store.DefaultConfig()
	cfg.Driver = store.DriverSQLite
	cfg.DSN = filepath.Join(t.TempDir(), "cancel.db")
	cfg.MaxOpenConns = 1
	s, err := store.New(cfg)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	m := New(s)

	bg := context.Background()
	if _, err := m.CreateRecord(bg, 1, types.RecordEntry{CollectionDate: tu.Date(2024, 1, 1), ReadHumidity: 1}); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	// Hold the only connection so both reads queue behind it.
	held, err := s.DB().Conn(bg)
	if err != nil {
		t.Fatalf("Conn: %v", err)
	}

	ctxA, cancelA := context.WithCancel(bg)
	errA := make(chan error, 1)
	errB := make(chan error, 1)
	go func() {
		_, err := m.GetRecords(ctxA, 1, 0, 100)
		errA <- err
	}()
	go func() {
		g, err := m.GetRecords(bg, 1, 0, 100)
		if err == nil {
			err = tu.AssertEqual(g.Len(), 1, "rows")
		}
		errB <- err
	}()

	if err := tu.Eventually(5*time.Second, 5*time.Millisecond, func() bool {
		return s.DB().Stats().WaitCount >= 2
	}); err != nil {
		held.Close()
		t.Fatalf("reads never queued: %v", err)
	}

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled read: err = %v, want context.Canceled", err)
	}

	held.Close()
	select {
	case err := <-errB:
		if err != nil {
			t.Errorf("live read failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("live read did not finish")
	}
}

func TestReadSeesPrecedingWrite(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	errs := tu.Race(8, func(i int) error {
		at := tu.Date(2024, 1, 1).Add(time.Duration(i) * time.Minute)
		if _, err := m.CreateRecord(ctx, 1, types.RecordEntry{CollectionDate: at, ReadHumidity: int64(i)}); err != nil {
			return err
		}
		g, err := m.GetRecords(ctx, 1, 0, 100)
		if err != nil {
			return err
		}
		for _, r := range g.Data {
			if r.CollectionDate.Equal(at) {
				return nil
			}
		}
		return fmt.Errorf("write %d missing from a later read", i)
	})
	for _, err := range errs {
		if err != nil {
			t.Error(err)
		}
	}

	if got := m.Stats().Get(c.KindRecord).Reads.Load(); got != 8 {
		t.Errorf("Reads = %d, want 8", got)
	}
}

func TestObserverFunc(t *testing.T) {
	var kinds []string
	m := newTestManager(t, WithObserver(ObserverFunc(func(_ context.Context, p types.Point) {
		kinds = append(kinds, p.Kind)
	})), WithObserver(nil))
	ctx := context.Background()

	if _, err := m.CreateGatewayStatus(ctx, types.GatewayEntry{UpdateDate: tu.Date(2024, 1, 1)}); err != nil {
		t.Fatalf("CreateGatewayStatus: %v", err)
	}
	p, _ := types.ParsePercentage("10")
	if _, err := m.CreateCalculatedHumidity(ctx, 3, types.HumidityEntry{CalculationDate: tu.Date(2024, 1, 1), HumidityPercentage: p}); err != nil {
		t.Fatalf("CreateCalculatedHumidity: %v", err)
	}

	if len(kinds) != 2 || kinds[0] != c.KindGateway || kinds[1] != c.KindHumidity {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestStatsSnapshot(t *testing.T) {
	s := NewStats()
	s.recordRead(c.KindStatus, 2*time.Millisecond, nil)
	s.recordRead(c.KindStatus, 4*time.Millisecond, errors.ErrCollectorNotFound)
	s.recordWrite(c.KindRecord, errors.ErrInvalidInput)

	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].Kind != c.KindRecord || snap[1].Kind != c.KindStatus {
		t.Fatalf("Snapshot = %+v", snap)
	}
	st := snap[1]
	if st.Reads != 2 || st.NotFound != 1 || st.AvgReadMs != 3 || st.MaxReadMs != 4 {
		t.Errorf("status summary = %+v", st)
	}
	if snap[0].Rejected != 1 {
		t.Errorf("record summary = %+v", snap[0])
	}
}
