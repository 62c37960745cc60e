// Package manager provides the business logic for soilwatch.
//
// Manager validates incoming entries, stores them through the record store
// and answers the per-collector and all-collector window queries. Every
// call runs its own query under the caller's context.
package manager

import (
	"context"
	"fmt"
	"time"

	c "github.com/xtxerr/soilwatch/internal/constants"
	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/store"
	"github.com/xtxerr/soilwatch/internal/types"
	"github.com/xtxerr/soilwatch/internal/validation"
)

// =============================================================================
// Observer
// =============================================================================

// Observer is notified after an entry has been stored. Observe must not
// block for long and cannot fail the create that triggered it.
type Observer interface {
	Observe(ctx context.Context, p types.Point)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, p types.Point)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, p types.Point) { f(ctx, p) }

// =============================================================================
// Manager
// =============================================================================

// Manager is safe for concurrent use.
type Manager struct {
	store     *store.Store
	observers []Observer
	stats     *Stats
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver registers o for every successful create.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// New creates a Manager backed by s.
func New(s *store.Store, opts ...Option) *Manager {
	m := &Manager{store: s, stats: NewStats()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying record store.
func (m *Manager) Store() *store.Store {
	return m.store
}

// Stats returns the operation counters.
func (m *Manager) Stats() *Stats {
	return m.stats
}

func (m *Manager) notify(ctx context.Context, p types.Point) {
	for _, o := range m.observers {
		o.Observe(ctx, p)
	}
}

// =============================================================================
// Generic window reads
// =============================================================================

func listAll[E types.Entry](ctx context.Context, m *Manager, s *store.Series[E], offset, limit int64) ([]types.Group[E], error) {
	w := validation.Window{Offset: offset, Limit: limit}
	if _, _, err := w.InclusiveRange(); err != nil {
		return nil, err
	}

	start := time.Now()
	groups, err := s.AllDevices(ctx, w)
	m.stats.recordRead(s.Table(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func getOne[E types.Entry](ctx context.Context, m *Manager, s *store.Series[E], collectorID, offset, limit int64) (types.Group[E], error) {
	w := validation.Window{Offset: offset, Limit: limit}
	if err := w.Validate(); err != nil {
		return types.Group[E]{CollectorID: collectorID}, err
	}

	start := time.Now()
	g, err := s.Device(ctx, collectorID, w)
	m.stats.recordRead(s.Table(), time.Since(start), err)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return types.Group[E]{CollectorID: collectorID}, fmt.Errorf("%s %d: %w", s.Table(), collectorID, errors.ErrCollectorNotFound)
		}
		return types.Group[E]{CollectorID: collectorID}, err
	}
	return g, nil
}

func create[E types.Entry](ctx context.Context, m *Manager, s *store.Series[E], collectorID int64, e E, validate func(E) (E, error), point func(E) types.Point) (E, error) {
	e, err := validate(e)
	if err != nil {
		m.stats.recordWrite(s.Table(), err)
		return e, err
	}

	var stored E
	if s.Grouped() {
		stored, err = s.Insert(ctx, collectorID, e)
	} else {
		stored, err = s.Append(ctx, e)
	}
	m.stats.recordWrite(s.Table(), err)

	if err != nil {
		if errors.Is(err, errors.ErrDuplicateKey) {
			return stored, fmt.Errorf("%s at %s: %w: %w", s.Table(), e.Key().UTC().Format(time.RFC3339Nano), errors.ErrConflict, err)
		}
		return stored, err
	}

	m.notify(ctx, point(stored))
	return stored, nil
}

// =============================================================================
// Collector status
// =============================================================================

// ListStatus returns ranks [offset, offset+limit] of every collector's
// status history.
func (m *Manager) ListStatus(ctx context.Context, offset, limit int64) ([]types.Group[types.StatusEntry], error) {
	return listAll(ctx, m, m.store.Statuses, offset, limit)
}

// GetStatus returns rows [offset, offset+limit) of one collector's status
// history, most recent start_date first.
func (m *Manager) GetStatus(ctx context.Context, collectorID, offset, limit int64) (types.Group[types.StatusEntry], error) {
	return getOne(ctx, m, m.store.Statuses, collectorID, offset, limit)
}

// CreateStatus stores a status interval for a collector.
func (m *Manager) CreateStatus(ctx context.Context, collectorID int64, e types.StatusEntry) (types.StatusEntry, error) {
	return create(ctx, m, m.store.Statuses, collectorID, e, validation.Status, func(s types.StatusEntry) types.Point {
		return types.StatusPoint(collectorID, s)
	})
}

// =============================================================================
// Collector records
// =============================================================================

// ListRecords returns ranks [offset, offset+limit] of every collector's
// raw readings.
func (m *Manager) ListRecords(ctx context.Context, offset, limit int64) ([]types.Group[types.RecordEntry], error) {
	return listAll(ctx, m, m.store.Records, offset, limit)
}

// GetRecords returns rows [offset, offset+limit) of one collector's raw
// readings.
func (m *Manager) GetRecords(ctx context.Context, collectorID, offset, limit int64) (types.Group[types.RecordEntry], error) {
	return getOne(ctx, m, m.store.Records, collectorID, offset, limit)
}

// CreateRecord stores a raw reading.
func (m *Manager) CreateRecord(ctx context.Context, collectorID int64, e types.RecordEntry) (types.RecordEntry, error) {
	return create(ctx, m, m.store.Records, collectorID, e, validation.Record, func(r types.RecordEntry) types.Point {
		return types.RecordPoint(collectorID, r)
	})
}

// =============================================================================
// Calculated humidity
// =============================================================================

// ListCalculatedHumidity returns ranks [offset, offset+limit] of every
// collector's calculated humidity.
func (m *Manager) ListCalculatedHumidity(ctx context.Context, offset, limit int64) ([]types.Group[types.HumidityEntry], error) {
	return listAll(ctx, m, m.store.Humidities, offset, limit)
}

// GetCalculatedHumidity returns rows [offset, offset+limit) of one
// collector's calculated humidity.
func (m *Manager) GetCalculatedHumidity(ctx context.Context, collectorID, offset, limit int64) (types.Group[types.HumidityEntry], error) {
	return getOne(ctx, m, m.store.Humidities, collectorID, offset, limit)
}

// CreateCalculatedHumidity stores a calculated percentage, rounded to two
// digits.
func (m *Manager) CreateCalculatedHumidity(ctx context.Context, collectorID int64, e types.HumidityEntry) (types.HumidityEntry, error) {
	return create(ctx, m, m.store.Humidities, collectorID, e, validation.Humidity, func(h types.HumidityEntry) types.Point {
		return types.HumidityPoint(collectorID, h)
	})
}

// =============================================================================
// Receptor status
// =============================================================================

// ListGatewayStatus returns rows [offset, offset+limit) of the receptor
// stream. An empty window is ErrStatusNotFound.
func (m *Manager) ListGatewayStatus(ctx context.Context, offset, limit int64) ([]types.GatewayEntry, error) {
	w := validation.Window{Offset: offset, Limit: limit}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	entries, err := m.store.Gateway.Latest(ctx, w)
	m.stats.recordRead(c.KindGateway, time.Since(start), err)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", c.KindGateway, errors.ErrStatusNotFound)
		}
		return nil, err
	}
	return entries, nil
}

// CreateGatewayStatus appends a receptor report.
func (m *Manager) CreateGatewayStatus(ctx context.Context, e types.GatewayEntry) (types.GatewayEntry, error) {
	return create(ctx, m, m.store.Gateway, 0, e, validation.Gateway, types.GatewayPoint)
}
