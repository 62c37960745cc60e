// Package mirror copies stored entries to InfluxDB.
//
// The mirror is best effort: points are queued without blocking the
// create that produced them, a full queue drops the point, and write
// failures are logged and counted but never reported to the caller.
package mirror

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/xtxerr/soilwatch/config"
	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/logging"
	"github.com/xtxerr/soilwatch/internal/types"
)

var log = logging.Component("mirror")

// Config configures the InfluxDB mirror.
type Config struct {
	Enabled   bool
	URL       string
	Token     string
	Org       string
	Bucket    string
	Timeout   time.Duration
	QueueSize int
}

// DefaultConfig returns a disabled mirror configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:   config.DefaultMirrorTimeout,
		QueueSize: config.DefaultMirrorQueueSize,
	}
}

// Validate checks an enabled configuration.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.NewMissingField("mirror.url"))
	}
	if c.Org == "" {
		errs = append(errs, errors.NewMissingField("mirror.org"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.NewMissingField("mirror.bucket"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, errors.NewInvalidValue("mirror.queue_size", c.QueueSize, "must be positive"))
	}
	return errors.Join(errs...)
}

// PointWriter is the part of the InfluxDB write API the mirror uses.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Stats are the mirror's counters.
type Stats struct {
	Written int64 `json:"written"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Mirror forwards points to InfluxDB from a background worker.
type Mirror struct {
	writer  PointWriter
	client  influxdb2.Client
	timeout time.Duration

	queue chan types.Point
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// New connects to InfluxDB. A disabled configuration returns
// ErrMirrorDisabled.
func New(cfg Config) (*Mirror, error) {
	if !cfg.Enabled {
		return nil, errors.ErrMirrorDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(requestTimeout(cfg.Timeout)).
		SetPrecision(time.Nanosecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	m := NewWithWriter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg.Timeout, cfg.QueueSize)
	m.client = client

	log.Info("mirror enabled", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return m, nil
}

// requestTimeout converts d to the whole seconds the InfluxDB client
// takes, rounding up. Zero means none, as it does for the worker.
func requestTimeout(d time.Duration) uint {
	if d <= 0 {
		return 0
	}
	return uint((d + time.Second - 1) / time.Second)
}

// NewWithWriter creates a mirror around an existing writer.
func NewWithWriter(w PointWriter, timeout time.Duration, queueSize int) *Mirror {
	if queueSize < 1 {
		queueSize = 1
	}
	m := &Mirror{
		writer:  w,
		timeout: timeout,
		queue:   make(chan types.Point, queueSize),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Observe queues p. It never blocks.
func (m *Mirror) Observe(_ context.Context, p types.Point) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.dropped.Add(1)
		return
	}

	select {
	case m.queue <- p:
	default:
		m.dropped.Add(1)
		log.Warn("mirror queue full, dropping point", "kind", p.Kind)
	}
}

func (m *Mirror) run() {
	defer m.wg.Done()
	for p := range m.queue {
		m.write(p)
	}
}

func (m *Mirror) write(p types.Point) {
	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := m.writer.WritePoint(ctx, ToInflux(p)); err != nil {
		m.failed.Add(1)
		log.Warn("mirror write failed", "kind", p.Kind, "error", err)
		return
	}
	m.written.Add(1)
}

// Stats returns the current counters.
func (m *Mirror) Stats() Stats {
	return Stats{
		Written: m.written.Load(),
		Failed:  m.failed.Load(),
		Dropped: m.dropped.Load(),
	}
}

// Close drains the queue and closes the client.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	if m.client != nil {
		m.client.Close()
	}
	return nil
}

// ToInflux converts a point. The measurement is the record kind.
func ToInflux(p types.Point) *write.Point {
	return influxdb2.NewPoint(p.Kind, p.TagSet(), p.Fields, p.Time)
}
