package manager

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/soilwatch/internal/errors"
)

// =============================================================================
// Kind Statistics
// =============================================================================

// KindStats tracks operation counters for one record kind.
//
// Counters use atomic operations; timing is protected by mu.
type KindStats struct {
	Kind string

	Reads      atomic.Int64
	ReadErrors atomic.Int64
	NotFound   atomic.Int64

	Writes    atomic.Int64
	Conflicts atomic.Int64
	Rejected  atomic.Int64

	mu        sync.Mutex
	readSum   time.Duration
	readMax   time.Duration
	readCount int64
}

func newKindStats(kind string) *KindStats {
	return &KindStats{Kind: kind}
}

func (s *KindStats) recordRead(d time.Duration, err error) {
	s.Reads.Add(1)
	switch {
	case err == nil:
	case errors.IsNotFound(err):
		s.NotFound.Add(1)
	default:
		s.ReadErrors.Add(1)
	}

	s.mu.Lock()
	s.readSum += d
	s.readCount++
	if d > s.readMax {
		s.readMax = d
	}
	s.mu.Unlock()
}

func (s *KindStats) recordWrite(err error) {
	switch {
	case err == nil:
		s.Writes.Add(1)
	case errors.IsAlreadyExists(err):
		s.Conflicts.Add(1)
	default:
		s.Rejected.Add(1)
	}
}

// AvgRead returns the mean read latency.
func (s *KindStats) AvgRead() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readCount == 0 {
		return 0
	}
	return s.readSum / time.Duration(s.readCount)
}

// MaxRead returns the slowest read seen.
func (s *KindStats) MaxRead() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMax
}

// =============================================================================
// Stats
// =============================================================================

// Stats holds KindStats for every kind the manager has touched.
//
// Stats is safe for concurrent use.
type Stats struct {
	mu    sync.RWMutex
	kinds map[string]*KindStats
	since time.Time
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{
		kinds: make(map[string]*KindStats),
		since: time.Now(),
	}
}

// Get returns statistics for a kind, creating them if needed.
func (m *Stats) Get(kind string) *KindStats {
	// Fast path: read lock
	m.mu.RLock()
	s, ok := m.kinds[kind]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.kinds[kind]; ok {
		return s
	}
	s = newKindStats(kind)
	m.kinds[kind] = s
	return s
}

func (m *Stats) recordRead(kind string, d time.Duration, err error) {
	m.Get(kind).recordRead(d, err)
}

func (m *Stats) recordWrite(kind string, err error) {
	m.Get(kind).recordWrite(err)
}

// KindSummary is a point-in-time copy of one kind's counters.
type KindSummary struct {
	Kind       string  `json:"kind"`
	Reads      int64   `json:"reads"`
	NotFound   int64   `json:"not_found"`
	ReadErrors int64   `json:"read_errors"`
	Writes     int64   `json:"writes"`
	Conflicts  int64   `json:"conflicts"`
	Rejected   int64   `json:"rejected"`
	AvgReadMs  float64 `json:"avg_read_ms"`
	MaxReadMs  float64 `json:"max_read_ms"`
}

// Snapshot returns a summary per kind, sorted by kind.
func (m *Stats) Snapshot() []KindSummary {
	m.mu.RLock()
	all := make([]*KindStats, 0, len(m.kinds))
	for _, s := range m.kinds {
		all = append(all, s)
	}
	m.mu.RUnlock()

	out := make([]KindSummary, 0, len(all))
	for _, s := range all {
		out = append(out, KindSummary{
			Kind:       s.Kind,
			Reads:      s.Reads.Load(),
			NotFound:   s.NotFound.Load(),
			ReadErrors: s.ReadErrors.Load(),
			Writes:     s.Writes.Load(),
			Conflicts:  s.Conflicts.Load(),
			Rejected:   s.Rejected.Load(),
			AvgReadMs:  float64(s.AvgRead()) / float64(time.Millisecond),
			MaxReadMs:  float64(s.MaxRead()) / float64(time.Millisecond),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Since returns when counting started.
func (m *Stats) Since() time.Time {
	return m.since
}
