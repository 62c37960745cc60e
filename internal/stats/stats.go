// Package stats keeps request latency summaries per route.
//
// Each route holds a running count, sum, min and max plus a DDSketch for
// quantiles with bounded relative error.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/soilwatch/config"
)

// DefaultAccuracy is the relative accuracy of quantile estimates.
const DefaultAccuracy = config.DefaultSketchAccuracy

// =============================================================================
// Route Aggregate
// =============================================================================

// RouteAggregate maintains running latency statistics for one route.
type RouteAggregate struct {
	mu sync.Mutex

	route    string
	accuracy float64

	count  int64
	errors int64
	sum    float64
	min    float64
	max    float64

	// nil if the sketch could not be built for the configured accuracy
	sketch *ddsketch.DDSketch
}

func newRouteAggregate(route string, accuracy float64) *RouteAggregate {
	a := &RouteAggregate{
		route:    route,
		accuracy: accuracy,
		min:      math.MaxFloat64,
		max:      -math.MaxFloat64,
	}
	if sketch, err := ddsketch.NewDefaultDDSketch(accuracy); err == nil {
		a.sketch = sketch
	}
	return a
}

// Add records one request in milliseconds.
func (a *RouteAggregate) Add(ms float64, failed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++
	if failed {
		a.errors++
	}
	a.sum += ms
	if ms < a.min {
		a.min = ms
	}
	if ms > a.max {
		a.max = ms
	}

	// DDSketch rejects negative values only.
	if a.sketch != nil && ms >= 0 {
		a.sketch.Add(ms)
	}
}

// Summary returns the route's current statistics.
func (a *RouteAggregate) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{Route: a.route, Count: a.count, Errors: a.errors}
	if a.count == 0 {
		return s
	}

	s.AvgMs = a.sum / float64(a.count)
	s.MinMs = a.min
	s.MaxMs = a.max

	if a.sketch != nil && !a.sketch.IsEmpty() {
		s.P50Ms, _ = a.sketch.GetValueAtQuantile(0.50)
		s.P90Ms, _ = a.sketch.GetValueAtQuantile(0.90)
		s.P99Ms, _ = a.sketch.GetValueAtQuantile(0.99)
	}
	return s
}

// Merge folds other into a.
func (a *RouteAggregate) Merge(other *RouteAggregate) {
	if other == nil || other == a {
		return
	}

	other.mu.Lock()
	count, errs, sum, lo, hi := other.count, other.errors, other.sum, other.min, other.max
	var sketch *ddsketch.DDSketch
	if other.sketch != nil {
		sketch = other.sketch.Copy()
	}
	other.mu.Unlock()

	if count == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.count += count
	a.errors += errs
	a.sum += sum
	if lo < a.min {
		a.min = lo
	}
	if hi > a.max {
		a.max = hi
	}
	if a.sketch != nil && sketch != nil {
		// Both sketches share the accuracy of their Recorder.
		_ = a.sketch.MergeWith(sketch)
	}
}

// =============================================================================
// Summary
// =============================================================================

// Summary is a point-in-time view of one route.
type Summary struct {
	Route  string  `json:"route"`
	Count  int64   `json:"count"`
	Errors int64   `json:"errors"`
	AvgMs  float64 `json:"avg_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// =============================================================================
// Recorder
// =============================================================================

// Recorder holds one RouteAggregate per route.
//
// Recorder is safe for concurrent use.
type Recorder struct {
	mu       sync.RWMutex
	routes   map[string]*RouteAggregate
	accuracy float64
	started  time.Time
}

// NewRecorder creates a Recorder. A non-positive accuracy or one of 1 or
// more selects DefaultAccuracy.
func NewRecorder(accuracy float64) *Recorder {
	if accuracy <= 0 || accuracy >= 1 {
		accuracy = DefaultAccuracy
	}
	return &Recorder{
		routes:   make(map[string]*RouteAggregate),
		accuracy: accuracy,
		started:  time.Now(),
	}
}

// Route returns the aggregate for route, creating it if needed.
func (r *Recorder) Route(route string) *RouteAggregate {
	r.mu.RLock()
	a, ok := r.routes[route]
	r.mu.RUnlock()
	if ok {
		return a
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.routes[route]; ok {
		return a
	}
	a = newRouteAggregate(route, r.accuracy)
	r.routes[route] = a
	return a
}

// Observe records one request. Server errors count as failures.
func (r *Recorder) Observe(route string, d time.Duration, status int) {
	r.Route(route).Add(float64(d)/float64(time.Millisecond), status >= 500)
}

// Snapshot returns every route's summary sorted by route.
func (r *Recorder) Snapshot() []Summary {
	r.mu.RLock()
	all := make([]*RouteAggregate, 0, len(r.routes))
	for _, a := range r.routes {
		all = append(all, a)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(all))
	for _, a := range all {
		out = append(out, a.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// Total merges every route into one summary named "*".
func (r *Recorder) Total() Summary {
	total := newRouteAggregate("*", r.accuracy)

	r.mu.RLock()
	all := make([]*RouteAggregate, 0, len(r.routes))
	for _, a := range r.routes {
		all = append(all, a)
	}
	r.mu.RUnlock()

	for _, a := range all {
		total.Merge(a)
	}
	return total.Summary()
}

// Uptime returns the time since the Recorder was created.
func (r *Recorder) Uptime() time.Duration {
	return time.Since(r.started)
}
