package stats

import (
	"math"
	"testing"
	"time"
)

func TestRouteAggregate(t *testing.T) {
	a := newRouteAggregate("GET /collector/record", DefaultAccuracy)

	if s := a.Summary(); s.Count != 0 || s.MinMs != 0 || s.P50Ms != 0 {
		t.Errorf("empty summary = %+v", s)
	}

	for i := 1; i <= 100; i++ {
		a.Add(float64(i), i%10 == 0)
	}

	s := a.Summary()
	if s.Count != 100 || s.Errors != 10 {
		t.Errorf("count=%d errors=%d", s.Count, s.Errors)
	}
	if s.MinMs != 1 || s.MaxMs != 100 || s.AvgMs != 50.5 {
		t.Errorf("min=%v max=%v avg=%v", s.MinMs, s.MaxMs, s.AvgMs)
	}

	// Quantiles are within the sketch's relative accuracy.
	checks := []struct {
		got, want float64
	}{
		{s.P50Ms, 50}, {s.P90Ms, 90}, {s.P99Ms, 99},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want)/c.want > 0.03 {
			t.Errorf("quantile = %v, want about %v", c.got, c.want)
		}
	}
}

func TestRecorderObserve(t *testing.T) {
	r := NewRecorder(0)
	if r.accuracy != DefaultAccuracy {
		t.Errorf("accuracy = %v, want default", r.accuracy)
	}

	r.Observe("GET /b", 2*time.Millisecond, 200)
	r.Observe("GET /a", 4*time.Millisecond, 500)
	r.Observe("GET /a", 6*time.Millisecond, 404)

	if r.Route("GET /a") != r.Route("GET /a") {
		t.Error("Route should return the same aggregate")
	}

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Route != "GET /a" || snap[1].Route != "GET /b" {
		t.Fatalf("Snapshot = %+v", snap)
	}
	if snap[0].Count != 2 || snap[0].Errors != 1 || snap[0].AvgMs != 5 {
		t.Errorf("GET /a = %+v", snap[0])
	}

	total := r.Total()
	if total.Route != "*" || total.Count != 3 || total.Errors != 1 || total.MinMs != 2 || total.MaxMs != 6 {
		t.Errorf("Total = %+v", total)
	}
	if total.P50Ms <= 0 {
		t.Errorf("Total P50 = %v, want positive", total.P50Ms)
	}
}

func TestMergeSelfIsNoop(t *testing.T) {
	a := newRouteAggregate("x", DefaultAccuracy)
	a.Add(1, false)
	a.Merge(a)
	a.Merge(nil)
	if a.Summary().Count != 1 {
		t.Errorf("Count = %d, want 1", a.Summary().Count)
	}
}
