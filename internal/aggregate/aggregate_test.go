package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/xtxerr/scope/internal/series"
)

func seededStore(t *testing.T, key string, values []float64) *series.Store {
	t.Helper()
	s := series.NewStore(series.Config{Window: time.Hour, MaxPoints: 1000}, nil)
	base := time.Now().UnixMilli()
	for i, v := range values {
		if !s.Append(key, base+int64(i)*1000, v) {
			t.Fatalf("append %d failed", i)
		}
	}
	return s
}

func TestAggregator_Stats(t *testing.T) {
	s := seededStore(t, "api/latency", []float64{10, 20, 30, 40})
	a := New(s)

	stats := a.Stats("api/latency")

	if stats.Count != 4 {
		t.Errorf("Count = %d, want 4", stats.Count)
	}
	if stats.Sum != 100 {
		t.Errorf("Sum = %f, want 100", stats.Sum)
	}
	if stats.Avg != 25 {
		t.Errorf("Avg = %f, want 25", stats.Avg)
	}
	if stats.Min != 10 {
		t.Errorf("Min = %f, want 10", stats.Min)
	}
	if stats.Max != 40 {
		t.Errorf("Max = %f, want 40", stats.Max)
	}
	if stats.FirstTs == 0 || stats.LastTs < stats.FirstTs {
		t.Errorf("timestamps = (%d, %d)", stats.FirstTs, stats.LastTs)
	}
}

func TestAggregator_StatsEmpty(t *testing.T) {
	s := series.NewStore(series.DefaultConfig(), nil)
	a := New(s)

	stats := a.Stats("nothing")
	if stats.Count != 0 {
		t.Errorf("Count = %d, want 0", stats.Count)
	}
	if stats.Min != 0 || stats.Max != 0 || stats.Avg != 0 {
		t.Errorf("empty stats not zeroed: %+v", stats)
	}
}

func TestAggregator_StatsReflectsEviction(t *testing.T) {
	// 60 second window: after the late append only two samples remain,
	// and the fold must see the post-eviction window.
	s := series.NewStore(series.Config{Window: 60 * time.Second, MaxPoints: 100}, nil)
	s.Append("cpu", 0, 10)
	s.Append("cpu", 30_000, 20)
	s.Append("cpu", 65_000, 30)

	stats := New(s).Stats("cpu")
	if stats.Count != 2 {
		t.Fatalf("Count = %d, want 2", stats.Count)
	}
	if stats.Min != 20 || stats.Max != 30 {
		t.Errorf("min/max = %f/%f, want 20/30", stats.Min, stats.Max)
	}
	if stats.Avg != 25 {
		t.Errorf("Avg = %f, want 25", stats.Avg)
	}
}

func TestAggregator_Percentiles(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1) // 1..100
	}
	s := seededStore(t, "k", values)

	stats := New(s).Stats("k")

	// DDSketch guarantees 1% relative accuracy.
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"p50", stats.P50, 50},
		{"p90", stats.P90, 90},
		{"p95", stats.P95, 95},
		{"p99", stats.P99, 99},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want)/c.want > 0.05 {
			t.Errorf("%s = %f, want within 5%% of %f", c.name, c.got, c.want)
		}
	}
}

func TestUptimePercent(t *testing.T) {
	tests := []struct {
		success int64
		total   int64
		want    float64
	}{
		{0, 0, 100}, // no data defaults to fully up
		{90, 100, 90},
		{100, 100, 100},
		{0, 100, 0},
		{1, 3, 100.0 / 3.0},
	}

	for _, tt := range tests {
		got := UptimePercent(tt.success, tt.total)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("UptimePercent(%d, %d) = %f, want %f", tt.success, tt.total, got, tt.want)
		}
	}
}

func TestAvailabilityFromCounts(t *testing.T) {
	a := AvailabilityFromCounts(0, 0)
	if a.Known {
		t.Error("zero-sample availability should be unknown")
	}
	if a.Percent != 100 {
		t.Errorf("Percent = %f, want 100", a.Percent)
	}

	a = AvailabilityFromCounts(9, 10)
	if !a.Known {
		t.Error("availability with data should be known")
	}
	if a.Percent != 90 {
		t.Errorf("Percent = %f, want 90", a.Percent)
	}
}

func TestErrorBudget(t *testing.T) {
	b := ErrorBudget(99.9, 99.9)
	if math.Abs(b.Remaining) > 1e-9 {
		t.Errorf("Remaining = %f, want 0", b.Remaining)
	}
	if b.Breached() {
		t.Error("exactly-on-target budget is not breached")
	}

	b = ErrorBudget(99.9, 99.0)
	if b.Remaining >= 0 {
		t.Errorf("Remaining = %f, want negative", b.Remaining)
	}
	if !b.Breached() {
		t.Error("over-budget should be breached")
	}

	b = ErrorBudget(99.0, 99.5)
	if math.Abs(b.Budget-1.0) > 1e-9 {
		t.Errorf("Budget = %f, want 1.0", b.Budget)
	}
	if math.Abs(b.Used-0.5) > 1e-9 {
		t.Errorf("Used = %f, want 0.5", b.Used)
	}
	if math.Abs(b.Remaining-0.5) > 1e-9 {
		t.Errorf("Remaining = %f, want 0.5", b.Remaining)
	}
}
