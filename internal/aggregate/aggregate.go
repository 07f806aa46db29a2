// Package aggregate computes rolling statistics over the windowed series
// store: pure, on-demand folds that always reflect the latest eviction
// state, never cached.
package aggregate

import (
	"iter"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/scope/config"
	"github.com/xtxerr/scope/internal/series"
)

// Stats is the result of folding one series' retained window.
type Stats struct {
	Count int64
	Sum   float64
	Avg   float64
	Min   float64
	Max   float64

	// Percentiles, zero when Count is 0 or the sketch is unavailable.
	P50 float64
	P90 float64
	P95 float64
	P99 float64

	FirstTs int64
	LastTs  int64
}

// Aggregator computes statistics over a store's retained windows.
type Aggregator struct {
	store    *series.Store
	accuracy float64
}

// New creates an aggregator over the given store with the default DDSketch
// relative accuracy.
func New(store *series.Store) *Aggregator {
	return NewWithAccuracy(store, config.DefaultPercentileAccuracy)
}

// NewWithAccuracy creates an aggregator with a custom percentile accuracy.
func NewWithAccuracy(store *series.Store, accuracy float64) *Aggregator {
	if accuracy <= 0 || accuracy >= 1 {
		accuracy = config.DefaultPercentileAccuracy
	}
	return &Aggregator{store: store, accuracy: accuracy}
}

// Stats folds the currently retained window for key.
func (a *Aggregator) Stats(key string) Stats {
	return Fold(a.store.QueryAll(key), a.accuracy)
}

// Fold computes statistics over one pass of a sample sequence.
func Fold(samples iter.Seq[series.Sample], accuracy float64) Stats {
	stats := Stats{
		Min: math.MaxFloat64,
		Max: -math.MaxFloat64,
	}

	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		sketch = nil
	}

	for s := range samples {
		stats.Count++
		stats.Sum += s.Value

		if s.Value < stats.Min {
			stats.Min = s.Value
		}
		if s.Value > stats.Max {
			stats.Max = s.Value
		}

		if stats.FirstTs == 0 || s.TimestampMs < stats.FirstTs {
			stats.FirstTs = s.TimestampMs
		}
		if s.TimestampMs > stats.LastTs {
			stats.LastTs = s.TimestampMs
		}

		if sketch != nil {
			sketch.Add(s.Value)
		}
	}

	if stats.Count == 0 {
		return Stats{}
	}

	stats.Avg = stats.Sum / float64(stats.Count)

	if sketch != nil {
		p50, _ := sketch.GetValueAtQuantile(0.50)
		p90, _ := sketch.GetValueAtQuantile(0.90)
		p95, _ := sketch.GetValueAtQuantile(0.95)
		p99, _ := sketch.GetValueAtQuantile(0.99)
		stats.P50 = p50
		stats.P90 = p90
		stats.P95 = p95
		stats.P99 = p99
	}

	return stats
}
