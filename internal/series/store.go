package series

import (
	"iter"
	"sync"
	"time"

	"github.com/xtxerr/scope/config"
	"github.com/xtxerr/scope/internal/logging"
	"github.com/xtxerr/scope/internal/metrics"
)

var log = logging.Component("series")

// Config holds store bounds. Both limits apply; whichever is reached first
// triggers eviction, oldest samples first.
type Config struct {
	// Window is the wall-clock retention window.
	Window time.Duration

	// MaxPoints is the per-key point cap.
	MaxPoints int
}

// DefaultConfig returns the default store bounds.
func DefaultConfig() Config {
	return Config{
		Window:    config.DefaultWindow,
		MaxPoints: config.DefaultMaxPoints,
	}
}

// Store maintains per-key windowed sample buffers.
//
// Appends preserve the non-decreasing-timestamp invariant by dropping any
// sample older than the current tail for its key: out-of-order delivery
// cannot be reconciled without changing lookup order guarantees. Eviction
// runs opportunistically on every append, so memory stays bounded under
// unbounded streaming without a separate timer.
//
// Store is safe for concurrent use. Mutations arrive from the engine's
// serialized apply loop; reads may come from any consumer goroutine.
type Store struct {
	mu     sync.RWMutex
	cfg    Config
	series map[string]*ringBuffer
	met    *metrics.Set

	// Statistics
	stats Stats
}

// Stats holds store counters.
type Stats struct {
	Appended   int64
	OutOfOrder int64
	Evicted    int64
}

// NewStore creates a store with the given bounds. Zero-value fields fall
// back to the package defaults.
func NewStore(cfg Config, met *metrics.Set) *Store {
	if cfg.Window <= 0 {
		cfg.Window = config.DefaultWindow
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = config.DefaultMaxPoints
	}
	return &Store{
		cfg:    cfg,
		series: make(map[string]*ringBuffer),
		met:    met,
	}
}

// Append adds a sample to the series for key.
//
// Returns false if the sample was dropped for violating timestamp order.
// Eviction by window age (relative to the appended sample's timestamp) and
// by point cap happens inline.
func (s *Store) Append(key string, timestampMs int64, value float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rb, ok := s.series[key]
	if !ok {
		rb = newRingBuffer(s.cfg.MaxPoints)
		s.series[key] = rb
	}

	if tail, ok := rb.newest(); ok && timestampMs < tail.TimestampMs {
		s.stats.OutOfOrder++
		if s.met != nil {
			s.met.OutOfOrderDrops.Inc()
		}
		log.Warn("out-of-order sample dropped",
			"key", key,
			"timestamp_ms", timestampMs,
			"tail_ms", tail.TimestampMs)
		return false
	}

	// Check-and-trim from the head while head age exceeds the window.
	cutoff := timestampMs - s.cfg.Window.Milliseconds()
	evicted := rb.evictOlderThan(cutoff)

	if rb.pushOverwrite(Sample{Key: key, TimestampMs: timestampMs, Value: value}) {
		evicted++
	}

	s.stats.Appended++
	if evicted > 0 {
		s.stats.Evicted += int64(evicted)
		if s.met != nil {
			s.met.Evictions.Add(float64(evicted))
		}
	}
	return true
}

// Query returns the retained samples for key with timestamps at or after
// since, ordered oldest to newest. The sequence is lazy, restartable, and
// finite: it iterates a point-in-time copy taken when Query is called, so
// later appends and evictions never tear a consumer's view.
func (s *Store) Query(key string, since time.Time) iter.Seq[Sample] {
	var sinceMs int64
	if !since.IsZero() {
		sinceMs = since.UnixMilli()
	}

	s.mu.RLock()
	var snapshot []Sample
	if rb, ok := s.series[key]; ok {
		snapshot = rb.snapshotSince(sinceMs)
	}
	s.mu.RUnlock()

	return func(yield func(Sample) bool) {
		for _, sample := range snapshot {
			if !yield(sample) {
				return
			}
		}
	}
}

// QueryAll is Query from the beginning of the retained window.
func (s *Store) QueryAll(key string) iter.Seq[Sample] {
	return s.Query(key, time.Time{})
}

// Evict removes samples older than now minus the window across all keys.
// Append already evicts opportunistically; Evict exists for callers that
// want to prune idle series against wall-clock time.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.UnixMilli() - s.cfg.Window.Milliseconds()
	evicted := 0
	for key, rb := range s.series {
		evicted += rb.evictOlderThan(cutoff)
		if rb.len() == 0 {
			delete(s.series, key)
		}
	}

	if evicted > 0 {
		s.stats.Evicted += int64(evicted)
		if s.met != nil {
			s.met.Evictions.Add(float64(evicted))
		}
	}
	return evicted
}

// Len returns the number of retained samples for key.
func (s *Store) Len(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rb, ok := s.series[key]; ok {
		return rb.len()
	}
	return 0
}

// Keys returns the keys with at least one retained sample.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.series))
	for key, rb := range s.series {
		if rb.len() > 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

// TimeRange returns the oldest and newest retained timestamps for key.
// Returns (0, 0) if the series is empty or absent.
func (s *Store) TimeRange(key string) (oldestMs, newestMs int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rb, ok := s.series[key]
	if !ok {
		return 0, 0
	}
	o, ok := rb.oldest()
	if !ok {
		return 0, 0
	}
	n, _ := rb.newest()
	return o.TimestampMs, n.TimestampMs
}

// Stats returns a copy of the store counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
