// Package series implements the windowed series store: per-key, time-ordered
// buffers of scalar samples bounded by a retention window and a point cap.
package series

import "time"

// Sample represents a single scalar measurement. Immutable once stored.
type Sample struct {
	// Key identifies the series, typically "service/metric".
	Key string

	// TimestampMs is the Unix timestamp in milliseconds.
	TimestampMs int64

	// Value is the measured value.
	Value float64
}

// Time returns the timestamp as a time.Time.
func (s *Sample) Time() time.Time {
	return time.UnixMilli(s.TimestampMs)
}
