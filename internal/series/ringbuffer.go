package series

// ringBuffer is a circular buffer holding one series' retained samples.
// It is not safe for concurrent use; the owning Store serializes access.
type ringBuffer struct {
	data     []Sample
	head     int64 // Next write position
	tail     int64 // Oldest data position
	count    int64 // Current number of elements
	capacity int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ringBuffer{
		data:     make([]Sample, capacity),
		capacity: int64(capacity),
	}
}

// pushOverwrite appends a sample, overwriting the oldest if full.
// Returns true if an old sample was overwritten.
func (rb *ringBuffer) pushOverwrite(sample Sample) bool {
	overwrote := false
	if rb.count >= rb.capacity {
		rb.tail++
		rb.count--
		overwrote = true
	}

	idx := rb.head % rb.capacity
	rb.data[idx] = sample
	rb.head++
	rb.count++

	return overwrote
}

// newest returns the most recently appended sample.
// Returns false if the buffer is empty.
func (rb *ringBuffer) newest() (Sample, bool) {
	if rb.count == 0 {
		return Sample{}, false
	}

	idx := (rb.head - 1) % rb.capacity
	if idx < 0 {
		idx += rb.capacity
	}
	return rb.data[idx], true
}

// oldest returns the oldest retained sample.
// Returns false if the buffer is empty.
func (rb *ringBuffer) oldest() (Sample, bool) {
	if rb.count == 0 {
		return Sample{}, false
	}
	return rb.data[rb.tail%rb.capacity], true
}

// len returns the current number of samples.
func (rb *ringBuffer) len() int {
	return int(rb.count)
}

// evictOlderThan removes samples strictly older than cutoffMs from the head.
// Returns the number of samples evicted.
func (rb *ringBuffer) evictOlderThan(cutoffMs int64) int {
	evicted := 0
	for rb.count > 0 {
		idx := rb.tail % rb.capacity
		if rb.data[idx].TimestampMs >= cutoffMs {
			break
		}
		rb.data[idx] = Sample{} // Clear for GC
		rb.tail++
		rb.count--
		evicted++
	}
	return evicted
}

// snapshotSince copies retained samples with timestamp >= sinceMs,
// ordered oldest to newest. A sinceMs of 0 copies everything.
func (rb *ringBuffer) snapshotSince(sinceMs int64) []Sample {
	if rb.count == 0 {
		return nil
	}

	var out []Sample
	for i := int64(0); i < rb.count; i++ {
		idx := (rb.tail + i) % rb.capacity
		if rb.data[idx].TimestampMs >= sinceMs {
			out = append(out, rb.data[idx])
		}
	}
	return out
}
