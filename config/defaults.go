// Package config provides configuration defaults and utilities
// for the scope engine.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or the engine Config.
package config

import "time"

// =============================================================================
// Channel Defaults
// =============================================================================

const (
	// DefaultReconnectInterval is the fixed delay between reconnection
	// attempts after a transport failure. There is no backoff growth and
	// no retry limit; retries continue until the connection is closed.
	// Override via config: channel.reconnect_interval
	DefaultReconnectInterval = 5 * time.Second

	// DefaultHandshakeTimeout is the time allowed for the websocket
	// dial and subscribe handshake to complete.
	// Override via config: channel.handshake_timeout
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultMaxFrameSize limits inbound frame size to prevent OOM.
	// 1 MiB is generous for any dashboard event payload.
	// Override via config: channel.max_frame_size
	DefaultMaxFrameSize = 1 * 1024 * 1024

	// DefaultFrameBufferSize is the capacity of the inbound frame channel
	// between the transport reader and the apply loop. When full, reads
	// block on the transport, which is the desired backpressure.
	DefaultFrameBufferSize = 256
)

// =============================================================================
// Series Store Defaults
// =============================================================================

const (
	// DefaultWindow is the retention window for series samples.
	// Samples whose age exceeds the window are evicted from the head
	// of the buffer on the next append.
	// Override via config: series.window
	DefaultWindow = 1 * time.Hour

	// DefaultMaxPoints is the per-key point cap. Whichever of window or
	// cap is reached first triggers eviction, oldest samples first.
	// Override via config: series.max_points
	DefaultMaxPoints = 4096
)

// =============================================================================
// Entity Collection Defaults
// =============================================================================

const (
	// DefaultCollectionCap is the retained-entry cap for capped
	// collections (alerts, logs). Most-recent-N semantics; the oldest
	// entries are evicted once the cap is exceeded.
	// Override via config: entities.cap
	DefaultCollectionCap = 100
)

// =============================================================================
// Historical Loader Defaults
// =============================================================================

const (
	// DefaultPollInterval is the fallback polling interval used when a
	// live channel cannot be established at all.
	// Override via config: history.poll_interval
	DefaultPollInterval = 30 * time.Second

	// DefaultLoadTimeout is the per-request timeout for historical
	// range queries.
	// Override via config: history.load_timeout
	DefaultLoadTimeout = 15 * time.Second

	// DefaultSeedRange is how far back the initial seed load reaches.
	// Matches the default series window so the seed fills the buffer.
	DefaultSeedRange = DefaultWindow
)

// =============================================================================
// Aggregation Defaults
// =============================================================================

const (
	// DefaultPercentileAccuracy is the DDSketch relative accuracy used
	// for on-demand percentile folds.
	DefaultPercentileAccuracy = 0.01
)
