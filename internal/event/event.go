// Package event defines the typed events flowing through the engine and the
// frame decoding / dispatch pipeline that produces them.
//
// Inbound frames are a JSON tagged union:
//
//	{"type": "metric", "data": {...}, "timestamp": "2026-08-29T10:00:00Z", "service": "api"}
//
// Decoding parses the union into exactly one typed payload. Unknown kinds
// are dropped silently for forward compatibility; malformed payloads are
// counted and logged but never terminate the stream.
package event

import "time"

// Kind identifies the event type carried by a frame.
type Kind string

const (
	KindMetric   Kind = "metric"
	KindResource Kind = "resource"
	KindHealth   Kind = "health"
	KindAlert    Kind = "alert"
	KindLog      Kind = "log"
	KindIncident Kind = "incident"
)

// knownKinds is the set of kinds this engine understands. Anything else is
// a newer server speaking a newer dialect and is ignored.
var knownKinds = map[Kind]bool{
	KindMetric:   true,
	KindResource: true,
	KindHealth:   true,
	KindAlert:    true,
	KindLog:      true,
	KindIncident: true,
}

// Known returns true if the kind is understood by this engine.
func (k Kind) Known() bool {
	return knownKinds[k]
}

// Event is a decoded inbound frame. Exactly one payload pointer is non-nil,
// matching Kind.
type Event struct {
	Kind        Kind
	TimestampMs int64  // Unix milliseconds, parsed from the frame's ISO-8601 timestamp
	Service     string // originating service, may be empty for broadcast kinds

	Metric   *Metric
	Health   *ServiceHealth
	Alert    *Alert
	Log      *LogEntry
	Incident *Incident
}

// Time returns the event timestamp as a time.Time.
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.TimestampMs)
}

// =============================================================================
// Payloads
// =============================================================================

// Metric is a scalar measurement destined for the windowed series store.
// Resource events (cpu, memory, disk) share this shape.
type Metric struct {
	Name  string         `json:"name"`
	Value float64        `json:"value"`
	Unit  string         `json:"unit,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// SeriesKey returns the store key for a metric from the given service.
// Format mirrors "service/metric"; broadcast metrics use the bare name.
func (m *Metric) SeriesKey(service string) string {
	if service == "" {
		return m.Name
	}
	return service + "/" + m.Name
}

// ServiceHealth is the health record for one service. It is replaced
// wholesale on every update; no partial field merge is performed.
type ServiceHealth struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs float64        `json:"latency_ms,omitempty"`
	SeenMs    int64          `json:"-"` // timestamp of the producing frame
	Meta      map[string]any `json:"meta,omitempty"`
}

// EntityID implements entity identity.
func (s ServiceHealth) EntityID() string { return s.ID }

// Alert is a raised or updated alert. Alerts live in a capped collection.
type Alert struct {
	ID       string         `json:"id"`
	Severity string         `json:"severity"`
	Title    string         `json:"title"`
	Message  string         `json:"message,omitempty"`
	RaisedMs int64          `json:"-"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// EntityID implements entity identity.
func (a Alert) EntityID() string { return a.ID }

// LogEntry is a single log line. Log entries live in a capped collection.
type LogEntry struct {
	ID      string         `json:"id"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Source  string         `json:"source,omitempty"`
	AtMs    int64          `json:"-"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// EntityID implements entity identity.
func (l LogEntry) EntityID() string { return l.ID }

// Incident is an ongoing or resolved incident record.
type Incident struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Severity string         `json:"severity,omitempty"`
	Title    string         `json:"title"`
	OpenedMs int64          `json:"-"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// EntityID implements entity identity.
func (i Incident) EntityID() string { return i.ID }
