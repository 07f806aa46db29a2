package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xtxerr/scope/internal/errors"
)

// Frame is the raw tagged union shape of an inbound message.
type Frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
	Service   string          `json:"service,omitempty"`
}

// Decode parses a raw frame into a typed Event.
//
// Unknown kinds return errors.ErrUnknownEventKind so the dispatcher can
// drop them silently; any other failure wraps errors.ErrDecode. Neither is
// ever fatal to the stream.
func Decode(raw []byte) (Event, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Event{}, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	return DecodeFrame(frame)
}

// DecodeFrame converts an already-parsed Frame into a typed Event.
func DecodeFrame(frame Frame) (Event, error) {
	kind := Kind(frame.Type)
	if !kind.Known() {
		return Event{}, fmt.Errorf("%w: %q", errors.ErrUnknownEventKind, frame.Type)
	}

	ts, err := parseTimestamp(frame.Timestamp)
	if err != nil {
		return Event{}, err
	}

	ev := Event{
		Kind:        kind,
		TimestampMs: ts,
		Service:     frame.Service,
	}

	switch kind {
	case KindMetric, KindResource:
		var m Metric
		if err := unmarshalPayload(frame.Data, &m); err != nil {
			return Event{}, err
		}
		if m.Name == "" {
			return Event{}, fmt.Errorf("%w: metric name missing", errors.ErrDecode)
		}
		ev.Metric = &m

	case KindHealth:
		var h ServiceHealth
		if err := unmarshalPayload(frame.Data, &h); err != nil {
			return Event{}, err
		}
		// A health frame without an explicit id describes the frame's
		// originating service.
		if h.ID == "" {
			h.ID = frame.Service
		}
		if h.ID == "" {
			return Event{}, fmt.Errorf("%w: health id missing", errors.ErrDecode)
		}
		h.SeenMs = ts
		ev.Health = &h

	case KindAlert:
		var a Alert
		if err := unmarshalPayload(frame.Data, &a); err != nil {
			return Event{}, err
		}
		if a.ID == "" {
			return Event{}, fmt.Errorf("%w: alert id missing", errors.ErrDecode)
		}
		a.RaisedMs = ts
		ev.Alert = &a

	case KindLog:
		var l LogEntry
		if err := unmarshalPayload(frame.Data, &l); err != nil {
			return Event{}, err
		}
		if l.ID == "" {
			return Event{}, fmt.Errorf("%w: log id missing", errors.ErrDecode)
		}
		l.AtMs = ts
		ev.Log = &l

	case KindIncident:
		var i Incident
		if err := unmarshalPayload(frame.Data, &i); err != nil {
			return Event{}, err
		}
		if i.ID == "" {
			return Event{}, fmt.Errorf("%w: incident id missing", errors.ErrDecode)
		}
		i.OpenedMs = ts
		ev.Incident = &i
	}

	return ev, nil
}

func unmarshalPayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", errors.ErrDecode)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	return nil
}

// parseTimestamp parses an ISO-8601 timestamp into Unix milliseconds.
func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: timestamp missing", errors.ErrDecode)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Some producers emit fractional seconds without a zone.
		t, err = time.Parse("2006-01-02T15:04:05.999999999", s)
		if err != nil {
			return 0, fmt.Errorf("%w: bad timestamp %q", errors.ErrDecode, s)
		}
		t = t.UTC()
	}
	return t.UnixMilli(), nil
}
