package event

import (
	"encoding/json"

	"github.com/xtxerr/scope/internal/errors"
	"github.com/xtxerr/scope/internal/logging"
	"github.com/xtxerr/scope/internal/metrics"
)

var log = logging.Component("dispatcher")

// Handlers receives routed events. Each event kind maps to exactly one
// handler; nil handlers drop that kind.
type Handlers struct {
	Metric   func(key string, timestampMs int64, value float64)
	Health   func(ServiceHealth)
	Alert    func(Alert)
	Log      func(LogEntry)
	Incident func(Incident)
}

// Dispatcher decodes raw frames and fans each resulting event out to the
// correct handler. It is driven by a single goroutine (the engine's apply
// loop), so handler invocations are serialized.
type Dispatcher struct {
	handlers Handlers
	met      *metrics.Set

	// Optional tap invoked after a successful dispatch.
	observer func(Event)
}

// NewDispatcher creates a dispatcher routing to the given handlers.
func NewDispatcher(handlers Handlers, met *metrics.Set) *Dispatcher {
	return &Dispatcher{handlers: handlers, met: met}
}

// SetObserver registers a tap called after each dispatched event.
// Must be set before frames start flowing.
func (d *Dispatcher) SetObserver(fn func(Event)) {
	d.observer = fn
}

// HandleFrame decodes and dispatches one raw frame.
//
// One bad frame never drops the stream: unknown kinds are dropped silently,
// decode failures are logged and counted, and nothing propagates to the
// caller.
func (d *Dispatcher) HandleFrame(raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		if d.met != nil {
			d.met.FramesTotal.Inc()
			d.met.DecodeFailures.Inc()
		}
		log.Warn("frame dropped", "error", err)
		return
	}
	d.HandleParsed(frame)
}

// HandleParsed dispatches an already-parsed frame, applying the same
// forward-compatibility and isolation rules as HandleFrame. Historical
// loads use this path so seeded and live traffic share one pipeline.
func (d *Dispatcher) HandleParsed(frame Frame) {
	if d.met != nil {
		d.met.FramesTotal.Inc()
	}

	ev, err := DecodeFrame(frame)
	if err != nil {
		if errors.Is(err, errors.ErrUnknownEventKind) {
			// Forward compatibility: newer server kinds must not crash
			// older consumers.
			if d.met != nil {
				d.met.UnknownKinds.Inc()
			}
			return
		}
		if d.met != nil {
			d.met.DecodeFailures.Inc()
		}
		log.Warn("frame dropped", "error", err)
		return
	}

	d.Dispatch(ev)
}

// Dispatch routes a decoded event to exactly one handler.
func (d *Dispatcher) Dispatch(ev Event) {
	switch ev.Kind {
	case KindMetric, KindResource:
		if d.handlers.Metric != nil {
			d.handlers.Metric(ev.Metric.SeriesKey(ev.Service), ev.TimestampMs, ev.Metric.Value)
		}
	case KindHealth:
		if d.handlers.Health != nil {
			d.handlers.Health(*ev.Health)
		}
	case KindAlert:
		if d.handlers.Alert != nil {
			d.handlers.Alert(*ev.Alert)
		}
	case KindLog:
		if d.handlers.Log != nil {
			d.handlers.Log(*ev.Log)
		}
	case KindIncident:
		if d.handlers.Incident != nil {
			d.handlers.Incident(*ev.Incident)
		}
	}

	if d.observer != nil {
		d.observer(ev)
	}
}
