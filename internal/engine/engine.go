// Package engine wires the scope components into one streaming observability
// state engine: historical seeding, a live channel (or polling fallback),
// a serialized decode-dispatch-mutate pipeline, and read-only snapshots.
//
// Each engine instance exclusively owns its series store and entity
// collections. Multiple engines (one per dashboard widget) are fully
// independent and may run concurrently with no shared state.
package engine

import (
	"context"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/scope/config"
	"github.com/xtxerr/scope/internal/aggregate"
	"github.com/xtxerr/scope/internal/channel"
	"github.com/xtxerr/scope/internal/entity"
	"github.com/xtxerr/scope/internal/errors"
	"github.com/xtxerr/scope/internal/event"
	"github.com/xtxerr/scope/internal/history"
	"github.com/xtxerr/scope/internal/logging"
	"github.com/xtxerr/scope/internal/metrics"
	"github.com/xtxerr/scope/internal/series"
	"github.com/xtxerr/scope/internal/syncutil"
)

var log = logging.Component("engine")

// Engine is one streaming observability state engine.
type Engine struct {
	cfg *config.Config
	met *metrics.Set

	store *series.Store
	rec   *entity.Reconciler
	agg   *aggregate.Aggregator
	disp  *event.Dispatcher

	loader *history.Loader // nil when history is not configured

	connMu sync.Mutex
	conn   *channel.Conn // nil until Run selects the live path

	// lastPollTo tracks polling progress so consecutive polls do not
	// re-request (and re-append) the same range.
	lastPollTo time.Time

	shutdown  chan struct{}
	closeOnce syncutil.ResettableOnce
	running   syncutil.ResettableOnce
}

// New creates an engine from the given configuration. Metrics register on
// reg; pass nil to keep them private to this engine.
func New(cfg *config.Config, reg prometheus.Registerer) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	met := metrics.New(reg, cfg.ID)

	store := series.NewStore(series.Config{
		Window:    cfg.Series.Window.Std(),
		MaxPoints: cfg.Series.MaxPoints,
	}, met)

	rec := entity.NewReconciler(cfg.Entities.Cap)

	e := &Engine{
		cfg:      cfg,
		met:      met,
		store:    store,
		rec:      rec,
		agg:      aggregate.New(store),
		shutdown: make(chan struct{}),
	}

	e.disp = event.NewDispatcher(event.Handlers{
		Metric: func(key string, tsMs int64, value float64) {
			store.Append(key, tsMs, value)
		},
		Health:   rec.Services.Upsert,
		Alert:    rec.Alerts.Upsert,
		Log:      rec.Logs.Upsert,
		Incident: rec.Incidents.Upsert,
	}, met)

	if cfg.History.URL != "" {
		e.loader = history.NewWithClient(cfg.History.URL,
			&http.Client{Timeout: cfg.History.LoadTimeout.Std()})
	}

	return e, nil
}

// OnEvent registers a consumer callback invoked after each event has been
// applied. The callback runs on the serialized apply loop, so it observes
// every mutation in order; it must not block. Must be set before Run.
func (e *Engine) OnEvent(fn func(event.Event)) {
	e.disp.SetObserver(fn)
}

// Run seeds state from the historical loader, selects an ingestion path
// (live channel preferred, polling fallback otherwise), and processes
// events until ctx is cancelled or the engine is closed.
//
// All mutations to the engine's store and collections happen on this
// goroutine: decode, dispatch, and store mutation form one ordered
// pipeline per frame, so no two frames are ever applied concurrently.
func (e *Engine) Run(ctx context.Context) error {
	if e.closed() {
		return errors.ErrEngineClosed
	}
	if !e.startRunning() {
		return errors.ErrAlreadyRunning
	}

	e.seed(ctx)

	conn := e.openChannel(ctx)

	g, ctx := errgroup.WithContext(ctx)
	if conn != nil {
		g.Go(func() error { return e.applyLoop(ctx, conn) })
	} else if e.loader != nil {
		g.Go(func() error { return e.pollLoop(ctx) })
	} else {
		// Nothing to ingest beyond the seed; hold until cancelled.
		g.Go(func() error {
			select {
			case <-ctx.Done():
			case <-e.shutdown:
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// seed loads the initial historical range. Failure is logged, not fatal:
// the engine starts empty and fills from the live stream.
func (e *Engine) seed(ctx context.Context) {
	if e.loader == nil {
		return
	}

	now := time.Now()
	e.met.HistoricalLoads.Inc()
	frames, err := e.loader.Load(ctx, history.Range{
		From: now.Add(-e.cfg.History.SeedRange.Std()),
		To:   now,
	})
	if err != nil {
		e.met.HistoricalErrors.Inc()
		log.Warn("seed load failed, starting empty", "error", err)
		return
	}

	// Results from a load that resolved after Close are discarded.
	if e.closed() {
		return
	}

	for _, f := range frames {
		e.disp.HandleParsed(f)
	}
	e.lastPollTo = now
	log.Info("state seeded", "frames", len(frames))
}

// openChannel attempts the live path. A transport that cannot be
// established at all selects the polling fallback instead; the two
// ingestion paths are mutually exclusive, preferring live.
func (e *Engine) openChannel(ctx context.Context) *channel.Conn {
	if e.cfg.Channel.Disable || e.cfg.Channel.URL == "" {
		return nil
	}

	conn, err := channel.Open(ctx, channel.Config{
		URL: e.cfg.Channel.URL,
		Subscription: channel.Subscription{
			Channels: e.cfg.Channel.Channels,
			Filter:   e.cfg.Channel.Filter,
		},
		ReconnectInterval: e.cfg.Channel.ReconnectInterval.Std(),
		HandshakeTimeout:  e.cfg.Channel.HandshakeTimeout.Std(),
		MaxFrameSize:      e.cfg.Channel.MaxFrameSize,
	}, e.met)
	if err != nil {
		if e.loader != nil {
			log.Warn("live channel unavailable, falling back to polling", "error", err)
			return nil
		}
		log.Error("live channel unavailable and no history endpoint configured", "error", err)
		return nil
	}

	e.connMu.Lock()
	e.conn = conn
	e.connMu.Unlock()
	return conn
}

// applyLoop is the single inbound-frame consumer for the live path.
func (e *Engine) applyLoop(ctx context.Context, conn *channel.Conn) error {
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.shutdown:
			return nil
		case <-conn.Done():
			return nil
		case raw := <-conn.Frames():
			e.disp.HandleFrame(raw)
		}
	}
}

// pollLoop is the fallback ingestion path: periodic historical loads.
func (e *Engine) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.History.PollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.shutdown:
			return nil
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	from := e.lastPollTo
	now := time.Now()
	if from.IsZero() {
		from = now.Add(-e.cfg.History.SeedRange.Std())
	}

	e.met.HistoricalLoads.Inc()
	frames, err := e.loader.Load(ctx, history.Range{From: from, To: now})
	if err != nil {
		e.met.HistoricalErrors.Inc()
		log.Warn("poll load failed", "error", err)
		return
	}
	if e.closed() {
		return
	}

	for _, f := range frames {
		e.disp.HandleParsed(f)
	}
	e.lastPollTo = now
}

// =============================================================================
// Read side
// =============================================================================

// Snapshot is a read-only, point-in-time view of the engine's entity state.
type Snapshot struct {
	TakenAt   time.Time
	ConnState channel.State

	Services  []event.ServiceHealth
	Incidents []event.Incident
	Alerts    []event.Alert
	Logs      []event.LogEntry

	SeriesKeys []string
}

// Snapshot returns a consistent copy of the current entity state. It never
// blocks ingestion and is never blocked by it.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		TakenAt:    time.Now(),
		ConnState:  e.ConnState(),
		Services:   e.rec.Services.Snapshot(),
		Incidents:  e.rec.Incidents.Snapshot(),
		Alerts:     e.rec.Alerts.Snapshot(),
		Logs:       e.rec.Logs.Snapshot(),
		SeriesKeys: e.store.Keys(),
	}
}

// Stats computes rolling statistics over key's retained window.
func (e *Engine) Stats(key string) aggregate.Stats {
	return e.agg.Stats(key)
}

// Query returns key's retained samples at or after since, oldest to newest.
func (e *Engine) Query(key string, since time.Time) iter.Seq[series.Sample] {
	return e.store.Query(key, since)
}

// ConnState returns the live channel state; Disconnected when the engine
// runs on the polling fallback.
func (e *Engine) ConnState() channel.State {
	e.connMu.Lock()
	conn := e.conn
	e.connMu.Unlock()

	if conn == nil {
		return channel.StateDisconnected
	}
	return conn.State()
}

// =============================================================================
// Lifecycle
// =============================================================================

// Close disposes the engine: it stops ingestion, releases the transport,
// and halts further reconnection attempts. Idempotent. In-flight historical
// loads are not cancelled; their results are discarded when they resolve.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.shutdown)

		e.connMu.Lock()
		conn := e.conn
		e.connMu.Unlock()
		if conn != nil {
			conn.Close()
		}

		log.Info("engine closed", "id", e.cfg.ID)
	})
	return nil
}

func (e *Engine) closed() bool {
	return e.closeOnce.Done()
}

func (e *Engine) startRunning() bool {
	started := false
	e.running.Do(func() { started = true })
	return started
}
