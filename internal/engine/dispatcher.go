package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"trade_dash/internal/domain"
	"trade_dash/internal/event"
	"trade_dash/internal/infra"
	"trade_dash/internal/notify"
	"trade_dash/internal/service"
)

// SnapshotLoader performs the bootstrap load.
type SnapshotLoader interface {
	Load(ctx context.Context, traderID string) (domain.Snapshot, error)
}

// Dispatcher is the single-goroutine event processor of a dashboard session.
// Every state mutation happens inside Run; external readers use Snapshot.
type Dispatcher struct {
	inbox    chan event.Event
	traderID string
	traders  domain.TraderSource
	notifier notify.Notifier
	metrics  *infra.Metrics
	logger   *slog.Logger

	market *service.MarketReconciler
	trader *service.TraderReconciler
	book   service.OrderBookView

	// Generation of the newest trader fetch issued / applied. Bootstrap is 0.
	traderGen        uint64
	appliedTraderGen uint64
	fetches          sync.WaitGroup

	// Boundary: used to notify the UI of state changes
	onChange func(Dashboard)

	mu    sync.RWMutex // Guards state; the Run goroutine is the only writer
	state Dashboard

	// Notifications raised while applying an event; sent after mu is released.
	pending []notify.Notification

	bootstrapOnce sync.Once
	bootstrapDone chan struct{}
}

// barrier is processed like any event and closes done once reached.
type barrier struct {
	event.Header
	done chan struct{}
}

func (b *barrier) GetType() event.Type { return "BARRIER" }

// NewDispatcher creates a dispatcher for traderID. traders serves the
// re-fetch after a trade involving that trader.
func NewDispatcher(inboxSize int, traderID string, traders domain.TraderSource, notifier notify.Notifier, metrics *infra.Metrics, onChange func(Dashboard)) *Dispatcher {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Dispatcher{
		inbox:         make(chan event.Event, inboxSize),
		traderID:      traderID,
		traders:       traders,
		notifier:      notifier,
		metrics:       metrics,
		logger:        slog.Default().With("module", "dispatcher"),
		market:        service.NewMarketReconciler(),
		trader:        service.NewTraderReconciler(),
		onChange:      onChange,
		state:         Dashboard{TraderID: traderID},
		bootstrapDone: make(chan struct{}),
	}
}

// Inbox returns the event channel. The transport and async loads send here.
func (d *Dispatcher) Inbox() chan<- event.Event {
	return d.inbox
}

// Begin performs the Uninitialized -> Loading transition and starts the
// bootstrap load. It returns false, and loads nothing, in any other phase.
func (d *Dispatcher) Begin(ctx context.Context, loader SnapshotLoader) bool {
	d.mu.Lock()
	if d.state.Phase != PhaseUninitialized {
		d.mu.Unlock()
		return false
	}
	d.state.Phase = PhaseLoading
	d.mu.Unlock()

	d.logger.Info("Bootstrap started", slog.String("trader_id", d.traderID))
	go func() {
		snap, err := loader.Load(ctx, d.traderID)
		if err != nil {
			d.post(ctx, &event.BootstrapFailed{Header: event.NewHeader(), Err: err})
			return
		}
		d.post(ctx, &event.BootstrapLoaded{Header: event.NewHeader(), Snapshot: snap})
	}()
	return true
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Dispatcher started")
	defer d.fetches.Wait()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopping...")
			return
		case ev := <-d.inbox:
			d.safeProcess(ctx, ev)
		}
	}
}

// Sync returns once every event posted before it has been applied.
func (d *Dispatcher) Sync(ctx context.Context) error {
	b := &barrier{Header: event.NewHeader(), done: make(chan struct{})}
	select {
	case d.inbox <- b:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitReady blocks until the bootstrap has been applied or has failed.
func (d *Dispatcher) WaitReady(ctx context.Context) error {
	select {
	case <-d.bootstrapDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.BootstrapErr
}

// Phase returns the current session phase.
func (d *Dispatcher) Phase() Phase {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Phase
}

// Snapshot returns a copy of the dashboard state (external read).
func (d *Dispatcher) Snapshot() Dashboard {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

func (d *Dispatcher) snapshotLocked() Dashboard {
	snap := d.state
	if d.state.Market != nil {
		m := *d.state.Market
		snap.Market = &m
	}
	if d.state.Trader != nil {
		t := *d.state.Trader
		snap.Trader = &t
	}
	if d.state.Risk != nil {
		r := *d.state.Risk
		snap.Risk = &r
	}
	snap.Book, snap.BookVersion, snap.BookLoaded = d.book.Snapshot()
	return snap
}

func (d *Dispatcher) safeProcess(ctx context.Context, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r), slog.Any("type", ev.GetType()))
			d.pending = d.pending[:0]
			d.DumpState("panic_dump.json")
		}
	}()
	d.processEvent(ctx, ev)
}

func (d *Dispatcher) processEvent(ctx context.Context, ev event.Event) {
	if b, ok := ev.(*barrier); ok {
		close(b.done)
		return
	}

	snap := d.apply(ctx, ev)
	d.metrics.RecordEvent(time.Since(time.UnixMicro(ev.GetTs())).Nanoseconds())

	for _, n := range d.pending {
		d.notifier.Notify(ctx, n.Level, n.Message)
	}
	d.pending = d.pending[:0]

	if d.onChange != nil {
		d.onChange(snap)
	}
}

// apply mutates state for one event and returns the resulting snapshot.
func (d *Dispatcher) apply(ctx context.Context, ev event.Event) Dashboard {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch e := ev.(type) {
	case *event.StreamEvent:
		d.handleStream(ctx, e.Envelope)
	case *event.ConnectionEvent:
		d.state.Connected = e.Connected
	case *event.BootstrapLoaded:
		d.handleBootstrapLoaded(e.Snapshot)
	case *event.BootstrapFailed:
		d.handleBootstrapFailed(e.Err)
	case *event.TraderLoaded:
		d.handleTraderLoaded(e)
	case *event.TraderFailed:
		d.handleTraderFailed(e)
	default:
		d.logger.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
	d.state.Version++
	return d.snapshotLocked()
}

// handleStream applies one frame. Must be called with d.mu held.
func (d *Dispatcher) handleStream(ctx context.Context, env *event.Envelope) {
	if env == nil {
		return
	}
	data := &env.Data

	// A market payload may ride along with any kind.
	if data.Market != nil {
		view := d.market.Apply(*data.Market)
		d.state.Market = &view
	}

	switch {
	case env.Event.ReplacesBook():
		if book, ok := data.Book(); ok {
			d.book.Replace(book)
		} else {
			d.logger.Warn("Order event without full book", slog.String("event", string(env.Event)))
		}
	case env.Event == event.KindTradeExecuted:
		if data.Trades != nil {
			d.state.Trades = slices.Clone(data.Trades)
		}
		if data.Involves(d.traderID) {
			d.refetchTrader(ctx)
		}
	case env.Event == event.KindRiskUpdated:
		if data.Limits != nil {
			limits := *data.Limits
			d.state.Risk = &limits
		}
	default:
		d.logger.Debug("Ignoring event", slog.String("event", string(env.Event)))
	}

	if env.Message != "" {
		d.queueNotify(notify.Info, env.Message)
	}
}

// refetchTrader loads the profile in the background. The result comes back
// through the inbox tagged with its generation.
func (d *Dispatcher) refetchTrader(ctx context.Context) {
	d.traderGen++
	gen := d.traderGen

	d.fetches.Add(1)
	go func() {
		defer d.fetches.Done()
		profile, err := d.traders.GetTrader(ctx, d.traderID)
		if err != nil {
			d.post(ctx, &event.TraderFailed{Header: event.NewHeader(), Gen: gen, Err: err})
			return
		}
		d.post(ctx, &event.TraderLoaded{Header: event.NewHeader(), Gen: gen, Trader: profile})
	}()
}

func (d *Dispatcher) handleTraderLoaded(e *event.TraderLoaded) {
	if e.Gen <= d.appliedTraderGen {
		d.logger.Debug("Stale trader fetch dropped", slog.Uint64("gen", e.Gen))
		return
	}
	d.appliedTraderGen = e.Gen
	view := d.trader.Apply(e.Trader)
	d.state.Trader = &view
}

// handleTraderFailed keeps the current trader view. A retriable failure is
// only a warning: the next trade involving the trader fetches again.
func (d *Dispatcher) handleTraderFailed(e *event.TraderFailed) {
	d.logger.Warn("Trader re-fetch failed",
		slog.Uint64("gen", e.Gen),
		slog.Bool("retriable", domain.IsRetriable(e.Err)),
		slog.Any("error", e.Err))

	level := notify.Error
	if domain.IsRetriable(e.Err) {
		level = notify.Warn
	}
	d.queueNotify(level, e.Err.Error())
}

// handleBootstrapLoaded fills only the pieces the stream has not set yet.
// Anything already set is newer than the bootstrap data.
func (d *Dispatcher) handleBootstrapLoaded(snap domain.Snapshot) {
	if d.state.Phase != PhaseLoading {
		d.logger.Warn("Bootstrap result outside loading phase", slog.String("phase", d.state.Phase.String()))
		return
	}

	if d.state.Market == nil {
		view := d.market.Apply(snap.Market)
		d.state.Market = &view
	}
	if !d.book.Loaded() {
		d.book.Replace(snap.Book)
	}
	if d.state.Trades == nil {
		trades := snap.Trades
		if trades == nil {
			trades = []domain.Trade{}
		}
		d.state.Trades = trades
	}
	if d.state.Trader == nil && d.appliedTraderGen == 0 {
		view := d.trader.Apply(snap.Trader)
		d.state.Trader = &view
	}
	if d.state.Risk == nil {
		risk := snap.Risk
		d.state.Risk = &risk
	}

	d.state.Phase = PhaseReady
	d.logger.Info("Dashboard ready")
	d.bootstrapOnce.Do(func() { close(d.bootstrapDone) })
}

// handleBootstrapFailed keeps the session in Loading. Nothing partial is shown.
func (d *Dispatcher) handleBootstrapFailed(err error) {
	d.state.BootstrapErr = fmt.Errorf("%w: %w", domain.ErrBootstrapIncomplete, err)
	d.logger.Error("Bootstrap failed", slog.Any("error", err))
	d.bootstrapOnce.Do(func() { close(d.bootstrapDone) })
}

func (d *Dispatcher) queueNotify(level notify.Level, message string) {
	d.pending = append(d.pending, notify.Notification{Level: level, Message: message, At: time.Now()})
}

// post blocks until the event is queued or ctx ends. Late results after the
// session closed are dropped.
func (d *Dispatcher) post(ctx context.Context, ev event.Event) {
	select {
	case d.inbox <- ev:
	case <-ctx.Done():
	}
}

// DumpState writes the dashboard state to a file (for post-mortem).
func (d *Dispatcher) DumpState(filename string) {
	slog.Info("Dumping dashboard state...", slog.String("file", filename))

	b, err := json.MarshalIndent(d.Snapshot(), "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
