package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trade_dash/internal/domain"
	"trade_dash/internal/engine"
	"trade_dash/internal/infra"
	"trade_dash/internal/infra/venue"
	"trade_dash/internal/notify"
	"trade_dash/internal/service"

	"github.com/google/uuid"
)

const (
	inboxSize     = 1024
	feedSize      = 5
	notifyTimeout = 5 * time.Second
)

// Options configures a Session.
type Options struct {
	RestURL        string
	WSURL          string
	TraderID       string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	PageLimit      int

	Metrics  *infra.Metrics
	Notifier notify.Notifier // optional, receives every notification
	OnChange func(engine.Dashboard)
}

// OptionsFromConfig builds session options from the loaded config.
func OptionsFromConfig(cfg *infra.Config, traderID string) Options {
	return Options{
		RestURL:        cfg.Venue.RestURL,
		WSURL:          cfg.Venue.WSURL,
		TraderID:       traderID,
		ReconnectDelay: time.Duration(cfg.Venue.ReconnectDelayMS) * time.Millisecond,
		PingInterval:   time.Duration(cfg.Venue.PingIntervalSec) * time.Second,
		PageLimit:      cfg.Venue.PageLimit,
	}
}

// Session wires one trader's dashboard: the REST collaborators, the stream,
// and the dispatcher that owns all state.
type Session struct {
	ID       string
	TraderID string

	stream     *venue.Stream
	dispatcher *engine.Dispatcher
	loader     *service.Loader
	orders     *service.OrderService
	risk       *service.RiskService
	feed       *notify.Feed
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSession creates a session. Nothing runs until Start.
func NewSession(opts Options) *Session {
	if opts.Metrics == nil {
		opts.Metrics = infra.GlobalMetrics
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = infra.DefaultReconnectDelayMS * time.Millisecond
	}

	id := uuid.NewString()
	logger := slog.Default().With("module", "session", "session_id", id, "trader_id", opts.TraderID)

	feed := notify.NewFeed(feedSize, notifyTimeout)
	notifier := notify.Multi{feed, notify.NewLog(logger), opts.Notifier}

	client := venue.NewClient(opts.RestURL, opts.Metrics)
	dispatcher := engine.NewDispatcher(inboxSize, opts.TraderID, client, notifier, opts.Metrics, opts.OnChange)
	stream := venue.NewStream(venue.StreamConfig{
		URL:            opts.WSURL,
		ReconnectDelay: opts.ReconnectDelay,
		PingInterval:   opts.PingInterval,
	}, dispatcher.Inbox(), notifier, opts.Metrics)

	return &Session{
		ID:         id,
		TraderID:   opts.TraderID,
		stream:     stream,
		dispatcher: dispatcher,
		loader:     service.NewLoader(client, notifier, opts.PageLimit),
		orders:     service.NewOrderService(client, notifier, opts.TraderID),
		risk:       service.NewRiskService(client),
		feed:       feed,
		logger:     logger,
	}
}

// Start runs the dispatcher, opens the stream and begins the bootstrap load
// concurrently. Calling Start again is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.dispatcher.Run(ctx)
	}()

	if err := s.stream.Connect(ctx, s.TraderID); err != nil {
		cancel()
		<-s.done
		return err
	}
	s.dispatcher.Begin(ctx, s.loader)
	s.started = true

	s.logger.Info("Session started")
	return nil
}

// WaitReady blocks until the bootstrap completed or failed.
func (s *Session) WaitReady(ctx context.Context) error {
	return s.dispatcher.WaitReady(ctx)
}

// Sync returns once every event queued so far has been applied.
func (s *Session) Sync(ctx context.Context) error {
	return s.dispatcher.Sync(ctx)
}

// Snapshot returns the current dashboard state.
func (s *Session) Snapshot() engine.Dashboard {
	return s.dispatcher.Snapshot()
}

// Notifications returns the notifications still on screen.
func (s *Session) Notifications() []notify.Notification {
	return s.feed.Active()
}

// Connected reports whether the stream is currently open.
func (s *Session) Connected() bool {
	return s.stream.IsConnected()
}

// SubmitOrder sends an order for the session trader.
func (s *Session) SubmitOrder(ctx context.Context, req domain.OrderRequest) bool {
	return s.orders.Submit(ctx, req)
}

// UpdateRiskLimits sends a risk change. A TRADER scope without an explicit
// trader applies to the session trader.
func (s *Session) UpdateRiskLimits(ctx context.Context, update domain.RiskUpdate) bool {
	if update.Scope == domain.RiskScopeTrader && update.TraderID == "" {
		update.TraderID = s.TraderID
	}
	return s.risk.Update(ctx, update)
}

// Execute runs a parsed operator command.
func (s *Session) Execute(ctx context.Context, cmd Command) bool {
	switch cmd.Kind {
	case CommandOrder:
		return s.SubmitOrder(ctx, *cmd.Order)
	case CommandRisk:
		return s.UpdateRiskLimits(ctx, *cmd.Risk)
	}
	return false
}

// Close stops the stream and the dispatcher. A closed session cannot be
// started again.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	s.stream.Close()
	if cancel != nil {
		cancel()
		<-done
	}
	s.logger.Info("Session closed")
}
