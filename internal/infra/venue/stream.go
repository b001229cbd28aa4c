package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"trade_dash/internal/domain"
	"trade_dash/internal/event"
	"trade_dash/internal/infra"
	"trade_dash/internal/notify"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// StreamConfig configures the Transport Manager.
type StreamConfig struct {
	URL            string        // ws(s)://host/ws
	ReconnectDelay time.Duration // fixed, never backs off
	PingInterval   time.Duration // 0 disables pings and the read deadline
}

// Stream owns the single streaming connection of a dashboard session.
// Decoded frames are posted to the inbox in arrival order. After an
// unintentional close it reconnects every ReconnectDelay until Close.
type Stream struct {
	cfg      StreamConfig
	inbox    chan<- event.Event
	notifier notify.Notifier
	metrics  *infra.Metrics
	logger   *slog.Logger

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	running   bool
	connected bool
	cancel    context.CancelFunc
	done      chan struct{} // closed when the connection loop exits
}

// NewStream creates a Transport Manager posting to inbox.
func NewStream(cfg StreamConfig, inbox chan<- event.Event, notifier notify.Notifier, metrics *infra.Metrics) *Stream {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Stream{
		cfg:      cfg,
		inbox:    inbox,
		notifier: notifier,
		metrics:  metrics,
		logger:   slog.Default().With("module", "stream"),
	}
}

// Target builds the stream URL scoped to traderID.
func Target(base, traderID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", &domain.ConfigError{Field: "venue.ws_url", Err: err}
	}
	q := u.Query()
	q.Set("traderId", traderID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect starts the connection loop for traderID. It is a no-op while a
// connection is open, pending or waiting to reconnect.
func (s *Stream) Connect(ctx context.Context, traderID string) error {
	target, err := Target(s.cfg.URL, traderID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Debug("Connect ignored, stream already active")
		return nil
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.connectionLoop(ctx, target, s.done)
	return nil
}

// Close stops the stream without scheduling a reconnect. Connect may be
// called again afterwards.
func (s *Stream) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.closeConnection()
	if done != nil {
		<-done
	}
}

// IsConnected reports whether a connection is currently open.
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Stream) connectionLoop(ctx context.Context, target string, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Stream connectionLoop panic recovered", slog.Any("panic", r))
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.connect(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("Stream connection failed", slog.Any("error", err))
			s.notifier.Notify(ctx, notify.Error, "WebSocket error: "+err.Error())
		} else {
			s.post(ctx, &event.ConnectionEvent{Header: event.NewHeader(), Connected: true})
			s.readLoop(ctx, conn)
			s.post(ctx, &event.ConnectionEvent{Header: event.NewHeader(), Connected: false})
		}

		if ctx.Err() != nil {
			return
		}

		s.metrics.RecordReconnect()
		s.logger.Info("Stream reconnect scheduled", slog.Duration("delay", s.cfg.ReconnectDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

func (s *Stream) connect(ctx context.Context, target string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, domain.NewNetworkError("dial", fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err))
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		// Closed while dialing
		s.mu.Unlock()
		conn.Close()
		return nil, ctx.Err()
	}
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	s.metrics.IncrementConnections()
	s.logger.Info("Stream connected", slog.String("url", target))
	return conn, nil
}

func (s *Stream) threadSafeWrite(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return errors.New("connection is nil")
	}
	return conn.WriteControl(messageType, data, time.Now().Add(writeTimeout))
}

func (s *Stream) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.threadSafeWrite(websocket.PingMessage, nil); err != nil {
				s.logger.Warn("Stream ping failed", slog.Any("error", err))
			}
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	if s.cfg.PingInterval > 0 {
		readTimeout := 2 * s.cfg.PingInterval
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
		go s.pingLoop(done)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			intentional := ctx.Err() != nil
			s.closeConnection()
			if intentional {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("Stream closed by venue", slog.Any("error", err))
			} else {
				s.logger.Warn("Stream read error", slog.Any("error", err))
				s.notifier.Notify(ctx, notify.Error, "WebSocket error")
			}
			return
		}
		s.handleMessage(ctx, message)
	}
}

// handleMessage decodes one frame. A malformed frame is logged and dropped;
// it never closes the connection.
func (s *Stream) handleMessage(ctx context.Context, message []byte) {
	s.metrics.RecordFrame()

	env, err := event.Decode(message)
	if err != nil {
		s.metrics.RecordMalformed()
		s.logger.Warn("Malformed stream frame",
			slog.Any("error", err),
			slog.String("event", string(event.PeekKind(message))),
			slog.Int("bytes", len(message)))
		return
	}

	s.post(ctx, &event.StreamEvent{Header: event.NewHeader(), Envelope: env})
}

// post blocks until the dispatcher accepts ev or the stream is closed.
func (s *Stream) post(ctx context.Context, ev event.Event) {
	select {
	case s.inbox <- ev:
	case <-ctx.Done():
	}
}

func (s *Stream) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		s.metrics.DecrementConnections()
	}
	s.connected = false
}
