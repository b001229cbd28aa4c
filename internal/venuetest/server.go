// Package venuetest runs an in-process venue (REST + websocket stream) for tests.
package venuetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"trade_dash/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Request is a recorded mutation call.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// Server is a fake venue. Fields set before the first request are served
// as-is; use the setters once clients are running.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	market   domain.MarketSnapshot
	book     domain.OrderBook
	trades   []domain.Trade
	traders  map[string]domain.TraderProfile
	limits   domain.RiskLimits
	failures map[string]int
	holds    map[string]chan struct{}

	requests      []Request
	traderFetches map[string]int

	conns    map[*websocket.Conn]string
	connects map[string]int
	connCh   chan string
}

// New starts a fake venue with an empty book.
func New() *Server {
	s := &Server{
		book: domain.OrderBook{
			Asks: domain.BookSide{Active: []domain.Order{}, Conditional: []domain.Order{}},
			Bids: domain.BookSide{Active: []domain.Order{}, Conditional: []domain.Order{}},
		},
		trades:        []domain.Trade{},
		traders:       make(map[string]domain.TraderProfile),
		failures:      make(map[string]int),
		holds:         make(map[string]chan struct{}),
		traderFetches: make(map[string]int),
		conns:         make(map[*websocket.Conn]string),
		connects:      make(map[string]int),
		connCh:        make(chan string, 64),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.intercept)

	r.Get("/market", s.handleMarket)
	r.Get("/orders", s.handleOrders)
	r.Post("/orders", s.handleMutation)
	r.Get("/trades", s.handleTrades)
	r.Get("/traders/{id}", s.handleTrader)
	r.Get("/risk", s.handleRisk)
	r.Put("/risk", s.handleMutation)
	r.Get("/ws", s.handleWS)

	s.Server = httptest.NewServer(r)
	return s
}

// WSURL returns the stream endpoint without the trader query.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

// Close drops all stream connections and stops the server.
func (s *Server) Close() {
	s.DropAll()
	s.mu.Lock()
	for path, ch := range s.holds {
		close(ch)
		delete(s.holds, path)
	}
	s.mu.Unlock()
	s.Server.Close()
}

func (s *Server) SetMarket(m domain.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.market = m
}

func (s *Server) SetBook(b domain.OrderBook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book = b
}

func (s *Server) SetTrades(t []domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = t
}

func (s *Server) SetTrader(p domain.TraderProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traders[p.ID] = p
}

func (s *Server) SetLimits(l domain.RiskLimits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = l
}

// Fail makes every request to path answer with status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Hold blocks requests to path until the returned release func is called.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[path] == ch {
				delete(s.holds, path)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
}

// Requests returns the recorded mutation calls.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// TraderFetches returns how many times the profile of id was requested.
func (s *Server) TraderFetches(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traderFetches[id]
}

// Connects returns how many stream connections traderID has opened.
func (s *Server) Connects(traderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects[traderID]
}

// Open returns the number of currently open stream connections.
func (s *Server) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WaitConnect blocks until a stream connection is opened or timeout passes.
// It returns the connecting trader id.
func (s *Server) WaitConnect(timeout time.Duration) (string, bool) {
	select {
	case id := <-s.connCh:
		return id, true
	case <-time.After(timeout):
		return "", false
	}
}

// Push sends a raw frame to every open stream connection.
func (s *Server) Push(frame []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent := 0
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err == nil {
			sent++
		}
	}
	return sent
}

// PushEvent encodes {event, message, data} and pushes it.
func (s *Server) PushEvent(kind, message string, data any) int {
	frame, err := json.Marshal(map[string]any{
		"event":   kind,
		"message": message,
		"data":    data,
	})
	if err != nil {
		panic(err)
	}
	return s.Push(frame)
}

// DropAll closes every stream connection without a close handshake.
func (s *Server) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := s.failures[r.URL.Path]
		hold := s.holds[r.URL.Path]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleMarket(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"marketData": s.market})
}

func (s *Server) handleOrders(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.book)
}

func (s *Server) handleTrades(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"trades": s.trades})
}

func (s *Server) handleTrader(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.traderFetches[id]++

	p, ok := s.traders[id]
	if !ok {
		http.Error(w, "Trader not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trader": p})
}

func (s *Server) handleRisk(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"limits": s.limits})
}

func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"message": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	traderID := r.URL.Query().Get("traderId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns[conn] = traderID
	s.connects[traderID]++
	s.mu.Unlock()

	select {
	case s.connCh <- traderID:
	default:
	}

	// Read pump: detect disconnects.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
