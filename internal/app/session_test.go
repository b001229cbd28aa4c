package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"trade_dash/internal/domain"
	"trade_dash/internal/engine"
	"trade_dash/internal/event"
	"trade_dash/internal/infra"
	"trade_dash/internal/notify"
	"trade_dash/internal/venuetest"

	"github.com/shopspring/decimal"
)

const (
	sessionTrader = "123-456-789"
	waitTimeout   = 3 * time.Second
)

func newVenue(t *testing.T) *venuetest.Server {
	t.Helper()
	v := venuetest.New()
	v.SetTrader(domain.TraderProfile{ID: sessionTrader, Name: "Ada Lovelace"})
	v.SetMarket(domain.MarketSnapshot{CurrentPrice: decimal.NewFromInt(100)})
	v.SetLimits(domain.RiskLimits{MaxOrderSize: 25})
	t.Cleanup(v.Close)
	return v
}

func newTestSession(t *testing.T, v *venuetest.Server) (*Session, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	s := NewSession(Options{
		RestURL:        v.URL,
		WSURL:          v.WSURL(),
		TraderID:       sessionTrader,
		ReconnectDelay: 50 * time.Millisecond,
		PageLimit:      50,
		Metrics:        &infra.Metrics{},
		Notifier:       rec,
	})
	t.Cleanup(s.Close)
	return s, rec
}

func startReady(t *testing.T, s *Session) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
	return ctx
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSession_Bootstrap(t *testing.T) {
	v := newVenue(t)
	s, _ := newTestSession(t, v)
	startReady(t, s)

	snap := s.Snapshot()
	if snap.Phase != engine.PhaseReady || !snap.Complete() {
		t.Fatalf("Expected complete READY dashboard, got phase %s", snap.Phase)
	}
	if snap.Trader.Initials != "AL" || snap.Trader.HasWinRate {
		t.Errorf("unexpected trader view %+v", snap.Trader)
	}
	if snap.Risk.MaxOrderSize != 25 {
		t.Errorf("unexpected risk %+v", snap.Risk)
	}
	if !snap.Market.CurrentPrice.Value.Equal(decimal.NewFromInt(100)) || snap.Market.CurrentPrice.Trend != domain.Rising {
		t.Errorf("unexpected price %+v", snap.Market.CurrentPrice)
	}

	if id, ok := v.WaitConnect(waitTimeout); !ok || id != sessionTrader {
		t.Fatalf("Expected stream connection for %s, got %q", sessionTrader, id)
	}
}

func TestSession_StartTwiceSingleConnection(t *testing.T) {
	v := newVenue(t)
	s, _ := newTestSession(t, v)
	ctx := startReady(t, s)

	if _, ok := v.WaitConnect(waitTimeout); !ok {
		t.Fatal("no stream connection")
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if n := v.Connects(sessionTrader); n != 1 {
		t.Errorf("Expected 1 connection, got %d", n)
	}
	if n := v.TraderFetches(sessionTrader); n != 1 {
		t.Errorf("Expected 1 bootstrap trader fetch, got %d", n)
	}
}

func TestSession_MalformedFrameThenGood(t *testing.T) {
	v := newVenue(t)
	s, rec := newTestSession(t, v)
	startReady(t, s)
	if _, ok := v.WaitConnect(waitTimeout); !ok {
		t.Fatal("no stream connection")
	}

	price := decimal.NewFromInt(101)
	asks := domain.BookSide{Active: []domain.Order{{ID: 1, Side: domain.SideAsk, Type: domain.OrderTypeLimit, Price: &price, RemainingQuantity: 4}}, Conditional: []domain.Order{}}
	bids := domain.BookSide{Active: []domain.Order{}, Conditional: []domain.Order{}}

	v.Push([]byte(`{"event":"ORDER_ADDED","data":`))
	v.PushEvent(string(event.KindOrderAdded), "Order 1 added", event.Data{Asks: &asks, Bids: &bids})

	eventually(t, "book update", func() bool {
		snap := s.Snapshot()
		return snap.Book.Len() == 1
	})

	if got := s.Snapshot().Book.Asks.Active[0].ID; got != 1 {
		t.Errorf("Expected order 1, got %d", got)
	}
	eventually(t, "notification", func() bool { return len(rec.Messages(notify.Info)) == 1 })
	if errs := rec.Messages(notify.Error); len(errs) != 0 {
		t.Errorf("Malformed frames must not be surfaced, got %v", errs)
	}
	if !s.Connected() {
		t.Error("Malformed frame must not close the connection")
	}
}

func TestSession_TradeExecutedRefetch(t *testing.T) {
	v := newVenue(t)
	s, _ := newTestSession(t, v)
	startReady(t, s)
	if _, ok := v.WaitConnect(waitTimeout); !ok {
		t.Fatal("no stream connection")
	}

	trades := []domain.Trade{{ID: 9, Quantity: 2, Price: decimal.NewFromInt(100)}}

	v.PushEvent(string(event.KindTradeExecuted), "", event.Data{Trades: trades, BuyTraderID: "111-111-111", SellTraderID: "222-222-222"})
	eventually(t, "trades", func() bool { return len(s.Snapshot().Trades) == 1 })
	if n := v.TraderFetches(sessionTrader); n != 1 {
		t.Errorf("Unrelated trade must not re-fetch, got %d fetches", n)
	}

	v.SetTrader(domain.TraderProfile{ID: sessionTrader, Name: "Ada Lovelace", ClosedTrades: 2, Wins: 1, Inventory: 2})
	v.PushEvent(string(event.KindTradeExecuted), "", event.Data{Trades: trades, BuyTraderID: sessionTrader})

	eventually(t, "trader re-fetch", func() bool {
		tr := s.Snapshot().Trader
		return tr != nil && tr.HasWinRate
	})
	tr := s.Snapshot().Trader
	if tr.WinRate.Value != 0.5 || tr.Inventory.Value != 2 || tr.Inventory.Trend != domain.Rising {
		t.Errorf("unexpected trader view %+v", tr)
	}
}

func TestSession_BootstrapFailure(t *testing.T) {
	v := newVenue(t)
	v.Fail("/market", http.StatusInternalServerError)
	s, rec := newTestSession(t, v)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := s.WaitReady(ctx)
	if !errors.Is(err, domain.ErrBootstrapIncomplete) {
		t.Fatalf("Expected ErrBootstrapIncomplete, got %v", err)
	}
	var reqErr *domain.RequestError
	if !errors.As(err, &reqErr) || reqErr.Status != http.StatusInternalServerError {
		t.Errorf("Expected request error detail, got %v", err)
	}
	if s.Snapshot().Phase != engine.PhaseLoading {
		t.Errorf("Expected LOADING, got %s", s.Snapshot().Phase)
	}
	if len(rec.Messages(notify.Error)) != 1 {
		t.Errorf("Expected one error notification, got %v", rec.All())
	}
	if len(s.Notifications()) != 1 {
		t.Errorf("Expected the error in the feed, got %v", s.Notifications())
	}
}

func TestSession_Mutations(t *testing.T) {
	v := newVenue(t)
	s, rec := newTestSession(t, v)
	ctx := startReady(t, s)

	t.Run("limit without price is rejected locally", func(t *testing.T) {
		if s.SubmitOrder(ctx, domain.OrderRequest{Side: domain.SideBid, Type: domain.OrderTypeLimit, Quantity: 1}) {
			t.Error("Expected failure")
		}
		if len(v.Requests()) != 0 {
			t.Error("No request may be sent")
		}
		if msgs := rec.Messages(notify.Error); len(msgs) != 1 {
			t.Errorf("Expected one error notification, got %v", msgs)
		}
	})

	t.Run("market order", func(t *testing.T) {
		p := decimal.NewFromInt(5)
		if !s.SubmitOrder(ctx, domain.OrderRequest{Side: domain.SideAsk, Type: domain.OrderTypeMarket, Price: &p, Quantity: 3}) {
			t.Fatal("Expected success")
		}
		reqs := v.Requests()
		if len(reqs) != 1 || reqs[0].Path != "/orders" {
			t.Fatalf("unexpected requests %+v", reqs)
		}
		var body map[string]any
		if err := json.Unmarshal(reqs[0].Body, &body); err != nil {
			t.Fatal(err)
		}
		if price, ok := body["price"]; !ok || price != nil {
			t.Errorf("Expected explicit null price, got %v", body["price"])
		}
		if body["traderId"] != sessionTrader {
			t.Errorf("Expected session trader, got %v", body["traderId"])
		}
	})

	t.Run("trader risk defaults to session trader", func(t *testing.T) {
		n := int64(10)
		if !s.Execute(ctx, Command{Kind: CommandRisk, Risk: &domain.RiskUpdate{
			Scope:  domain.RiskScopeTrader,
			Limits: domain.PartialRiskLimits{MaxOrderSize: &n},
		}}) {
			t.Fatal("Expected success")
		}
		reqs := v.Requests()
		var body map[string]any
		if err := json.Unmarshal(reqs[len(reqs)-1].Body, &body); err != nil {
			t.Fatal(err)
		}
		if body["traderId"] != sessionTrader || body["scope"] != "TRADER" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("venue failure", func(t *testing.T) {
		v.Fail("/orders", http.StatusBadRequest)
		p := decimal.NewFromInt(100)
		if s.SubmitOrder(ctx, domain.OrderRequest{Side: domain.SideBid, Type: domain.OrderTypeLimit, Price: &p, Quantity: 1}) {
			t.Error("Expected failure")
		}
	})
}

func TestSession_StartAfterClose(t *testing.T) {
	v := newVenue(t)
	s, _ := newTestSession(t, v)
	startReady(t, s)

	s.Close()
	s.Close()

	if err := s.Start(context.Background()); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
	eventually(t, "stream close", func() bool { return v.Open() == 0 })
}
