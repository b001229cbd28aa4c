package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trade_dash/internal/domain"
	"trade_dash/internal/event"
	"trade_dash/internal/infra"
	"trade_dash/internal/notify"

	"github.com/shopspring/decimal"
)

const testTrader = "123-456-789"

type stubTraders struct {
	calls   atomic.Int32
	profile domain.TraderProfile
	err     error
}

func (s *stubTraders) GetTrader(_ context.Context, id string) (domain.TraderProfile, error) {
	s.calls.Add(1)
	if s.err != nil {
		return domain.TraderProfile{}, s.err
	}
	p := s.profile
	p.ID = id
	return p, nil
}

type stubLoader struct {
	calls atomic.Int32
	gate  chan struct{}
	snap  domain.Snapshot
	err   error
}

func (l *stubLoader) Load(ctx context.Context, _ string) (domain.Snapshot, error) {
	l.calls.Add(1)
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return domain.Snapshot{}, ctx.Err()
		}
	}
	return l.snap, l.err
}

func emptySnapshot() domain.Snapshot {
	return domain.Snapshot{
		Book: domain.OrderBook{
			Asks: domain.BookSide{Active: []domain.Order{}, Conditional: []domain.Order{}},
			Bids: domain.BookSide{Active: []domain.Order{}, Conditional: []domain.Order{}},
		},
		Trades: []domain.Trade{},
		Trader: domain.TraderProfile{ID: testTrader, Name: "Ada Lovelace", ClosedTrades: 0},
		Market: domain.MarketSnapshot{CurrentPrice: decimal.NewFromInt(100)},
		Risk:   domain.RiskLimits{MaxOrderSize: 10},
	}
}

func uniformBook(id int64) domain.OrderBook {
	o := func() []domain.Order { return []domain.Order{{ID: id}} }
	return domain.OrderBook{
		Asks: domain.BookSide{Active: o(), Conditional: o()},
		Bids: domain.BookSide{Active: o(), Conditional: o()},
	}
}

func streamEvent(kind event.Kind, message string, data event.Data) *event.StreamEvent {
	return &event.StreamEvent{
		Header:   event.NewHeader(),
		Envelope: &event.Envelope{Event: kind, Message: message, Data: data},
	}
}

func bookData(b domain.OrderBook) event.Data {
	return event.Data{Asks: &b.Asks, Bids: &b.Bids}
}

func newTestDispatcher(t *testing.T, traders domain.TraderSource) (*Dispatcher, context.Context, *notify.Recorder) {
	t.Helper()
	if traders == nil {
		traders = &stubTraders{}
	}
	rec := &notify.Recorder{}
	d := NewDispatcher(64, testTrader, traders, rec, &infra.Metrics{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d, ctx, rec
}

func send(t *testing.T, d *Dispatcher, ctx context.Context, evs ...event.Event) {
	t.Helper()
	for _, ev := range evs {
		d.Inbox() <- ev
	}
	if err := d.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_PhaseMachine(t *testing.T) {
	d, ctx, _ := newTestDispatcher(t, nil)
	loader := &stubLoader{snap: emptySnapshot(), gate: make(chan struct{})}

	if d.Phase() != PhaseUninitialized {
		t.Fatalf("Expected UNINITIALIZED, got %s", d.Phase())
	}
	if !d.Begin(ctx, loader) {
		t.Fatal("First Begin should start loading")
	}
	if d.Phase() != PhaseLoading {
		t.Errorf("Expected LOADING, got %s", d.Phase())
	}
	if d.Begin(ctx, loader) {
		t.Error("Second Begin must not start another load")
	}

	close(loader.gate)
	if err := d.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
	if d.Phase() != PhaseReady {
		t.Errorf("Expected READY, got %s", d.Phase())
	}
	if d.Begin(ctx, loader) {
		t.Error("Begin after READY must not reload")
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("Expected 1 load, got %d", n)
	}
}

func TestDispatcher_EmptyBootstrap(t *testing.T) {
	d, ctx, _ := newTestDispatcher(t, nil)
	d.Begin(ctx, &stubLoader{snap: emptySnapshot()})

	if err := d.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}

	snap := d.Snapshot()
	if !snap.Complete() {
		t.Fatal("Expected a complete dashboard")
	}
	if snap.Book.Len() != 0 || !snap.BookLoaded {
		t.Errorf("Expected loaded empty book, got %+v", snap.Book)
	}
	if snap.Trades == nil || len(snap.Trades) != 0 {
		t.Errorf("Expected empty trade list, got %#v", snap.Trades)
	}
	if snap.Trader.HasWinRate {
		t.Error("Win rate must be absent with zero closed trades")
	}
	if snap.Trader.Initials != "AL" {
		t.Errorf("Expected initials AL, got %q", snap.Trader.Initials)
	}
}

func TestDispatcher_BootstrapFailure(t *testing.T) {
	d, ctx, _ := newTestDispatcher(t, nil)
	d.Begin(ctx, &stubLoader{err: errors.New("GET /market: status 500")})

	err := d.WaitReady(ctx)
	if !errors.Is(err, domain.ErrBootstrapIncomplete) {
		t.Fatalf("Expected ErrBootstrapIncomplete, got %v", err)
	}
	if d.Phase() != PhaseLoading {
		t.Errorf("Failed bootstrap must stay LOADING, got %s", d.Phase())
	}
	if snap := d.Snapshot(); snap.Complete() {
		t.Error("Failed bootstrap must not produce a complete dashboard")
	}
}

func TestDispatcher_StreamBeforeBootstrap(t *testing.T) {
	d, ctx, _ := newTestDispatcher(t, nil)

	boot := emptySnapshot()
	boot.Book = uniformBook(1)
	loader := &stubLoader{snap: boot, gate: make(chan struct{})}
	d.Begin(ctx, loader)

	// The stream wins the race for book and market.
	streamed := domain.MarketSnapshot{CurrentPrice: decimal.NewFromInt(200)}
	data := bookData(uniformBook(2))
	data.Market = &streamed
	send(t, d, ctx, streamEvent(event.KindOrderAdded, "Order 2 added", data))

	if d.Phase() != PhaseLoading {
		t.Fatalf("Stream events must not complete the bootstrap, got %s", d.Phase())
	}

	close(loader.gate)
	if err := d.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}

	snap := d.Snapshot()
	if got := snap.Book.Asks.Active[0].ID; got != 2 {
		t.Errorf("Expected streamed book to survive bootstrap, got order %d", got)
	}
	if !snap.Market.CurrentPrice.Value.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected streamed market to survive bootstrap, got %s", snap.Market.CurrentPrice.Value)
	}
	if snap.Trades == nil || snap.Risk == nil || snap.Trader == nil {
		t.Error("Pieces not set by the stream must come from the bootstrap")
	}
}

func TestDispatcher_Routing(t *testing.T) {
	d, ctx, rec := newTestDispatcher(t, nil)

	t.Run("order events replace the book", func(t *testing.T) {
		for i, kind := range []event.Kind{event.KindOrderAdded, event.KindOrderUpdated, event.KindOrderCancelled} {
			send(t, d, ctx, streamEvent(kind, "", bookData(uniformBook(int64(i+10)))))
			if got := d.Snapshot().Book.Bids.Conditional[0].ID; got != int64(i+10) {
				t.Errorf("%s: Expected order %d, got %d", kind, i+10, got)
			}
		}
	})

	t.Run("order event without full book is ignored", func(t *testing.T) {
		before := d.Snapshot().BookVersion
		half := uniformBook(99)
		send(t, d, ctx, streamEvent(event.KindOrderUpdated, "", event.Data{Asks: &half.Asks}))
		if d.Snapshot().BookVersion != before {
			t.Error("Book must not change from a one-sided payload")
		}
	})

	t.Run("risk updated", func(t *testing.T) {
		market := domain.MarketSnapshot{CurrentPrice: decimal.NewFromInt(55)}
		send(t, d, ctx, streamEvent(event.KindRiskUpdated, "Risk limits updated", event.Data{
			Limits: &domain.RiskLimits{MaxOpenPosition: 42},
			Market: &market,
		}))
		snap := d.Snapshot()
		if snap.Risk == nil || snap.Risk.MaxOpenPosition != 42 {
			t.Errorf("unexpected risk %+v", snap.Risk)
		}
		if snap.Market == nil || !snap.Market.CurrentPrice.Value.Equal(decimal.NewFromInt(55)) {
			t.Error("Market payload must be reconciled for any event kind")
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		before := d.Snapshot()
		send(t, d, ctx, streamEvent("HEARTBEAT", "still here", event.Data{}))
		after := d.Snapshot()
		if after.BookVersion != before.BookVersion || after.Risk.MaxOpenPosition != before.Risk.MaxOpenPosition {
			t.Error("Unknown kinds must not change state")
		}
		if after.Version != before.Version+1 {
			t.Errorf("Expected version to advance by 1, got %d -> %d", before.Version, after.Version)
		}
	})

	t.Run("messages become notifications", func(t *testing.T) {
		infos := rec.Messages(notify.Info)
		want := []string{"Risk limits updated", "still here"}
		if len(infos) != len(want) {
			t.Fatalf("Expected %v, got %v", want, infos)
		}
		for i := range want {
			if infos[i] != want[i] {
				t.Errorf("notification %d: expected %q, got %q", i, want[i], infos[i])
			}
		}
	})

	t.Run("connection state", func(t *testing.T) {
		send(t, d, ctx, &event.ConnectionEvent{Header: event.NewHeader(), Connected: true})
		if !d.Snapshot().Connected {
			t.Error("Expected connected")
		}
	})
}

func TestDispatcher_TradeExecuted(t *testing.T) {
	traders := &stubTraders{profile: domain.TraderProfile{Name: "Ada Lovelace", ClosedTrades: 1, Wins: 1}}
	d, ctx, _ := newTestDispatcher(t, traders)

	trades := []domain.Trade{{ID: 1, Quantity: 3, Price: decimal.NewFromInt(100)}}

	t.Run("other traders do not trigger a re-fetch", func(t *testing.T) {
		send(t, d, ctx, streamEvent(event.KindTradeExecuted, "Trade executed", event.Data{
			Trades:       trades,
			BuyTraderID:  "111-111-111",
			SellTraderID: "222-222-222",
		}))
		time.Sleep(50 * time.Millisecond)
		if n := traders.calls.Load(); n != 0 {
			t.Errorf("Expected no trader fetch, got %d", n)
		}
		if got := d.Snapshot().Trades; len(got) != 1 || got[0].ID != 1 {
			t.Errorf("Expected trades replaced, got %+v", got)
		}
		if d.Snapshot().Trader != nil {
			t.Error("Trader must stay unset")
		}
	})

	t.Run("viewed trader triggers a re-fetch", func(t *testing.T) {
		send(t, d, ctx, streamEvent(event.KindTradeExecuted, "Trade executed", event.Data{
			Trades:       []domain.Trade{},
			BuyTraderID:  "111-111-111",
			SellTraderID: testTrader,
		}))
		waitFor(t, func() bool { return d.Snapshot().Trader != nil })

		if n := traders.calls.Load(); n != 1 {
			t.Errorf("Expected 1 trader fetch, got %d", n)
		}
		snap := d.Snapshot()
		if !snap.Trader.HasWinRate || snap.Trader.WinRate.Value != 1 {
			t.Errorf("unexpected trader view %+v", snap.Trader)
		}
		if snap.Trades == nil || len(snap.Trades) != 0 {
			t.Errorf("Expected empty trades list, got %#v", snap.Trades)
		}
	})
}

func TestDispatcher_TraderFetchFailure(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level notify.Level
	}{
		{"not found", &domain.RequestError{Op: "GET /traders/123-456-789", Status: 404}, notify.Error},
		{"network", domain.NewNetworkError("GET /traders/123-456-789", errors.New("connection reset")), notify.Warn},
		{"venue unavailable", &domain.RequestError{Op: "GET /traders/123-456-789", Status: 503}, notify.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ctx, rec := newTestDispatcher(t, &stubTraders{err: tt.err})

			send(t, d, ctx, streamEvent(event.KindTradeExecuted, "", event.Data{BuyTraderID: testTrader}))
			waitFor(t, func() bool { return len(rec.All()) == 1 })

			if got := rec.All()[0]; got.Level != tt.level || got.Message != tt.err.Error() {
				t.Errorf("Expected %s %q, got %s %q", tt.level, tt.err.Error(), got.Level, got.Message)
			}
			if d.Snapshot().Trader != nil {
				t.Error("Failed fetch must not set the trader")
			}
		})
	}
}

// snapshotNotifier reads the dashboard from inside Notify.
type snapshotNotifier struct {
	d    *Dispatcher
	seen atomic.Uint64
}

func (n *snapshotNotifier) Notify(_ context.Context, _ notify.Level, _ string) {
	n.seen.Store(n.d.Snapshot().Version)
}

func TestDispatcher_NotifyOutsideLock(t *testing.T) {
	n := &snapshotNotifier{}
	d := NewDispatcher(8, testTrader, &stubTraders{}, n, &infra.Metrics{}, nil)
	n.d = d

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go d.Run(ctx)

	d.Inbox() <- streamEvent(event.KindRiskUpdated, "Risk limits updated", event.Data{Limits: &domain.RiskLimits{MaxOrderSize: 1}})
	if err := d.Sync(ctx); err != nil {
		t.Fatalf("Dispatcher blocked while notifying: %v", err)
	}
	if got := n.seen.Load(); got != 1 {
		t.Errorf("Notifier should observe the applied event, saw version %d", got)
	}
}

func TestDispatcher_StaleTraderFetch(t *testing.T) {
	d, ctx, _ := newTestDispatcher(t, nil)

	send(t, d, ctx,
		&event.TraderLoaded{Header: event.NewHeader(), Gen: 2, Trader: domain.TraderProfile{Name: "New Name", Inventory: 20}},
		&event.TraderLoaded{Header: event.NewHeader(), Gen: 1, Trader: domain.TraderProfile{Name: "Old Name", Inventory: 10}},
	)

	snap := d.Snapshot()
	if snap.Trader == nil || snap.Trader.FirstName != "New" || snap.Trader.Inventory.Value != 20 {
		t.Errorf("Older fetch must not overwrite newer, got %+v", snap.Trader)
	}

	// A bootstrap arriving after a re-fetch keeps the re-fetched trader.
	d.Begin(ctx, &stubLoader{snap: emptySnapshot()})
	if err := d.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
	if got := d.Snapshot().Trader.FirstName; got != "New" {
		t.Errorf("Bootstrap must not overwrite re-fetched trader, got %q", got)
	}
}

func TestDispatcher_AtomicBookForReaders(t *testing.T) {
	d, ctx, _ := newTestDispatcher(t, nil)
	send(t, d, ctx, streamEvent(event.KindOrderAdded, "", bookData(uniformBook(0))))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var mixed atomic.Bool

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				b := d.Snapshot().Book
				id := b.Asks.Active[0].ID
				if b.Bids.Active[0].ID != id || b.Asks.Conditional[0].ID != id || b.Bids.Conditional[0].ID != id {
					mixed.Store(true)
				}
			}
		}()
	}

	for i := int64(1); i <= 500; i++ {
		d.Inbox() <- streamEvent(event.KindOrderUpdated, "", bookData(uniformBook(i)))
	}
	if err := d.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	close(stop)
	wg.Wait()

	if mixed.Load() {
		t.Fatal("Reader observed partitions from different events")
	}
	if got := d.Snapshot().Book.Asks.Active[0].ID; got != 500 {
		t.Errorf("Expected last book 500, got %d", got)
	}
}

func TestDispatcher_OnChange(t *testing.T) {
	var count atomic.Int32
	d := NewDispatcher(8, testTrader, &stubTraders{}, &notify.Recorder{}, &infra.Metrics{}, func(Dashboard) {
		count.Add(1)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	send(t, d, ctx, &event.ConnectionEvent{Header: event.NewHeader(), Connected: true})
	if count.Load() != 1 {
		t.Errorf("Expected 1 change callback, got %d", count.Load())
	}
}
