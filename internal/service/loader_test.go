package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"trade_dash/internal/domain"
	"trade_dash/internal/infra"
	"trade_dash/internal/infra/venue"
	"trade_dash/internal/notify"
	"trade_dash/internal/venuetest"
)

func TestLoader_Load(t *testing.T) {
	fake := venuetest.New()
	defer fake.Close()
	fake.SetTrader(domain.TraderProfile{ID: "123-456-789", Name: "Ada Lovelace"})
	fake.SetLimits(domain.RiskLimits{MaxOrderSize: 100})

	rec := &notify.Recorder{}
	l := NewLoader(venue.NewClient(fake.URL, &infra.Metrics{}), rec, 100)

	t.Run("empty venue", func(t *testing.T) {
		snap, err := l.Load(context.Background(), "123-456-789")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if snap.Book.Len() != 0 || snap.Trades == nil || len(snap.Trades) != 0 {
			t.Errorf("Expected empty book and trades, got %+v", snap)
		}
		if snap.Trader.ClosedTrades != 0 || snap.Trader.Name != "Ada Lovelace" {
			t.Errorf("unexpected trader %+v", snap.Trader)
		}
		if snap.Risk.MaxOrderSize != 100 {
			t.Errorf("unexpected limits %+v", snap.Risk)
		}
		if len(rec.All()) != 0 {
			t.Errorf("Expected no notifications, got %+v", rec.All())
		}
	})

	t.Run("one request fails", func(t *testing.T) {
		fake.Fail("/market", http.StatusInternalServerError)
		_, err := l.Load(context.Background(), "123-456-789")

		var reqErr *domain.RequestError
		if !errors.As(err, &reqErr) || reqErr.Op != "GET /market" {
			t.Fatalf("Expected GET /market RequestError, got %v", err)
		}
		if len(rec.Messages(notify.Error)) != 1 {
			t.Errorf("Expected one error notification, got %+v", rec.All())
		}
	})
}
