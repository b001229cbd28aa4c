package service

import (
	"context"
	"fmt"
	"log/slog"

	"trade_dash/internal/domain"
	"trade_dash/internal/notify"

	"golang.org/x/sync/errgroup"
)

// Loader performs the one-shot bootstrap load.
type Loader struct {
	reader    domain.VenueReader
	notifier  notify.Notifier
	pageLimit int
	logger    *slog.Logger
}

// NewLoader creates a Loader fetching pages of pageLimit entries.
func NewLoader(reader domain.VenueReader, notifier notify.Notifier, pageLimit int) *Loader {
	return &Loader{
		reader:    reader,
		notifier:  notifier,
		pageLimit: pageLimit,
		logger:    slog.Default().With("module", "loader"),
	}
}

// Load fetches book, trades, trader, market and risk limits concurrently.
// Any failure is surfaced to the operator and returned; the snapshot is then
// incomplete and must not be applied.
func (l *Loader) Load(ctx context.Context, traderID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		book, err := l.reader.GetOrders(gctx, 0, l.pageLimit)
		if err != nil {
			return fmt.Errorf("load orders: %w", err)
		}
		snap.Book = book
		return nil
	})
	g.Go(func() error {
		trades, err := l.reader.GetTrades(gctx, 0, l.pageLimit)
		if err != nil {
			return fmt.Errorf("load trades: %w", err)
		}
		snap.Trades = trades
		return nil
	})
	g.Go(func() error {
		trader, err := l.reader.GetTrader(gctx, traderID)
		if err != nil {
			return fmt.Errorf("load trader: %w", err)
		}
		snap.Trader = trader
		return nil
	})
	g.Go(func() error {
		market, err := l.reader.GetMarket(gctx)
		if err != nil {
			return fmt.Errorf("load market: %w", err)
		}
		snap.Market = market
		return nil
	})
	g.Go(func() error {
		limits, err := l.reader.GetRiskLimits(gctx, traderID)
		if err != nil {
			return fmt.Errorf("load risk limits: %w", err)
		}
		snap.Risk = limits
		return nil
	})

	if err := g.Wait(); err != nil {
		l.logger.Error("Bootstrap load failed", slog.Any("error", err))
		l.notifier.Notify(ctx, notify.Error, err.Error())
		return domain.Snapshot{}, err
	}

	if snap.Trades == nil {
		snap.Trades = []domain.Trade{}
	}
	l.logger.Info("Bootstrap load complete",
		slog.Int("orders", snap.Book.Len()),
		slog.Int("trades", len(snap.Trades)))
	return snap, nil
}
