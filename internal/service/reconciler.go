package service

import (
	"trade_dash/internal/domain"

	"github.com/shopspring/decimal"
)

// MarketReconciler derives the market view from successive snapshots.
// It is not safe for concurrent use; the dispatcher owns it.
type MarketReconciler struct {
	prev     *domain.MarketSnapshot
	prevView domain.MarketView
}

// NewMarketReconciler creates a reconciler with no history.
func NewMarketReconciler() *MarketReconciler {
	return &MarketReconciler{}
}

// Apply builds a complete view from next and retains next as the previous
// snapshot. The returned view never shares state with an earlier one.
func (r *MarketReconciler) Apply(next domain.MarketSnapshot) domain.MarketView {
	var prev domain.MarketSnapshot
	hasPrev := r.prev != nil
	if hasPrev {
		prev = *r.prev
	}
	pv := r.prevView

	view := domain.MarketView{
		CurrentPrice: decimalPoint(next.CurrentPrice, optDecimal(prev.CurrentPrice, hasPrev), pv.CurrentPrice.Trend),
		Volatility:   decimalPoint(next.Volatility, optDecimal(prev.Volatility, hasPrev), pv.Volatility.Trend),
		Bids:         sideView(next.Bids, prev.Bids, hasPrev, pv.Bids),
		Asks:         sideView(next.Asks, prev.Asks, hasPrev, pv.Asks),
		Trades: domain.TradesView{
			Count:    intPoint(next.Trades.Count, optInt(prev.Trades.Count, hasPrev), pv.Trades.Count.Trend),
			Volume:   intPoint(next.Trades.Volume, optInt(prev.Trades.Volume, hasPrev), pv.Trades.Volume.Trend),
			AvgPrice: nullableDecimalPoint(next.Trades.AvgPrice, prev.Trades.AvgPrice, pv.Trades.AvgPrice.Trend),
		},
	}

	// Computed fields compare against the previous snapshot's computed value.
	// With no previous snapshot both operands count as 0.
	spread := next.Spread()
	prevSpread := prev.Spread()
	view.Spread = domain.DataPoint[decimal.Decimal]{
		Value: spread,
		Trend: domain.DeriveDecimalTrend(&spread, &prevSpread, pv.Spread.Trend),
	}

	imbalance := next.Imbalance()
	prevImbalance := prev.Imbalance()
	view.Imbalance = domain.DataPoint[float64]{
		Value: imbalance,
		Trend: domain.DeriveTrend(&imbalance, &prevImbalance, pv.Imbalance.Trend),
	}

	held := next
	r.prev = &held
	r.prevView = view
	return view
}

func sideView(next, prev domain.SideSummary, hasPrev bool, pv domain.SideView) domain.SideView {
	return domain.SideView{
		Count:        intPoint(next.Count, optInt(prev.Count, hasPrev), pv.Count.Trend),
		Volume:       intPoint(next.Volume, optInt(prev.Volume, hasPrev), pv.Volume.Trend),
		BestPrice:    nullableDecimalPoint(next.BestPrice(), prev.BestPrice(), pv.BestPrice.Trend),
		BestQuantity: nullableIntPoint(next.BestQuantity(), prev.BestQuantity(), pv.BestQuantity.Trend),
	}
}

// TraderReconciler derives the trader view from successive profiles.
type TraderReconciler struct {
	prev     *domain.TraderProfile
	prevView domain.TraderView
}

// NewTraderReconciler creates a reconciler with no history.
func NewTraderReconciler() *TraderReconciler {
	return &TraderReconciler{}
}

// Apply builds a complete view from next. Win rate is absent while the trader
// has no closed trades.
func (r *TraderReconciler) Apply(next domain.TraderProfile) domain.TraderView {
	var prev domain.TraderProfile
	hasPrev := r.prev != nil
	if hasPrev {
		prev = *r.prev
	}
	pv := r.prevView
	name := domain.SplitName(next.Name)

	view := domain.TraderView{
		ID:        next.ID,
		FirstName: name.First,
		LastName:  name.Last,
		Initials:  name.Initials,
		Inventory: intPoint(next.Inventory, optInt(prev.Inventory, hasPrev), pv.Inventory.Trend),
		OpenOrders: domain.OpenOrdersView{
			Total: intPoint(next.TotalOpenOrders(), optInt(prev.TotalOpenOrders(), hasPrev), pv.OpenOrders.Total.Trend),
			Bids:  intPoint(next.OpenOrders.Bids, optInt(prev.OpenOrders.Bids, hasPrev), pv.OpenOrders.Bids.Trend),
			Asks:  intPoint(next.OpenOrders.Asks, optInt(prev.OpenOrders.Asks, hasPrev), pv.OpenOrders.Asks.Trend),
		},
		ClosedTrades:  next.ClosedTrades,
		AvgEntryPrice: decimalPoint(next.AvgEntryPrice, optDecimal(prev.AvgEntryPrice, hasPrev), pv.AvgEntryPrice.Trend),
		AvgExitPrice:  decimalPoint(next.AvgExitPrice, optDecimal(prev.AvgExitPrice, hasPrev), pv.AvgExitPrice.Trend),
		RealizedPnL:   decimalPoint(next.RealizedPnL, optDecimal(prev.RealizedPnL, hasPrev), pv.RealizedPnL.Trend),
		UnrealizedPnL: decimalPoint(next.UnrealizedPnL, optDecimal(prev.UnrealizedPnL, hasPrev), pv.UnrealizedPnL.Trend),
		MaxDrawdown:   next.MaxDrawdown,
	}

	rate, ok := next.WinRate()
	var newRate, oldRate *float64
	if ok {
		newRate = &rate
	}
	if hasPrev {
		if pr, pok := prev.WinRate(); pok {
			oldRate = &pr
		}
	}
	view.WinRate = domain.DataPoint[float64]{
		Value: rate,
		Trend: domain.DeriveTrend(newRate, oldRate, pv.WinRate.Trend),
	}
	view.HasWinRate = ok

	held := next
	r.prev = &held
	r.prevView = view
	return view
}

func optInt(v int64, ok bool) *int64 {
	if !ok {
		return nil
	}
	return &v
}

func optDecimal(v decimal.Decimal, ok bool) *decimal.Decimal {
	if !ok {
		return nil
	}
	return &v
}

func intPoint(v int64, old *int64, prev domain.Trend) domain.DataPoint[int64] {
	return domain.DataPoint[int64]{Value: v, Trend: domain.DeriveTrend(&v, old, prev)}
}

func nullableIntPoint(v, old *int64, prev domain.Trend) domain.DataPoint[int64] {
	var value int64
	if v != nil {
		value = *v
	}
	return domain.DataPoint[int64]{Value: value, Trend: domain.DeriveTrend(v, old, prev)}
}

func decimalPoint(v decimal.Decimal, old *decimal.Decimal, prev domain.Trend) domain.DataPoint[decimal.Decimal] {
	return domain.DataPoint[decimal.Decimal]{Value: v, Trend: domain.DeriveDecimalTrend(&v, old, prev)}
}

func nullableDecimalPoint(v, old *decimal.Decimal, prev domain.Trend) domain.DataPoint[decimal.Decimal] {
	value := decimal.Zero
	if v != nil {
		value = *v
	}
	return domain.DataPoint[decimal.Decimal]{Value: value, Trend: domain.DeriveDecimalTrend(v, old, prev)}
}
