package view

import (
	"fmt"
	"strings"

	"trade_dash/internal/domain"
	"trade_dash/internal/engine"
	"trade_dash/internal/notify"
)

// MaxRows caps how many orders or trades are listed per section.
const MaxRows = 10

const clock = "15:04:05"

// Render formats a dashboard snapshot as plain text. Nothing is shown
// besides the header until the bootstrap has completed.
func Render(d engine.Dashboard, notes []notify.Notification) string {
	var sb strings.Builder

	status := "DISCONNECTED"
	if d.Connected {
		status = "CONNECTED"
	}
	fmt.Fprintf(&sb, "Trader %s | %s | %s\n", d.TraderID, d.Phase, status)

	switch {
	case d.BootstrapErr != nil:
		fmt.Fprintf(&sb, "Dashboard unavailable: %v\n", d.BootstrapErr)
	case d.Phase != engine.PhaseReady || !d.Complete():
		sb.WriteString("Loading dashboard...\n")
	default:
		renderMarket(&sb, d.Market)
		renderTrader(&sb, d.Trader)
		renderRisk(&sb, d.Risk)
		renderBook(&sb, &d.Book)
		renderTrades(&sb, d.Trades)
	}

	renderNotifications(&sb, notes)
	return strings.TrimRight(sb.String(), "\n")
}

func renderMarket(sb *strings.Builder, m *domain.MarketView) {
	sb.WriteString("\n=== Market ===\n")
	fmt.Fprintf(sb, "Price      %s\n", MoneyPoint(m.CurrentPrice))
	fmt.Fprintf(sb, "Volatility %s\n", MoneyPoint(m.Volatility))
	fmt.Fprintf(sb, "Spread     %s\n", MoneyPoint(m.Spread))
	fmt.Fprintf(sb, "Imbalance  %s %s\n", Percent(m.Imbalance.Value), Arrow(m.Imbalance.Trend))
	fmt.Fprintf(sb, "Best bid   %s (orders %s, volume %s)\n", BestPrice(m.Bids), CountPoint(m.Bids.Count), CountPoint(m.Bids.Volume))
	fmt.Fprintf(sb, "Best ask   %s (orders %s, volume %s)\n", BestPrice(m.Asks), CountPoint(m.Asks.Count), CountPoint(m.Asks.Volume))

	avg := NoData
	if m.Trades.Count.Value > 0 {
		avg = MoneyPoint(m.Trades.AvgPrice)
	}
	fmt.Fprintf(sb, "Trades     %s, volume %s, avg %s\n", CountPoint(m.Trades.Count), CountPoint(m.Trades.Volume), avg)
}

func renderTrader(sb *strings.Builder, t *domain.TraderView) {
	sb.WriteString("\n=== Trader ===\n")
	fmt.Fprintf(sb, "[%s] %s %s (%s)\n", t.Initials, t.FirstName, t.LastName, t.ID)
	fmt.Fprintf(sb, "Inventory      %s\n", CountPoint(t.Inventory))
	fmt.Fprintf(sb, "Open orders    %s (bids %s, asks %s)\n",
		CountPoint(t.OpenOrders.Total), CountPoint(t.OpenOrders.Bids), CountPoint(t.OpenOrders.Asks))
	fmt.Fprintf(sb, "Closed trades  %s\n", Count(t.ClosedTrades))
	fmt.Fprintf(sb, "Win rate       %s\n", WinRate(t))
	fmt.Fprintf(sb, "Avg entry      %s\n", MoneyPoint(t.AvgEntryPrice))
	fmt.Fprintf(sb, "Avg exit       %s\n", AvgExitPrice(t))
	fmt.Fprintf(sb, "Realized P&L   %s\n", RealizedPnL(t))
	fmt.Fprintf(sb, "Unrealized P&L %s\n", MoneyPoint(t.UnrealizedPnL))
	fmt.Fprintf(sb, "Max drawdown   %s\n", MaxDrawdown(t))
}

func renderRisk(sb *strings.Builder, r *domain.RiskLimits) {
	sb.WriteString("\n=== Risk limits ===\n")
	fmt.Fprintf(sb, "Max open position  %s\n", Count(r.MaxOpenPosition))
	fmt.Fprintf(sb, "Max order size     %s\n", Count(r.MaxOrderSize))
	fmt.Fprintf(sb, "Max orders/min     %s\n", Count(r.MaxOrdersPerMin))
	fmt.Fprintf(sb, "Max daily loss     %s\n", Money(r.MaxDailyLoss))
	fmt.Fprintf(sb, "Max drawdown       %s\n", Pct(r.MaxDrawdown))
	fmt.Fprintf(sb, "Max risk per order %s\n", Pct(r.MaxRiskPerOrder))
}

var partitions = []struct {
	title string
	m     domain.Mechanism
	side  domain.Side
}{
	{"Active asks", domain.MechanismActive, domain.SideAsk},
	{"Active bids", domain.MechanismActive, domain.SideBid},
	{"Conditional asks", domain.MechanismConditional, domain.SideAsk},
	{"Conditional bids", domain.MechanismConditional, domain.SideBid},
}

func renderBook(sb *strings.Builder, book *domain.OrderBook) {
	for _, p := range partitions {
		orders := book.Partition(p.m, p.side)
		fmt.Fprintf(sb, "\n=== %s (%d) ===\n", p.title, len(orders))
		if len(orders) == 0 {
			sb.WriteString("(empty)\n")
			continue
		}
		for i := range orders[:min(len(orders), MaxRows)] {
			o := &orders[i]
			fmt.Fprintf(sb, "#%d %s %-13s %12s %s/%s %s\n",
				o.ID, o.CreatedAt().Format(clock), o.Type.Label(), OrderPrice(o),
				Count(o.RemainingQuantity), Count(o.InitialQuantity), o.Status.Label())
		}
	}
}

func renderTrades(sb *strings.Builder, trades []domain.Trade) {
	fmt.Fprintf(sb, "\n=== Trades (%d) ===\n", len(trades))
	if len(trades) == 0 {
		sb.WriteString("(empty)\n")
		return
	}
	for i := range trades[:min(len(trades), MaxRows)] {
		t := &trades[i]
		fmt.Fprintf(sb, "#%d %s %s @ %s = %s (%s/%s)\n",
			t.ID, t.ExecutedAt().Format(clock), Count(t.Quantity), Money(t.Price), Money(t.Notional()),
			t.BuyOrderType.Label(), t.SellOrderType.Label())
	}
}

func renderNotifications(sb *strings.Builder, notes []notify.Notification) {
	if len(notes) == 0 {
		return
	}
	sb.WriteString("\n=== Notifications ===\n")
	for _, n := range notes {
		fmt.Fprintf(sb, "[%s] %s\n", n.Level, n.Message)
	}
}
