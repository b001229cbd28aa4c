package view

import (
	"fmt"

	"trade_dash/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// NoData is shown in place of a value that does not exist yet.
const NoData = "—"

// Arrow maps a trend to its display glyph.
func Arrow(t domain.Trend) string {
	switch t {
	case domain.Rising:
		return "↑"
	case domain.Falling:
		return "↓"
	default:
		return "→"
	}
}

// Money formats a price or P&L with thousands separators and two decimals.
func Money(d decimal.Decimal) string {
	return humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

// Count formats an integer quantity with thousands separators.
func Count(n int64) string {
	return humanize.Comma(n)
}

// Percent formats a ratio in [0, 1] as a percentage.
func Percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// Pct formats a value that is already a percentage.
func Pct(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

// MoneyPoint formats a decimal DataPoint with its trend arrow.
func MoneyPoint(p domain.DataPoint[decimal.Decimal]) string {
	return Money(p.Value) + " " + Arrow(p.Trend)
}

// CountPoint formats an integer DataPoint with its trend arrow.
func CountPoint(p domain.DataPoint[int64]) string {
	return Count(p.Value) + " " + Arrow(p.Trend)
}

// WinRate renders NoData while the trader has no closed trades.
func WinRate(t *domain.TraderView) string {
	if !t.HasWinRate {
		return NoData
	}
	return Percent(t.WinRate.Value) + " " + Arrow(t.WinRate.Trend)
}

// AvgExitPrice renders NoData while the trader has no closed trades.
func AvgExitPrice(t *domain.TraderView) string {
	if t.ClosedTrades <= 0 {
		return NoData
	}
	return MoneyPoint(t.AvgExitPrice)
}

// RealizedPnL renders NoData while the trader has no closed trades.
func RealizedPnL(t *domain.TraderView) string {
	if t.ClosedTrades <= 0 {
		return NoData
	}
	return MoneyPoint(t.RealizedPnL)
}

// MaxDrawdown renders NoData when there has been no drawdown.
func MaxDrawdown(t *domain.TraderView) string {
	if t.MaxDrawdown.IsZero() {
		return NoData
	}
	return Money(t.MaxDrawdown)
}

// BestPrice renders NoData for an empty side.
func BestPrice(s domain.SideView) string {
	if s.Count.Value == 0 {
		return NoData
	}
	return MoneyPoint(s.BestPrice) + " x " + CountPoint(s.BestQuantity)
}

// OrderPrice renders the price of an order; MARKET orders have none.
func OrderPrice(o *domain.Order) string {
	if o.Price == nil {
		return "MKT"
	}
	return Money(*o.Price)
}
