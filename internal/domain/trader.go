package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// OpenOrderCounts is the number of open orders a trader has per side.
type OpenOrderCounts struct {
	Bids int64 `json:"bids"`
	Asks int64 `json:"asks"`
}

// TraderProfile is the venue's portfolio record for one trader.
type TraderProfile struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Inventory     int64           `json:"inventory"`
	OpenOrders    OpenOrderCounts `json:"openOrders"`
	ClosedTrades  int64           `json:"closedTrades"`
	Wins          int64           `json:"wins"`
	AvgEntryPrice decimal.Decimal `json:"avgEntryPrice"`
	AvgExitPrice  decimal.Decimal `json:"avgExitPrice"`
	RealizedPnL   decimal.Decimal `json:"realizedPnL"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnL"`
	MaxDrawdown   decimal.Decimal `json:"maxDrawdown"`
}

// WinRate returns wins / closed trades. ok is false when there are no closed
// trades, so callers never divide by zero.
func (p *TraderProfile) WinRate() (rate float64, ok bool) {
	if p.ClosedTrades <= 0 {
		return 0, false
	}
	return float64(p.Wins) / float64(p.ClosedTrades), true
}

// TotalOpenOrders returns bids + asks.
func (p *TraderProfile) TotalOpenOrders() int64 {
	return p.OpenOrders.Bids + p.OpenOrders.Asks
}

// PersonName is a display name split at ingestion.
type PersonName struct {
	First    string
	Last     string
	Initials string
}

// SplitName splits "First Last" into its parts. Extra words go to Last.
// A single-word name has no last name and a one-letter initial.
func SplitName(full string) PersonName {
	fields := strings.Fields(full)
	var n PersonName
	if len(fields) == 0 {
		return n
	}
	n.First = fields[0]
	if len(fields) > 1 {
		n.Last = strings.Join(fields[1:], " ")
	}
	n.Initials = initial(n.First) + initial(n.Last)
	return n
}

func initial(word string) string {
	r, _ := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}

// OpenOrdersView is the derived open order counts.
type OpenOrdersView struct {
	Total DataPoint[int64] `json:"total"`
	Bids  DataPoint[int64] `json:"bids"`
	Asks  DataPoint[int64] `json:"asks"`
}

// TraderView is the derived trader state shown to the operator.
// HasWinRate is false while the trader has no closed trades; WinRate.Value is
// then meaningless and must render as "no data".
type TraderView struct {
	ID            string                     `json:"id"`
	FirstName     string                     `json:"fname"`
	LastName      string                     `json:"lname"`
	Initials      string                     `json:"initials"`
	Inventory     DataPoint[int64]           `json:"inventory"`
	OpenOrders    OpenOrdersView             `json:"openOrders"`
	ClosedTrades  int64                      `json:"closedTrades"`
	WinRate       DataPoint[float64]         `json:"winRate"`
	HasWinRate    bool                       `json:"hasWinRate"`
	AvgEntryPrice DataPoint[decimal.Decimal] `json:"avgEntryPrice"`
	AvgExitPrice  DataPoint[decimal.Decimal] `json:"avgExitPrice"`
	RealizedPnL   DataPoint[decimal.Decimal] `json:"realizedPnL"`
	UnrealizedPnL DataPoint[decimal.Decimal] `json:"unrealizedPnL"`
	MaxDrawdown   decimal.Decimal            `json:"maxDrawdown"`
}
