package domain

import "github.com/shopspring/decimal"

// SideSummary aggregates one side of the book.
type SideSummary struct {
	Best   *Order `json:"best"`
	Volume int64  `json:"volume"`
	Count  int64  `json:"count"`
}

// BestPrice returns the best order's price, or nil if there is none.
func (s *SideSummary) BestPrice() *decimal.Decimal {
	if s.Best == nil {
		return nil
	}
	return s.Best.Price
}

// BestQuantity returns the best order's remaining quantity, or nil if there is none.
func (s *SideSummary) BestQuantity() *int64 {
	if s.Best == nil {
		return nil
	}
	q := s.Best.RemainingQuantity
	return &q
}

// TradeSummary aggregates the executed trades. AvgPrice is nil until the venue has one.
type TradeSummary struct {
	Count    int64            `json:"count"`
	Volume   int64            `json:"volume"`
	AvgPrice *decimal.Decimal `json:"avgPrice"`
}

// MarketSnapshot is the authoritative market state. It is replaced wholesale on
// every update and never patched.
type MarketSnapshot struct {
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Volatility   decimal.Decimal `json:"volatility"`
	Bids         SideSummary     `json:"bids"`
	Asks         SideSummary     `json:"asks"`
	Trades       TradeSummary    `json:"trades"`
}

// Spread calculates best ask - best bid. A missing side counts as 0.
func (m *MarketSnapshot) Spread() decimal.Decimal {
	return orZero(m.Asks.BestPrice()).Sub(orZero(m.Bids.BestPrice()))
}

// Imbalance calculates (bid - ask) / (bid + ask) over the side volumes.
func (m *MarketSnapshot) Imbalance() float64 {
	return Imbalance(m.Asks.Volume, m.Bids.Volume)
}

// Imbalance returns 0 when both volumes are 0. For non-negative volumes the
// result is within [-1, 1].
func Imbalance(askVolume, bidVolume int64) float64 {
	total := askVolume + bidVolume
	if total == 0 {
		return 0
	}
	return float64(bidVolume-askVolume) / float64(total)
}

// SideView is the derived view of one book side.
type SideView struct {
	Count        DataPoint[int64]           `json:"count"`
	Volume       DataPoint[int64]           `json:"volume"`
	BestPrice    DataPoint[decimal.Decimal] `json:"bestPrice"`
	BestQuantity DataPoint[int64]           `json:"bestQuantity"`
}

// TradesView is the derived view of the trade aggregate.
type TradesView struct {
	Count    DataPoint[int64]           `json:"count"`
	Volume   DataPoint[int64]           `json:"volume"`
	AvgPrice DataPoint[decimal.Decimal] `json:"avgPrice"`
}

// MarketView is the derived market state shown to the operator. It is always
// built from one snapshot, so no metric is newer than its siblings.
type MarketView struct {
	CurrentPrice DataPoint[decimal.Decimal] `json:"currentPrice"`
	Volatility   DataPoint[decimal.Decimal] `json:"volatility"`
	Bids         SideView                   `json:"bids"`
	Asks         SideView                   `json:"asks"`
	Trades       TradesView                 `json:"trades"`
	Spread       DataPoint[decimal.Decimal] `json:"spread"`
	Imbalance    DataPoint[float64]         `json:"imbalance"`
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
