package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one execution as listed in the venue trade history.
type Trade struct {
	ID            int64           `json:"tradeId"`
	BuyOrderID    int64           `json:"buyOrderId"`
	SellOrderID   int64           `json:"sellOrderId"`
	BuyOrderType  OrderType       `json:"buyOrderType"`
	SellOrderType OrderType       `json:"sellOrderType"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Timestamp     int64           `json:"timestamp"` // Unix milliseconds
}

// ExecutedAt returns the execution time.
func (t *Trade) ExecutedAt() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// Notional returns price * quantity.
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}
