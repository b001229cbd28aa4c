package event

import (
	"encoding/json"
	"fmt"

	"trade_dash/internal/domain"

	"github.com/tidwall/gjson"
)

// Kind is the event name carried by a stream frame.
type Kind string

const (
	KindOrderAdded     Kind = "ORDER_ADDED"
	KindOrderUpdated   Kind = "ORDER_UPDATED"
	KindOrderModified  Kind = "ORDER_MODIFIED"
	KindOrderCancelled Kind = "ORDER_CANCELLED"
	KindOrderRejected  Kind = "ORDER_REJECTED"
	KindTradeExecuted  Kind = "TRADE_EXECUTED"
	KindRiskUpdated    Kind = "RISK_UPDATED"
)

// ReplacesBook reports whether the kind carries a full order book snapshot.
func (k Kind) ReplacesBook() bool {
	switch k {
	case KindOrderAdded, KindOrderUpdated, KindOrderModified, KindOrderCancelled, KindOrderRejected:
		return true
	}
	return false
}

// Envelope is one decoded stream frame: {event, message, data}.
type Envelope struct {
	Event   Kind   `json:"event"`
	Message string `json:"message"`
	Data    Data   `json:"data"`
}

// Data is the union of all payload fields. Which ones are set depends on the
// event kind, except Market which may ride along with any kind.
type Data struct {
	Market       *domain.MarketSnapshot `json:"market,omitempty"`
	Asks         *domain.BookSide       `json:"asks,omitempty"`
	Bids         *domain.BookSide       `json:"bids,omitempty"`
	Trades       []domain.Trade         `json:"trades,omitempty"`
	BuyTraderID  string                 `json:"buyTraderId,omitempty"`
	SellTraderID string                 `json:"sellTraderId,omitempty"`
	Limits       *domain.RiskLimits     `json:"limits,omitempty"`
}

// Book returns the order book when both sides are present.
func (d *Data) Book() (domain.OrderBook, bool) {
	if d.Asks == nil || d.Bids == nil {
		return domain.OrderBook{}, false
	}
	return domain.OrderBook{Asks: *d.Asks, Bids: *d.Bids}, true
}

// Involves reports whether traderID was the buyer or the seller.
func (d *Data) Involves(traderID string) bool {
	if traderID == "" {
		return false
	}
	return d.BuyTraderID == traderID || d.SellTraderID == traderID
}

// PeekKind reads the event name without decoding the payload.
func PeekKind(frame []byte) Kind {
	return Kind(gjson.GetBytes(frame, "event").String())
}

// Decode parses a raw frame. Any failure wraps domain.ErrMalformedFrame.
func Decode(frame []byte) (*Envelope, error) {
	if !gjson.ValidBytes(frame) {
		return nil, fmt.Errorf("%w: invalid json", domain.ErrMalformedFrame)
	}
	if !gjson.ParseBytes(frame).IsObject() {
		return nil, fmt.Errorf("%w: not an object", domain.ErrMalformedFrame)
	}

	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}
	return &env, nil
}
