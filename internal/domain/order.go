package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the book side of an order ("ASK" or "BID").
type Side string

// OrderType is the order-type variant accepted by the venue.
type OrderType string

// OrderStatus is the fill state reported by the venue.
type OrderStatus string

// Mechanism separates unconditionally live orders from orders waiting on a trigger.
type Mechanism string

const (
	SideAsk Side = "ASK"
	SideBid Side = "BID"

	OrderTypeLimit        OrderType = "LIMIT"
	OrderTypeMarket       OrderType = "MARKET"
	OrderTypeIOC          OrderType = "IOC"
	OrderTypeFOK          OrderType = "FOK"
	OrderTypeIceberg      OrderType = "ICEBERG"
	OrderTypeStop         OrderType = "STOP"
	OrderTypeStopLimit    OrderType = "STOP_LIMIT"
	OrderTypeTrailingStop OrderType = "TRAILING_STOP"

	OrderStatusUnfilled        OrderStatus = "UNFILLED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"

	MechanismActive      Mechanism = "ACTIVE"
	MechanismConditional Mechanism = "CONDITIONAL"
)

// ParseSide validates a side string.
func ParseSide(s string) (Side, bool) {
	switch Side(s) {
	case SideAsk, SideBid:
		return Side(s), true
	}
	return "", false
}

// ParseOrderType validates an order type string.
func ParseOrderType(s string) (OrderType, bool) {
	switch t := OrderType(s); t {
	case OrderTypeLimit, OrderTypeMarket, OrderTypeIOC, OrderTypeFOK,
		OrderTypeIceberg, OrderTypeStop, OrderTypeStopLimit, OrderTypeTrailingStop:
		return t, true
	}
	return "", false
}

// Label returns the human-readable order type name.
func (t OrderType) Label() string {
	switch t {
	case OrderTypeStopLimit:
		return "STOP LIMIT"
	case OrderTypeTrailingStop:
		return "TRAILING STOP"
	default:
		return string(t)
	}
}

// Label returns the human-readable status name.
func (s OrderStatus) Label() string {
	if s == OrderStatusPartiallyFilled {
		return "PART FILLED"
	}
	return string(s)
}

// Order is a resting or conditional order as reported by the venue.
// Price is nil for MARKET orders.
type Order struct {
	ID                int64            `json:"id"`
	Side              Side             `json:"side"`
	Type              OrderType        `json:"orderType"`
	Price             *decimal.Decimal `json:"price"`
	InitialQuantity   int64            `json:"initialQuantity"`
	RemainingQuantity int64            `json:"remainingQuantity"`
	Status            OrderStatus      `json:"status"`
	TraderID          string           `json:"traderId"`
	Timestamp         int64            `json:"timestamp"` // Unix milliseconds

	// Type-specific
	DisplaySize *int64           `json:"displaySize,omitempty"` // ICEBERG
	LimitPrice  *decimal.Decimal `json:"limitPrice,omitempty"`  // STOP_LIMIT
	BestPrice   *decimal.Decimal `json:"bestPrice,omitempty"`   // TRAILING_STOP
}

// CreatedAt returns the creation time of the order.
func (o *Order) CreatedAt() time.Time {
	return time.UnixMilli(o.Timestamp)
}

// OrderRequest is what the operator submits. Fields not relevant to Type are
// dropped before the request leaves the process.
type OrderRequest struct {
	Side        Side
	Type        OrderType
	Price       *decimal.Decimal
	Quantity    int64
	DisplaySize *int64
	LimitPrice  *decimal.Decimal
	BestPrice   *decimal.Decimal
}

// Normalize returns a copy carrying only the fields the order type uses.
func (r OrderRequest) Normalize() OrderRequest {
	out := OrderRequest{
		Side:     r.Side,
		Type:     r.Type,
		Price:    r.Price,
		Quantity: r.Quantity,
	}
	switch r.Type {
	case OrderTypeMarket:
		out.Price = nil
	case OrderTypeStopLimit:
		out.LimitPrice = r.LimitPrice
	case OrderTypeTrailingStop:
		out.BestPrice = r.BestPrice
	case OrderTypeIceberg:
		out.DisplaySize = r.DisplaySize
	}
	return out
}

// CheckRequired is the single local check before submission:
// LIMIT orders need a non-zero price.
func (r OrderRequest) CheckRequired() error {
	if r.Type == OrderTypeLimit && (r.Price == nil || r.Price.IsZero()) {
		return ErrPriceRequired
	}
	return nil
}
