package engine

import (
	"trade_dash/internal/domain"
)

// Phase is the session lifecycle: Uninitialized -> Loading -> Ready.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "LOADING"
	case PhaseReady:
		return "READY"
	default:
		return "UNINITIALIZED"
	}
}

// Dashboard is a consistent copy of the session state. A reader sees either
// all or none of an event's effects.
type Dashboard struct {
	Phase     Phase  `json:"phase"`
	TraderID  string `json:"trader_id"`
	Connected bool   `json:"connected"`

	// Nil until first set by the bootstrap or the stream.
	Market *domain.MarketView `json:"market,omitempty"`
	Trader *domain.TraderView `json:"trader,omitempty"`
	Risk   *domain.RiskLimits `json:"risk,omitempty"`
	Trades []domain.Trade     `json:"trades,omitempty"`

	Book        domain.OrderBook `json:"book"`
	BookLoaded  bool             `json:"book_loaded"`
	BookVersion uint64           `json:"book_version"`

	BootstrapErr error  `json:"-"`
	Version      uint64 `json:"version"` // events applied
}

// Complete reports whether every piece needed to render is present.
func (d *Dashboard) Complete() bool {
	return d.Market != nil && d.Trader != nil && d.Risk != nil && d.Trades != nil && d.BookLoaded
}
