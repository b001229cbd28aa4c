package domain

import "context"

// VenueReader is the set of read collaborators used by the bootstrap load.
type VenueReader interface {
	GetMarket(ctx context.Context) (MarketSnapshot, error)
	GetOrders(ctx context.Context, start, limit int) (OrderBook, error)
	GetTrades(ctx context.Context, start, limit int) ([]Trade, error)
	GetTrader(ctx context.Context, id string) (TraderProfile, error)
	GetRiskLimits(ctx context.Context, traderID string) (RiskLimits, error)
}

// TraderSource fetches one trader profile on demand.
type TraderSource interface {
	GetTrader(ctx context.Context, id string) (TraderProfile, error)
}

// VenueWriter submits operator mutations. Only success or failure is reported.
type VenueWriter interface {
	CreateOrder(ctx context.Context, traderID string, req OrderRequest) error
	UpdateRiskLimits(ctx context.Context, update RiskUpdate) error
}
