package domain

// Snapshot is the complete result of the one-shot bootstrap load.
type Snapshot struct {
	Book   OrderBook
	Trades []Trade
	Trader TraderProfile
	Market MarketSnapshot
	Risk   RiskLimits
}
