package domain

import "github.com/shopspring/decimal"

// RiskScope selects whether a risk update applies venue-wide or to one trader.
type RiskScope string

const (
	RiskScopeGlobal RiskScope = "GLOBAL"
	RiskScopeTrader RiskScope = "TRADER"
)

// ParseRiskScope validates a scope string.
func ParseRiskScope(s string) (RiskScope, bool) {
	switch RiskScope(s) {
	case RiskScopeGlobal, RiskScopeTrader:
		return RiskScope(s), true
	}
	return "", false
}

// RiskLimits are the effective limits for the viewed trader.
// MaxDrawdown and MaxRiskPerOrder are percentages.
type RiskLimits struct {
	MaxOpenPosition int64           `json:"maxOpenPosition"`
	MaxOrderSize    int64           `json:"maxOrderSize"`
	MaxOrdersPerMin int64           `json:"maxOrdersPerMin"`
	MaxDailyLoss    decimal.Decimal `json:"maxDailyLoss"`
	MaxDrawdown     decimal.Decimal `json:"maxDrawdown"`
	MaxRiskPerOrder decimal.Decimal `json:"maxRiskPerOrder"`
}

// PartialRiskLimits carries only the limits being changed.
type PartialRiskLimits struct {
	MaxOpenPosition *int64           `json:"maxOpenPosition,omitempty"`
	MaxOrderSize    *int64           `json:"maxOrderSize,omitempty"`
	MaxOrdersPerMin *int64           `json:"maxOrdersPerMin,omitempty"`
	MaxDailyLoss    *decimal.Decimal `json:"maxDailyLoss,omitempty"`
	MaxDrawdown     *decimal.Decimal `json:"maxDrawdown,omitempty"`
	MaxRiskPerOrder *decimal.Decimal `json:"maxRiskPerOrder,omitempty"`
}

// RiskUpdate is a change request for risk limits. Override only has meaning for
// the global scope: it replaces all trader-specific overrides.
type RiskUpdate struct {
	Scope    RiskScope
	TraderID string
	Override bool
	Limits   PartialRiskLimits
}
