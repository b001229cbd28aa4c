package domain

import (
	"cmp"

	"github.com/shopspring/decimal"
)

// Trend is the direction of a metric between two successive authoritative values.
type Trend int8

const (
	Falling Trend = -1
	Flat    Trend = 0
	Rising  Trend = 1
)

// String returns the string representation of Trend
func (t Trend) String() string {
	switch t {
	case Rising:
		return "RISING"
	case Falling:
		return "FALLING"
	default:
		return "FLAT"
	}
}

// DataPoint pairs a display value with the trend that led to it.
type DataPoint[V any] struct {
	Value V     `json:"value"`
	Trend Trend `json:"trend"`
}

// DeriveTrend compares a new value against the previously held one.
// A nil pointer means the value is absent:
// - both absent: Flat
// - value disappeared: Falling
// - value appeared: Rising
// - equal values carry prev forward (the zero Trend is Flat)
func DeriveTrend[V cmp.Ordered](newVal, oldVal *V, prev Trend) Trend {
	if newVal == nil || oldVal == nil {
		return presence(newVal != nil, oldVal != nil)
	}
	return fromCompare(cmp.Compare(*newVal, *oldVal), prev)
}

// DeriveDecimalTrend is DeriveTrend for decimal values.
func DeriveDecimalTrend(newVal, oldVal *decimal.Decimal, prev Trend) Trend {
	if newVal == nil || oldVal == nil {
		return presence(newVal != nil, oldVal != nil)
	}
	return fromCompare(newVal.Cmp(*oldVal), prev)
}

func presence(hasNew, hasOld bool) Trend {
	switch {
	case !hasNew && !hasOld:
		return Flat
	case !hasNew:
		return Falling
	default:
		return Rising
	}
}

func fromCompare(c int, prev Trend) Trend {
	switch {
	case c > 0:
		return Rising
	case c < 0:
		return Falling
	default:
		return prev
	}
}
