package domain

import (
	"time"
)

// Setting is a locally persisted key-value preference (e.g. the minted trader id).
// Trading state is never stored here.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// SettingTraderID stores the identity minted on first start.
	SettingTraderID = "trader_id"
)
