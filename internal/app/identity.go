package app

import (
	"fmt"
	"log/slog"
	"math/rand"

	"trade_dash/internal/domain"
)

// SettingsStore is the part of the settings storage identity needs.
type SettingsStore interface {
	GetSetting(key string) (string, bool, error)
	SaveSetting(key, value string) error
}

// ResolveTraderID picks the trader identity for this process:
// the configured id, else the persisted one, else a freshly minted id that
// is persisted for the next start.
func ResolveTraderID(configured string, store SettingsStore) (string, error) {
	if configured != "" {
		return configured, nil
	}

	id, ok, err := store.GetSetting(domain.SettingTraderID)
	if err != nil {
		return "", fmt.Errorf("read trader id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = MintTraderID()
	if err := store.SaveSetting(domain.SettingTraderID, id); err != nil {
		return "", fmt.Errorf("persist trader id: %w", err)
	}
	slog.Info("Minted trader identity", slog.String("trader_id", id))
	return id, nil
}

// MintTraderID returns a random id of the form ###-###-###.
func MintTraderID() string {
	return fmt.Sprintf("%d-%d-%d", 100+rand.Intn(900), 100+rand.Intn(900), 100+rand.Intn(900))
}
