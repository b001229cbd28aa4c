package app

import (
	"fmt"
	"log/slog"

	"trade_dash/internal/domain"
	"trade_dash/internal/infra"
	"trade_dash/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Storage  *storage.Storage
	TraderID string

	// ResetIdentity drops the persisted trader id so a fresh one is minted.
	ResetIdentity bool
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, storage, identity)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("Bootstrapping trade dashboard...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (settings DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("Settings store initialized")

	// 4. Resolve trader identity
	if b.ResetIdentity {
		if err := store.DeleteSetting(domain.SettingTraderID); err != nil {
			return fmt.Errorf("reset trader id: %w", err)
		}
		slog.Info("Stored trader identity cleared")
	}
	id, err := ResolveTraderID(cfg.Trader.ID, store)
	if err != nil {
		return err
	}
	b.TraderID = id
	slog.Info("Trader identity resolved", slog.String("trader_id", id))

	return nil
}

// Close releases what Initialize opened.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	return b.Storage.Close()
}
