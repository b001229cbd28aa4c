package service

import (
	"context"
	"log/slog"

	"trade_dash/internal/domain"
)

// RiskService submits risk limit changes.
type RiskService struct {
	writer domain.VenueWriter
	logger *slog.Logger
}

// NewRiskService creates a risk service.
func NewRiskService(writer domain.VenueWriter) *RiskService {
	return &RiskService{
		writer: writer,
		logger: slog.Default().With("module", "risk_service"),
	}
}

// Update sends the change and reports success. Scope validation is left to
// the venue.
func (s *RiskService) Update(ctx context.Context, update domain.RiskUpdate) bool {
	if err := s.writer.UpdateRiskLimits(ctx, update); err != nil {
		s.logger.Warn("Risk update failed",
			slog.String("scope", string(update.Scope)),
			slog.Any("error", err))
		return false
	}
	return true
}
