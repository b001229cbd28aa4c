package service

import (
	"context"
	"errors"
	"log/slog"

	"trade_dash/internal/domain"
	"trade_dash/internal/notify"
)

// OrderService submits operator orders on behalf of one trader.
type OrderService struct {
	writer   domain.VenueWriter
	notifier notify.Notifier
	traderID string
	logger   *slog.Logger
}

// NewOrderService creates an order service bound to traderID.
func NewOrderService(writer domain.VenueWriter, notifier notify.Notifier, traderID string) *OrderService {
	return &OrderService{
		writer:   writer,
		notifier: notifier,
		traderID: traderID,
		logger:   slog.Default().With("module", "order_service"),
	}
}

// Submit sends req and reports success. A LIMIT order without a price is
// rejected locally with an error notification and no request.
func (s *OrderService) Submit(ctx context.Context, req domain.OrderRequest) bool {
	if err := req.CheckRequired(); err != nil {
		if errors.Is(err, domain.ErrPriceRequired) {
			s.notifier.Notify(ctx, notify.Error, "Price is required for LIMIT orders")
		}
		return false
	}

	if err := s.writer.CreateOrder(ctx, s.traderID, req.Normalize()); err != nil {
		s.logger.Warn("Order submission failed",
			slog.String("side", string(req.Side)),
			slog.String("type", string(req.Type)),
			slog.Any("error", err))
		return false
	}
	return true
}
