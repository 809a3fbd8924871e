package dispensing

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/domain/shared"
	"go.uber.org/zap"
)

// SessionLookup finds the live session of an operator
type SessionLookup interface {
	Lookup(operatorID string) (*Session, bool)
}

// HistoricalRefreshHandler re-reconciles the historical totals of the
// submitting operator's session once a dispensation is accepted
type HistoricalRefreshHandler struct {
	sessions SessionLookup
	logger   *zap.Logger
}

// NewHistoricalRefreshHandler creates the handler
func NewHistoricalRefreshHandler(sessions SessionLookup, logger *zap.Logger) *HistoricalRefreshHandler {
	return &HistoricalRefreshHandler{sessions: sessions, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *HistoricalRefreshHandler) EventTypes() []string {
	return []string{dispensing.EventTypeDispensationSubmitted}
}

// Handle processes a DispensationSubmitted event
func (h *HistoricalRefreshHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	evt, ok := event.(*dispensing.DispensationSubmittedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %T", event)
	}

	session, ok := h.sessions.Lookup(evt.OperatorID)
	if !ok {
		h.logger.Debug("no session to refresh", zap.String("operator_id", evt.OperatorID))
		return nil
	}
	if session.OrderID() != evt.OrderID {
		return nil
	}

	if _, err := session.RefreshHistorical(ctx); err != nil {
		if errors.Is(err, dispensing.ErrOrderSuperseded) || errors.Is(err, dispensing.ErrNoOrderSelected) {
			return nil
		}
		h.logger.Warn("historical refresh after submission failed",
			zap.String("order_id", evt.OrderID),
			zap.String("operator_id", evt.OperatorID),
			zap.Error(err))
		return err
	}

	h.logger.Info("historical refreshed after submission",
		zap.String("order_id", evt.OrderID),
		zap.String("operator_id", evt.OperatorID),
		zap.Int("items", evt.ItemCount))
	return nil
}
