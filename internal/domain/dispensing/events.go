package dispensing

import (
	"github.com/erp/dispensing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeDispensation is the aggregate type of dispensing events
const AggregateTypeDispensation = "Dispensation"

// EventTypeDispensationSubmitted is published after the backend accepted a dispensation
const EventTypeDispensationSubmitted = "DispensationSubmitted"

// DispensationSubmittedEvent carries the outcome of a successful submission
type DispensationSubmittedEvent struct {
	shared.BaseDomainEvent
	OrderID       string          `json:"order_id"`
	OperatorID    string          `json:"operator_id"`
	ItemCount     int             `json:"item_count"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	Warned        bool            `json:"warned"`
}

// NewDispensationSubmittedEvent creates the event for an accepted dispensation
func NewDispensationSubmittedEvent(operatorID string, d Dispensation, warned bool) *DispensationSubmittedEvent {
	return &DispensationSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDispensationSubmitted, AggregateTypeDispensation, d.OrderID),
		OrderID:         d.OrderID,
		OperatorID:      operatorID,
		ItemCount:       len(d.Items),
		TotalQuantity:   d.TotalQuantity(),
		Warned:          warned,
	}
}
