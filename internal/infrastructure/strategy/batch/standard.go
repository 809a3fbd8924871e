package batch

import (
	"context"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
)

// StandardPicker selects lots in received order and ignores the preferred batch
type StandardPicker struct{}

// NewStandardPicker creates a standard picker
func NewStandardPicker() *StandardPicker { return &StandardPicker{} }

// Name implements dispensing.LotPicker
func (p *StandardPicker) Name() string { return "standard" }

// Description implements dispensing.LotPicker
func (p *StandardPicker) Description() string {
	return "Received date order"
}

// Pick implements dispensing.LotPicker
func (p *StandardPicker) Pick(ctx context.Context, req dispensing.LotPickRequest, lots []dispensing.InventoryLot) (dispensing.LotSuggestion, error) {
	candidates := usableLots(lots, req.MaterialID)
	sortByDate(candidates, func(l dispensing.InventoryLot) *time.Time { return l.ReceivedDate })
	return takeGreedy(p.Name(), candidates, req.Quantity), nil
}
