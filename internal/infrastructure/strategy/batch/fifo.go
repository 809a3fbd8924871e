package batch

import (
	"context"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
)

// FIFOPicker selects lots by production date, oldest first,
// falling back to the received date.
type FIFOPicker struct{}

// NewFIFOPicker creates a FIFO picker
func NewFIFOPicker() *FIFOPicker { return &FIFOPicker{} }

// Name implements dispensing.LotPicker
func (p *FIFOPicker) Name() string { return "fifo" }

// Description implements dispensing.LotPicker
func (p *FIFOPicker) Description() string {
	return "First In First Out - oldest production date first"
}

// Pick implements dispensing.LotPicker
func (p *FIFOPicker) Pick(ctx context.Context, req dispensing.LotPickRequest, lots []dispensing.InventoryLot) (dispensing.LotSuggestion, error) {
	candidates := usableLots(lots, req.MaterialID)
	sortByDate(candidates, func(l dispensing.InventoryLot) *time.Time {
		if l.ProductionDate != nil {
			return l.ProductionDate
		}
		return l.ReceivedDate
	})
	return takeGreedy(p.Name(), preferFirst(candidates, req.PreferBatch), req.Quantity), nil
}
