package batch

import (
	"context"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
)

// FEFOPicker selects lots by expiry date, earliest first.
// Expired lots are never proposed.
type FEFOPicker struct{}

// NewFEFOPicker creates a FEFO picker
func NewFEFOPicker() *FEFOPicker { return &FEFOPicker{} }

// Name implements dispensing.LotPicker
func (p *FEFOPicker) Name() string { return "fefo" }

// Description implements dispensing.LotPicker
func (p *FEFOPicker) Description() string {
	return "First Expired First Out - earliest expiry first, expired lots skipped"
}

// Pick implements dispensing.LotPicker
func (p *FEFOPicker) Pick(ctx context.Context, req dispensing.LotPickRequest, lots []dispensing.InventoryLot) (dispensing.LotSuggestion, error) {
	candidates := withoutExpired(usableLots(lots, req.MaterialID), referenceTime(req.At))
	sortByDate(candidates, func(l dispensing.InventoryLot) *time.Time { return l.ExpirationDate })
	return takeGreedy(p.Name(), preferFirst(candidates, req.PreferBatch), req.Quantity), nil
}
