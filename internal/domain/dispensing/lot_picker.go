package dispensing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LotPickRequest asks for lots covering Quantity of one material
type LotPickRequest struct {
	MaterialID string
	Quantity   decimal.Decimal
	// At is the reference time for expiry checks; zero means now
	At time.Time
	// PreferBatch moves the lot with this batch label to the front
	PreferBatch string
}

// LotSuggestion is a proposed lot list for one allocation key
type LotSuggestion struct {
	Strategy  string
	Lots      []SelectedLot
	Total     decimal.Decimal
	Shortfall decimal.Decimal
}

// LotPicker proposes lots for a requirement. Suggestions are never
// applied automatically; the operator confirms them with SetLots.
type LotPicker interface {
	Name() string
	Description() string
	Pick(ctx context.Context, req LotPickRequest, lots []InventoryLot) (LotSuggestion, error)
}

// Selection converts an inventory lot into a selected lot of qty
func (l InventoryLot) Selection(qty decimal.Decimal) SelectedLot {
	return SelectedLot{
		LotID:             l.LotID,
		BatchLabel:        l.BatchLabel,
		Quantity:          qty,
		AvailableQuantity: l.AvailableQuantity,
		ProductionDate:    l.ProductionDate,
		ExpirationDate:    l.ExpirationDate,
	}
}
