package dispensing

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoricalTransaction is a prior warehouse transaction linked to the order
type HistoricalTransaction struct {
	ID    int64
	Date  time.Time
	Cause string
}

// HistoricalDispensationLine is one movement line of a prior transaction
type HistoricalDispensationLine struct {
	MaterialID     string
	Quantity       decimal.Decimal
	BatchLabel     string
	ProductionDate *time.Time
	ExpirationDate *time.Time
}

// HistoricalTotals maps material id to the quantity already dispensed
type HistoricalTotals map[string]decimal.Decimal

// AggregateHistorical sums absolute line quantities per material
func AggregateHistorical(lines []HistoricalDispensationLine) HistoricalTotals {
	totals := make(HistoricalTotals)
	for _, l := range lines {
		totals[l.MaterialID] = totals.For(l.MaterialID).Add(l.Quantity.Abs())
	}
	return totals
}

// For returns the historical quantity of a material, zero when none
func (h HistoricalTotals) For(materialID string) decimal.Decimal {
	if q, ok := h[materialID]; ok {
		return q
	}
	return decimal.Zero
}
