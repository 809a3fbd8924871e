package batch

import (
	"sort"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/shopspring/decimal"
)

// usableLots keeps lots of the material with a set id and positive stock
func usableLots(lots []dispensing.InventoryLot, materialID string) []dispensing.InventoryLot {
	out := make([]dispensing.InventoryLot, 0, len(lots))
	for _, l := range lots {
		if l.MaterialID == materialID && l.LotID.IsSet() && l.AvailableQuantity.IsPositive() {
			out = append(out, l)
		}
	}
	return out
}

func withoutExpired(lots []dispensing.InventoryLot, at time.Time) []dispensing.InventoryLot {
	out := make([]dispensing.InventoryLot, 0, len(lots))
	for _, l := range lots {
		if !l.IsExpired(at) {
			out = append(out, l)
		}
	}
	return out
}

// preferFirst moves the lot labelled batch to the front, keeping the rest in order
func preferFirst(lots []dispensing.InventoryLot, batch string) []dispensing.InventoryLot {
	if batch == "" {
		return lots
	}
	for i := range lots {
		if lots[i].BatchLabel == batch {
			out := make([]dispensing.InventoryLot, 0, len(lots))
			out = append(out, lots[i])
			out = append(out, lots[:i]...)
			return append(out, lots[i+1:]...)
		}
	}
	return lots
}

// sortByDate orders lots by date ascending; lots without a date go last
// and ties fall back to lot id for a stable result.
func sortByDate(lots []dispensing.InventoryLot, date func(dispensing.InventoryLot) *time.Time) {
	sort.SliceStable(lots, func(i, j int) bool {
		di, dj := date(lots[i]), date(lots[j])
		switch {
		case di == nil && dj == nil:
			return lots[i].LotID.Wire() < lots[j].LotID.Wire()
		case di == nil:
			return false
		case dj == nil:
			return true
		case di.Equal(*dj):
			return lots[i].LotID.Wire() < lots[j].LotID.Wire()
		}
		return di.Before(*dj)
	})
}

// takeGreedy draws from lots in order until quantity is covered
func takeGreedy(name string, lots []dispensing.InventoryLot, quantity decimal.Decimal) dispensing.LotSuggestion {
	remaining := quantity
	total := decimal.Zero
	picked := make([]dispensing.SelectedLot, 0)

	for _, l := range lots {
		if !remaining.IsPositive() {
			break
		}
		qty := decimal.Min(remaining, l.AvailableQuantity)
		picked = append(picked, l.Selection(qty))
		remaining = remaining.Sub(qty)
		total = total.Add(qty)
	}
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return dispensing.LotSuggestion{
		Strategy:  name,
		Lots:      picked,
		Total:     total,
		Shortfall: remaining,
	}
}

func referenceTime(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now()
	}
	return at
}
