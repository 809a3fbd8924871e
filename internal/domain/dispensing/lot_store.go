package dispensing

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// LotAllocationStore holds the operator's lot selections per allocation key.
// Lists are replaced wholesale; keys keep the order in which they were first set.
// The store is not safe for concurrent use.
type LotAllocationStore struct {
	lots     map[AllocationKey][]SelectedLot
	order    []AllocationKey
	revision uint64
}

// NewLotAllocationStore creates an empty store
func NewLotAllocationStore() *LotAllocationStore {
	return &LotAllocationStore{
		lots: make(map[AllocationKey][]SelectedLot),
	}
}

// SetLots replaces the full lot list of a key. An empty list clears the key.
func (s *LotAllocationStore) SetLots(key AllocationKey, lots []SelectedLot) error {
	if err := validateLots(lots); err != nil {
		return err
	}
	if len(lots) == 0 {
		s.clear(key)
		return nil
	}
	if _, exists := s.lots[key]; !exists {
		s.order = append(s.order, key)
	}
	s.lots[key] = slices.Clone(lots)
	s.revision++
	return nil
}

// RemoveLot removes one lot from a key's list. Returns false when nothing was removed.
func (s *LotAllocationStore) RemoveLot(key AllocationKey, lotID int64) bool {
	current, ok := s.lots[key]
	if !ok {
		return false
	}
	remaining := slices.DeleteFunc(slices.Clone(current), func(l SelectedLot) bool {
		return l.LotID.Wire() == lotID
	})
	if len(remaining) == len(current) {
		return false
	}
	if len(remaining) == 0 {
		s.clear(key)
		return true
	}
	s.lots[key] = remaining
	s.revision++
	return true
}

// TotalFor sums the selected quantity of a key
func (s *LotAllocationStore) TotalFor(key AllocationKey) decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lots[key] {
		total = total.Add(l.Quantity)
	}
	return total
}

// Lots returns a copy of the lots stored for a key
func (s *LotAllocationStore) Lots(key AllocationKey) []SelectedLot {
	return slices.Clone(s.lots[key])
}

// Keys returns the keys with selections in insertion order
func (s *LotAllocationStore) Keys() []AllocationKey {
	return slices.Clone(s.order)
}

// Len returns the number of keys with selections
func (s *LotAllocationStore) Len() int {
	return len(s.order)
}

// Revision changes on every mutation, so callers can tell whether the
// selections moved since they last looked.
func (s *LotAllocationStore) Revision() uint64 {
	return s.revision
}

// Reset clears every selection
func (s *LotAllocationStore) Reset() {
	s.lots = make(map[AllocationKey][]SelectedLot)
	s.order = nil
	s.revision++
}

func (s *LotAllocationStore) clear(key AllocationKey) {
	if _, ok := s.lots[key]; !ok {
		return
	}
	delete(s.lots, key)
	s.order = slices.DeleteFunc(s.order, func(k AllocationKey) bool { return k == key })
	s.revision++
}

func validateLots(lots []SelectedLot) error {
	seen := make(map[int64]struct{}, len(lots))
	for _, l := range lots {
		id, ok := l.LotID.Get()
		if !ok {
			return ErrInvalidLot.WithMessage("lot id is required")
		}
		if !l.Quantity.IsPositive() {
			return ErrInvalidLot.WithMessage(fmt.Sprintf("quantity for lot %d must be positive", id))
		}
		if _, dup := seen[id]; dup {
			return ErrInvalidLot.WithMessage(fmt.Sprintf("lot %d selected twice", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}
