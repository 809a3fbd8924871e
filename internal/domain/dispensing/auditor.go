package dispensing

import "github.com/shopspring/decimal"

// DefaultTolerance absorbs rounding noise when comparing allocated and required quantities
var DefaultTolerance = decimal.RequireFromString("0.01")

// Excess describes an over-allocated material
type Excess struct {
	Key          AllocationKey
	MaterialID   string
	MaterialName string
	Unit         UnitOfMeasure
	Required     decimal.Decimal
	Historical   decimal.Decimal
	Selected     decimal.Decimal
	Total        decimal.Decimal
	Difference   decimal.Decimal
}

// AuditInput is the state the auditor evaluates
type AuditInput struct {
	Tree       []*MaterialRequirementNode
	Packaging  []PackagingRequirement
	Historical HistoricalTotals
	Store      *LotAllocationStore
}

// Auditor flags materials whose historical plus selected quantity exceeds the requirement
type Auditor struct {
	tolerance decimal.Decimal
}

// NewAuditor creates an auditor. Zero compares exactly; a negative tolerance
// falls back to DefaultTolerance.
func NewAuditor(tolerance decimal.Decimal) *Auditor {
	if tolerance.IsNegative() {
		tolerance = DefaultTolerance
	}
	return &Auditor{tolerance: tolerance}
}

// Tolerance returns the configured tolerance
func (a *Auditor) Tolerance() decimal.Decimal {
	return a.tolerance
}

// Audit returns every excedido material: allocatable leaves first in tree order,
// then inventoried packaging materials.
func (a *Auditor) Audit(in AuditInput) []Excess {
	excesses := make([]Excess, 0)
	for _, n := range FlattenAllocatable(in.Tree) {
		if e, over := a.check(in, n.AllocationKey(), n.MaterialID, n.MaterialName, n.Unit, n.RequiredQuantity); over {
			excesses = append(excesses, e)
		}
	}
	for _, p := range InventoriedPackaging(in.Packaging) {
		if e, over := a.check(in, p.AllocationKey(), p.MaterialID, p.MaterialName, p.Unit, p.RequiredQuantity); over {
			excesses = append(excesses, e)
		}
	}
	return excesses
}

func (a *Auditor) check(in AuditInput, key AllocationKey, materialID, name string, unit UnitOfMeasure, required decimal.Decimal) (Excess, bool) {
	historical := in.Historical.For(materialID)
	selected := decimal.Zero
	if in.Store != nil {
		selected = in.Store.TotalFor(key)
	}
	total := historical.Add(selected)
	diff := total.Sub(required)
	if !diff.GreaterThan(a.tolerance) {
		return Excess{}, false
	}
	return Excess{
		Key:          key,
		MaterialID:   materialID,
		MaterialName: name,
		Unit:         unit,
		Required:     required,
		Historical:   historical,
		Selected:     selected,
		Total:        total,
		Difference:   diff,
	}, true
}
