package dispensing

import "github.com/shopspring/decimal"

// CasePackSpec maps finished-good units to shipping cases and their packaging content
type CasePackSpec struct {
	UnitsPerCase decimal.Decimal
	Materials    []CasePackMaterial
}

// CasePackMaterial is one packaging material of a case pack
type CasePackMaterial struct {
	MaterialID   string
	MaterialName string
	// QuantityPerCase is nil when the backend does not know the per-case content
	QuantityPerCase          *decimal.Decimal
	DeclaredRequiredQuantity decimal.Decimal
	Unit                     string
	IsInventoried            *bool
}

// PackagingRequirement is the computed requirement of one packaging material
type PackagingRequirement struct {
	MaterialID          string
	MaterialName        string
	BaseQuantityPerCase decimal.Decimal
	RequiredQuantity    decimal.Decimal
	Unit                UnitOfMeasure
	IsInventoried       bool
}

// AllocationKey returns the lot store key for this packaging material
func (p PackagingRequirement) AllocationKey() AllocationKey {
	return PackagingKey(p.MaterialID)
}

// ComputePackagingRequirements derives packaging requirements from the order quantity.
// A nil orderQuantity means the order quantity is unavailable.
func ComputePackagingRequirements(orderQuantity *decimal.Decimal, spec CasePackSpec) []PackagingRequirement {
	reqs := make([]PackagingRequirement, 0, len(spec.Materials))
	for _, m := range spec.Materials {
		inventoried := true
		if m.IsInventoried != nil {
			inventoried = *m.IsInventoried
		}
		perCase := decimal.Zero
		if m.QuantityPerCase != nil {
			perCase = *m.QuantityPerCase
		}
		reqs = append(reqs, PackagingRequirement{
			MaterialID:          m.MaterialID,
			MaterialName:        m.MaterialName,
			BaseQuantityPerCase: perCase,
			RequiredQuantity:    packagingQuantity(orderQuantity, spec.UnitsPerCase, m),
			Unit:                ParseUnitOfMeasure(m.Unit),
			IsInventoried:       inventoried,
		})
	}
	return reqs
}

func packagingQuantity(orderQuantity *decimal.Decimal, unitsPerCase decimal.Decimal, m CasePackMaterial) decimal.Decimal {
	validRatio := unitsPerCase.IsPositive()
	validOrder := orderQuantity != nil && orderQuantity.IsPositive()

	switch {
	case validRatio && validOrder && m.QuantityPerCase != nil:
		return orderQuantity.Div(unitsPerCase).Mul(*m.QuantityPerCase)
	case validRatio:
		return m.DeclaredRequiredQuantity.Div(unitsPerCase)
	default:
		return m.DeclaredRequiredQuantity
	}
}

// InventoriedPackaging filters out packaging materials that take no lots
func InventoriedPackaging(reqs []PackagingRequirement) []PackagingRequirement {
	out := make([]PackagingRequirement, 0, len(reqs))
	for _, r := range reqs {
		if r.IsInventoried {
			out = append(out, r)
		}
	}
	return out
}

// FindPackaging returns the packaging requirement for a material
func FindPackaging(reqs []PackagingRequirement, materialID string) (PackagingRequirement, bool) {
	for _, r := range reqs {
		if r.MaterialID == materialID {
			return r, true
		}
	}
	return PackagingRequirement{}, false
}
