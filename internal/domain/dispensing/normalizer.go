package dispensing

import "github.com/shopspring/decimal"

// RawBOMNode is a nested BOM node as returned by the backend.
// The kind may arrive in Kind or in either of the two legacy type-code fields.
type RawBOMNode struct {
	MaterialID      string
	MaterialName    string
	QuantityPerUnit decimal.Decimal
	Unit            string
	Kind            string
	TypeCode        string
	ProductTypeCode string
	Children        []RawBOMNode
}

// BOMNode is the canonical shape of a nested BOM node
type BOMNode struct {
	MaterialID       string
	MaterialName     string
	DeclaredQuantity decimal.Decimal
	Unit             UnitOfMeasure
	Kind             MaterialKind
	Children         []BOMNode
}

// NormalizeBOM maps a backend BOM response onto canonical nodes.
// Missing units default to mass; leaves get an empty, non-nil children list.
func NormalizeBOM(raw []RawBOMNode) []BOMNode {
	nodes := make([]BOMNode, 0, len(raw))
	for _, r := range raw {
		nodes = append(nodes, normalizeNode(r))
	}
	return nodes
}

func normalizeNode(r RawBOMNode) BOMNode {
	return BOMNode{
		MaterialID:       r.MaterialID,
		MaterialName:     r.MaterialName,
		DeclaredQuantity: r.QuantityPerUnit,
		Unit:             ParseUnitOfMeasure(r.Unit),
		Kind:             resolveKind(r),
		Children:         NormalizeBOM(r.Children),
	}
}

func resolveKind(r RawBOMNode) MaterialKind {
	for _, code := range []string{r.Kind, r.TypeCode, r.ProductTypeCode} {
		if kind := ParseMaterialKind(code); kind != "" {
			return kind
		}
	}
	return ""
}
