package dispensing

import "github.com/shopspring/decimal"

// RequirementRecord is one line of the flat requirement breakdown of an order.
// Its quantities are authoritative (already scaled to the order).
type RequirementRecord struct {
	MaterialID       string
	MaterialName     string
	RequiredQuantity decimal.Decimal
	Unit             string
	Kind             string
	// IsInventoried is nil when the backend omits the flag
	IsInventoried    *bool
	TrackingRecordID TrackingRecordID
	PriorLots        []SelectedLot
}

// Merge fuses the nested BOM with the flat requirement list.
// The tree shape always comes from the nested BOM; matched nodes take their
// attributes from the flat record with the same material id. When either input
// is empty the flat list alone becomes the working set.
func Merge(tree []BOMNode, flat []RequirementRecord) []*MaterialRequirementNode {
	if len(tree) == 0 || len(flat) == 0 {
		return fromFlat(flat)
	}

	lookup := make(map[string]RequirementRecord, len(flat))
	for _, rec := range flat {
		lookup[rec.MaterialID] = rec
	}
	return mergeLevel(tree, lookup)
}

func mergeLevel(nodes []BOMNode, lookup map[string]RequirementRecord) []*MaterialRequirementNode {
	merged := make([]*MaterialRequirementNode, 0, len(nodes))
	for _, n := range nodes {
		merged = append(merged, mergeNode(n, lookup))
	}
	return merged
}

func mergeNode(n BOMNode, lookup map[string]RequirementRecord) *MaterialRequirementNode {
	node := &MaterialRequirementNode{
		MaterialID:       n.MaterialID,
		MaterialName:     n.MaterialName,
		RequiredQuantity: n.DeclaredQuantity,
		Unit:             n.Unit,
		Kind:             n.Kind,
		IsInventoried:    true,
		Children:         mergeLevel(n.Children, lookup),
	}

	rec, ok := lookup[n.MaterialID]
	if !ok {
		return node
	}

	node.RequiredQuantity = rec.RequiredQuantity
	node.TrackingRecordID = rec.TrackingRecordID
	node.PriorLots = rec.PriorLots
	if rec.Unit != "" {
		node.Unit = ParseUnitOfMeasure(rec.Unit)
	}
	if kind := ParseMaterialKind(rec.Kind); kind != "" {
		node.Kind = kind
	}
	if rec.IsInventoried != nil {
		node.IsInventoried = *rec.IsInventoried
	}
	if node.MaterialName == "" {
		node.MaterialName = rec.MaterialName
	}
	return node
}

func fromFlat(flat []RequirementRecord) []*MaterialRequirementNode {
	nodes := make([]*MaterialRequirementNode, 0, len(flat))
	for _, rec := range flat {
		inventoried := true
		if rec.IsInventoried != nil {
			inventoried = *rec.IsInventoried
		}
		nodes = append(nodes, &MaterialRequirementNode{
			MaterialID:       rec.MaterialID,
			MaterialName:     rec.MaterialName,
			RequiredQuantity: rec.RequiredQuantity,
			Unit:             ParseUnitOfMeasure(rec.Unit),
			Kind:             ParseMaterialKind(rec.Kind),
			IsInventoried:    inventoried,
			TrackingRecordID: rec.TrackingRecordID,
			PriorLots:        rec.PriorLots,
			Children:         []*MaterialRequirementNode{},
		})
	}
	return nodes
}

// FindByTrackingRecord searches the whole tree depth-first for the node linked to a tracking record
func FindByTrackingRecord(tree []*MaterialRequirementNode, id int64) *MaterialRequirementNode {
	return find(tree, func(n *MaterialRequirementNode) bool {
		got, ok := n.TrackingRecordID.Get()
		return ok && got == id
	})
}

// FindByMaterial searches the whole tree depth-first for the first node of a material
// that is not scoped by a tracking record
func FindByMaterial(tree []*MaterialRequirementNode, materialID string) *MaterialRequirementNode {
	return find(tree, func(n *MaterialRequirementNode) bool {
		return n.MaterialID == materialID && !n.TrackingRecordID.IsSet()
	})
}

// FindExpandable returns the first expandable node of a material, whether or
// not a tracking record scopes it
func FindExpandable(tree []*MaterialRequirementNode, materialID string) *MaterialRequirementNode {
	return find(tree, func(n *MaterialRequirementNode) bool {
		return n.MaterialID == materialID && Classify(n) == ClassExpandable
	})
}

func find(nodes []*MaterialRequirementNode, match func(*MaterialRequirementNode) bool) *MaterialRequirementNode {
	for _, n := range nodes {
		if match(n) {
			return n
		}
		if found := find(n.Children, match); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits every node depth-first, parent before children
func Walk(tree []*MaterialRequirementNode, visit func(n *MaterialRequirementNode, depth int)) {
	walk(tree, 0, visit)
}

func walk(nodes []*MaterialRequirementNode, depth int, visit func(*MaterialRequirementNode, int)) {
	for _, n := range nodes {
		visit(n, depth)
		walk(n.Children, depth+1, visit)
	}
}
