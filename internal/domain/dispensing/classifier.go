package dispensing

// Classification is the allocation class of a requirement node
type Classification int

const (
	// ClassExpandable is a semi-finished node with children; only its leaves are allocated
	ClassExpandable Classification = iota + 1
	// ClassAllocatable is an inventoried base-material leaf that takes lots
	ClassAllocatable
	// ClassNonInventoried is a leaf excluded from allocation and audit
	ClassNonInventoried
	// ClassDegenerate covers shapes the backend should not produce
	// (a non-semi-finished node with children or a semi-finished leaf)
	ClassDegenerate
)

func (c Classification) String() string {
	switch c {
	case ClassExpandable:
		return "expandable"
	case ClassAllocatable:
		return "allocatable"
	case ClassNonInventoried:
		return "non_inventoried"
	default:
		return "degenerate"
	}
}

// Classify returns exactly one classification for a node
func Classify(n *MaterialRequirementNode) Classification {
	semi := n.Kind.IsSemiFinished()
	switch {
	case semi && !n.IsLeaf():
		return ClassExpandable
	case !semi && n.IsLeaf() && n.IsInventoried:
		return ClassAllocatable
	case !semi && n.IsLeaf():
		return ClassNonInventoried
	default:
		return ClassDegenerate
	}
}

// FlattenAllocatable collects every allocatable leaf of the tree, depth-first,
// parent before children, siblings in source order.
func FlattenAllocatable(tree []*MaterialRequirementNode) []*MaterialRequirementNode {
	out := make([]*MaterialRequirementNode, 0)
	Walk(tree, func(n *MaterialRequirementNode, _ int) {
		if Classify(n) == ClassAllocatable {
			out = append(out, n)
		}
	})
	return out
}

// ExpansionState records which expandable nodes are open in the tree view.
// It has no effect on allocation or audit.
type ExpansionState map[string]bool

// Toggle flips the state of a material and returns the new value
func (e ExpansionState) Toggle(materialID string) bool {
	open := !e[materialID]
	if open {
		e[materialID] = true
	} else {
		delete(e, materialID)
	}
	return open
}

// IsExpanded reports whether materialID is open
func (e ExpansionState) IsExpanded(materialID string) bool {
	return e[materialID]
}
