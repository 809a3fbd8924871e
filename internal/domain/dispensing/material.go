package dispensing

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaterialKind is the classification tag of a BOM node
type MaterialKind string

const (
	KindBaseMaterial MaterialKind = "BASE_MATERIAL"
	KindSemiFinished MaterialKind = "SEMI_FINISHED"
)

// materialKindAliases maps backend type codes onto canonical kinds
var materialKindAliases = map[string]MaterialKind{
	"BASE_MATERIAL":  KindBaseMaterial,
	"MATERIA_PRIMA":  KindBaseMaterial,
	"MP":             KindBaseMaterial,
	"RAW_MATERIAL":   KindBaseMaterial,
	"SEMI_FINISHED":  KindSemiFinished,
	"SEMITERMINADO":  KindSemiFinished,
	"SEMIELABORADO":  KindSemiFinished,
	"SEMI_TERMINADO": KindSemiFinished,
	"PT_SEMI":        KindSemiFinished,
}

// ParseMaterialKind resolves a backend type code into a MaterialKind.
// Unknown codes are kept verbatim (upper-cased) so they classify as "other".
func ParseMaterialKind(code string) MaterialKind {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return ""
	}
	if kind, ok := materialKindAliases[normalized]; ok {
		return kind
	}
	return MaterialKind(normalized)
}

// IsSemiFinished returns true for semi-finished goods
func (k MaterialKind) IsSemiFinished() bool {
	return k == KindSemiFinished
}

// String returns the string representation of the kind
func (k MaterialKind) String() string {
	return string(k)
}

// UnitOfMeasure is the unit code of a requirement quantity
type UnitOfMeasure string

const (
	UnitMass   UnitOfMeasure = "KG"
	UnitVolume UnitOfMeasure = "L"
	UnitCount  UnitOfMeasure = "UN"
)

// DefaultUnit is applied when the backend omits the unit of measure
const DefaultUnit = UnitMass

// ParseUnitOfMeasure normalizes a unit code, defaulting to mass units when empty
func ParseUnitOfMeasure(code string) UnitOfMeasure {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return DefaultUnit
	}
	return UnitOfMeasure(normalized)
}

// TrackingRecordID is an optional reference to a backend tracking record
type TrackingRecordID struct {
	value int64
	valid bool
}

// NewTrackingRecordID wraps a wire value; zero and negative values mean absent
func NewTrackingRecordID(id int64) TrackingRecordID {
	if id <= 0 {
		return TrackingRecordID{}
	}
	return TrackingRecordID{value: id, valid: true}
}

// NoTrackingRecord returns an absent tracking record reference
func NoTrackingRecord() TrackingRecordID {
	return TrackingRecordID{}
}

// Get returns the id and whether it is present
func (t TrackingRecordID) Get() (int64, bool) {
	return t.value, t.valid
}

// IsSet returns true when a tracking record is referenced
func (t TrackingRecordID) IsSet() bool {
	return t.valid
}

// Wire returns the backend representation, 0 when absent
func (t TrackingRecordID) Wire() int64 {
	if !t.valid {
		return 0
	}
	return t.value
}

func (t TrackingRecordID) String() string {
	if !t.valid {
		return "none"
	}
	return strconv.FormatInt(t.value, 10)
}

// LotID is an optional reference to an inventory lot
type LotID struct {
	value int64
	valid bool
}

// NewLotID wraps a wire value; 0 is the historical/no-lot sentinel and maps to absent
func NewLotID(id int64) LotID {
	if id <= 0 {
		return LotID{}
	}
	return LotID{value: id, valid: true}
}

// Get returns the id and whether it is present
func (l LotID) Get() (int64, bool) {
	return l.value, l.valid
}

// IsSet returns true when the lot is a real selectable lot
func (l LotID) IsSet() bool {
	return l.valid
}

// Wire returns the backend representation, 0 when absent
func (l LotID) Wire() int64 {
	if !l.valid {
		return 0
	}
	return l.value
}

func (l LotID) String() string {
	if !l.valid {
		return "none"
	}
	return strconv.FormatInt(l.value, 10)
}

// MaterialRequirementNode is a node of the merged requirement tree
type MaterialRequirementNode struct {
	MaterialID       string
	MaterialName     string
	RequiredQuantity decimal.Decimal
	Unit             UnitOfMeasure
	Kind             MaterialKind
	IsInventoried    bool
	TrackingRecordID TrackingRecordID
	// PriorLots are lot selections the backend already recorded for this line (informational)
	PriorLots []SelectedLot
	Children  []*MaterialRequirementNode
}

// IsLeaf returns true when the node has no children
func (n *MaterialRequirementNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// AllocationKey returns the lot store key for this node
func (n *MaterialRequirementNode) AllocationKey() AllocationKey {
	if id, ok := n.TrackingRecordID.Get(); ok {
		return TrackingKey(id)
	}
	return MaterialKey(n.MaterialID)
}

// Classification returns the allocation class of the node
func (n *MaterialRequirementNode) Classification() Classification {
	return Classify(n)
}

// SelectedLot is an operator-selected inventory lot with the quantity to dispense
type SelectedLot struct {
	LotID             LotID
	BatchLabel        string
	Quantity          decimal.Decimal
	AvailableQuantity decimal.Decimal
	ProductionDate    *time.Time
	ExpirationDate    *time.Time
}

// InventoryLot is a lot available in stock for a material
type InventoryLot struct {
	LotID             LotID
	MaterialID        string
	BatchLabel        string
	AvailableQuantity decimal.Decimal
	ProductionDate    *time.Time
	ExpirationDate    *time.Time
	ReceivedDate      *time.Time
}

// IsExpired checks if the lot is expired at the given time
func (l InventoryLot) IsExpired(at time.Time) bool {
	if l.ExpirationDate == nil {
		return false
	}
	return at.After(*l.ExpirationDate)
}

// ProductionOrder identifies the order being dispensed
type ProductionOrder struct {
	OrderID string
	// ProductMaterialID is the finished or semi-finished good produced by the order
	ProductMaterialID string
	// Quantity is the order quantity; nil when the backend did not report it
	Quantity *decimal.Decimal
}
