package dispensing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DispensationItem is one submitted line: one per selected lot.
// MaterialID is only carried when no tracking record is referenced.
type DispensationItem struct {
	TrackingRecordID     TrackingRecordID
	MaterialID           string
	Quantity             decimal.Decimal
	LotID                LotID
	BatchLabel           string
	CompleteTrackingFlag bool
}

// BuildLineItems turns the lot store into submission line items, in store key order.
// Keys that resolve to no requirement or to a non-inventoried requirement are skipped.
func BuildLineItems(store *LotAllocationStore, tree []*MaterialRequirementNode, packaging []PackagingRequirement) []DispensationItem {
	items := make([]DispensationItem, 0)
	for _, key := range store.Keys() {
		tracking, materialID, ok := resolveLineReference(key, tree, packaging)
		if !ok {
			continue
		}
		for _, lot := range store.Lots(key) {
			items = append(items, DispensationItem{
				TrackingRecordID: tracking,
				MaterialID:       materialID,
				Quantity:         lot.Quantity,
				LotID:            lot.LotID,
				BatchLabel:       lot.BatchLabel,
			})
		}
	}
	return items
}

func resolveLineReference(key AllocationKey, tree []*MaterialRequirementNode, packaging []PackagingRequirement) (TrackingRecordID, string, bool) {
	if trackingID, ok := key.TrackingRecord(); ok {
		node := FindByTrackingRecord(tree, trackingID)
		if node == nil || !node.IsInventoried {
			return NoTrackingRecord(), "", false
		}
		return NewTrackingRecordID(trackingID), "", true
	}

	materialID, ok := key.MaterialID()
	if !ok {
		return NoTrackingRecord(), "", false
	}
	if key.IsPackaging() {
		p, found := FindPackaging(packaging, materialID)
		if !found || !p.IsInventoried {
			return NoTrackingRecord(), "", false
		}
		return NoTrackingRecord(), materialID, true
	}
	node := FindByMaterial(tree, materialID)
	if node == nil || !node.IsInventoried {
		return NoTrackingRecord(), "", false
	}
	return NoTrackingRecord(), materialID, true
}

// ConfirmationToken is a short code the operator re-types before submitting
type ConfirmationToken string

// NewConfirmationToken generates a fresh 4-digit code
func NewConfirmationToken() (ConfirmationToken, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate confirmation token: %w", err)
	}
	return ConfirmationToken(fmt.Sprintf("%04d", n.Int64()+1000)), nil
}

// Matches compares operator input against the token
func (t ConfirmationToken) Matches(input string) bool {
	return t != "" && string(t) == strings.TrimSpace(input)
}

// SubmissionDraft is what the operator fills in on the review step
type SubmissionDraft struct {
	ResponsibleOperatorIDs []string
	ApproverID             string
	Observations           string
	ConfirmationInput      string
}

// Validate checks the submission preconditions against the issued token and the current gate
func (d SubmissionDraft) Validate(token ConfirmationToken, gate GateDecision) error {
	if gate.Blocked {
		return ErrExcessBlocked
	}
	if len(nonEmpty(d.ResponsibleOperatorIDs)) == 0 {
		return ErrNoResponsibleOperator
	}
	if !token.Matches(d.ConfirmationInput) {
		return ErrConfirmationMismatch
	}
	return nil
}

// Dispensation is the payload registered with the backend
type Dispensation struct {
	OrderID                string
	ResponsibleOperatorIDs []string
	ApproverID             string
	Observations           string
	Items                  []DispensationItem
}

// NewDispensation assembles the payload from a validated draft
func NewDispensation(orderID string, d SubmissionDraft, items []DispensationItem) Dispensation {
	return Dispensation{
		OrderID:                orderID,
		ResponsibleOperatorIDs: nonEmpty(d.ResponsibleOperatorIDs),
		ApproverID:             d.ApproverID,
		Observations:           strings.TrimSpace(d.Observations),
		Items:                  items,
	}
}

// TotalQuantity sums the item quantities
func (d Dispensation) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.Quantity)
	}
	return total
}

func nonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
