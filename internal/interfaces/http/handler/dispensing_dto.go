package handler

import (
	"time"

	dispensingapp "github.com/erp/dispensing/internal/application/dispensing"
	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/shopspring/decimal"
)

// LotSelectionRequest is one lot chosen in the lot dialog
type LotSelectionRequest struct {
	LotID             int64           `json:"lot_id" binding:"gte=0"`
	BatchLabel        string          `json:"batch_label" binding:"max=64"`
	Quantity          decimal.Decimal `json:"quantity" binding:"gte=0"`
	AvailableQuantity decimal.Decimal `json:"available_quantity" binding:"gte=0"`
	ProductionDate    *time.Time      `json:"production_date"`
	ExpirationDate    *time.Time      `json:"expiration_date"`
}

// SetLotsRequest replaces the lot list of one allocation key.
// An empty list clears the key.
type SetLotsRequest struct {
	Lots []LotSelectionRequest `json:"lots" binding:"max=200,dive"`
}

// SubmitRequest carries the review form
type SubmitRequest struct {
	ResponsibleOperatorIDs []string `json:"responsible_operator_ids" binding:"max=20,dive,max=32"`
	ApproverID             string   `json:"approver_id" binding:"max=32"`
	Observations           string   `json:"observations" binding:"max=1000"`
	ConfirmationCode       string   `json:"confirmation_code" binding:"max=16"`
}

// DocumentRequest selects the export format
type DocumentRequest struct {
	Format string `json:"format" binding:"omitempty,oneof=pdf xlsx PDF XLSX"`
}

// SuggestionQuery selects the lot picking strategy
type SuggestionQuery struct {
	Strategy string `form:"strategy" binding:"omitempty,max=32"`
}

// ToSelectedLots converts the request into domain lot selections
func (r SetLotsRequest) ToSelectedLots() []dispensing.SelectedLot {
	lots := make([]dispensing.SelectedLot, 0, len(r.Lots))
	for _, l := range r.Lots {
		lots = append(lots, dispensing.SelectedLot{
			LotID:             dispensing.NewLotID(l.LotID),
			BatchLabel:        l.BatchLabel,
			Quantity:          l.Quantity,
			AvailableQuantity: l.AvailableQuantity,
			ProductionDate:    l.ProductionDate,
			ExpirationDate:    l.ExpirationDate,
		})
	}
	return lots
}

// ToDraft converts the request into a submission draft
func (r SubmitRequest) ToDraft() dispensing.SubmissionDraft {
	return dispensing.SubmissionDraft{
		ResponsibleOperatorIDs: r.ResponsibleOperatorIDs,
		ApproverID:             r.ApproverID,
		Observations:           r.Observations,
		ConfirmationInput:      r.ConfirmationCode,
	}
}

// OrderResponse is the selected production order
type OrderResponse struct {
	OrderID           string           `json:"order_id"`
	ProductMaterialID string           `json:"product_material_id"`
	Quantity          *decimal.Decimal `json:"quantity"`
}

// RequirementNodeResponse is one node of the requirement tree
type RequirementNodeResponse struct {
	MaterialID       string                     `json:"material_id"`
	MaterialName     string                     `json:"material_name"`
	RequiredQuantity decimal.Decimal            `json:"required_quantity"`
	Unit             string                     `json:"unit"`
	Kind             string                     `json:"kind"`
	Classification   string                     `json:"classification"`
	IsInventoried    bool                       `json:"is_inventoried"`
	TrackingRecordID *int64                     `json:"tracking_record_id,omitempty"`
	AllocationKey    string                     `json:"allocation_key"`
	Historical       decimal.Decimal            `json:"historical"`
	Expanded         bool                       `json:"expanded"`
	PriorLots        []LotResponse              `json:"prior_lots,omitempty"`
	Children         []*RequirementNodeResponse `json:"children"`
}

// PackagingResponse is one computed packaging requirement
type PackagingResponse struct {
	MaterialID          string          `json:"material_id"`
	MaterialName        string          `json:"material_name"`
	BaseQuantityPerCase decimal.Decimal `json:"base_quantity_per_case"`
	RequiredQuantity    decimal.Decimal `json:"required_quantity"`
	Unit                string          `json:"unit"`
	IsInventoried       bool            `json:"is_inventoried"`
	AllocationKey       string          `json:"allocation_key"`
}

// LotResponse is a selected lot
type LotResponse struct {
	LotID             int64           `json:"lot_id"`
	BatchLabel        string          `json:"batch_label"`
	Quantity          decimal.Decimal `json:"quantity" binding:"gte=0"`
	AvailableQuantity decimal.Decimal `json:"available_quantity" binding:"gte=0"`
	ProductionDate    *time.Time      `json:"production_date,omitempty"`
	ExpirationDate    *time.Time      `json:"expiration_date,omitempty"`
}

// AllocationResponse is the lot list of one key
type AllocationResponse struct {
	Key   string          `json:"key"`
	Lots  []LotResponse   `json:"lots"`
	Total decimal.Decimal `json:"total"`
}

// ExcessResponse is one over-allocated requirement
type ExcessResponse struct {
	Key          string          `json:"key"`
	MaterialID   string          `json:"material_id"`
	MaterialName string          `json:"material_name"`
	Unit         string          `json:"unit"`
	Required     decimal.Decimal `json:"required"`
	Historical   decimal.Decimal `json:"historical"`
	Selected     decimal.Decimal `json:"selected"`
	Total        decimal.Decimal `json:"total"`
	Difference   decimal.Decimal `json:"difference"`
}

// GateResponse is the authorization gate outcome
type GateResponse struct {
	Blocked bool   `json:"blocked"`
	Warned  bool   `json:"warned"`
	Banner  string `json:"banner,omitempty"`
}

// ReviewItemResponse is one line that would be posted
type ReviewItemResponse struct {
	TrackingRecordID *int64          `json:"tracking_record_id,omitempty"`
	MaterialID       string          `json:"material_id,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	LotID            int64           `json:"lot_id"`
	BatchLabel       string          `json:"batch_label"`
}

// ReviewResponse is the open review step
type ReviewResponse struct {
	ReviewID         string               `json:"review_id"`
	ConfirmationCode string               `json:"confirmation_code"`
	Items            []ReviewItemResponse `json:"items"`
	Gate             GateResponse         `json:"gate"`
}

// SessionResponse is the full dispensing screen state
type SessionResponse struct {
	OperatorID  string                     `json:"operator_id"`
	Generation  uint64                     `json:"generation"`
	Order       *OrderResponse             `json:"order"`
	Tree        []*RequirementNodeResponse `json:"tree"`
	Packaging   []PackagingResponse        `json:"packaging"`
	Historical  map[string]decimal.Decimal `json:"historical"`
	Allocations []AllocationResponse       `json:"allocations"`
	Excess      []ExcessResponse           `json:"excess"`
	Gate        GateResponse               `json:"gate"`
	Privileged  bool                       `json:"privileged"`
	Degraded    []string                   `json:"degraded,omitempty"`
	Review      *ReviewResponse            `json:"review,omitempty"`
}

// AvailableLotResponse is an inventory lot offered for selection
type AvailableLotResponse struct {
	LotID             int64           `json:"lot_id"`
	MaterialID        string          `json:"material_id"`
	BatchLabel        string          `json:"batch_label"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ProductionDate    *time.Time      `json:"production_date,omitempty"`
	ExpirationDate    *time.Time      `json:"expiration_date,omitempty"`
	ReceivedDate      *time.Time      `json:"received_date,omitempty"`
	Expired           bool            `json:"expired"`
}

// SuggestionResponse is a proposed lot set
type SuggestionResponse struct {
	Strategy  string          `json:"strategy"`
	Lots      []LotResponse   `json:"lots"`
	Total     decimal.Decimal `json:"total"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// ReceiptResponse is the backend acknowledgement of a submission
type ReceiptResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Message       string `json:"message"`
}

// DocumentResponse points at a generated document
type DocumentResponse struct {
	Key         string    `json:"key"`
	Format      string    `json:"format"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ToggleResponse reports the new expansion state of a node
type ToggleResponse struct {
	MaterialID string `json:"material_id"`
	Expanded   bool   `json:"expanded"`
}

// ToSessionResponse converts a session view
func ToSessionResponse(v *dispensingapp.SessionView) SessionResponse {
	resp := SessionResponse{
		OperatorID:  v.OperatorID,
		Generation:  v.Generation,
		Tree:        make([]*RequirementNodeResponse, 0, len(v.Tree)),
		Packaging:   make([]PackagingResponse, 0, len(v.Packaging)),
		Historical:  make(map[string]decimal.Decimal, len(v.Historical)),
		Allocations: make([]AllocationResponse, 0, len(v.Allocations)),
		Excess:      make([]ExcessResponse, 0, len(v.Excess)),
		Gate:        toGateResponse(v.Gate),
		Privileged:  v.Privileged,
		Degraded:    v.Degraded,
	}
	if v.Order != nil {
		resp.Order = &OrderResponse{
			OrderID:           v.Order.OrderID,
			ProductMaterialID: v.Order.ProductMaterialID,
			Quantity:          v.Order.Quantity,
		}
	}

	expanded := make(map[string]bool, len(v.Expanded))
	for _, id := range v.Expanded {
		expanded[id] = true
	}
	for _, n := range v.Tree {
		resp.Tree = append(resp.Tree, toNodeResponse(n, v.Historical, expanded))
	}
	for _, p := range v.Packaging {
		resp.Packaging = append(resp.Packaging, PackagingResponse{
			MaterialID:          p.MaterialID,
			MaterialName:        p.MaterialName,
			BaseQuantityPerCase: p.BaseQuantityPerCase,
			RequiredQuantity:    p.RequiredQuantity,
			Unit:                string(p.Unit),
			IsInventoried:       p.IsInventoried,
			AllocationKey:       string(p.AllocationKey()),
		})
	}
	for id, q := range v.Historical {
		resp.Historical[id] = q
	}
	for _, a := range v.Allocations {
		resp.Allocations = append(resp.Allocations, AllocationResponse{
			Key:   string(a.Key),
			Lots:  toLotResponses(a.Lots),
			Total: a.Total,
		})
	}
	for _, e := range v.Excess {
		resp.Excess = append(resp.Excess, ExcessResponse{
			Key:          string(e.Key),
			MaterialID:   e.MaterialID,
			MaterialName: e.MaterialName,
			Unit:         string(e.Unit),
			Required:     e.Required,
			Historical:   e.Historical,
			Selected:     e.Selected,
			Total:        e.Total,
			Difference:   e.Difference,
		})
	}
	if v.Review != nil {
		review := ToReviewResponse(v.Review)
		resp.Review = &review
	}
	return resp
}

func toNodeResponse(n *dispensing.MaterialRequirementNode, historical dispensing.HistoricalTotals, expanded map[string]bool) *RequirementNodeResponse {
	r := &RequirementNodeResponse{
		MaterialID:       n.MaterialID,
		MaterialName:     n.MaterialName,
		RequiredQuantity: n.RequiredQuantity,
		Unit:             string(n.Unit),
		Kind:             n.Kind.String(),
		Classification:   n.Classification().String(),
		IsInventoried:    n.IsInventoried,
		AllocationKey:    string(n.AllocationKey()),
		Historical:       historical.For(n.MaterialID),
		Expanded:         expanded[n.MaterialID],
		Children:         make([]*RequirementNodeResponse, 0, len(n.Children)),
	}
	if id, ok := n.TrackingRecordID.Get(); ok {
		r.TrackingRecordID = &id
	}
	if len(n.PriorLots) > 0 {
		r.PriorLots = toLotResponses(n.PriorLots)
	}
	for _, c := range n.Children {
		r.Children = append(r.Children, toNodeResponse(c, historical, expanded))
	}
	return r
}

func toLotResponses(lots []dispensing.SelectedLot) []LotResponse {
	out := make([]LotResponse, 0, len(lots))
	for _, l := range lots {
		out = append(out, LotResponse{
			LotID:             l.LotID.Wire(),
			BatchLabel:        l.BatchLabel,
			Quantity:          l.Quantity,
			AvailableQuantity: l.AvailableQuantity,
			ProductionDate:    l.ProductionDate,
			ExpirationDate:    l.ExpirationDate,
		})
	}
	return out
}

func toGateResponse(g dispensing.GateDecision) GateResponse {
	return GateResponse{Blocked: g.Blocked, Warned: g.Warned, Banner: string(g.Banner)}
}

// ToReviewResponse converts a review view
func ToReviewResponse(r *dispensingapp.ReviewView) ReviewResponse {
	items := make([]ReviewItemResponse, 0, len(r.Items))
	for _, it := range r.Items {
		item := ReviewItemResponse{
			MaterialID: it.MaterialID,
			Quantity:   it.Quantity,
			LotID:      it.LotID.Wire(),
			BatchLabel: it.BatchLabel,
		}
		if id, ok := it.TrackingRecordID.Get(); ok {
			item.TrackingRecordID = &id
		}
		items = append(items, item)
	}
	return ReviewResponse{
		ReviewID:         r.ReviewID,
		ConfirmationCode: string(r.Token),
		Items:            items,
		Gate:             toGateResponse(r.Gate),
	}
}

// ToAvailableLotResponses converts the lots offered for a material
func ToAvailableLotResponses(lots []dispensingapp.AvailableLot) []AvailableLotResponse {
	out := make([]AvailableLotResponse, 0, len(lots))
	for _, l := range lots {
		out = append(out, AvailableLotResponse{
			LotID:             l.LotID.Wire(),
			MaterialID:        l.MaterialID,
			BatchLabel:        l.BatchLabel,
			AvailableQuantity: l.AvailableQuantity,
			ProductionDate:    l.ProductionDate,
			ExpirationDate:    l.ExpirationDate,
			ReceivedDate:      l.ReceivedDate,
			Expired:           l.Expired,
		})
	}
	return out
}

// ToSuggestionResponse converts a lot suggestion
func ToSuggestionResponse(s *dispensing.LotSuggestion) SuggestionResponse {
	return SuggestionResponse{
		Strategy:  s.Strategy,
		Lots:      toLotResponses(s.Lots),
		Total:     s.Total,
		Shortfall: s.Shortfall,
	}
}

// ToDocumentResponse converts a generated document
func ToDocumentResponse(d *dispensingapp.GeneratedDocument) DocumentResponse {
	return DocumentResponse{
		Key:         d.Key,
		Format:      string(d.Format),
		ContentType: d.ContentType,
		Size:        d.Size,
		URL:         d.URL,
		ExpiresAt:   d.ExpiresAt,
	}
}
