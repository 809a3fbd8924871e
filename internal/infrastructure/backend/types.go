package backend

import (
	"encoding/json"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/shopspring/decimal"
)

// envelope is the ERP backend response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error,omitempty"`
	Meta    *pageMeta       `json:"meta,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

type bomNodeDTO struct {
	MaterialID      string          `json:"material_id"`
	MaterialName    string          `json:"material_name"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
	Unit            string          `json:"unit"`
	Kind            string          `json:"kind"`
	TypeCode        string          `json:"type_code"`
	ProductTypeCode string          `json:"product_type_code"`
	Children        []bomNodeDTO    `json:"children"`
}

func (d bomNodeDTO) toDomain() dispensing.RawBOMNode {
	children := make([]dispensing.RawBOMNode, 0, len(d.Children))
	for _, c := range d.Children {
		children = append(children, c.toDomain())
	}
	return dispensing.RawBOMNode{
		MaterialID:      d.MaterialID,
		MaterialName:    d.MaterialName,
		QuantityPerUnit: d.QuantityPerUnit,
		Unit:            d.Unit,
		Kind:            d.Kind,
		TypeCode:        d.TypeCode,
		ProductTypeCode: d.ProductTypeCode,
		Children:        children,
	}
}

type orderDTO struct {
	OrderID           string           `json:"order_id"`
	ProductMaterialID string           `json:"product_material_id"`
	Quantity          *decimal.Decimal `json:"quantity"`
}

type lotDTO struct {
	LotID             int64           `json:"lot_id"`
	MaterialID        string          `json:"material_id,omitempty"`
	BatchLabel        string          `json:"batch_label"`
	Quantity          decimal.Decimal `json:"quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ProductionDate    *time.Time      `json:"production_date,omitempty"`
	ExpirationDate    *time.Time      `json:"expiration_date,omitempty"`
	ReceivedDate      *time.Time      `json:"received_date,omitempty"`
}

func (d lotDTO) toSelected() dispensing.SelectedLot {
	return dispensing.SelectedLot{
		LotID:             dispensing.NewLotID(d.LotID),
		BatchLabel:        d.BatchLabel,
		Quantity:          d.Quantity,
		AvailableQuantity: d.AvailableQuantity,
		ProductionDate:    d.ProductionDate,
		ExpirationDate:    d.ExpirationDate,
	}
}

func (d lotDTO) toInventory() dispensing.InventoryLot {
	return dispensing.InventoryLot{
		LotID:             dispensing.NewLotID(d.LotID),
		MaterialID:        d.MaterialID,
		BatchLabel:        d.BatchLabel,
		AvailableQuantity: d.AvailableQuantity,
		ProductionDate:    d.ProductionDate,
		ExpirationDate:    d.ExpirationDate,
		ReceivedDate:      d.ReceivedDate,
	}
}

type requirementDTO struct {
	MaterialID       string          `json:"material_id"`
	MaterialName     string          `json:"material_name"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
	Unit             string          `json:"unit"`
	Kind             string          `json:"kind"`
	IsInventoried    *bool           `json:"is_inventoried"`
	TrackingRecordID int64           `json:"tracking_record_id"`
	PriorLots        []lotDTO        `json:"prior_lots"`
}

func (d requirementDTO) toDomain() dispensing.RequirementRecord {
	lots := make([]dispensing.SelectedLot, 0, len(d.PriorLots))
	for _, l := range d.PriorLots {
		lots = append(lots, l.toSelected())
	}
	return dispensing.RequirementRecord{
		MaterialID:       d.MaterialID,
		MaterialName:     d.MaterialName,
		RequiredQuantity: d.RequiredQuantity,
		Unit:             d.Unit,
		Kind:             d.Kind,
		IsInventoried:    d.IsInventoried,
		TrackingRecordID: dispensing.NewTrackingRecordID(d.TrackingRecordID),
		PriorLots:        lots,
	}
}

type casePackDTO struct {
	UnitsPerCase decimal.Decimal       `json:"units_per_case"`
	Materials    []casePackMaterialDTO `json:"materials"`
}

type casePackMaterialDTO struct {
	MaterialID       string           `json:"material_id"`
	MaterialName     string           `json:"material_name"`
	QuantityPerCase  *decimal.Decimal `json:"quantity_per_case"`
	RequiredQuantity decimal.Decimal  `json:"required_quantity"`
	Unit             string           `json:"unit"`
	IsInventoried    *bool            `json:"is_inventoried"`
}

func (d casePackDTO) toDomain() *dispensing.CasePackSpec {
	materials := make([]dispensing.CasePackMaterial, 0, len(d.Materials))
	for _, m := range d.Materials {
		materials = append(materials, dispensing.CasePackMaterial{
			MaterialID:               m.MaterialID,
			MaterialName:             m.MaterialName,
			QuantityPerCase:          m.QuantityPerCase,
			DeclaredRequiredQuantity: m.RequiredQuantity,
			Unit:                     m.Unit,
			IsInventoried:            m.IsInventoried,
		})
	}
	return &dispensing.CasePackSpec{UnitsPerCase: d.UnitsPerCase, Materials: materials}
}

type transactionDTO struct {
	ID    int64     `json:"id"`
	Date  time.Time `json:"date"`
	Cause string    `json:"cause"`
}

type movementLineDTO struct {
	MaterialID     string          `json:"material_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	BatchLabel     string          `json:"batch_label"`
	ProductionDate *time.Time      `json:"production_date,omitempty"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
}

type accessLevelDTO struct {
	Level *int `json:"level"`
}

type operatorDTO struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

type submitItemDTO struct {
	TrackingRecordID     int64           `json:"tracking_record_id"`
	MaterialID           string          `json:"material_id,omitempty"`
	Quantity             decimal.Decimal `json:"quantity"`
	LotID                int64           `json:"lot_id"`
	CompleteTrackingFlag bool            `json:"complete_tracking_flag"`
}

type submitRequestDTO struct {
	OrderID                string          `json:"order_id"`
	ResponsibleOperatorIDs []string        `json:"responsible_operator_ids"`
	ApproverID             string          `json:"approver_id,omitempty"`
	Observations           string          `json:"observations"`
	Items                  []submitItemDTO `json:"items"`
}

func newSubmitRequest(d dispensing.Dispensation) submitRequestDTO {
	items := make([]submitItemDTO, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, submitItemDTO{
			TrackingRecordID:     it.TrackingRecordID.Wire(),
			MaterialID:           it.MaterialID,
			Quantity:             it.Quantity,
			LotID:                it.LotID.Wire(),
			CompleteTrackingFlag: it.CompleteTrackingFlag,
		})
	}
	return submitRequestDTO{
		OrderID:                d.OrderID,
		ResponsibleOperatorIDs: d.ResponsibleOperatorIDs,
		ApproverID:             d.ApproverID,
		Observations:           d.Observations,
		Items:                  items,
	}
}

type submitResponseDTO struct {
	TransactionID int64  `json:"transaction_id"`
	Message       string `json:"message"`
}
