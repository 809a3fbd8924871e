package dispensing

import "github.com/shopspring/decimal"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func boolPtr(b bool) *bool {
	return &b
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func lot(id int64, qty string) SelectedLot {
	return SelectedLot{LotID: NewLotID(id), BatchLabel: "B" + NewLotID(id).String(), Quantity: dec(qty)}
}

// sampleBOM is a two-level recipe: a syrup (semi-finished) made of sugar and water,
// plus citric acid and a non-inventoried utility line.
func sampleBOM() []RawBOMNode {
	return []RawBOMNode{
		{
			MaterialID:      "SYRUP",
			MaterialName:    "Base syrup",
			QuantityPerUnit: dec("2"),
			TypeCode:        "SEMI_FINISHED",
			Children: []RawBOMNode{
				{MaterialID: "SUGAR", MaterialName: "Sugar", QuantityPerUnit: dec("1.5"), Kind: "BASE_MATERIAL"},
				{MaterialID: "WATER", MaterialName: "Water", QuantityPerUnit: dec("0.5"), Unit: "L", ProductTypeCode: "BASE_MATERIAL"},
			},
		},
		{MaterialID: "CITRIC", MaterialName: "Citric acid", QuantityPerUnit: dec("0.1"), Kind: "BASE_MATERIAL"},
		{MaterialID: "STEAM", MaterialName: "Steam", QuantityPerUnit: dec("3"), Kind: "BASE_MATERIAL"},
	}
}

func sampleRequirements() []RequirementRecord {
	return []RequirementRecord{
		{MaterialID: "SYRUP", RequiredQuantity: dec("200"), Kind: "SEMI_FINISHED"},
		{MaterialID: "SUGAR", RequiredQuantity: dec("150"), TrackingRecordID: NewTrackingRecordID(42)},
		{MaterialID: "WATER", RequiredQuantity: dec("50"), Unit: "L", TrackingRecordID: NewTrackingRecordID(43)},
		{MaterialID: "CITRIC", RequiredQuantity: dec("10")},
		{MaterialID: "STEAM", RequiredQuantity: dec("300"), IsInventoried: boolPtr(false)},
	}
}

func sampleTree() []*MaterialRequirementNode {
	return Merge(NormalizeBOM(sampleBOM()), sampleRequirements())
}
