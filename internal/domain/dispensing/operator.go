package dispensing

// Operator is the authenticated warehouse operator
type Operator struct {
	ID          string
	Username    string
	DisplayName string
	Roles       []string
}

// TransactionPage is one page of historical transactions
type TransactionPage struct {
	Items      []HistoricalTransaction
	Page       int
	TotalPages int
}

// HasNext reports whether more pages follow
func (p TransactionPage) HasNext() bool {
	return p.Page < p.TotalPages
}

// SubmissionReceipt is the backend acknowledgement of a dispensation
type SubmissionReceipt struct {
	TransactionID int64
	Message       string
}
