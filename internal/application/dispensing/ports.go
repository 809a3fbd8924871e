package dispensing

import (
	"context"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/infrastructure/export"
	"github.com/erp/dispensing/internal/infrastructure/printing"
)

// Backend is the ERP REST backend the dispensing session works against
type Backend interface {
	GetProductionOrder(ctx context.Context, orderID string) (*dispensing.ProductionOrder, error)
	GetBOMTree(ctx context.Context, materialID string) ([]dispensing.RawBOMNode, error)
	GetRequirements(ctx context.Context, orderID string) ([]dispensing.RequirementRecord, error)
	// GetCasePack returns nil, nil when the material has no case pack
	GetCasePack(ctx context.Context, materialID string) (*dispensing.CasePackSpec, error)
	ListHistoricalTransactions(ctx context.Context, orderID, cause string, page, pageSize int) (dispensing.TransactionPage, error)
	GetMovementLines(ctx context.Context, transactionID int64) ([]dispensing.HistoricalDispensationLine, error)
	// GetModuleAccessLevel returns nil when the operator has no access to the module
	GetModuleAccessLevel(ctx context.Context, module string) (*int, error)
	GetCurrentOperator(ctx context.Context) (*dispensing.Operator, error)
	ListAvailableLots(ctx context.Context, materialID string) ([]dispensing.InventoryLot, error)
	SubmitDispensation(ctx context.Context, d dispensing.Dispensation) (*dispensing.SubmissionReceipt, error)
}

// PrivilegeCache keeps resolved privilege snapshots between order loads.
// Get returns nil, nil on a miss.
type PrivilegeCache interface {
	Get(ctx context.Context, key string) (*dispensing.PrivilegeSnapshot, error)
	Set(ctx context.Context, key string, snap *dispensing.PrivilegeSnapshot, ttl time.Duration) error
}

// IdempotencyStore guards a submission against being posted twice
type IdempotencyStore interface {
	// Claim returns false when the key is already held
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// LotPickers resolves a lot picking strategy by name; an empty name selects the default
type LotPickers interface {
	Get(name string) (dispensing.LotPicker, error)
}

// DocumentStore persists generated documents and hands out download links
type DocumentStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	DownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}

// DocumentRenderer turns HTML into PDF
type DocumentRenderer interface {
	Render(ctx context.Context, req *printing.RenderRequest) (*printing.RenderResult, error)
}

// TemplateRenderer renders a registered HTML template
type TemplateRenderer interface {
	Render(name string, data any) (string, error)
}

// SpreadsheetWriter encodes sheets into a workbook
type SpreadsheetWriter interface {
	ContentType() string
	Write(sheets ...export.Sheet) ([]byte, error)
}
