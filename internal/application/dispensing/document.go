package dispensing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/domain/shared"
	"github.com/erp/dispensing/internal/infrastructure/export"
	"github.com/erp/dispensing/internal/infrastructure/printing"
	"github.com/erp/dispensing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DocumentFormat is the output format of a dispensation document
type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatXLSX DocumentFormat = "xlsx"
)

const defaultDownloadTTL = 15 * time.Minute

// ParseDocumentFormat parses a format name, defaulting to PDF
func ParseDocumentFormat(s string) (DocumentFormat, error) {
	switch DocumentFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unsupported document format %q", s))
	}
}

// DispensationDocument is the printable model of the current allocation
type DispensationDocument struct {
	OrderID           string
	ProductMaterialID string
	OrderQuantity     *decimal.Decimal
	OperatorName      string
	GeneratedAt       time.Time
	Banner            string
	Lines             []DocumentLine
	Excess            []dispensing.Excess
}

// DocumentLine is one selected lot, in submission order
type DocumentLine struct {
	MaterialID     string
	MaterialName   string
	Unit           string
	Required       decimal.Decimal
	Historical     decimal.Decimal
	LotID          string
	BatchLabel     string
	ExpirationDate *time.Time
	Quantity       decimal.Decimal
}

// TotalQuantity sums the line quantities
func (d *DispensationDocument) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Quantity)
	}
	return total
}

// GeneratedDocument describes a stored document
type GeneratedDocument struct {
	Key         string
	Format      DocumentFormat
	ContentType string
	Size        int
	URL         string
	ExpiresAt   time.Time
}

// Document builds the printable model of the session's current allocation
func (s *Session) Document() (*DispensationDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.requireOrderLocked()
	if err != nil {
		return nil, err
	}

	excess, gate := s.auditLocked()
	order := st.order
	operator := s.operator.DisplayName
	if operator == "" {
		operator = s.operator.Username
	}
	doc := &DispensationDocument{
		OrderID:           order.OrderID,
		ProductMaterialID: order.ProductMaterialID,
		OrderQuantity:     order.Quantity,
		OperatorName:      operator,
		GeneratedAt:       s.now(),
		Banner:            string(gate.Banner),
		Lines:             make([]DocumentLine, 0),
		Excess:            excess,
	}

	for _, key := range st.store.Keys() {
		req, err := st.resolve(key)
		if err != nil {
			continue
		}
		unit := st.unitFor(key)
		for _, l := range st.store.Lots(key) {
			doc.Lines = append(doc.Lines, DocumentLine{
				MaterialID:     req.materialID,
				MaterialName:   req.name,
				Unit:           string(unit),
				Required:       req.required,
				Historical:     st.historical.For(req.materialID),
				LotID:          l.LotID.String(),
				BatchLabel:     l.BatchLabel,
				ExpirationDate: l.ExpirationDate,
				Quantity:       l.Quantity,
			})
		}
	}
	return doc, nil
}

func (st *orderState) unitFor(key dispensing.AllocationKey) dispensing.UnitOfMeasure {
	if materialID, ok := key.MaterialID(); ok && key.IsPackaging() {
		if p, found := dispensing.FindPackaging(st.packaging, materialID); found {
			return p.Unit
		}
		return dispensing.DefaultUnit
	}
	var n *dispensing.MaterialRequirementNode
	if tracking, ok := key.TrackingRecord(); ok {
		n = dispensing.FindByTrackingRecord(st.tree, tracking)
	} else if materialID, ok := key.MaterialID(); ok {
		n = dispensing.FindByMaterial(st.tree, materialID)
	}
	if n == nil {
		return dispensing.DefaultUnit
	}
	return n.Unit
}

// DocumentService exports the allocation of a session as PDF or XLSX and stores it
type DocumentService struct {
	templates   TemplateRenderer
	renderer    DocumentRenderer
	sheets      SpreadsheetWriter
	store       DocumentStore
	downloadTTL time.Duration
	logger      *zap.Logger
}

// NewDocumentService creates a document service
func NewDocumentService(templates TemplateRenderer, renderer DocumentRenderer, sheets SpreadsheetWriter, store DocumentStore, downloadTTL time.Duration, logger *zap.Logger) *DocumentService {
	if downloadTTL <= 0 {
		downloadTTL = defaultDownloadTTL
	}
	return &DocumentService{
		templates:   templates,
		renderer:    renderer,
		sheets:      sheets,
		store:       store,
		downloadTTL: downloadTTL,
		logger:      logger,
	}
}

// Generate renders the session's document in format, stores it and returns a download link
func (d *DocumentService) Generate(ctx context.Context, s *Session, format DocumentFormat) (*GeneratedDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "dispensing.generate_document", "format", string(format))
	defer span.End()

	doc, err := s.Document()
	if err != nil {
		return nil, err
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case FormatPDF:
		data, err = d.renderPDF(ctx, doc)
		contentType = "application/pdf"
	case FormatXLSX:
		data, err = d.sheets.Write(DocumentSheets(doc)...)
		contentType = d.sheets.ContentType()
	default:
		err = shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unsupported document format %q", format))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	key := documentKey(doc, format)
	if err := d.store.Put(ctx, key, contentType, data); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("store document: %w", err)
	}
	url, expiresAt, err := d.store.DownloadURL(ctx, key, d.downloadTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("document download url: %w", err)
	}

	d.logger.Info("dispensation document generated",
		zap.String("order_id", doc.OrderID),
		zap.String("key", key),
		zap.String("format", string(format)),
		zap.Int("lines", len(doc.Lines)),
		zap.Int("size", len(data)))
	telemetry.SetOK(span)
	return &GeneratedDocument{
		Key:         key,
		Format:      format,
		ContentType: contentType,
		Size:        len(data),
		URL:         url,
		ExpiresAt:   expiresAt,
	}, nil
}

func (d *DocumentService) renderPDF(ctx context.Context, doc *DispensationDocument) ([]byte, error) {
	html, err := d.templates.Render(printing.DispensationTemplateName, doc)
	if err != nil {
		return nil, err
	}
	result, err := d.renderer.Render(ctx, &printing.RenderRequest{
		HTML:       html,
		Title:      "Dispensation " + doc.OrderID,
		PaperSize:  printing.PaperA4,
		Landscape:  true,
		Margins:    printing.DefaultMargins(),
		FooterHTML: fmt.Sprintf("Order %s", doc.OrderID),
	})
	if err != nil {
		return nil, err
	}
	return result.PDFData, nil
}

// DocumentSheets lays the document out as spreadsheet sheets
func DocumentSheets(doc *DispensationDocument) []export.Sheet {
	lines := export.Sheet{
		Name:    "Dispensation",
		Headers: []string{"#", "Material", "Name", "Unit", "Required", "Historical", "Lot", "Batch", "Expires", "Quantity"},
		Rows:    make([][]any, 0, len(doc.Lines)),
		Widths:  []float64{6, 16, 32, 8, 12, 12, 10, 16, 12, 12},
	}
	for i, l := range doc.Lines {
		expires := ""
		if l.ExpirationDate != nil {
			expires = l.ExpirationDate.Format("2006-01-02")
		}
		lines.Rows = append(lines.Rows, []any{
			i + 1, l.MaterialID, l.MaterialName, l.Unit, l.Required, l.Historical, l.LotID, l.BatchLabel, expires, l.Quantity,
		})
	}
	lines.Summary = []any{"", "Total", "", "", "", "", "", "", "", doc.TotalQuantity()}

	sheets := []export.Sheet{lines}
	if len(doc.Excess) > 0 {
		excess := export.Sheet{
			Name:    "Excess",
			Headers: []string{"Material", "Name", "Required", "Historical", "Selected", "Total", "Difference"},
			Widths:  []float64{16, 32, 12, 12, 12, 12, 12},
		}
		for _, e := range doc.Excess {
			excess.Rows = append(excess.Rows, []any{
				e.MaterialID, e.MaterialName, e.Required, e.Historical, e.Selected, e.Total, e.Difference,
			})
		}
		sheets = append(sheets, excess)
	}
	return sheets
}

func documentKey(doc *DispensationDocument, format DocumentFormat) string {
	return fmt.Sprintf("dispensations/%s/%s-%s.%s",
		doc.OrderID,
		doc.GeneratedAt.UTC().Format("20060102T150405"),
		uuid.NewString()[:8],
		format)
}
