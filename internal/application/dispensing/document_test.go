package dispensing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/domain/shared"
	"github.com/erp/dispensing/internal/infrastructure/export"
	"github.com/erp/dispensing/internal/infrastructure/printing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func loadedSession(t *testing.T) *Session {
	t.Helper()
	f := newFixture(t)
	s := f.session(testOperator)
	ctx := context.Background()
	_, err := s.SelectOrder(ctx, "OP-1")
	require.NoError(t, err)
	_, err = s.SetLots(ctx, "empaque-BOX-001", []dispensing.SelectedLot{selected(21, "4")})
	require.NoError(t, err)
	sugar := selected(11, "3")
	sugar.ExpirationDate = datePtr("2030-01-01")
	_, err = s.SetLots(ctx, "insumo-42", []dispensing.SelectedLot{sugar, selected(12, "7")})
	require.NoError(t, err)
	return s
}

func TestSession_Document(t *testing.T) {
	s := loadedSession(t)

	doc, err := s.Document()
	require.NoError(t, err)

	assert.Equal(t, "OP-1", doc.OrderID)
	assert.Equal(t, "JUICE", doc.ProductMaterialID)
	assert.Equal(t, "jane doe", doc.OperatorName)
	assert.Empty(t, doc.Banner)
	require.Len(t, doc.Lines, 3)

	assert.Equal(t, "BOX-001", doc.Lines[0].MaterialID)
	assert.Equal(t, "UN", doc.Lines[0].Unit)
	assert.True(t, dec("10").Equal(doc.Lines[0].Required))

	assert.Equal(t, "SUGAR", doc.Lines[1].MaterialID)
	assert.Equal(t, "11", doc.Lines[1].LotID)
	assert.True(t, dec("50").Equal(doc.Lines[1].Historical))
	require.NotNil(t, doc.Lines[1].ExpirationDate)
	assert.Equal(t, "KG", doc.Lines[2].Unit)
	assert.True(t, dec("14").Equal(doc.TotalQuantity()))
}

func TestSession_Document_NoOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.session(testOperator).Document()
	assert.True(t, errors.Is(err, dispensing.ErrNoOrderSelected))
}

func TestDocumentService_Generate(t *testing.T) {
	s := loadedSession(t)
	templates, err := printing.NewTemplateEngine()
	require.NoError(t, err)
	renderer := &MockRenderer{}
	store := NewMockDocumentStore()
	svc := NewDocumentService(templates, renderer, export.NewXLSXWriter(), store, time.Minute, zaptest.NewLogger(t))

	t.Run("pdf", func(t *testing.T) {
		got, err := svc.Generate(context.Background(), s, FormatPDF)
		require.NoError(t, err)

		assert.Equal(t, "application/pdf", got.ContentType)
		assert.True(t, strings.HasPrefix(got.Key, "dispensations/OP-1/20250101T080000-"))
		assert.True(t, strings.HasSuffix(got.Key, ".pdf"))
		assert.Equal(t, "https://files.test/"+got.Key, got.URL)

		require.Len(t, renderer.requests, 1)
		req := renderer.requests[0]
		assert.Equal(t, printing.PaperA4, req.PaperSize)
		assert.True(t, req.Landscape)
		assert.Contains(t, req.HTML, "Dispensation OP-1")
		assert.Contains(t, req.HTML, "Shipping box")
		assert.Contains(t, req.HTML, "Jane Doe")
		assert.Contains(t, string(store.files[got.Key]), "%PDF-")
	})

	t.Run("xlsx", func(t *testing.T) {
		got, err := svc.Generate(context.Background(), s, FormatXLSX)
		require.NoError(t, err)

		assert.Equal(t, export.NewXLSXWriter().ContentType(), got.ContentType)
		assert.True(t, strings.HasSuffix(got.Key, ".xlsx"))
		data := store.files[got.Key]
		require.NotEmpty(t, data)
		assert.Equal(t, "PK", string(data[:2]))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := svc.Generate(context.Background(), s, DocumentFormat("csv"))
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestDocumentSheets(t *testing.T) {
	doc := &DispensationDocument{
		OrderID: "OP-1",
		Lines: []DocumentLine{
			{MaterialID: "SUGAR", Quantity: dec("3"), ExpirationDate: datePtr("2030-01-01")},
			{MaterialID: "SUGAR", Quantity: dec("7")},
		},
		Excess: []dispensing.Excess{{MaterialID: "SUGAR", Difference: dec("1")}},
	}

	sheets := DocumentSheets(doc)
	require.Len(t, sheets, 2)
	assert.Equal(t, "Dispensation", sheets[0].Name)
	require.Len(t, sheets[0].Rows, 2)
	assert.Equal(t, "2030-01-01", sheets[0].Rows[0][8])
	assert.Equal(t, "", sheets[0].Rows[1][8])
	total, ok := sheets[0].Summary[9].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, dec("10").Equal(total))
	assert.Equal(t, "Excess", sheets[1].Name)
}

func TestParseDocumentFormat(t *testing.T) {
	f, err := ParseDocumentFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	f, err = ParseDocumentFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseDocumentFormat("docx")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}
