package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	dispensingapp "github.com/erp/dispensing/internal/application/dispensing"
	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/domain/shared"
	"github.com/erp/dispensing/internal/infrastructure/auth"
	"github.com/erp/dispensing/internal/infrastructure/strategy"
	"github.com/erp/dispensing/internal/interfaces/http/dto"
	"github.com/erp/dispensing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeBackend serves order OP-1: 150 kg of sugar on tracking record 42
type fakeBackend struct {
	mu        sync.Mutex
	submitted []dispensing.Dispensation
	submitErr error
}

func (b *fakeBackend) GetProductionOrder(ctx context.Context, orderID string) (*dispensing.ProductionOrder, error) {
	if orderID != "OP-1" {
		return nil, shared.ErrNotFound.WithMessage("production order " + orderID + " not found")
	}
	q := dec("100")
	return &dispensing.ProductionOrder{OrderID: "OP-1", ProductMaterialID: "JUICE", Quantity: &q}, nil
}

func (b *fakeBackend) GetBOMTree(ctx context.Context, materialID string) ([]dispensing.RawBOMNode, error) {
	return []dispensing.RawBOMNode{
		{
			MaterialID: "SYRUP", MaterialName: "Base syrup", QuantityPerUnit: dec("2"), Kind: "SEMI_FINISHED",
			Children: []dispensing.RawBOMNode{
				{MaterialID: "SUGAR", MaterialName: "Sugar", QuantityPerUnit: dec("1.5"), Kind: "BASE_MATERIAL"},
			},
		},
	}, nil
}

func (b *fakeBackend) GetRequirements(ctx context.Context, orderID string) ([]dispensing.RequirementRecord, error) {
	return []dispensing.RequirementRecord{
		{MaterialID: "SYRUP", RequiredQuantity: dec("200"), Kind: "SEMI_FINISHED"},
		{MaterialID: "SUGAR", MaterialName: "Sugar", RequiredQuantity: dec("150"), TrackingRecordID: dispensing.NewTrackingRecordID(42)},
	}, nil
}

func (b *fakeBackend) GetCasePack(ctx context.Context, materialID string) (*dispensing.CasePackSpec, error) {
	return nil, nil
}

func (b *fakeBackend) ListHistoricalTransactions(ctx context.Context, orderID, cause string, page, pageSize int) (dispensing.TransactionPage, error) {
	return dispensing.TransactionPage{Page: page}, nil
}

func (b *fakeBackend) GetMovementLines(ctx context.Context, transactionID int64) ([]dispensing.HistoricalDispensationLine, error) {
	return nil, nil
}

func (b *fakeBackend) GetModuleAccessLevel(ctx context.Context, module string) (*int, error) {
	return nil, nil
}

func (b *fakeBackend) GetCurrentOperator(ctx context.Context) (*dispensing.Operator, error) {
	return &dispensing.Operator{ID: "7", Username: "jdoe"}, nil
}

func (b *fakeBackend) ListAvailableLots(ctx context.Context, materialID string) ([]dispensing.InventoryLot, error) {
	if materialID != "SUGAR" {
		return []dispensing.InventoryLot{}, nil
	}
	soon := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC)
	return []dispensing.InventoryLot{
		{LotID: dispensing.NewLotID(501), MaterialID: "SUGAR", BatchLabel: "S-LATE", AvailableQuantity: dec("80"), ExpirationDate: &late},
		{LotID: dispensing.NewLotID(502), MaterialID: "SUGAR", BatchLabel: "S-SOON", AvailableQuantity: dec("100"), ExpirationDate: &soon},
	}, nil
}

func (b *fakeBackend) SubmitDispensation(ctx context.Context, d dispensing.Dispensation) (*dispensing.SubmissionReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	b.submitted = append(b.submitted, d)
	return &dispensing.SubmissionReceipt{TransactionID: 900, Message: "registered"}, nil
}

type fakeDocuments struct {
	format dispensingapp.DocumentFormat
}

func (f *fakeDocuments) Generate(ctx context.Context, s *dispensingapp.Session, format dispensingapp.DocumentFormat) (*dispensingapp.GeneratedDocument, error) {
	f.format = format
	return &dispensingapp.GeneratedDocument{
		Key:         "dispensations/" + s.OrderID() + "/doc." + string(format),
		Format:      format,
		ContentType: "application/pdf",
		Size:        42,
		URL:         "https://files.test/doc",
	}, nil
}

type handlerFixture struct {
	backend  *fakeBackend
	sessions *dispensingapp.SessionManager
	router   *gin.Engine
	docs     *fakeDocuments
}

func newHandlerFixture(t *testing.T, withDocuments bool) *handlerFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	backend := &fakeBackend{}
	pickers, err := strategy.NewDefaultPickerRegistry("fefo")
	require.NoError(t, err)

	deps := dispensingapp.Dependencies{
		Backend:    backend,
		Reconciler: dispensingapp.NewReconciler(backend, dispensingapp.ReconcilerConfig{}, logger),
		Privileges: dispensingapp.NewPrivilegeResolver(backend, nil, dispensingapp.PrivilegeConfig{}, logger),
		Pickers:    pickers,
	}
	sessions := dispensingapp.NewSessionManager(deps, dispensingapp.SessionConfig{Tolerance: dec("0.01")}, time.Hour, logger)
	t.Cleanup(sessions.Close)

	f := &handlerFixture{backend: backend, sessions: sessions}
	var docs DocumentGenerator
	if withDocuments {
		f.docs = &fakeDocuments{}
		docs = f.docs
	}
	h := NewDispensingHandler(sessions, docs)

	middleware.SetupValidator()
	router := gin.New()
	router.Use(middleware.RequestID())
	api := router.Group("/api/v1/dispensing", func(c *gin.Context) {
		if c.GetHeader("X-Test-Anonymous") == "" {
			c.Set(middleware.JWTClaimsKey, &auth.Claims{UserID: "7", Username: "jdoe", DisplayName: "Jane Doe"})
		}
		c.Next()
	})
	api.POST("/orders/:orderId/select", h.SelectOrder)
	api.GET("/session", h.GetSession)
	api.DELETE("/session", h.CloseSession)
	api.PUT("/lots/:key", h.SetLots)
	api.DELETE("/lots/:key/:lotId", h.RemoveLot)
	api.GET("/lots/:key/suggestion", h.SuggestLots)
	api.GET("/lots/:key/available", h.AvailableLots)
	api.POST("/tree/:materialId/toggle", h.ToggleNode)
	api.POST("/review", h.BeginReview)
	api.POST("/submit", h.Submit)
	api.POST("/document", h.GenerateDocument)
	api.POST("/refresh-historical", h.RefreshHistorical)
	f.router = router
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1/dispensing"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (f *handlerFixture) selectOrder(t *testing.T) SessionResponse {
	t.Helper()
	code, env := f.do(t, http.MethodPost, "/orders/OP-1/select", nil)
	require.Equal(t, http.StatusOK, code)
	return decodeData[SessionResponse](t, env)
}

func lots(items ...LotSelectionRequest) SetLotsRequest {
	return SetLotsRequest{Lots: items}
}

func TestDispensingHandler_SelectOrder(t *testing.T) {
	f := newHandlerFixture(t, false)

	code, env := f.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, decodeData[SessionResponse](t, env).Order)

	view := f.selectOrder(t)
	require.NotNil(t, view.Order)
	assert.Equal(t, "OP-1", view.Order.OrderID)
	assert.Equal(t, "7", view.OperatorID)
	require.Len(t, view.Tree, 1)
	syrup := view.Tree[0]
	assert.Equal(t, "expandable", syrup.Classification)
	require.Len(t, syrup.Children, 1)
	sugar := syrup.Children[0]
	assert.Equal(t, "allocatable", sugar.Classification)
	assert.Equal(t, "insumo-42", sugar.AllocationKey)
	require.NotNil(t, sugar.TrackingRecordID)
	assert.Equal(t, int64(42), *sugar.TrackingRecordID)
	assert.True(t, dec("150").Equal(sugar.RequiredQuantity))
	assert.Empty(t, view.Excess)
	assert.False(t, view.Gate.Blocked)

	code, env = f.do(t, http.MethodPost, "/orders/OP-404/select", nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.NotEmpty(t, env.Error.RequestID)
}

func TestDispensingHandler_RequiresOperator(t *testing.T) {
	f := newHandlerFixture(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dispensing/session", nil)
	req.Header.Set("X-Test-Anonymous", "1")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestDispensingHandler_Lots(t *testing.T) {
	f := newHandlerFixture(t, false)

	code, env := f.do(t, http.MethodPut, "/lots/insumo-42", lots())
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "NO_ORDER_SELECTED", env.Error.Code)

	f.selectOrder(t)

	code, env = f.do(t, http.MethodPut, "/lots/insumo-42", lots(
		LotSelectionRequest{LotID: 502, BatchLabel: "S-SOON", Quantity: dec("100")},
		LotSelectionRequest{LotID: 501, BatchLabel: "S-LATE", Quantity: dec("40")},
	))
	require.Equal(t, http.StatusOK, code)
	view := decodeData[SessionResponse](t, env)
	require.Len(t, view.Allocations, 1)
	assert.Equal(t, "insumo-42", view.Allocations[0].Key)
	assert.True(t, dec("140").Equal(view.Allocations[0].Total))

	code, env = f.do(t, http.MethodPut, "/lots/bogus", lots())
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ALLOCATION_KEY", env.Error.Code)

	code, env = f.do(t, http.MethodPut, "/lots/producto-SALT", lots())
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "UNKNOWN_REQUIREMENT", env.Error.Code)

	code, env = f.do(t, http.MethodPut, "/lots/insumo-42", lots(LotSelectionRequest{LotID: 0, Quantity: dec("1")}))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INVALID_LOT", env.Error.Code)

	code, env = f.do(t, http.MethodDelete, "/lots/insumo-42/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	code, env = f.do(t, http.MethodDelete, "/lots/insumo-42/501", nil)
	require.Equal(t, http.StatusOK, code)
	view = decodeData[SessionResponse](t, env)
	require.Len(t, view.Allocations, 1)
	assert.True(t, dec("100").Equal(view.Allocations[0].Total))

	code, _ = f.do(t, http.MethodDelete, "/lots/insumo-42/501", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDispensingHandler_LotValidation(t *testing.T) {
	f := newHandlerFixture(t, false)
	f.selectOrder(t)

	code, env := f.do(t, http.MethodPut, "/lots/insumo-42", lots(LotSelectionRequest{LotID: -1, Quantity: dec("1")}))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "lot_id", env.Error.Details[0].Field)

	code, env = f.do(t, http.MethodPut, "/lots/insumo-42", lots(LotSelectionRequest{LotID: 501, Quantity: dec("-3")}))
	assert.Equal(t, http.StatusBadRequest, code)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "quantity", env.Error.Details[0].Field)
}

func TestDispensingHandler_AvailableAndSuggestion(t *testing.T) {
	f := newHandlerFixture(t, false)
	f.selectOrder(t)

	code, env := f.do(t, http.MethodGet, "/lots/SUGAR/available", nil)
	require.Equal(t, http.StatusOK, code)
	available := decodeData[[]AvailableLotResponse](t, env)
	require.Len(t, available, 2)
	assert.Equal(t, int64(501), available[0].LotID)
	assert.False(t, available[0].Expired)

	code, env = f.do(t, http.MethodGet, "/lots/insumo-42/suggestion?strategy=fefo", nil)
	require.Equal(t, http.StatusOK, code)
	suggestion := decodeData[SuggestionResponse](t, env)
	assert.Equal(t, "fefo", suggestion.Strategy)
	require.NotEmpty(t, suggestion.Lots)
	assert.Equal(t, int64(502), suggestion.Lots[0].LotID, "earliest expiry first")
	assert.True(t, dec("150").Equal(suggestion.Total))

	code, env = f.do(t, http.MethodGet, "/lots/insumo-42/suggestion?strategy=random", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestDispensingHandler_Toggle(t *testing.T) {
	f := newHandlerFixture(t, false)
	f.selectOrder(t)

	code, env := f.do(t, http.MethodPost, "/tree/SYRUP/toggle", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decodeData[ToggleResponse](t, env).Expanded)

	code, env = f.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decodeData[SessionResponse](t, env).Tree[0].Expanded)

	code, _ = f.do(t, http.MethodPost, "/tree/SUGAR/toggle", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDispensingHandler_ReviewAndSubmit(t *testing.T) {
	f := newHandlerFixture(t, false)
	f.selectOrder(t)

	code, env := f.do(t, http.MethodPost, "/review", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "NOTHING_TO_SUBMIT", env.Error.Code)

	code, _ = f.do(t, http.MethodPut, "/lots/insumo-42", lots(LotSelectionRequest{LotID: 502, BatchLabel: "S-SOON", Quantity: dec("100")}))
	require.Equal(t, http.StatusOK, code)

	code, env = f.do(t, http.MethodPost, "/submit", SubmitRequest{ResponsibleOperatorIDs: []string{"7"}, ConfirmationCode: "1234"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "REVIEW_NOT_STARTED", env.Error.Code)

	code, env = f.do(t, http.MethodPost, "/review", nil)
	require.Equal(t, http.StatusOK, code)
	review := decodeData[ReviewResponse](t, env)
	assert.Len(t, review.ConfirmationCode, 4)
	require.Len(t, review.Items, 1)
	require.NotNil(t, review.Items[0].TrackingRecordID)
	assert.Equal(t, int64(42), *review.Items[0].TrackingRecordID)

	wrong := "0000"
	if review.ConfirmationCode == wrong {
		wrong = "0001"
	}
	code, env = f.do(t, http.MethodPost, "/submit", SubmitRequest{ResponsibleOperatorIDs: []string{"7"}, ConfirmationCode: wrong})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "CONFIRMATION_MISMATCH", env.Error.Code)

	code, env = f.do(t, http.MethodPost, "/submit", SubmitRequest{ConfirmationCode: review.ConfirmationCode})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "NO_RESPONSIBLE_OPERATOR", env.Error.Code)

	code, env = f.do(t, http.MethodPost, "/submit", SubmitRequest{
		ResponsibleOperatorIDs: []string{"7", "9"},
		Observations:           "night shift",
		ConfirmationCode:       review.ConfirmationCode,
	})
	require.Equal(t, http.StatusCreated, code)
	receipt := decodeData[ReceiptResponse](t, env)
	assert.Equal(t, int64(900), receipt.TransactionID)

	require.Len(t, f.backend.submitted, 1)
	assert.Equal(t, "OP-1", f.backend.submitted[0].OrderID)

	code, env = f.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, code)
	view := decodeData[SessionResponse](t, env)
	assert.Empty(t, view.Allocations)
	assert.Nil(t, view.Review)
}

func TestDispensingHandler_ExcessBlocksReview(t *testing.T) {
	f := newHandlerFixture(t, false)
	f.selectOrder(t)

	code, env := f.do(t, http.MethodPut, "/lots/insumo-42", lots(
		LotSelectionRequest{LotID: 502, Quantity: dec("100")},
		LotSelectionRequest{LotID: 501, Quantity: dec("80")},
	))
	require.Equal(t, http.StatusOK, code)
	view := decodeData[SessionResponse](t, env)
	require.Len(t, view.Excess, 1)
	assert.True(t, dec("30").Equal(view.Excess[0].Difference))
	assert.True(t, view.Gate.Blocked)
	assert.Equal(t, "error", view.Gate.Banner)

	code, env = f.do(t, http.MethodPost, "/review", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "EXCESS_BLOCKED", env.Error.Code)
}

func TestDispensingHandler_SubmitFailure(t *testing.T) {
	f := newHandlerFixture(t, false)
	f.backend.submitErr = shared.ErrUnavailable.WithMessage("stock ledger is closed")
	f.selectOrder(t)

	code, _ := f.do(t, http.MethodPut, "/lots/insumo-42", lots(LotSelectionRequest{LotID: 502, Quantity: dec("10")}))
	require.Equal(t, http.StatusOK, code)
	_, env := f.do(t, http.MethodPost, "/review", nil)
	review := decodeData[ReviewResponse](t, env)

	code, env = f.do(t, http.MethodPost, "/submit", SubmitRequest{ResponsibleOperatorIDs: []string{"7"}, ConfirmationCode: review.ConfirmationCode})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "SUBMISSION_FAILED", env.Error.Code)
	assert.Equal(t, "stock ledger is closed", env.Error.Message)
}

func TestDispensingHandler_Document(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newHandlerFixture(t, false)
		code, env := f.do(t, http.MethodPost, "/document", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, "INVALID_STATE", env.Error.Code)
	})

	t.Run("xlsx", func(t *testing.T) {
		f := newHandlerFixture(t, true)
		f.selectOrder(t)

		code, env := f.do(t, http.MethodPost, "/document", DocumentRequest{Format: "xlsx"})
		require.Equal(t, http.StatusCreated, code)
		doc := decodeData[DocumentResponse](t, env)
		assert.Equal(t, "dispensations/OP-1/doc.xlsx", doc.Key)
		assert.Equal(t, dispensingapp.FormatXLSX, f.docs.format)
	})

	t.Run("default format", func(t *testing.T) {
		f := newHandlerFixture(t, true)
		f.selectOrder(t)

		code, _ := f.do(t, http.MethodPost, "/document", nil)
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, dispensingapp.FormatPDF, f.docs.format)
	})

	t.Run("unsupported format", func(t *testing.T) {
		f := newHandlerFixture(t, true)
		code, env := f.do(t, http.MethodPost, "/document", DocumentRequest{Format: "docx"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	})
}

func TestDispensingHandler_RefreshAndClose(t *testing.T) {
	f := newHandlerFixture(t, false)

	code, env := f.do(t, http.MethodPost, "/refresh-historical", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "NO_ORDER_SELECTED", env.Error.Code)

	f.selectOrder(t)
	code, _ = f.do(t, http.MethodPost, "/refresh-historical", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = f.do(t, http.MethodDelete, "/session", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"closed": true}, decodeData[map[string]any](t, env))
	assert.Equal(t, 0, f.sessions.Len())
}
