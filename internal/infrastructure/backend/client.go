package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/domain/shared"
	"github.com/erp/dispensing/internal/infrastructure/auth"
	"github.com/erp/dispensing/internal/infrastructure/config"
	"github.com/erp/dispensing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// maxResponseSize limits the response body read from the backend (4MB)
const maxResponseSize = 4 << 20

// Client talks to the ERP backend REST API on behalf of the calling operator.
// The operator's bearer token is taken from the request context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("backend"),
	}
}

// GetBOMTree returns the nested BOM of a material
func (c *Client) GetBOMTree(ctx context.Context, materialID string) ([]dispensing.RawBOMNode, error) {
	var nodes []bomNodeDTO
	if _, err := c.get(ctx, "bom_tree", "/materials/"+url.PathEscape(materialID)+"/bom", nil, &nodes); err != nil {
		return nil, err
	}
	out := make([]dispensing.RawBOMNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.toDomain())
	}
	return out, nil
}

// GetProductionOrder returns the order header
func (c *Client) GetProductionOrder(ctx context.Context, orderID string) (*dispensing.ProductionOrder, error) {
	var o orderDTO
	if _, err := c.get(ctx, "production_order", "/production-orders/"+url.PathEscape(orderID), nil, &o); err != nil {
		return nil, err
	}
	if o.OrderID == "" {
		o.OrderID = orderID
	}
	return &dispensing.ProductionOrder{
		OrderID:           o.OrderID,
		ProductMaterialID: o.ProductMaterialID,
		Quantity:          o.Quantity,
	}, nil
}

// GetRequirements returns the flat requirement breakdown of an order
func (c *Client) GetRequirements(ctx context.Context, orderID string) ([]dispensing.RequirementRecord, error) {
	var recs []requirementDTO
	if _, err := c.get(ctx, "requirements", "/production-orders/"+url.PathEscape(orderID)+"/requirements", nil, &recs); err != nil {
		return nil, err
	}
	out := make([]dispensing.RequirementRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetCasePack returns the case-pack specification of a material, nil when none exists
func (c *Client) GetCasePack(ctx context.Context, materialID string) (*dispensing.CasePackSpec, error) {
	var cp casePackDTO
	_, err := c.get(ctx, "case_pack", "/materials/"+url.PathEscape(materialID)+"/case-pack", nil, &cp)
	if err != nil {
		if de, ok := shared.AsDomainError(err); ok && de.Code == shared.ErrNotFound.Code {
			return nil, nil
		}
		return nil, err
	}
	return cp.toDomain(), nil
}

// ListHistoricalTransactions returns one page of warehouse transactions linked to the order
func (c *Client) ListHistoricalTransactions(ctx context.Context, orderID, cause string, page, pageSize int) (dispensing.TransactionPage, error) {
	q := url.Values{}
	q.Set("order_id", orderID)
	if cause != "" {
		q.Set("cause", cause)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var txs []transactionDTO
	meta, err := c.get(ctx, "historical_transactions", "/warehouse-transactions", q, &txs)
	if err != nil {
		return dispensing.TransactionPage{}, err
	}

	result := dispensing.TransactionPage{Page: page, TotalPages: page}
	if meta != nil {
		result.TotalPages = meta.TotalPages
	}
	for _, t := range txs {
		result.Items = append(result.Items, dispensing.HistoricalTransaction{ID: t.ID, Date: t.Date, Cause: t.Cause})
	}
	return result, nil
}

// GetMovementLines returns the movement lines of a transaction
func (c *Client) GetMovementLines(ctx context.Context, transactionID int64) ([]dispensing.HistoricalDispensationLine, error) {
	var lines []movementLineDTO
	path := "/warehouse-transactions/" + strconv.FormatInt(transactionID, 10) + "/lines"
	if _, err := c.get(ctx, "movement_lines", path, nil, &lines); err != nil {
		return nil, err
	}
	out := make([]dispensing.HistoricalDispensationLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, dispensing.HistoricalDispensationLine{
			MaterialID:     l.MaterialID,
			Quantity:       l.Quantity,
			BatchLabel:     l.BatchLabel,
			ProductionDate: l.ProductionDate,
			ExpirationDate: l.ExpirationDate,
		})
	}
	return out, nil
}

// GetModuleAccessLevel returns the caller's access level for a module, nil when none
func (c *Client) GetModuleAccessLevel(ctx context.Context, module string) (*int, error) {
	var lvl accessLevelDTO
	if _, err := c.get(ctx, "access_level", "/access-levels/"+url.PathEscape(module), nil, &lvl); err != nil {
		return nil, err
	}
	return lvl.Level, nil
}

// GetCurrentOperator returns the authenticated operator
func (c *Client) GetCurrentOperator(ctx context.Context) (*dispensing.Operator, error) {
	var op operatorDTO
	if _, err := c.get(ctx, "current_operator", "/me", nil, &op); err != nil {
		return nil, err
	}
	return &dispensing.Operator{ID: op.ID, Username: op.Username, DisplayName: op.DisplayName, Roles: op.Roles}, nil
}

// ListAvailableLots returns the lots in stock for a material
func (c *Client) ListAvailableLots(ctx context.Context, materialID string) ([]dispensing.InventoryLot, error) {
	var lots []lotDTO
	if _, err := c.get(ctx, "available_lots", "/materials/"+url.PathEscape(materialID)+"/lots", nil, &lots); err != nil {
		return nil, err
	}
	out := make([]dispensing.InventoryLot, 0, len(lots))
	for _, l := range lots {
		if l.MaterialID == "" {
			l.MaterialID = materialID
		}
		out = append(out, l.toInventory())
	}
	return out, nil
}

// SubmitDispensation registers the dispensation
func (c *Client) SubmitDispensation(ctx context.Context, d dispensing.Dispensation) (*dispensing.SubmissionReceipt, error) {
	body, err := json.Marshal(newSubmitRequest(d))
	if err != nil {
		return nil, fmt.Errorf("backend: failed to marshal dispensation: %w", err)
	}

	var resp submitResponseDTO
	if _, err := c.do(ctx, "submit_dispensation", http.MethodPost, "/dispensations", nil, body, &resp); err != nil {
		return nil, err
	}
	return &dispensing.SubmissionReceipt{TransactionID: resp.TransactionID, Message: resp.Message}, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) (*pageMeta, error) {
	return c.do(ctx, op, http.MethodGet, path, query, nil, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte, out any) (*pageMeta, error) {
	ctx, span := telemetry.StartClientSpan(ctx, "backend."+op, "http.method", method, "backend.path", path)
	defer span.End()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("backend: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := auth.BearerToken(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("backend: failed to read response: %w", err)
	}

	c.logger.Debug("backend call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 400 {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("backend: failed to decode %s response: %w", op, err)
		}
	}

	if resp.StatusCode >= 400 || (len(raw) > 0 && !env.Success) {
		err := statusError(resp.StatusCode, env.Error)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("backend: failed to decode %s data: %w", op, err)
		}
	}
	telemetry.SetOK(span)
	return env.Meta, nil
}

// statusError maps a backend failure to a domain error, keeping the backend message
func statusError(status int, body *errorBody) error {
	var base *shared.DomainError
	switch {
	case status == http.StatusNotFound:
		base = shared.ErrNotFound
	case status == http.StatusUnauthorized:
		base = shared.ErrUnauthorized
	case status == http.StatusForbidden:
		base = shared.ErrForbidden
	case status == http.StatusConflict:
		base = shared.ErrInvalidState
	case status >= 500:
		base = shared.ErrUnavailable
	default:
		base = shared.ErrInvalidInput
	}
	if body != nil && strings.TrimSpace(body.Message) != "" {
		return base.WithMessage(body.Message)
	}
	return base
}
