package dispensing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/domain/shared"
	"github.com/erp/dispensing/internal/infrastructure/export"
	"github.com/erp/dispensing/internal/infrastructure/printing"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int {
	return &i
}

func boolPtr(b bool) *bool {
	return &b
}

func datePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func selected(id int64, qty string) dispensing.SelectedLot {
	return dispensing.SelectedLot{LotID: dispensing.NewLotID(id), BatchLabel: "B" + dispensing.NewLotID(id).String(), Quantity: dec(qty)}
}

// MockBackend is an in-memory ERP backend for testing
type MockBackend struct {
	mu sync.Mutex

	orders       map[string]*dispensing.ProductionOrder
	boms         map[string][]dispensing.RawBOMNode
	requirements map[string][]dispensing.RequirementRecord
	casePacks    map[string]*dispensing.CasePackSpec
	transactions map[string][]dispensing.HistoricalTransaction
	lines        map[int64][]dispensing.HistoricalDispensationLine
	lots         map[string][]dispensing.InventoryLot
	accessLevel  *int

	bomErr         error
	requirementErr error
	accessErr      error
	listErr        error
	lineErrs       map[int64]error
	submitErr      error

	// gates block GetProductionOrder for an order until closed or cancelled
	gates   map[string]chan struct{}
	entered chan string

	// onSubmit runs while a submission is in flight, before it is recorded
	onSubmit func()

	submitted   []dispensing.Dispensation
	accessCalls int
	listPages   []int
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		orders:       make(map[string]*dispensing.ProductionOrder),
		boms:         make(map[string][]dispensing.RawBOMNode),
		requirements: make(map[string][]dispensing.RequirementRecord),
		casePacks:    make(map[string]*dispensing.CasePackSpec),
		transactions: make(map[string][]dispensing.HistoricalTransaction),
		lines:        make(map[int64][]dispensing.HistoricalDispensationLine),
		lots:         make(map[string][]dispensing.InventoryLot),
		lineErrs:     make(map[int64]error),
		gates:        make(map[string]chan struct{}),
		entered:      make(chan string, 4),
	}
}

func (b *MockBackend) GetProductionOrder(ctx context.Context, orderID string) (*dispensing.ProductionOrder, error) {
	b.mu.Lock()
	gate := b.gates[orderID]
	order, ok := b.orders[orderID]
	b.mu.Unlock()

	if gate != nil {
		b.entered <- orderID
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, shared.ErrNotFound
	}
	o := *order
	return &o, nil
}

func (b *MockBackend) GetBOMTree(ctx context.Context, materialID string) ([]dispensing.RawBOMNode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bomErr != nil {
		return nil, b.bomErr
	}
	return b.boms[materialID], nil
}

func (b *MockBackend) GetRequirements(ctx context.Context, orderID string) ([]dispensing.RequirementRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.requirementErr != nil {
		return nil, b.requirementErr
	}
	return b.requirements[orderID], nil
}

func (b *MockBackend) GetCasePack(ctx context.Context, materialID string) (*dispensing.CasePackSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.casePacks[materialID], nil
}

func (b *MockBackend) ListHistoricalTransactions(ctx context.Context, orderID, cause string, page, pageSize int) (dispensing.TransactionPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listPages = append(b.listPages, page)
	if b.listErr != nil {
		return dispensing.TransactionPage{}, b.listErr
	}
	all := b.transactions[orderID]
	totalPages := (len(all) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start >= len(all) {
		return dispensing.TransactionPage{Page: page, TotalPages: totalPages}, nil
	}
	end := min(start+pageSize, len(all))
	return dispensing.TransactionPage{Items: all[start:end], Page: page, TotalPages: totalPages}, nil
}

func (b *MockBackend) GetMovementLines(ctx context.Context, transactionID int64) ([]dispensing.HistoricalDispensationLine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.lineErrs[transactionID]; err != nil {
		return nil, err
	}
	return b.lines[transactionID], nil
}

func (b *MockBackend) GetModuleAccessLevel(ctx context.Context, module string) (*int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessCalls++
	if b.accessErr != nil {
		return nil, b.accessErr
	}
	return b.accessLevel, nil
}

func (b *MockBackend) GetCurrentOperator(ctx context.Context) (*dispensing.Operator, error) {
	return &dispensing.Operator{ID: "7", Username: "jdoe"}, nil
}

func (b *MockBackend) ListAvailableLots(ctx context.Context, materialID string) ([]dispensing.InventoryLot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lots[materialID], nil
}

func (b *MockBackend) SubmitDispensation(ctx context.Context, d dispensing.Dispensation) (*dispensing.SubmissionReceipt, error) {
	b.mu.Lock()
	hook := b.onSubmit
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	b.submitted = append(b.submitted, d)
	return &dispensing.SubmissionReceipt{TransactionID: int64(900 + len(b.submitted)), Message: "registered"}, nil
}

func (b *MockBackend) GetSubmitted() []dispensing.Dispensation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]dispensing.Dispensation, len(b.submitted))
	copy(out, b.submitted)
	return out
}

func (b *MockBackend) SetSubmitErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitErr = err
}

func (b *MockBackend) AddTransaction(orderID string, tx dispensing.HistoricalTransaction, lines ...dispensing.HistoricalDispensationLine) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transactions[orderID] = append(b.transactions[orderID], tx)
	b.lines[tx.ID] = lines
}

// seedJuiceOrder registers order OP-1 producing 100 units of JUICE:
// a syrup (sugar #42, water #43), citric acid, non-inventoried steam,
// a 10-unit case with one box each, and 50 kg of sugar already dispensed.
func (b *MockBackend) seedJuiceOrder() {
	b.mu.Lock()
	b.orders["OP-1"] = &dispensing.ProductionOrder{OrderID: "OP-1", ProductMaterialID: "JUICE", Quantity: decPtr("100")}
	b.boms["JUICE"] = []dispensing.RawBOMNode{
		{
			MaterialID: "SYRUP", MaterialName: "Base syrup", QuantityPerUnit: dec("2"), Kind: "SEMI_FINISHED",
			Children: []dispensing.RawBOMNode{
				{MaterialID: "SUGAR", MaterialName: "Sugar", QuantityPerUnit: dec("1.5"), Kind: "BASE_MATERIAL"},
				{MaterialID: "WATER", MaterialName: "Water", QuantityPerUnit: dec("0.5"), Unit: "L", Kind: "BASE_MATERIAL"},
			},
		},
		{MaterialID: "CITRIC", MaterialName: "Citric acid", QuantityPerUnit: dec("0.1"), Kind: "BASE_MATERIAL"},
		{MaterialID: "STEAM", MaterialName: "Steam", QuantityPerUnit: dec("3"), Kind: "BASE_MATERIAL"},
	}
	b.requirements["OP-1"] = []dispensing.RequirementRecord{
		{MaterialID: "SYRUP", RequiredQuantity: dec("200"), Kind: "SEMI_FINISHED"},
		{MaterialID: "SUGAR", MaterialName: "Sugar", RequiredQuantity: dec("150"), TrackingRecordID: dispensing.NewTrackingRecordID(42)},
		{MaterialID: "WATER", MaterialName: "Water", RequiredQuantity: dec("50"), Unit: "L", TrackingRecordID: dispensing.NewTrackingRecordID(43)},
		{MaterialID: "CITRIC", MaterialName: "Citric acid", RequiredQuantity: dec("10")},
		{MaterialID: "STEAM", MaterialName: "Steam", RequiredQuantity: dec("300"), IsInventoried: boolPtr(false)},
	}
	b.casePacks["JUICE"] = &dispensing.CasePackSpec{
		UnitsPerCase: dec("10"),
		Materials: []dispensing.CasePackMaterial{
			{MaterialID: "BOX-001", MaterialName: "Shipping box", QuantityPerCase: decPtr("1"), Unit: "UN"},
		},
	}
	b.lots["SUGAR"] = []dispensing.InventoryLot{
		{LotID: dispensing.NewLotID(501), MaterialID: "SUGAR", BatchLabel: "S-LATE", AvailableQuantity: dec("80"), ExpirationDate: datePtr("2031-06-01")},
		{LotID: dispensing.NewLotID(502), MaterialID: "SUGAR", BatchLabel: "S-SOON", AvailableQuantity: dec("60"), ExpirationDate: datePtr("2030-01-01")},
		{LotID: dispensing.NewLotID(503), MaterialID: "SUGAR", BatchLabel: "S-OLD", AvailableQuantity: dec("30"), ExpirationDate: datePtr("2020-01-01")},
	}
	b.mu.Unlock()

	b.AddTransaction("OP-1", dispensing.HistoricalTransaction{ID: 1, Cause: "PRODUCTION_ORDER"},
		dispensing.HistoricalDispensationLine{MaterialID: "SUGAR", Quantity: dec("-50")},
	)
}

// MockIdempotencyStore records claims in memory
type MockIdempotencyStore struct {
	mu       sync.Mutex
	claimed  map[string]bool
	released []string
	claimErr error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{claimed: make(map[string]bool)}
}

func (s *MockIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return false, s.claimErr
	}
	if s.claimed[key] {
		return false, nil
	}
	s.claimed[key] = true
	return true, nil
}

func (s *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, key)
	s.released = append(s.released, key)
	return nil
}

func (s *MockIdempotencyStore) Released() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.released...)
}

// MockPrivilegeCache is a map-backed privilege cache
type MockPrivilegeCache struct {
	mu      sync.Mutex
	entries map[string]*dispensing.PrivilegeSnapshot
	getErr  error
}

func NewMockPrivilegeCache() *MockPrivilegeCache {
	return &MockPrivilegeCache{entries: make(map[string]*dispensing.PrivilegeSnapshot)}
}

func (c *MockPrivilegeCache) Get(ctx context.Context, key string) (*dispensing.PrivilegeSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[key], nil
}

func (c *MockPrivilegeCache) Set(ctx context.Context, key string, snap *dispensing.PrivilegeSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = snap
	return nil
}

// MockEventPublisher records published events and optionally forwards them to a handler
type MockEventPublisher struct {
	mu      sync.Mutex
	events  []shared.DomainEvent
	handler shared.EventHandler
}

func (p *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	p.events = append(p.events, events...)
	handler := p.handler
	p.mu.Unlock()

	if handler == nil {
		return nil
	}
	var errs []error
	for _, e := range events {
		errs = append(errs, handler.Handle(ctx, e))
	}
	return errors.Join(errs...)
}

func (p *MockEventPublisher) GetEvents() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}

// MockDocumentStore keeps documents in memory
type MockDocumentStore struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
}

func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{files: make(map[string][]byte), types: make(map[string]string)}
}

func (s *MockDocumentStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = data
	s.types[key] = contentType
	return nil
}

func (s *MockDocumentStore) DownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	return "https://files.test/" + key, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

// MockRenderer returns the HTML it was given as the "PDF"
type MockRenderer struct {
	mu       sync.Mutex
	requests []*printing.RenderRequest
}

func (r *MockRenderer) Render(ctx context.Context, req *printing.RenderRequest) (*printing.RenderResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return &printing.RenderResult{PDFData: []byte("%PDF-" + req.HTML)}, nil
}

var _ SpreadsheetWriter = (*export.XLSXWriter)(nil)
