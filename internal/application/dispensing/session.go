package dispensing

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/domain/shared"
	"github.com/erp/dispensing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetch sections that may fall back to an empty state
const (
	SectionBOM          = "bom"
	SectionRequirements = "requirements"
	SectionCasePack     = "case_pack"
	SectionHistorical   = "historical"
)

const defaultIdempotencyTTL = 10 * time.Minute

// SessionConfig holds the allocation policy of a session
type SessionConfig struct {
	// Tolerance of the over-allocation audit; zero compares exactly
	Tolerance      decimal.Decimal
	LotStrategy    string
	IdempotencyTTL time.Duration
}

// Dependencies are the collaborators shared by every session
type Dependencies struct {
	Backend     Backend
	Reconciler  *Reconciler
	Privileges  *PrivilegeResolver
	Pickers     LotPickers
	Idempotency IdempotencyStore
	Events      shared.EventPublisher
	Metrics     *telemetry.DispensingMetrics
}

// Session is the dispensing state of one operator.
// All per-order state is replaced as a unit when an order finishes loading.
type Session struct {
	operator dispensing.Operator
	deps     Dependencies
	cfg      SessionConfig
	auditor  *dispensing.Auditor
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	generation uint64
	cancelLoad context.CancelFunc
	state      *orderState
	lastActive time.Time
}

type orderState struct {
	generation uint64
	order      dispensing.ProductionOrder
	tree       []*dispensing.MaterialRequirementNode
	packaging  []dispensing.PackagingRequirement
	historical dispensing.HistoricalTotals
	privileged bool
	degraded   []string
	store      *dispensing.LotAllocationStore
	expansion  dispensing.ExpansionState
	review     *reviewState
}

type reviewState struct {
	id    string
	token dispensing.ConfirmationToken
}

// SessionView is a consistent snapshot of a session, audited at read time
type SessionView struct {
	OperatorID  string
	Generation  uint64
	Order       *dispensing.ProductionOrder
	Tree        []*dispensing.MaterialRequirementNode
	Allocatable []*dispensing.MaterialRequirementNode
	Packaging   []dispensing.PackagingRequirement
	Historical  dispensing.HistoricalTotals
	Allocations []Allocation
	Excess      []dispensing.Excess
	Gate        dispensing.GateDecision
	Privileged  bool
	// Degraded lists the sections that failed to load and show a fallback
	Degraded []string
	Expanded []string
	Review   *ReviewView
}

// Allocation is the lot list stored under one key
type Allocation struct {
	Key   dispensing.AllocationKey
	Lots  []dispensing.SelectedLot
	Total decimal.Decimal
}

// ReviewView is the review step: the issued code and the lines that would be posted
type ReviewView struct {
	ReviewID string
	Token    dispensing.ConfirmationToken
	Items    []dispensing.DispensationItem
	Gate     dispensing.GateDecision
}

// AvailableLot is an inventory lot offered in the lot selection dialog
type AvailableLot struct {
	dispensing.InventoryLot
	Expired bool
}

// NewSession creates an empty session for op
func NewSession(op dispensing.Operator, deps Dependencies, cfg SessionConfig, logger *zap.Logger) *Session {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	s := &Session{
		operator: op,
		deps:     deps,
		cfg:      cfg,
		auditor:  dispensing.NewAuditor(cfg.Tolerance),
		logger:   logger.With(zap.String("operator_id", op.ID)),
		now:      time.Now,
	}
	s.lastActive = s.now()
	return s
}

// Operator returns the session owner
func (s *Session) Operator() dispensing.Operator {
	return s.operator
}

// LastActive returns the time of the last operation on the session
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close cancels any load in flight
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
}

// SelectOrder loads an order and replaces the session state with it.
// If another order is selected before this load finishes, the result is
// discarded and ErrOrderSuperseded is returned.
func (s *Session) SelectOrder(ctx context.Context, orderID string) (*SessionView, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, shared.ErrInvalidInput.WithMessage("order id is required")
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	s.lastActive = s.now()
	s.mu.Unlock()
	defer cancel()

	ctx, span := telemetry.StartSpan(loadCtx, "dispensing.select_order", "order_id", orderID)
	defer span.End()

	st, err := s.load(ctx, orderID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.logger.Info("discarding superseded order load", zap.String("order_id", orderID))
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordStaleLoad(ctx)
		}
		return nil, dispensing.ErrOrderSuperseded
	}
	s.cancelLoad = nil
	if err != nil {
		s.state = nil
		telemetry.RecordError(span, err)
		return nil, err
	}
	st.generation = gen
	s.state = st
	telemetry.SetOK(span)
	return s.viewLocked(), nil
}

func (s *Session) load(ctx context.Context, orderID string) (*orderState, error) {
	order, err := s.deps.Backend.GetProductionOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load production order %s: %w", orderID, err)
	}

	var (
		bom        []dispensing.RawBOMNode
		flat       []dispensing.RequirementRecord
		casePack   *dispensing.CasePackSpec
		historical dispensing.HistoricalTotals
		privilege  dispensing.Privilege = dispensing.Unprivileged{}
		errs       = make(map[string]error)
		errsMu     sync.Mutex
	)
	fail := func(section string, err error) {
		errsMu.Lock()
		errs[section] = err
		errsMu.Unlock()
	}

	var g errgroup.Group
	if order.ProductMaterialID != "" {
		g.Go(func() error {
			var err error
			if bom, err = s.deps.Backend.GetBOMTree(ctx, order.ProductMaterialID); err != nil {
				fail(SectionBOM, err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if casePack, err = s.deps.Backend.GetCasePack(ctx, order.ProductMaterialID); err != nil {
				fail(SectionCasePack, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		if flat, err = s.deps.Backend.GetRequirements(ctx, orderID); err != nil {
			fail(SectionRequirements, err)
		}
		return nil
	})
	if s.deps.Reconciler != nil {
		g.Go(func() error {
			var err error
			if historical, err = s.deps.Reconciler.Reconcile(ctx, orderID); err != nil {
				fail(SectionHistorical, err)
			}
			return nil
		})
	}
	if s.deps.Privileges != nil {
		g.Go(func() error {
			privilege = s.deps.Privileges.Resolve(ctx, s.operator, orderID)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := &orderState{
		order:      *order,
		tree:       dispensing.Merge(dispensing.NormalizeBOM(bom), flat),
		historical: historical,
		privileged: privilege.CanOverrideExcess(),
		store:      dispensing.NewLotAllocationStore(),
		expansion:  make(dispensing.ExpansionState),
	}
	if st.historical == nil {
		st.historical = make(dispensing.HistoricalTotals)
	}
	if casePack != nil {
		st.packaging = dispensing.ComputePackagingRequirements(order.Quantity, *casePack)
	}
	for _, section := range []string{SectionBOM, SectionRequirements, SectionCasePack, SectionHistorical} {
		err, failed := errs[section]
		if !failed {
			continue
		}
		s.logger.Warn("order section fetch failed, using fallback",
			zap.String("order_id", orderID),
			zap.String("section", section),
			zap.Error(err))
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordFetchFailure(ctx, section)
		}
		st.degraded = append(st.degraded, section)
	}
	return st, nil
}

// View returns the current state with a fresh audit and gate decision
func (s *Session) View() *SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	return s.viewLocked()
}

func (s *Session) viewLocked() *SessionView {
	v := &SessionView{OperatorID: s.operator.ID, Generation: s.generation}
	st := s.state
	if st == nil {
		return v
	}
	order := st.order
	v.Order = &order
	v.Tree = st.tree
	v.Allocatable = dispensing.FlattenAllocatable(st.tree)
	v.Packaging = st.packaging
	v.Historical = st.historical
	v.Privileged = st.privileged
	v.Degraded = append([]string(nil), st.degraded...)
	v.Excess, v.Gate = s.auditLocked()
	for _, key := range st.store.Keys() {
		v.Allocations = append(v.Allocations, Allocation{
			Key:   key,
			Lots:  st.store.Lots(key),
			Total: st.store.TotalFor(key),
		})
	}
	for id, open := range st.expansion {
		if open {
			v.Expanded = append(v.Expanded, id)
		}
	}
	slices.Sort(v.Expanded)
	if st.review != nil {
		v.Review = &ReviewView{
			ReviewID: st.review.id,
			Token:    st.review.token,
			Items:    dispensing.BuildLineItems(st.store, st.tree, st.packaging),
			Gate:     v.Gate,
		}
	}
	return v
}

func (s *Session) auditLocked() ([]dispensing.Excess, dispensing.GateDecision) {
	st := s.state
	excess := s.auditor.Audit(dispensing.AuditInput{
		Tree:       st.tree,
		Packaging:  st.packaging,
		Historical: st.historical,
		Store:      st.store,
	})
	return excess, dispensing.EvaluateGate(len(excess) > 0, st.privileged)
}

// requireOrderLocked returns the loaded state or ErrNoOrderSelected
func (s *Session) requireOrderLocked() (*orderState, error) {
	s.lastActive = s.now()
	if s.state == nil {
		return nil, dispensing.ErrNoOrderSelected
	}
	return s.state, nil
}

// requirement is what an allocation key resolves to
type requirement struct {
	materialID string
	name       string
	required   decimal.Decimal
}

func (st *orderState) resolve(key dispensing.AllocationKey) (requirement, error) {
	if tracking, ok := key.TrackingRecord(); ok {
		n := dispensing.FindByTrackingRecord(st.tree, tracking)
		if n == nil || n.Classification() != dispensing.ClassAllocatable {
			return requirement{}, dispensing.ErrUnknownRequirement
		}
		return requirement{materialID: n.MaterialID, name: n.MaterialName, required: n.RequiredQuantity}, nil
	}
	materialID, _ := key.MaterialID()
	if key.IsPackaging() {
		p, found := dispensing.FindPackaging(st.packaging, materialID)
		if !found || !p.IsInventoried {
			return requirement{}, dispensing.ErrUnknownRequirement
		}
		return requirement{materialID: p.MaterialID, name: p.MaterialName, required: p.RequiredQuantity}, nil
	}
	n := dispensing.FindByMaterial(st.tree, materialID)
	if n == nil || n.Classification() != dispensing.ClassAllocatable || n.AllocationKey() != key {
		return requirement{}, dispensing.ErrUnknownRequirement
	}
	return requirement{materialID: n.MaterialID, name: n.MaterialName, required: n.RequiredQuantity}, nil
}

// selectedElsewhere sums the selections of a material held under other keys
func (st *orderState) selectedElsewhere(key dispensing.AllocationKey, materialID string) decimal.Decimal {
	total := decimal.Zero
	for _, k := range st.store.Keys() {
		if k == key {
			continue
		}
		if other, err := st.resolve(k); err == nil && other.materialID == materialID {
			total = total.Add(st.store.TotalFor(k))
		}
	}
	return total
}

// SetLots replaces the lots of one requirement. Changing lots drops an open review.
func (s *Session) SetLots(ctx context.Context, rawKey string, lots []dispensing.SelectedLot) (*SessionView, error) {
	key, err := dispensing.ParseAllocationKey(rawKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.requireOrderLocked()
	if err != nil {
		return nil, err
	}
	if _, err := st.resolve(key); err != nil {
		return nil, err
	}
	if err := st.store.SetLots(key, lots); err != nil {
		return nil, err
	}
	st.review = nil
	s.logger.Debug("lots set", zap.String("key", key.String()), zap.Int("lots", len(lots)))
	return s.viewLocked(), nil
}

// RemoveLot removes one lot from a requirement
func (s *Session) RemoveLot(ctx context.Context, rawKey string, lotID int64) (*SessionView, error) {
	key, err := dispensing.ParseAllocationKey(rawKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.requireOrderLocked()
	if err != nil {
		return nil, err
	}
	if !st.store.RemoveLot(key, lotID) {
		return nil, shared.ErrNotFound.WithMessage(fmt.Sprintf("lot %d is not selected for %s", lotID, key))
	}
	st.review = nil
	return s.viewLocked(), nil
}

// ToggleExpanded opens or closes an expandable node in the tree view
func (s *Session) ToggleExpanded(materialID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.requireOrderLocked()
	if err != nil {
		return false, err
	}
	if dispensing.FindExpandable(st.tree, materialID) == nil {
		return false, shared.ErrNotFound.WithMessage(fmt.Sprintf("%s is not an expandable material", materialID))
	}
	return st.expansion.Toggle(materialID), nil
}

// SuggestLots proposes lots covering what is still missing for a requirement
// once historical dispensations and selections of the same material under
// other keys are counted. The suggestion is not applied.
func (s *Session) SuggestLots(ctx context.Context, rawKey, strategy string) (*dispensing.LotSuggestion, error) {
	key, err := dispensing.ParseAllocationKey(rawKey)
	if err != nil {
		return nil, err
	}
	if s.deps.Pickers == nil {
		return nil, shared.ErrInvalidState.WithMessage("lot suggestions are not configured")
	}
	if strategy == "" {
		strategy = s.cfg.LotStrategy
	}
	picker, err := s.deps.Pickers.Get(strategy)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	st, err := s.requireOrderLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req, err := st.resolve(key)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	remaining := req.required.
		Sub(st.historical.For(req.materialID)).
		Sub(st.selectedElsewhere(key, req.materialID))
	preferred := ""
	if current := st.store.Lots(key); len(current) > 0 {
		preferred = current[0].BatchLabel
	}
	s.mu.Unlock()

	if !remaining.IsPositive() {
		return &dispensing.LotSuggestion{
			Strategy:  picker.Name(),
			Lots:      []dispensing.SelectedLot{},
			Total:     decimal.Zero,
			Shortfall: decimal.Zero,
		}, nil
	}

	lots, err := s.deps.Backend.ListAvailableLots(ctx, req.materialID)
	if err != nil {
		return nil, fmt.Errorf("list lots for %s: %w", req.materialID, err)
	}
	suggestion, err := picker.Pick(ctx, dispensing.LotPickRequest{
		MaterialID:  req.materialID,
		Quantity:    remaining,
		At:          s.now(),
		PreferBatch: preferred,
	}, lots)
	if err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// AvailableLots lists the stock lots of a material, flagging expired ones
func (s *Session) AvailableLots(ctx context.Context, materialID string) ([]AvailableLot, error) {
	materialID = strings.TrimSpace(materialID)
	if materialID == "" {
		return nil, shared.ErrInvalidInput.WithMessage("material id is required")
	}
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()

	lots, err := s.deps.Backend.ListAvailableLots(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("list lots for %s: %w", materialID, err)
	}
	now := s.now()
	out := make([]AvailableLot, 0, len(lots))
	for _, l := range lots {
		if !l.LotID.IsSet() {
			continue
		}
		out = append(out, AvailableLot{InventoryLot: l, Expired: l.IsExpired(now)})
	}
	return out, nil
}

// BeginReview opens the review step and issues a fresh confirmation code.
// It is refused while the gate is blocked.
func (s *Session) BeginReview(ctx context.Context) (*ReviewView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.requireOrderLocked()
	if err != nil {
		return nil, err
	}

	excess, gate := s.auditLocked()
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordExcess(ctx, len(excess))
		if len(excess) > 0 {
			s.deps.Metrics.RecordGate(ctx, gate.Blocked)
		}
	}
	if gate.Blocked {
		return nil, dispensing.ErrExcessBlocked
	}

	items := dispensing.BuildLineItems(st.store, st.tree, st.packaging)
	if len(items) == 0 {
		return nil, dispensing.ErrNothingToSubmit
	}
	token, err := dispensing.NewConfirmationToken()
	if err != nil {
		return nil, err
	}
	st.review = &reviewState{id: uuid.NewString(), token: token}
	s.logger.Info("review started",
		zap.String("order_id", st.order.OrderID),
		zap.String("review_id", st.review.id),
		zap.Int("items", len(items)),
		zap.Bool("warned", gate.Warned))
	return &ReviewView{ReviewID: st.review.id, Token: token, Items: items, Gate: gate}, nil
}

// Submit posts the dispensation. On success the selections and review are reset
// and a DispensationSubmitted event is published. On failure the selections are
// kept so the operator can retry.
func (s *Session) Submit(ctx context.Context, draft dispensing.SubmissionDraft) (*dispensing.SubmissionReceipt, error) {
	ctx, span := telemetry.StartSpan(ctx, "dispensing.submit")
	defer span.End()

	s.mu.Lock()
	st, err := s.requireOrderLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if st.review == nil {
		s.mu.Unlock()
		return nil, dispensing.ErrReviewNotStarted
	}
	_, gate := s.auditLocked()
	if err := draft.Validate(st.review.token, gate); err != nil {
		s.mu.Unlock()
		s.recordSubmission(ctx, telemetry.SubmissionInvalid)
		return nil, err
	}
	items := dispensing.BuildLineItems(st.store, st.tree, st.packaging)
	if len(items) == 0 {
		s.mu.Unlock()
		s.recordSubmission(ctx, telemetry.SubmissionInvalid)
		return nil, dispensing.ErrNothingToSubmit
	}
	d := dispensing.NewDispensation(st.order.OrderID, draft, items)
	gen, rev := st.generation, st.store.Revision()
	idemKey := st.review.id + ":" + strconv.FormatUint(gen, 10)
	s.mu.Unlock()

	if s.deps.Idempotency != nil {
		claimed, err := s.deps.Idempotency.Claim(ctx, idemKey, s.cfg.IdempotencyTTL)
		switch {
		case err != nil:
			s.logger.Warn("idempotency claim failed, submitting unguarded", zap.String("key", idemKey), zap.Error(err))
		case !claimed:
			s.recordSubmission(ctx, telemetry.SubmissionDuplicate)
			return nil, dispensing.ErrDuplicateSubmission
		}
	}

	receipt, err := s.deps.Backend.SubmitDispensation(ctx, d)
	if err != nil {
		if s.deps.Idempotency != nil {
			if relErr := s.deps.Idempotency.Release(ctx, idemKey); relErr != nil {
				s.logger.Warn("idempotency release failed", zap.String("key", idemKey), zap.Error(relErr))
			}
		}
		s.recordSubmission(ctx, telemetry.SubmissionRejected)
		telemetry.RecordError(span, err)
		s.logger.Error("dispensation rejected",
			zap.String("order_id", d.OrderID),
			zap.Int("items", len(d.Items)),
			zap.Error(err))
		return nil, submissionError(err)
	}

	// Selections edited while the POST was in flight are kept for the operator.
	s.mu.Lock()
	if s.state != nil && s.state.generation == gen {
		if s.state.store.Revision() == rev {
			s.state.store.Reset()
			s.state.review = nil
		} else {
			s.logger.Warn("selections changed during submission, keeping them",
				zap.String("order_id", d.OrderID))
		}
	}
	s.mu.Unlock()

	s.recordSubmission(ctx, telemetry.SubmissionAccepted)
	s.logger.Info("dispensation submitted",
		zap.String("order_id", d.OrderID),
		zap.Int64("transaction_id", receipt.TransactionID),
		zap.Int("items", len(d.Items)),
		zap.String("total_quantity", d.TotalQuantity().String()))

	if s.deps.Events != nil {
		evt := dispensing.NewDispensationSubmittedEvent(s.operator.ID, d, gate.Warned)
		if err := s.deps.Events.Publish(ctx, evt); err != nil {
			s.logger.Warn("publishing dispensation submitted failed", zap.Error(err))
		}
	}
	telemetry.SetOK(span)
	return receipt, nil
}

// submissionError keeps the backend message when there is one
func submissionError(err error) error {
	if de, ok := shared.AsDomainError(err); ok && de.Message != "" {
		return dispensing.ErrSubmissionFailed.WithMessage(de.Message)
	}
	return dispensing.ErrSubmissionFailed
}

func (s *Session) recordSubmission(ctx context.Context, outcome telemetry.SubmissionOutcome) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordSubmission(ctx, outcome)
	}
}

// RefreshHistorical re-reads the historical dispensations of the current order
func (s *Session) RefreshHistorical(ctx context.Context) (*SessionView, error) {
	if s.deps.Reconciler == nil {
		return nil, shared.ErrInvalidState.WithMessage("historical reconciliation is not configured")
	}
	s.mu.Lock()
	st, err := s.requireOrderLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	gen, orderID := st.generation, st.order.OrderID
	s.mu.Unlock()

	totals, err := s.deps.Reconciler.Reconcile(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil || s.state.generation != gen {
		return nil, dispensing.ErrOrderSuperseded
	}
	s.state.historical = totals
	s.state.degraded = removeSection(s.state.degraded, SectionHistorical)
	return s.viewLocked(), nil
}

// OrderID returns the loaded order id, empty when none
func (s *Session) OrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return ""
	}
	return s.state.order.OrderID
}

func removeSection(sections []string, target string) []string {
	out := sections[:0:0]
	for _, sec := range sections {
		if sec != target {
			out = append(out, sec)
		}
	}
	return out
}
