package dispensing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize       = 100
	defaultMaxConcurrency = 8
	// maxTransactionPages stops a misbehaving backend from paging forever
	maxTransactionPages = 1000
)

// ReconcilerConfig configures the historical reconciliation
type ReconcilerConfig struct {
	Cause          string
	PageSize       int
	MaxConcurrency int
}

// Reconciler sums what prior warehouse transactions already dispensed for an order
type Reconciler struct {
	backend Backend
	cfg     ReconcilerConfig
	metrics *telemetry.DispensingMetrics
	logger  *zap.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(backend Backend, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	return &Reconciler{backend: backend, cfg: cfg, logger: logger}
}

// WithMetrics sets the metrics recorder
func (r *Reconciler) WithMetrics(m *telemetry.DispensingMetrics) *Reconciler {
	r.metrics = m
	return r
}

// Reconcile returns the historical totals of the order.
// A failing movement-lines fetch counts as an empty transaction; a failing
// transaction listing or a cancelled context fails the whole reconciliation.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string) (dispensing.HistoricalTotals, error) {
	ctx, span := telemetry.StartSpan(ctx, "dispensing.reconcile_historical", "order_id", orderID)
	defer span.End()
	start := time.Now()

	txs, err := r.listTransactions(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	lines := make([][]dispensing.HistoricalDispensationLine, len(txs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrency)
	for i, tx := range txs {
		g.Go(func() error {
			got, err := r.backend.GetMovementLines(gctx, tx.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("movement lines fetch failed, counting transaction as empty",
					zap.String("order_id", orderID),
					zap.Int64("transaction_id", tx.ID),
					zap.Error(err))
				if r.metrics != nil {
					r.metrics.RecordFetchFailure(ctx, "movement_lines")
				}
				return nil
			}
			lines[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("reconcile historical for order %s: %w", orderID, err)
	}

	all := make([]dispensing.HistoricalDispensationLine, 0)
	for _, l := range lines {
		all = append(all, l...)
	}
	totals := dispensing.AggregateHistorical(all)

	if r.metrics != nil {
		r.metrics.RecordReconciliation(ctx, time.Since(start))
	}
	r.logger.Debug("historical reconciled",
		zap.String("order_id", orderID),
		zap.Int("transactions", len(txs)),
		zap.Int("lines", len(all)))
	telemetry.SetOK(span)
	return totals, nil
}

func (r *Reconciler) listTransactions(ctx context.Context, orderID string) ([]dispensing.HistoricalTransaction, error) {
	txs := make([]dispensing.HistoricalTransaction, 0)
	for page := 1; page <= maxTransactionPages; page++ {
		p, err := r.backend.ListHistoricalTransactions(ctx, orderID, r.cfg.Cause, page, r.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("list historical transactions for order %s: %w", orderID, err)
		}
		txs = append(txs, p.Items...)
		if !p.HasNext() || len(p.Items) == 0 {
			break
		}
	}
	return txs, nil
}
