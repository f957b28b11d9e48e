package execution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/meililab/backend/internal/commission"
	"github.com/meililab/backend/internal/models"
)

// auditBatch caps how many orders one audit run reports.
const auditBatch = 200

// CommissionAuditArgs triggers a scan for paid orders missing their commission row.
type CommissionAuditArgs struct{}

func (CommissionAuditArgs) Kind() string { return "commission_audit" }

// CommissionAuditor lists paid orders with a referrer and no commission record.
type CommissionAuditor interface {
	PaidWithoutCommission(ctx context.Context, limit int) ([]*models.Order, error)
}

// CommissionAuditWorker reports gaps between fulfilled orders and the
// commission ledger. It never pays anything itself: a missing row cannot tell
// whether the balance increment was applied.
type CommissionAuditWorker struct {
	river.WorkerDefaults[CommissionAuditArgs]
	auditor CommissionAuditor
	rates   commission.RateSource
	log     *slog.Logger
}

func NewCommissionAuditWorker(auditor CommissionAuditor, rates commission.RateSource, log *slog.Logger) *CommissionAuditWorker {
	if log == nil {
		log = slog.Default()
	}
	return &CommissionAuditWorker{auditor: auditor, rates: rates, log: log}
}

func (w *CommissionAuditWorker) Work(ctx context.Context, _ *river.Job[CommissionAuditArgs]) error {
	_, err := RunCommissionAudit(ctx, w.auditor, w.rates, w.log)
	return err
}

// RunCommissionAudit logs every order missing a commission row and returns them.
// Orders whose commission at the current rate rounds to zero are skipped: the
// distributor writes no row for them, so their absence is expected.
func RunCommissionAudit(ctx context.Context, auditor CommissionAuditor, rates commission.RateSource, log *slog.Logger) ([]*models.Order, error) {
	rate, err := rates.CommissionRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("read commission rate: %w", err)
	}
	if !rate.IsPositive() {
		log.Debug("commission audit skipped", "rate", rate.String())
		return nil, nil
	}
	candidates, err := auditor.PaidWithoutCommission(ctx, auditBatch)
	if err != nil {
		return nil, fmt.Errorf("list orders without commission: %w", err)
	}
	var orders []*models.Order
	for _, o := range candidates {
		if commission.Amount(o.Amount, rate).IsPositive() {
			orders = append(orders, o)
		}
	}
	for _, o := range orders {
		log.Warn("paid order has no commission record", "trade_no", o.TradeNo, "user_id", o.UserID, "amount", o.Amount.StringFixed(2))
	}
	if len(orders) > 0 {
		log.Warn("commission audit found gaps", "count", len(orders))
	}
	return orders, nil
}
