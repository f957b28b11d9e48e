// Package commission credits referrers with a share of their referees' purchases.
package commission

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/models"
)

// ReferrerLookup resolves who referred a user, if anyone.
type ReferrerLookup interface {
	ReferrerOf(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
}

// RateSource supplies the commission percentage.
type RateSource interface {
	CommissionRate(ctx context.Context) (decimal.Decimal, error)
}

// BalanceLedger applies atomic commission balance increments.
type BalanceLedger interface {
	AddCommission(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

// Recorder appends commission ledger rows.
type Recorder interface {
	Create(ctx context.Context, c *models.Commission) error
}

type Distributor struct {
	users    ReferrerLookup
	rates    RateSource
	ledger   BalanceLedger
	recorder Recorder
	log      *slog.Logger
}

func NewDistributor(users ReferrerLookup, rates RateSource, ledger BalanceLedger, recorder Recorder, log *slog.Logger) *Distributor {
	if log == nil {
		log = slog.Default()
	}
	return &Distributor{users: users, rates: rates, ledger: ledger, recorder: recorder, log: log}
}

// Amount computes amount * rate / 100 rounded to cents.
func Amount(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// Distribute pays the purchaser's referrer for order. It never fails the
// caller: every error is logged and the order stays fulfilled.
func (d *Distributor) Distribute(ctx context.Context, order *models.Order) {
	log := d.log.With("trade_no", order.TradeNo, "user_id", order.UserID)

	referrer, err := d.users.ReferrerOf(ctx, order.UserID)
	if err != nil {
		log.Error("commission: lookup referrer failed", "error", err)
		return
	}
	if referrer == nil || *referrer == uuid.Nil {
		return
	}

	rate, err := d.rates.CommissionRate(ctx)
	if err != nil {
		log.Error("commission: read rate failed", "error", err)
		return
	}
	amount := Amount(order.Amount, rate)
	if !amount.IsPositive() {
		return
	}

	if _, err := d.ledger.AddCommission(ctx, *referrer, amount); err != nil {
		log.Error("commission: balance increment failed", "referrer_id", *referrer, "amount", amount.StringFixed(2), "error", err)
		return
	}
	entry := &models.Commission{
		UserID:       *referrer,
		SourceUserID: order.UserID,
		OrderID:      order.ID,
		Amount:       amount,
		Status:       models.CommissionStatusCompleted,
	}
	if err := d.recorder.Create(ctx, entry); err != nil {
		log.Error("commission: ledger append failed after balance increment", "referrer_id", *referrer, "amount", amount.StringFixed(2), "error", err)
		return
	}
	log.Info("commission paid", "referrer_id", *referrer, "amount", amount.StringFixed(2), "rate", rate.String())
}
