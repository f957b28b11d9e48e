// Package fulfillment moves orders from pending to paid exactly once and
// applies the side effects that belong to that transition.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meililab/backend/internal/models"
	"github.com/meililab/backend/internal/repository"
)

var (
	// ErrOrderNotFound is returned for an unknown trade number.
	ErrOrderNotFound = errors.New("order not found")
	// ErrRaceLost is returned when another caller won the pending to paid
	// transition between the read and the conditional update.
	ErrRaceLost = errors.New("race_condition_or_fail")
)

// sideEffectTimeout bounds the credit grant and commission after the order is marked paid.
const sideEffectTimeout = 30 * time.Second

// OrderStore is the order persistence the engine needs. MarkPaid must be a
// single conditional update returning repository.ErrConflict when the order
// was no longer pending.
type OrderStore interface {
	GetByTradeNo(ctx context.Context, tradeNo string) (*models.Order, error)
	MarkPaid(ctx context.Context, tradeNo string, paidAt time.Time) (*models.Order, error)
}

// CreditLedger applies atomic credit increments.
type CreditLedger interface {
	AddCredits(ctx context.Context, userID uuid.UUID, delta int) (int, error)
}

// Distributor pays referral commission for a freshly paid order.
type Distributor interface {
	Distribute(ctx context.Context, order *models.Order)
}

// Result reports the outcome of a successful Fulfill call.
type Result struct {
	AlreadyPaid bool
	Credits     int
}

type Engine struct {
	orders      OrderStore
	credits     CreditLedger
	distributor Distributor
	now         func() time.Time
	log         *slog.Logger
}

func NewEngine(orders OrderStore, credits CreditLedger, distributor Distributor, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{orders: orders, credits: credits, distributor: distributor, now: time.Now, log: log}
}

// Fulfill marks the order paid and grants its credits. Of any number of
// concurrent calls for one trade number exactly one performs the side
// effects; the others see AlreadyPaid or ErrRaceLost.
func (e *Engine) Fulfill(ctx context.Context, tradeNo string) (Result, error) {
	order, err := e.orders.GetByTradeNo(ctx, tradeNo)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{}, ErrOrderNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("load order %s: %w", tradeNo, err)
	}
	if order.IsPaid() {
		return Result{AlreadyPaid: true, Credits: order.Credits}, nil
	}

	paid, err := e.orders.MarkPaid(ctx, tradeNo, e.now().UTC())
	if errors.Is(err, repository.ErrConflict) {
		e.log.Info("fulfillment lost race", "trade_no", tradeNo)
		return Result{}, ErrRaceLost
	}
	if err != nil {
		return Result{}, fmt.Errorf("mark order %s paid: %w", tradeNo, err)
	}

	// The status transition is the commit point; from here on failures are
	// reported but never undo it. The grant must not die with the caller's
	// request, so it runs detached from its cancellation.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if _, err := e.credits.AddCredits(sideCtx, paid.UserID, paid.Credits); err != nil {
		e.log.Error("credit grant failed for paid order", "trade_no", tradeNo, "user_id", paid.UserID, "credits", paid.Credits, "error", err)
	}
	e.distributor.Distribute(sideCtx, paid)

	e.log.Info("order fulfilled", "trade_no", tradeNo, "user_id", paid.UserID, "credits", paid.Credits)
	return Result{Credits: paid.Credits}, nil
}
