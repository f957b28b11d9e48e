// Package admin implements operator tooling: runtime settings, headline
// stats, the commission ledger, manual balance adjustments and manual order
// fulfillment.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/models"
	"github.com/meililab/backend/internal/orders"
)

// Adjustable balances.
const (
	KindCredits    = "credits"
	KindPoints     = "points"
	KindCommission = "commission"
)

// ErrInvalidAdjustment is returned for a zero delta, a fractional credit or
// point delta, or an unknown balance kind.
var ErrInvalidAdjustment = errors.New("invalid balance adjustment")

type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

type OrderStats interface {
	PaidStats(ctx context.Context) (orders.Stats, error)
}

type CommissionStore interface {
	List(ctx context.Context, limit int) ([]models.CommissionView, error)
	Total(ctx context.Context) (decimal.Decimal, error)
}

type Ledger interface {
	AddCredits(ctx context.Context, userID uuid.UUID, delta int) (int, error)
	AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error)
	AddCommission(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

type Settings interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

// OrderFulfiller confirms an order without an ownership check.
type OrderFulfiller interface {
	ForceConfirm(ctx context.Context, tradeNo string) (orders.CheckResult, error)
}

type Stats struct {
	Users           int             `json:"users"`
	PaidOrders      int             `json:"paid_orders"`
	Revenue         decimal.Decimal `json:"revenue"`
	CommissionTotal decimal.Decimal `json:"commission_total"`
}

type Adjustment struct {
	UserID uuid.UUID
	Kind   string
	Delta  decimal.Decimal
}

// AdjustResult carries the balance after an adjustment, rendered as a string
// so credit, point and commission balances share one shape.
type AdjustResult struct {
	UserID  uuid.UUID `json:"user_id"`
	Kind    string    `json:"kind"`
	Balance string    `json:"balance"`
}

type Service struct {
	users       UserCounter
	orders      OrderStats
	commissions CommissionStore
	ledger      Ledger
	settings    Settings
	fulfiller   OrderFulfiller
	log         *slog.Logger
}

func NewService(users UserCounter, orderStats OrderStats, commissions CommissionStore, ledger Ledger, settings Settings, fulfiller OrderFulfiller, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:       users,
		orders:      orderStats,
		commissions: commissions,
		ledger:      ledger,
		settings:    settings,
		fulfiller:   fulfiller,
		log:         log,
	}
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Users, err = s.users.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	paid, err := s.orders.PaidStats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("paid order stats: %w", err)
	}
	st.PaidOrders, st.Revenue = paid.PaidOrders, paid.Revenue
	if st.CommissionTotal, err = s.commissions.Total(ctx); err != nil {
		return Stats{}, fmt.Errorf("commission total: %w", err)
	}
	return st, nil
}

func (s *Service) Commissions(ctx context.Context, limit int) ([]models.CommissionView, error) {
	return s.commissions.List(ctx, limit)
}

func (s *Service) Config(ctx context.Context) (map[string]string, error) {
	return s.settings.All(ctx)
}

func (s *Service) SetConfig(ctx context.Context, key, value string) error {
	return s.settings.Set(ctx, key, value)
}

// Adjust applies a signed delta through the same atomic increments the
// fulfillment and reward paths use.
func (s *Service) Adjust(ctx context.Context, adj Adjustment) (AdjustResult, error) {
	if adj.Delta.IsZero() {
		return AdjustResult{}, fmt.Errorf("%w: delta must be non-zero", ErrInvalidAdjustment)
	}
	res := AdjustResult{UserID: adj.UserID, Kind: adj.Kind}
	switch adj.Kind {
	case KindCredits, KindPoints:
		if !adj.Delta.IsInteger() {
			return AdjustResult{}, fmt.Errorf("%w: %s delta must be a whole number", ErrInvalidAdjustment, adj.Kind)
		}
		add := s.ledger.AddCredits
		if adj.Kind == KindPoints {
			add = s.ledger.AddPoints
		}
		balance, err := add(ctx, adj.UserID, int(adj.Delta.IntPart()))
		if err != nil {
			return AdjustResult{}, err
		}
		res.Balance = fmt.Sprint(balance)
	case KindCommission:
		balance, err := s.ledger.AddCommission(ctx, adj.UserID, adj.Delta)
		if err != nil {
			return AdjustResult{}, err
		}
		res.Balance = balance.StringFixed(2)
	default:
		return AdjustResult{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidAdjustment, adj.Kind)
	}
	s.log.Info("balance adjusted", "user_id", adj.UserID, "kind", adj.Kind, "delta", adj.Delta.String(), "balance", res.Balance)
	return res, nil
}

func (s *Service) Fulfill(ctx context.Context, tradeNo string) (orders.CheckResult, error) {
	res, err := s.fulfiller.ForceConfirm(ctx, tradeNo)
	if err != nil {
		return orders.CheckResult{}, err
	}
	s.log.Info("order fulfilled by operator", "trade_no", tradeNo, "status", res.Status)
	return res, nil
}
