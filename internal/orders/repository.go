package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/models"
	"github.com/meililab/backend/internal/repository"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, trade_no, user_id, amount::text, credits, status, paid_at, created_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var amount string
	if err := row.Scan(&o.ID, &o.TradeNo, &o.UserID, &amount, &o.Credits, &o.Status, &o.PaidAt, &o.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse order amount %q: %w", amount, err)
	}
	o.Amount = d
	return &o, nil
}

// Create inserts a pending order and runs afterInsert in the same
// transaction, so follow-up work is enqueued only if the order commits.
func (r *Repository) Create(ctx context.Context, o *models.Order, afterInsert func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (trade_no, user_id, amount, credits, status)
		VALUES ($1, $2, $3::numeric, $4, 'pending')
		RETURNING id, status, created_at
	`, o.TradeNo, o.UserID, o.Amount.StringFixed(2), o.Credits).Scan(&o.ID, &o.Status, &o.CreatedAt)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	if afterInsert != nil {
		if err := afterInsert(ctx, tx); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) GetByTradeNo(ctx context.Context, tradeNo string) (*models.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE trade_no = $1`, tradeNo))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return o, err
}

// MarkPaid moves the order from pending to paid in a single conditional
// statement. repository.ErrConflict means the order was not pending.
func (r *Repository) MarkPaid(ctx context.Context, tradeNo string, paidAt time.Time) (*models.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders SET status = 'paid', paid_at = $2
		WHERE trade_no = $1 AND status = 'pending'
		RETURNING `+orderColumns, tradeNo, paidAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrConflict
	}
	return o, err
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// Stats aggregates paid orders.
type Stats struct {
	PaidOrders int             `json:"paid_orders"`
	Revenue    decimal.Decimal `json:"revenue"`
}

func (r *Repository) PaidStats(ctx context.Context) (Stats, error) {
	var s Stats
	var revenue string
	err := r.pool.QueryRow(ctx, `
		SELECT count(*), COALESCE(SUM(amount), 0)::text FROM orders WHERE status = 'paid'
	`).Scan(&s.PaidOrders, &revenue)
	if err != nil {
		return s, err
	}
	s.Revenue, err = decimal.NewFromString(revenue)
	return s, err
}

// PaidWithoutCommission lists paid orders whose purchaser has a referrer but
// for which no commission row exists.
func (r *Repository) PaidWithoutCommission(ctx context.Context, limit int) ([]*models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.trade_no, o.user_id, o.amount::text, o.credits, o.status, o.paid_at, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.status = 'paid'
			AND u.referrer_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM commissions c WHERE c.order_id = o.id)
		ORDER BY o.paid_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}
