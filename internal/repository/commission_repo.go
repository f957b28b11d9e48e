package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/models"
)

type CommissionRepo struct {
	pool *pgxpool.Pool
}

func NewCommissionRepo(pool *pgxpool.Pool) *CommissionRepo {
	return &CommissionRepo{pool: pool}
}

// Create appends one ledger row.
func (r *CommissionRepo) Create(ctx context.Context, c *models.Commission) error {
	if c.Status == "" {
		c.Status = models.CommissionStatusCompleted
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO commissions (user_id, source_user_id, order_id, amount, status)
		VALUES ($1, $2, $3, $4::numeric, $5)
		RETURNING id, created_at
	`, c.UserID, c.SourceUserID, c.OrderID, c.Amount.StringFixed(2), c.Status).Scan(&c.ID, &c.CreatedAt)
}

// ListByUser returns commissions earned by userID, newest first.
func (r *CommissionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.CommissionView, error) {
	return r.list(ctx, `WHERE c.user_id = $1`, limit, userID)
}

// List returns all commissions, newest first.
func (r *CommissionRepo) List(ctx context.Context, limit int) ([]models.CommissionView, error) {
	return r.list(ctx, ``, limit)
}

func (r *CommissionRepo) list(ctx context.Context, where string, limit int, args ...any) ([]models.CommissionView, error) {
	args = append(args, limit)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT c.id, c.user_id, c.source_user_id, c.order_id, c.amount::text, c.status, c.created_at,
			u.username, s.username
		FROM commissions c
		JOIN users u ON u.id = c.user_id
		JOIN users s ON s.id = c.source_user_id
		%s
		ORDER BY c.created_at DESC
		LIMIT $%d
	`, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CommissionView
	for rows.Next() {
		var v models.CommissionView
		var amount string
		if err := rows.Scan(&v.ID, &v.UserID, &v.SourceUserID, &v.OrderID, &amount, &v.Status, &v.CreatedAt,
			&v.Username, &v.SourceUsername); err != nil {
			return nil, err
		}
		if v.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse commission amount %q: %w", amount, err)
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// Total returns the sum of all commissions paid out.
func (r *CommissionRepo) Total(ctx context.Context) (decimal.Decimal, error) {
	var total string
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text FROM commissions`).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(total)
}
