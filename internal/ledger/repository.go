package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrAccountNotFound is returned when an increment targets a user that does not exist.
var ErrAccountNotFound = errors.New("account not found")

// ErrNegativeBalance is returned when a signed adjustment would take a balance below zero.
var ErrNegativeBalance = errors.New("balance would become negative")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AddCredits applies a signed delta to the user's credit balance in one
// statement and returns the new balance. Concurrent increments never lose updates.
func (r *Repository) AddCredits(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET credits = credits + $1
		WHERE id = $2 AND credits + $1 >= 0
		RETURNING credits
	`, delta, userID).Scan(&balance)
	if err != nil {
		return 0, r.missing(ctx, userID, err)
	}
	return balance, nil
}

// AddPoints applies a signed delta to the user's points.
func (r *Repository) AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET points = points + $1
		WHERE id = $2 AND points + $1 >= 0
		RETURNING points
	`, delta, userID).Scan(&balance)
	if err != nil {
		return 0, r.missing(ctx, userID, err)
	}
	return balance, nil
}

// AddCommission applies a signed decimal delta to the user's commission balance.
func (r *Repository) AddCommission(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance string
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET commission_balance = commission_balance + $1::numeric
		WHERE id = $2 AND commission_balance + $1::numeric >= 0
		RETURNING commission_balance::text
	`, delta.StringFixed(2), userID).Scan(&balance)
	if err != nil {
		return decimal.Zero, r.missing(ctx, userID, err)
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse commission balance %q: %w", balance, err)
	}
	return d, nil
}

// missing distinguishes an unknown user from a guarded update that matched no row.
func (r *Repository) missing(ctx context.Context, userID uuid.UUID, err error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if qerr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); qerr != nil {
		return qerr
	}
	if !exists {
		return ErrAccountNotFound
	}
	return ErrNegativeBalance
}
