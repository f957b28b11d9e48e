package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, username, password_hash, nickname, credits, points, commission_balance::text,
	referrer_id, device_id, register_env, is_admin, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var balance string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Nickname, &u.Credits, &u.Points, &balance,
		&u.ReferrerID, &u.DeviceID, &u.RegisterEnv, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse commission balance %q: %w", balance, err)
	}
	u.CommissionBalance = d
	return &u, nil
}

// Create inserts u and fills in its generated id and timestamps.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, nickname, referrer_id, device_id, register_env, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, u.Username, u.PasswordHash, u.Nickname, u.ReferrerID, u.DeviceID, u.RegisterEnv, u.IsAdmin).Scan(&u.ID, &u.CreatedAt)
	return translate(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// ReferrerOf returns the referrer of userID, or nil when the user has none.
func (r *UserRepo) ReferrerOf(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	var referrer *uuid.UUID
	if err := r.pool.QueryRow(ctx, `SELECT referrer_id FROM users WHERE id = $1`, userID).Scan(&referrer); err != nil {
		return nil, translate(err)
	}
	return referrer, nil
}

// ReferralCandidates returns users whose device fingerprint contains suffix,
// case-insensitively, oldest first.
func (r *UserRepo) ReferralCandidates(ctx context.Context, suffix string, limit int) ([]models.ReferralCandidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, device_id, is_admin, created_at
		FROM users
		WHERE device_id ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at ASC
		LIMIT $2
	`, escapeLike(suffix), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ReferralCandidate
	for rows.Next() {
		var c models.ReferralCandidate
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.IsAdmin, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ListReferred returns the users referred by referrerID with their paid recharge totals.
func (r *UserRepo) ListReferred(ctx context.Context, referrerID uuid.UUID) ([]models.ReferredUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.username, u.register_env, COALESCE(SUM(o.amount) FILTER (WHERE o.status = 'paid'), 0)::text, u.created_at
		FROM users u
		LEFT JOIN orders o ON o.user_id = u.id
		WHERE u.referrer_id = $1
		GROUP BY u.id
		ORDER BY u.created_at DESC
	`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ReferredUser
	for rows.Next() {
		var ru models.ReferredUser
		var total string
		if err := rows.Scan(&ru.ID, &ru.Username, &ru.RegisterEnv, &total, &ru.CreatedAt); err != nil {
			return nil, err
		}
		if ru.TotalRecharge, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse recharge total %q: %w", total, err)
		}
		list = append(list, ru)
	}
	return list, rows.Err()
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}
