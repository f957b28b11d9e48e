package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meililab/backend/internal/models"
)

type DeviceRepo struct {
	pool *pgxpool.Pool
}

func NewDeviceRepo(pool *pgxpool.Pool) *DeviceRepo {
	return &DeviceRepo{pool: pool}
}

// Claim records d.FirstUserID as the first user of d.DeviceID and fills in
// CreatedAt. It reports false when another user already holds the device;
// the insert itself is the arbiter.
func (r *DeviceRepo) Claim(ctx context.Context, d *models.Device) (bool, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO devices (device_id, first_user_id) VALUES ($1, $2)
		ON CONFLICT (device_id) DO NOTHING
		RETURNING created_at
	`, d.DeviceID, d.FirstUserID).Scan(&d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertReferralReward writes the one reward row allowed per device and fills
// in its id and CreatedAt. It reports false when the device was already rewarded.
func (r *DeviceRepo) InsertReferralReward(ctx context.Context, rw *models.ReferralReward) (bool, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO referral_rewards (referrer_id, new_user_id, device_id) VALUES ($1, $2, $3)
		ON CONFLICT (device_id) DO NOTHING
		RETURNING id, created_at
	`, rw.ReferrerID, rw.NewUserID, rw.DeviceID).Scan(&rw.ID, &rw.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *DeviceRepo) CountRewards(ctx context.Context, referrerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM referral_rewards WHERE referrer_id = $1`, referrerID).Scan(&n)
	return n, err
}
