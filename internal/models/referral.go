package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Device records the first user registered from a fingerprint.
type Device struct {
	DeviceID    string    `json:"device_id"`
	FirstUserID uuid.UUID `json:"first_user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReferralReward is written at most once per device fingerprint.
type ReferralReward struct {
	ID         uuid.UUID `json:"id"`
	ReferrerID uuid.UUID `json:"referrer_id"`
	NewUserID  uuid.UUID `json:"new_user_id"`
	DeviceID   string    `json:"device_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Commission ledger status enums.
const (
	CommissionStatusCompleted = "completed"
)

// Commission is an append-only ledger entry: one per fulfilled order with a referrer.
type Commission struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	SourceUserID uuid.UUID       `json:"source_user_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CommissionView joins the ledger entry with beneficiary and source usernames for admin listings.
type CommissionView struct {
	Commission
	Username       string `json:"username"`
	SourceUsername string `json:"source_username"`
}
