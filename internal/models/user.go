package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Registration environments derived from the User-Agent header.
const (
	EnvWeChat  = "wechat"
	EnvQQ      = "qq"
	EnvBrowser = "browser"
	EnvOther   = "other"
)

type User struct {
	ID                uuid.UUID       `json:"id"`
	Username          string          `json:"username"`
	PasswordHash      string          `json:"-"`
	Nickname          string          `json:"nickname"`
	Credits           int             `json:"credits"`
	Points            int             `json:"points"`
	CommissionBalance decimal.Decimal `json:"commission_balance"`
	ReferrerID        *uuid.UUID      `json:"referrer_id,omitempty"`
	DeviceID          string          `json:"device_id,omitempty"`
	RegisterEnv       string          `json:"register_env"`
	IsAdmin           bool            `json:"is_admin"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ReferralCandidate is the projection the referral resolver searches over.
type ReferralCandidate struct {
	ID        uuid.UUID
	DeviceID  string
	IsAdmin   bool
	CreatedAt time.Time
}

// ReferredUser is one row of a referrer's history.
type ReferredUser struct {
	ID            uuid.UUID       `json:"id"`
	Username      string          `json:"username"`
	RegisterEnv   string          `json:"register_env"`
	TotalRecharge decimal.Decimal `json:"total_recharge"`
	CreatedAt     time.Time       `json:"created_at"`
}
