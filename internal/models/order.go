package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order status enums. The only legal transition is pending -> paid.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
)

// Order is a purchase of credits. TradeNo is the caller-visible key shared with
// the payment gateway as out_trade_no.
type Order struct {
	ID        uuid.UUID       `json:"id"`
	TradeNo   string          `json:"trade_no"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Credits   int             `json:"credits"`
	Status    string          `json:"status"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsPaid reports whether the order has been fulfilled.
func (o *Order) IsPaid() bool { return o.Status == OrderStatusPaid }
