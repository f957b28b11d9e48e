package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meililab/backend/internal/catalog"
	"github.com/meililab/backend/internal/execution"
	"github.com/meililab/backend/internal/fulfillment"
	"github.com/meililab/backend/internal/gateway"
	"github.com/meililab/backend/internal/models"
	"github.com/meililab/backend/internal/repository"
)

// ErrForbidden is returned when a user acts on someone else's order.
var ErrForbidden = errors.New("order belongs to another user")

// Status is what a caller is told about an order after an entry point ran.
type Status string

const (
	StatusPaid        Status = "paid"
	StatusAlreadyPaid Status = "already_paid"
	StatusPending     Status = "pending"
	StatusUnknown     Status = "unknown"
)

type CheckResult struct {
	Status  Status `json:"status"`
	Credits int    `json:"credits"`
}

// Created is a persisted pending order with its payment page.
type Created struct {
	Order  *models.Order
	PayURL string
}

// Store is the order persistence used by the service.
type Store interface {
	Create(ctx context.Context, o *models.Order, afterInsert func(ctx context.Context, tx pgx.Tx) error) error
	GetByTradeNo(ctx context.Context, tradeNo string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Order, error)
}

type Fulfiller interface {
	Fulfill(ctx context.Context, tradeNo string) (fulfillment.Result, error)
}

type Gateway interface {
	PayURL(creds gateway.Credentials, req gateway.PayRequest) (string, error)
	Query(ctx context.Context, creds gateway.Credentials, tradeNo string) (*gateway.QueryResult, error)
}

// Settings supplies gateway credentials and feature toggles.
type Settings interface {
	Credentials(ctx context.Context) (gateway.Credentials, error)
	Enabled(ctx context.Context, key string) bool
}

type Packages interface {
	Lookup(id string) (catalog.Package, error)
}

// InsertPollTxFunc enqueues a PollOrder job within the given transaction. Provided by main using river.Client.InsertTx.
type InsertPollTxFunc func(ctx context.Context, tx pgx.Tx, args execution.PollOrderArgs) error

type Service struct {
	store      Store
	engine     Fulfiller
	gw         Gateway
	settings   Settings
	packages   Packages
	insertPoll InsertPollTxFunc
	now        func() time.Time
	log        *slog.Logger
}

func NewService(store Store, engine Fulfiller, gw Gateway, settings Settings, packages Packages, insertPoll InsertPollTxFunc, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:      store,
		engine:     engine,
		gw:         gw,
		settings:   settings,
		packages:   packages,
		insertPoll: insertPoll,
		now:        time.Now,
		log:        log,
	}
}

var _ execution.OrderPoller = (*Service)(nil)

// CreateOrder persists a pending order for packageID and returns the signed
// payment URL. Missing gateway credentials fail before anything is stored.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, packageID, returnURL string) (*Created, error) {
	pkg, err := s.packages.Lookup(packageID)
	if err != nil {
		return nil, err
	}
	creds, err := s.settings.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if !creds.Configured() {
		return nil, gateway.ErrNotConfigured
	}

	now := s.now()
	tradeNo, err := NewTradeNo(now)
	if err != nil {
		return nil, err
	}
	order := &models.Order{
		TradeNo: tradeNo,
		UserID:  userID,
		Amount:  pkg.Amount,
		Credits: pkg.Credits,
		Status:  models.OrderStatusPending,
	}
	payURL, err := s.gw.PayURL(creds, gateway.PayRequest{
		TradeNo:   tradeNo,
		Amount:    pkg.Amount,
		Subject:   fmt.Sprintf("Meili Lab recharge %d credits", pkg.Credits),
		ReturnURL: returnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build pay url: %w", err)
	}

	err = s.store.Create(ctx, order, func(ctx context.Context, tx pgx.Tx) error {
		if s.insertPoll == nil {
			return nil
		}
		return s.insertPoll(ctx, tx, execution.PollOrderArgs{TradeNo: tradeNo, CreatedAt: now})
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.log.Info("order created", "trade_no", tradeNo, "user_id", userID, "package_id", pkg.ID, "amount", pkg.Amount.StringFixed(2))
	return &Created{Order: order, PayURL: payURL}, nil
}

// HandleNotify processes a gateway notification. Unverifiable or unsuccessful
// notifications are logged and ignored.
func (s *Service) HandleNotify(ctx context.Context, form url.Values) error {
	n := gateway.ParseNotification(form)
	log := s.log.With("trade_no", n.TradeNo, "trade_status", n.TradeStatus)

	creds, err := s.settings.Credentials(ctx)
	if err != nil {
		log.Error("notify: read gateway config failed", "error", err)
		return err
	}
	if creds.PublicKey != "" {
		if err := n.Verify(creds.PublicKey); err != nil {
			log.Warn("notify: signature rejected", "error", err)
			return err
		}
	} else {
		log.Warn("notify: no gateway public key configured, signature not verified")
	}
	if !n.Succeeded() {
		log.Info("notify: trade not successful, ignoring")
		return nil
	}
	res, err := s.settle(ctx, n.TradeNo)
	if err != nil {
		log.Error("notify: fulfillment failed", "error", err)
		return err
	}
	log.Info("notify: processed", "status", res.Status, "credits", res.Credits)
	return nil
}

// Check actively asks the gateway about a pending order and fulfills it when
// the gateway reports success. Gateway trouble reads as pending, never failed.
func (s *Service) Check(ctx context.Context, tradeNo string) (CheckResult, error) {
	order, err := s.store.GetByTradeNo(ctx, tradeNo)
	if errors.Is(err, repository.ErrNotFound) {
		return CheckResult{Status: StatusUnknown}, nil
	}
	if err != nil {
		return CheckResult{}, err
	}
	if order.IsPaid() {
		return CheckResult{Status: StatusPaid, Credits: order.Credits}, nil
	}
	if !s.gatewayPaid(ctx, tradeNo) {
		return CheckResult{Status: StatusPending}, nil
	}
	res, err := s.settle(ctx, tradeNo)
	if err != nil {
		return CheckResult{}, err
	}
	if res.Status == StatusAlreadyPaid {
		res.Status = StatusPaid
	}
	return res, nil
}

// PollOrder implements execution.OrderPoller.
func (s *Service) PollOrder(ctx context.Context, tradeNo string) (bool, error) {
	res, err := s.Check(ctx, tradeNo)
	if err != nil {
		return false, err
	}
	return res.Status != StatusPending, nil
}

// Confirm is the manual "I have paid" path. The order must belong to userID.
// When manual_confirm_requires_gateway is on the gateway must agree first.
func (s *Service) Confirm(ctx context.Context, tradeNo string, userID uuid.UUID) (CheckResult, error) {
	order, err := s.store.GetByTradeNo(ctx, tradeNo)
	if errors.Is(err, repository.ErrNotFound) {
		return CheckResult{}, fulfillment.ErrOrderNotFound
	}
	if err != nil {
		return CheckResult{}, err
	}
	if order.UserID != userID {
		return CheckResult{}, ErrForbidden
	}
	return s.confirm(ctx, order)
}

// ForceConfirm fulfills an order on an operator's behalf, bypassing ownership.
func (s *Service) ForceConfirm(ctx context.Context, tradeNo string) (CheckResult, error) {
	return s.settle(ctx, tradeNo)
}

func (s *Service) confirm(ctx context.Context, order *models.Order) (CheckResult, error) {
	if order.IsPaid() {
		return CheckResult{Status: StatusAlreadyPaid, Credits: order.Credits}, nil
	}
	if s.settings.Enabled(ctx, models.ConfigManualConfirmRequiresGateway) && !s.gatewayPaid(ctx, order.TradeNo) {
		return CheckResult{Status: StatusPending}, nil
	}
	return s.settle(ctx, order.TradeNo)
}

// Get returns the caller's own order.
func (s *Service) Get(ctx context.Context, tradeNo string, userID uuid.UUID) (*models.Order, error) {
	order, err := s.store.GetByTradeNo(ctx, tradeNo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fulfillment.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	return s.store.ListByUser(ctx, userID, 50)
}

// gatewayPaid reports whether the gateway confirms the trade. Any failure
// counts as not yet paid.
func (s *Service) gatewayPaid(ctx context.Context, tradeNo string) bool {
	creds, err := s.settings.Credentials(ctx)
	if err != nil {
		s.log.Warn("read gateway config failed", "trade_no", tradeNo, "error", err)
		return false
	}
	res, err := s.gw.Query(ctx, creds, tradeNo)
	if err != nil {
		s.log.Warn("trade query failed", "trade_no", tradeNo, "error", err)
		return false
	}
	return res.Paid()
}

// settle runs the fulfillment engine and maps its outcome. A caller that lost
// the race re-reads the order and reports it paid once the winner committed.
func (s *Service) settle(ctx context.Context, tradeNo string) (CheckResult, error) {
	res, err := s.engine.Fulfill(ctx, tradeNo)
	switch {
	case err == nil && res.AlreadyPaid:
		return CheckResult{Status: StatusAlreadyPaid, Credits: res.Credits}, nil
	case err == nil:
		return CheckResult{Status: StatusPaid, Credits: res.Credits}, nil
	case errors.Is(err, fulfillment.ErrRaceLost):
		order, gerr := s.store.GetByTradeNo(ctx, tradeNo)
		if gerr == nil && order.IsPaid() {
			return CheckResult{Status: StatusAlreadyPaid, Credits: order.Credits}, nil
		}
		return CheckResult{}, err
	default:
		return CheckResult{}, err
	}
}
