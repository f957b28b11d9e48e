// Package app assembles the repositories and services shared by the API
// server and the operator CLI.
package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meililab/backend/internal/admin"
	"github.com/meililab/backend/internal/appconfig"
	"github.com/meililab/backend/internal/auth"
	"github.com/meililab/backend/internal/catalog"
	"github.com/meililab/backend/internal/commission"
	"github.com/meililab/backend/internal/config"
	"github.com/meililab/backend/internal/fulfillment"
	"github.com/meililab/backend/internal/gateway"
	"github.com/meililab/backend/internal/ledger"
	"github.com/meililab/backend/internal/orders"
	"github.com/meililab/backend/internal/referral"
	"github.com/meililab/backend/internal/repository"
)

type App struct {
	Users       *repository.UserRepo
	Devices     *repository.DeviceRepo
	Commissions *repository.CommissionRepo
	OrderRepo   *orders.Repository

	Ledger   ledger.Service
	Settings *appconfig.Service
	Catalog  *catalog.Catalog
	Resolver *referral.Resolver
	Engine   *fulfillment.Engine

	Orders *orders.Service
	Auth   auth.Service
	Admin  *admin.Service
}

// New wires every service over pool. insertPoll may be nil for callers that
// never create orders.
func New(cfg *config.Config, pool *pgxpool.Pool, insertPoll orders.InsertPollTxFunc, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	a := &App{
		Users:       repository.NewUserRepo(pool),
		Devices:     repository.NewDeviceRepo(pool),
		Commissions: repository.NewCommissionRepo(pool),
		OrderRepo:   orders.NewRepository(pool),
		Ledger:      ledger.NewService(ledger.NewRepository(pool)),
		Catalog:     cat,
	}
	a.Settings = appconfig.New(repository.NewConfigRepo(pool), cfg.Alipay, log)
	a.Resolver = referral.NewResolver(a.Users, log)

	distributor := commission.NewDistributor(a.Users, a.Settings, a.Ledger, a.Commissions, log)
	a.Engine = fulfillment.NewEngine(a.OrderRepo, a.Ledger, distributor, log)

	gw := gateway.NewClient(cfg.GatewayTimeout, log)
	a.Orders = orders.NewService(a.OrderRepo, a.Engine, gw, a.Settings, cat, insertPoll, log)

	a.Auth = auth.NewService(auth.Deps{
		Users:       a.Users,
		Credentials: auth.NewRepository(pool),
		Devices:     a.Devices,
		Ledger:      a.Ledger,
		Referrals:   a.Resolver,
		Toggles:     a.Settings,
	}, cfg.JWTSecret, log)

	a.Admin = admin.NewService(a.Users, a.OrderRepo, a.Commissions, a.Ledger, a.Settings, a.Orders, log)
	return a, nil
}
