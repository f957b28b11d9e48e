package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meililab/backend/internal/admin"
	"github.com/meililab/backend/internal/auth"
	"github.com/meililab/backend/internal/dashboard"
	"github.com/meililab/backend/internal/middleware"
	"github.com/meililab/backend/internal/orders"
)

// Handlers bundles the per-area HTTP handlers mounted under /api/v1.
type Handlers struct {
	Auth      *auth.Handler
	Orders    *orders.Handler
	Dashboard *dashboard.Handler
	Admin     *admin.Handler
}

// New returns an http.Handler that serves the API under /api/v1. Member routes
// require a bearer token; admin routes also require the admin flag.
func New(h Handlers, tokens middleware.TokenValidator, users middleware.UserLookup) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)
		r.Get("/packages", h.Orders.ListPackages)

		// Gateway callback: unauthenticated, always answered with "success".
		r.Post("/payments/alipay/notify", h.Orders.Notify)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(tokens))

			r.Get("/account/me", h.Dashboard.GetMe)
			r.Get("/referral/code", h.Dashboard.GetReferralCode)
			r.Get("/referral/history", h.Dashboard.GetReferralHistory)
			r.Get("/referral/stats", h.Dashboard.GetReferralStats)
			r.Get("/commissions", h.Dashboard.ListCommissions)

			r.Post("/orders", h.Orders.CreateOrder)
			r.Get("/orders", h.Orders.ListOrders)
			r.Get("/orders/{tradeNo}", h.Orders.GetOrder)
			r.Post("/orders/{tradeNo}/check", h.Orders.CheckOrder)
			r.Post("/orders/{tradeNo}/confirm", h.Orders.ConfirmOrder)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(users))
				r.Get("/config", h.Admin.GetConfig)
				r.Put("/config", h.Admin.UpdateConfig)
				r.Get("/stats", h.Admin.GetStats)
				r.Get("/commissions", h.Admin.ListCommissions)
				r.Post("/balance", h.Admin.AdjustBalance)
				r.Post("/orders/{tradeNo}/fulfill", h.Admin.FulfillOrder)
			})
		})
	})
	return r
}
