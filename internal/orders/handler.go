package orders

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/catalog"
	"github.com/meililab/backend/internal/fulfillment"
	"github.com/meililab/backend/internal/gateway"
	"github.com/meililab/backend/internal/middleware"
	"github.com/meililab/backend/internal/models"
	"github.com/meililab/backend/internal/validation"
)

// Request/response structs use snake_case JSON.

type CreateOrderRequest struct {
	PackageID string `json:"package_id"`
	ReturnURL string `json:"return_url"`
}

type CreateOrderResponse struct {
	TradeNo string          `json:"trade_no"`
	Amount  decimal.Decimal `json:"amount"`
	Credits int             `json:"credits"`
	PayURL  string          `json:"pay_url"`
}

type OrderResponse struct {
	TradeNo   string          `json:"trade_no"`
	Amount    decimal.Decimal `json:"amount"`
	Credits   int             `json:"credits"`
	Status    string          `json:"status"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Catalog lists purchasable packages.
type Catalog interface {
	List() []catalog.Package
}

type Handler struct {
	svc       *Service
	catalog   Catalog
	validator *validation.Validator
	log       *slog.Logger
}

func NewHandler(svc *Service, catalog Catalog, validator *validation.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, catalog: catalog, validator: validator, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GET /api/v1/packages
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}

// POST /api/v1/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var req CreateOrderRequest
	if err := h.validator.Decode(validation.CreateOrder, body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.svc.CreateOrder(r.Context(), userID, req.PackageID, req.ReturnURL)
	if err != nil {
		h.writeServiceError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateOrderResponse{
		TradeNo: created.Order.TradeNo,
		Amount:  created.Order.Amount,
		Credits: created.Order.Credits,
		PayURL:  created.PayURL,
	})
}

// GET /api/v1/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListByUser(r.Context(), middleware.UserIDFromCtx(r.Context()))
	if err != nil {
		h.writeServiceError(w, "list orders", err)
		return
	}
	resp := make([]OrderResponse, 0, len(list))
	for _, o := range list {
		resp = append(resp, orderToResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/orders/{tradeNo}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Get(r.Context(), chi.URLParam(r, "tradeNo"), middleware.UserIDFromCtx(r.Context()))
	if err != nil {
		h.writeServiceError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(o))
}

// POST /api/v1/orders/{tradeNo}/check
func (h *Handler) CheckOrder(w http.ResponseWriter, r *http.Request) {
	tradeNo := chi.URLParam(r, "tradeNo")
	if _, err := h.svc.Get(r.Context(), tradeNo, middleware.UserIDFromCtx(r.Context())); err != nil {
		h.writeServiceError(w, "check order", err)
		return
	}
	res, err := h.svc.Check(r.Context(), tradeNo)
	if err != nil {
		h.writeServiceError(w, "check order", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/v1/orders/{tradeNo}/confirm
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Confirm(r.Context(), chi.URLParam(r, "tradeNo"), middleware.UserIDFromCtx(r.Context()))
	if err != nil {
		h.writeServiceError(w, "confirm order", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/v1/payments/alipay/notify
//
// The gateway keeps retrying until it reads "success", so the answer is
// always success; failures are logged by the service.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.log.Warn("notify: unreadable form", "error", err)
	} else {
		_ = h.svc.HandleNotify(r.Context(), r.PostForm)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("success"))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, fulfillment.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, catalog.ErrUnknownPackage):
		writeError(w, http.StatusBadRequest, "unknown package")
	case errors.Is(err, fulfillment.ErrRaceLost):
		writeError(w, http.StatusConflict, "order is being processed, retry shortly")
	case errors.Is(err, gateway.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "payment is not configured")
	case errors.Is(err, gateway.ErrInvalidKey):
		h.log.Error(op+" failed: gateway key invalid", "error", err)
		writeError(w, http.StatusInternalServerError, "payment configuration invalid")
	default:
		h.log.Error(op+" failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry later")
	}
}

func orderToResponse(o *models.Order) OrderResponse {
	return OrderResponse{
		TradeNo:   o.TradeNo,
		Amount:    o.Amount,
		Credits:   o.Credits,
		Status:    o.Status,
		PaidAt:    o.PaidAt,
		CreatedAt: o.CreatedAt,
	}
}
