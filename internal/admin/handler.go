package admin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/appconfig"
	"github.com/meililab/backend/internal/fulfillment"
	"github.com/meililab/backend/internal/ledger"
	"github.com/meililab/backend/internal/validation"
)

const (
	defaultCommissionLimit = 100
	maxCommissionLimit     = 1000
)

type ConfigUpdateRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type AdjustBalanceRequest struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Delta  string `json:"delta"`
}

type Handler struct {
	svc       *Service
	validator *validation.Validator
	log       *slog.Logger
}

func NewHandler(svc *Service, validator *validation.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, validator: validator, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return false
	}
	if err := h.validator.Decode(schema, body, dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// GET /api/v1/admin/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Config(r.Context())
	if err != nil {
		h.writeServiceError(w, "get config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PUT /api/v1/admin/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigUpdateRequest
	if !h.decode(w, r, validation.ConfigUpdate, &req) {
		return
	}
	if err := h.svc.SetConfig(r.Context(), req.Key, req.Value); err != nil {
		h.writeServiceError(w, "update config", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/admin/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /api/v1/admin/commissions?limit=N
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	limit := defaultCommissionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxCommissionLimit)
	}
	list, err := h.svc.Commissions(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "list commissions", err)
		return
	}
	if list == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// POST /api/v1/admin/balance
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req AdjustBalanceRequest
	if !h.decode(w, r, validation.AdjustBalance, &req) {
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delta")
		return
	}
	res, err := h.svc.Adjust(r.Context(), Adjustment{UserID: userID, Kind: req.Kind, Delta: delta})
	if err != nil {
		h.writeServiceError(w, "adjust balance", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/v1/admin/orders/{tradeNo}/fulfill
func (h *Handler) FulfillOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Fulfill(r.Context(), chi.URLParam(r, "tradeNo"))
	if err != nil {
		h.writeServiceError(w, "fulfill order", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, appconfig.ErrUnknownKey), errors.Is(err, appconfig.ErrInvalidValue),
		errors.Is(err, ErrInvalidAdjustment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, fulfillment.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrNegativeBalance), errors.Is(err, fulfillment.ErrRaceLost):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}
