package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/middleware"
	"github.com/meililab/backend/internal/models"
	"github.com/meililab/backend/internal/referral"
	"github.com/meililab/backend/internal/repository"
)

const commissionPageSize = 100

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListReferred(ctx context.Context, referrerID uuid.UUID) ([]models.ReferredUser, error)
}

type RewardCounter interface {
	CountRewards(ctx context.Context, referrerID uuid.UUID) (int, error)
}

type CommissionLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.CommissionView, error)
}

type AccountResponse struct {
	ID                string          `json:"id"`
	Username          string          `json:"username"`
	Nickname          string          `json:"nickname"`
	Credits           int             `json:"credits"`
	Points            int             `json:"points"`
	CommissionBalance decimal.Decimal `json:"commission_balance"`
	RegisterEnv       string          `json:"register_env"`
	IsAdmin           bool            `json:"is_admin"`
	CreatedAt         time.Time       `json:"created_at"`
}

type ReferralCodeResponse struct {
	Code      string `json:"code"`
	ShareLink string `json:"share_link"`
}

type ReferredUserResponse struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	RegisterEnv   string          `json:"register_env"`
	TotalRecharge decimal.Decimal `json:"total_recharge"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Handler struct {
	users        UserStore
	rewards      RewardCounter
	commissions  CommissionLister
	shareBaseURL string
	log          *slog.Logger
}

func NewHandler(users UserStore, rewards RewardCounter, commissions CommissionLister, shareBaseURL string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		users:        users,
		rewards:      rewards,
		commissions:  commissions,
		shareBaseURL: strings.TrimRight(shareBaseURL, "/"),
		log:          log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	u, err := h.users.GetByID(r.Context(), middleware.UserIDFromCtx(r.Context()))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return nil, false
		}
		h.log.Error("load account failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return nil, false
	}
	return u, true
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{
		ID:                u.ID.String(),
		Username:          u.Username,
		Nickname:          u.Nickname,
		Credits:           u.Credits,
		Points:            u.Points,
		CommissionBalance: u.CommissionBalance,
		RegisterEnv:       u.RegisterEnv,
		IsAdmin:           u.IsAdmin,
		CreatedAt:         u.CreatedAt,
	})
}

// GET /api/v1/referral/code
func (h *Handler) GetReferralCode(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	code, err := referral.Code(u.DeviceID)
	if err != nil {
		// Accounts without a usable fingerprint still share by user id.
		code = u.ID.String()
	}
	writeJSON(w, http.StatusOK, ReferralCodeResponse{
		Code:      code,
		ShareLink: h.shareBaseURL + "/?ref=" + url.QueryEscape(code),
	})
}

// GET /api/v1/referral/history
func (h *Handler) GetReferralHistory(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListReferred(r.Context(), middleware.UserIDFromCtx(r.Context()))
	if err != nil {
		h.log.Error("list referred users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch referral history")
		return
	}
	resp := make([]ReferredUserResponse, 0, len(list))
	for _, ru := range list {
		env := ru.RegisterEnv
		if env == "" {
			env = "unknown"
		}
		resp = append(resp, ReferredUserResponse{
			ID:            ru.ID.String(),
			Username:      MaskUsername(ru.Username),
			RegisterEnv:   env,
			TotalRecharge: ru.TotalRecharge,
			CreatedAt:     ru.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": resp})
}

// GET /api/v1/referral/stats
func (h *Handler) GetReferralStats(w http.ResponseWriter, r *http.Request) {
	n, err := h.rewards.CountRewards(r.Context(), middleware.UserIDFromCtx(r.Context()))
	if err != nil {
		h.log.Error("count referral rewards failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch referral stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"referral_count": n})
}

// GET /api/v1/commissions
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	list, err := h.commissions.ListByUser(r.Context(), middleware.UserIDFromCtx(r.Context()), commissionPageSize)
	if err != nil {
		h.log.Error("list commissions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch commissions")
		return
	}
	if list == nil {
		list = []models.CommissionView{}
	}
	writeJSON(w, http.StatusOK, list)
}

// MaskUsername keeps the first two and last two characters of names longer
// than four, and only the first character otherwise.
func MaskUsername(name string) string {
	rs := []rune(name)
	switch {
	case len(rs) == 0:
		return "***"
	case len(rs) > 4:
		return string(rs[:2]) + "***" + string(rs[len(rs)-2:])
	default:
		return string(rs[:1]) + "***"
	}
}
