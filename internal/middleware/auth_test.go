package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/meililab/backend/internal/models"
	"github.com/meililab/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubTokens struct {
	userID uuid.UUID
	admin  bool
	err    error
}

func (s *stubTokens) ValidateToken(_ context.Context, _ string) (uuid.UUID, bool, error) {
	return s.userID, s.admin, s.err
}

type stubUsers struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

// okHandler writes 200 and the user id (for assertions).
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if id := UserIDFromCtx(r.Context()); id != uuid.Nil {
		w.Write([]byte(id.String()))
	}
	w.WriteHeader(http.StatusOK)
})

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRequireUser_ValidToken(t *testing.T) {
	userID := uuid.New()
	mw := RequireUser(&stubTokens{userID: userID})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); body != userID.String() {
		t.Errorf("expected user id %q in body, got %q", userID, body)
	}
}

func TestRequireUser_MissingHeader(t *testing.T) {
	mw := RequireUser(&stubTokens{userID: uuid.New()})(okHandler)

	cases := []struct {
		name   string
		header string
	}{
		{"no header at all", ""},
		{"empty bearer", "Bearer "},
		{"wrong scheme", "Basic abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireUser_InvalidToken(t *testing.T) {
	mw := RequireUser(&stubTokens{err: errors.New("token is expired")})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequireAdmin(t *testing.T) {
	admin := &models.User{ID: uuid.New(), IsAdmin: true}
	member := &models.User{ID: uuid.New()}
	users := &stubUsers{users: map[uuid.UUID]*models.User{admin.ID: admin, member.ID: member}}

	cases := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"admin", WithUser(context.Background(), admin.ID, true), http.StatusOK},
		{"member with stale admin claim", WithUser(context.Background(), member.ID, true), http.StatusForbidden},
		{"unknown user", WithUser(context.Background(), uuid.New(), false), http.StatusForbidden},
		{"unauthenticated", context.Background(), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tc.ctx)
			rec := httptest.NewRecorder()
			RequireAdmin(users)(okHandler).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestContextHelpers(t *testing.T) {
	if UserIDFromCtx(context.Background()) != uuid.Nil {
		t.Error("expected nil user id on empty context")
	}
	id := uuid.New()
	ctx := WithUser(context.Background(), id, true)
	if UserIDFromCtx(ctx) != id || !IsAdminFromCtx(ctx) {
		t.Error("context helpers did not round-trip")
	}
}
