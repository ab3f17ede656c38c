package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/procureflow/procureflow/internal/auth"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

type stubRepo struct {
	account *auth.Account
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if s.account == nil || s.account.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.account, nil
}

func newHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.TokenManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := shared.NewTokenManager(client, time.Hour)
	service := auth.NewService(repo, tokens)
	return auth.NewHandler(nil, service, tokens), tokens
}

func activeAccount(t *testing.T, password string) *auth.Account {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.Account{
		ID:           12,
		Name:         "Huda",
		Email:        "huda@site.local",
		PasswordHash: string(hashed),
		Role:         workflow.RoleEngineer,
		IsActive:     true,
	}
}

func postLogin(t *testing.T, handler *auth.Handler, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func TestLoginSuccess(t *testing.T) {
	handler, tokens := newHandler(t, &stubRepo{account: activeAccount(t, "s3cret-pass")})

	res := postLogin(t, handler, map[string]string{"email": "huda@site.local", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, res.Code)

	var out struct {
		Token string           `json:"token"`
		User  shared.Principal `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	require.Equal(t, workflow.RoleEngineer, out.User.Role)

	principal, err := tokens.Resolve(context.Background(), out.Token)
	require.NoError(t, err)
	require.Equal(t, int64(12), principal.UserID)
}

func TestLoginWrongPassword(t *testing.T) {
	handler, _ := newHandler(t, &stubRepo{account: activeAccount(t, "s3cret-pass")})

	res := postLogin(t, handler, map[string]string{"email": "huda@site.local", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	acc := activeAccount(t, "s3cret-pass")
	acc.IsActive = false
	handler, _ := newHandler(t, &stubRepo{account: acc})

	res := postLogin(t, handler, map[string]string{"email": "huda@site.local", "password": "s3cret-pass"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginMissingFields(t *testing.T) {
	handler, _ := newHandler(t, &stubRepo{})

	res := postLogin(t, handler, map[string]string{"email": "huda@site.local"})
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMiddlewareRejectsUnknownToken(t *testing.T) {
	_, tokens := newHandler(t, &stubRepo{})
	mw := auth.Middleware(tokens, nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMiddlewareAttachesPrincipal(t *testing.T) {
	_, tokens := newHandler(t, &stubRepo{})
	token, err := tokens.Issue(context.Background(), shared.Principal{UserID: 4, Role: workflow.RolePrinter})
	require.NoError(t, err)

	mw := auth.Middleware(tokens, nil)
	var got *shared.Principal
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.NotNil(t, got)
	require.Equal(t, int64(4), got.UserID)
}
