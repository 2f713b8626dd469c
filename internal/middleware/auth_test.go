package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/auth"
	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

func tokens(t *testing.T) (*auth.Service, *auth.TokenPair, *auth.TokenPair) {
	t.Helper()
	svc := auth.NewService(auth.DefaultConfig("secret"), repository.NewMemoryStore(),
		clock.Fixed(time.Now()), zap.NewNop())
	ctx := context.Background()

	_, err := svc.Register(ctx, model.RegisterRequest{Email: "u@fjord.no", Password: "Passw0rdX", FullName: "User"})
	require.NoError(t, err)
	_, err = svc.EnsureAdmin(ctx, "a@fjord.no", "Adm1nPass")
	require.NoError(t, err)

	user, err := svc.Login(ctx, model.LoginRequest{Email: "u@fjord.no", Password: "Passw0rdX"})
	require.NoError(t, err)
	admin, err := svc.Login(ctx, model.LoginRequest{Email: "a@fjord.no", Password: "Adm1nPass"})
	require.NoError(t, err)
	return svc, user, admin
}

func TestRequireAuth(t *testing.T) {
	svc, user, admin := tokens(t)
	m := NewAuthMiddleware(svc)

	var got model.Principal
	protected := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	adminOnly := m.RequireAuth(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name       string
		handler    http.Handler
		header     string
		wantStatus int
	}{
		{name: "no header", handler: protected, wantStatus: http.StatusUnauthorized},
		{name: "not bearer", handler: protected, header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", handler: protected, header: "Bearer abc", wantStatus: http.StatusUnauthorized},
		{name: "refresh token", handler: protected, header: "Bearer " + user.RefreshToken, wantStatus: http.StatusUnauthorized},
		{name: "access token", handler: protected, header: "Bearer " + user.AccessToken, wantStatus: http.StatusNoContent},
		{name: "user on admin route", handler: adminOnly, header: "Bearer " + user.AccessToken, wantStatus: http.StatusForbidden},
		{name: "admin on admin route", handler: adminOnly, header: "bearer " + admin.AccessToken, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	claims, err := svc.ValidateToken(user.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, got.UserID)
	assert.False(t, got.Admin)
}

func TestCORS(t *testing.T) {
	h := CORS(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
