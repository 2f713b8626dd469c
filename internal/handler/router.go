package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/simonkvalheim/fjord-ledger/internal/middleware"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth         *AuthHandler
	Accounts     *AccountHandler
	Transactions *TransactionHandler
	CDAccounts   *CDAccountHandler
	Loans        *LoanHandler
	Admin        *AdminHandler
}

// NewRouter mounts the handlers. Everything under /v1 requires an access
// token and everything under /v1/admin additionally the admin role.
func NewRouter(h Handlers, authMiddleware *middleware.AuthMiddleware, cors middleware.CORSConfig, health http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(cors))
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)    // Logs each request
	r.Use(chimw.Recoverer) // Recovers from panics gracefully

	// Health check (no auth needed)
	if health != nil {
		r.Get("/health", health)
	}

	// Public routes
	h.Auth.RegisterRoutes(r)
	h.Loans.RegisterPublicRoutes(r)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)

		h.Accounts.RegisterRoutes(r)
		h.Transactions.RegisterRoutes(r)
		h.CDAccounts.RegisterRoutes(r)
		h.Loans.RegisterRoutes(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			h.Admin.RegisterRoutes(r)
			h.CDAccounts.RegisterAdminRoutes(r)
			h.Loans.RegisterAdminRoutes(r)
		})
	})

	return r
}
