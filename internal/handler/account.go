package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/ledger"
)

// AccountHandler handles HTTP requests for standard accounts
type AccountHandler struct {
	accounts *ledger.Service
	logger   *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts *ledger.Service, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// RegisterRoutes sets up the account routes on the given router
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/iban/{iban}", h.GetByIBAN)
		r.Get("/{id}", h.GetByID)
	})
	r.Get("/account-types", h.ListTypes)
}

// Create handles POST /accounts
// Opens a Checking account for the authenticated user
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.CreateStandardAccount(r.Context(), p.UserID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// List handles GET /accounts
// Admins may pass owner_id to list another user's accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	ownerID := p.UserID
	if raw := r.URL.Query().Get("owner_id"); raw != "" {
		if ownerID, ok = uuidParam(w, raw, "owner ID"); !ok {
			return
		}
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), p, ownerID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(accounts))
}

// GetByID handles GET /accounts/{id}
func (h *AccountHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "account ID")
	if !ok {
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), p, id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// GetByIBAN handles GET /accounts/iban/{iban}. Admin only.
func (h *AccountHandler) GetByIBAN(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.GetAccountByIBAN(r.Context(), p, chi.URLParam(r, "iban"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ListTypes handles GET /account-types
func (h *AccountHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.accounts.ListAccountTypes(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(types))
}
