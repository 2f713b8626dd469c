package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/cdaccount"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

// CDAccountHandler handles HTTP requests for certificate of deposit accounts
type CDAccountHandler struct {
	cds    *cdaccount.Service
	logger *zap.Logger
}

// NewCDAccountHandler creates a new CDAccountHandler
func NewCDAccountHandler(cds *cdaccount.Service, logger *zap.Logger) *CDAccountHandler {
	return &CDAccountHandler{cds: cds, logger: logger}
}

// RegisterRoutes sets up the cd-account routes on the given router
func (h *CDAccountHandler) RegisterRoutes(r chi.Router) {
	r.Route("/cd-accounts", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.GetByID)
		r.Post("/{id}/early-withdrawal", h.EarlyWithdraw)
	})
}

// RegisterAdminRoutes sets up the admin-only listing
func (h *CDAccountHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/cd-accounts", h.ListAll)
}

// Create handles POST /cd-accounts
func (h *CDAccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req model.CreateFixedTermRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.cds.Create(r.Context(), p, req)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// List handles GET /cd-accounts
func (h *CDAccountHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	accounts, err := h.cds.ListByOwner(r.Context(), p, p.UserID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(accounts))
}

// ListAll handles GET /admin/cd-accounts
func (h *CDAccountHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	accounts, err := h.cds.List(r.Context(), p)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(accounts))
}

// GetByID handles GET /cd-accounts/{id}
func (h *CDAccountHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "account ID")
	if !ok {
		return
	}

	account, err := h.cds.Get(r.Context(), p, id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// EarlyWithdraw handles POST /cd-accounts/{id}/early-withdrawal
// The penalty is charged and the account becomes a Checking account
func (h *CDAccountHandler) EarlyWithdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "account ID")
	if !ok {
		return
	}

	var req model.EarlyWithdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.cds.EarlyWithdraw(r.Context(), p, id, req)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
