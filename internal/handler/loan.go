package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/loan"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

// LoanHandler handles HTTP requests for loans
type LoanHandler struct {
	loans  *loan.Service
	logger *zap.Logger
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loans *loan.Service, logger *zap.Logger) *LoanHandler {
	return &LoanHandler{loans: loans, logger: logger}
}

// RegisterPublicRoutes sets up the routes that need no authentication
func (h *LoanHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/loans/calculator", h.Calculate)
}

// RegisterRoutes sets up the authenticated loan routes
func (h *LoanHandler) RegisterRoutes(r chi.Router) {
	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.Apply)
		r.Get("/", h.List)
		r.Get("/{id}", h.GetByID)
	})
	r.Get("/loan-types", h.ListTypes)
}

// RegisterAdminRoutes sets up the admin-only listing
func (h *LoanHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/loans", h.ListAll)
}

// Calculate handles POST /loans/calculator
func (h *LoanHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req model.LoanCalculationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	quote, err := h.loans.Calculate(r.Context(), req)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// Apply handles POST /loans
// An approved loan is paid out immediately into the caller's Checking account
func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req model.LoanApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.loans.ApplyForLoan(r.Context(), p, req)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// List handles GET /loans
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	loans, err := h.loans.ListByOwner(r.Context(), p, p.UserID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(loans))
}

// ListAll handles GET /admin/loans
func (h *LoanHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	loans, err := h.loans.List(r.Context(), p)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(loans))
}

// GetByID handles GET /loans/{id}
func (h *LoanHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "loan ID")
	if !ok {
		return
	}

	l, err := h.loans.Get(r.Context(), p, id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ListTypes handles GET /loan-types
func (h *LoanHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.loans.ListLoanTypes(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(types))
}
