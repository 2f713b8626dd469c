package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/ledger"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/processor"
)

// Transferer moves money between two accounts
type Transferer interface {
	Transfer(ctx context.Context, p model.Principal, req model.TransferRequest) (*processor.TransferResult, error)
}

// TransactionHandler handles deposits, withdrawals, transfers and
// transaction queries
type TransactionHandler struct {
	accounts  *ledger.Service
	transfers Transferer
	logger    *zap.Logger
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(accounts *ledger.Service, transfers Transferer, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{accounts: accounts, transfers: transfers, logger: logger}
}

// RegisterRoutes sets up the transaction routes on the given router
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.Query)
		r.Post("/deposits", h.Deposit)
		r.Post("/withdrawals", h.Withdraw)
		r.Post("/transfers", h.Transfer)
	})
}

type accountOperation func(ctx context.Context, p model.Principal, req model.AccountOperationRequest) (*ledger.OperationResult, error)

// Deposit handles POST /transactions/deposits
func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.accountOperation(w, r, h.accounts.Deposit)
}

// Withdraw handles POST /transactions/withdrawals
// The account type's transaction fee is taken on top of the amount
func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.accountOperation(w, r, h.accounts.Withdraw)
}

func (h *TransactionHandler) accountOperation(w http.ResponseWriter, r *http.Request, op accountOperation) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req model.AccountOperationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := op(r.Context(), p, req)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Transfer handles POST /transactions/transfers
// The sender must belong to the caller; the receiver may be any account
func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req model.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.transfers.Transfer(r.Context(), p, req)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Query handles GET /transactions
// Query parameters: account_id, type, on, before, after (dates as yyyy-MM-dd)
func (h *TransactionHandler) Query(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter, err := model.ParseTransactionFilter(q.Get("account_id"), q.Get("type"), q.Get("on"), q.Get("before"), q.Get("after"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	records, err := h.accounts.QueryTransactions(r.Context(), p, filter)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
