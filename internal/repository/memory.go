package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

// MemoryStore keeps all state in process. One mutex is held for the whole
// of a transaction, which serializes every mutation; the transaction works
// on a copy that replaces the live state only when it commits.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// WithTx implements Store
func (s *MemoryStore) WithTx(ctx context.Context, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, work); err != nil {
		return err
	}
	s.state = work
	return nil
}

type memState struct {
	users        map[uuid.UUID]model.User
	accountTypes map[uuid.UUID]model.AccountType
	loanTypes    map[uuid.UUID]model.LoanType
	accounts     map[uuid.UUID]model.Account
	transactions []model.TransactionRecord
	loans        map[uuid.UUID]model.Loan
	jobRuns      map[string]time.Time
}

func newMemState() *memState {
	return &memState{
		users:        map[uuid.UUID]model.User{},
		accountTypes: map[uuid.UUID]model.AccountType{},
		loanTypes:    map[uuid.UUID]model.LoanType{},
		accounts:     map[uuid.UUID]model.Account{},
		loans:        map[uuid.UUID]model.Loan{},
		jobRuns:      map[string]time.Time{},
	}
}

func (st *memState) clone() *memState {
	out := &memState{
		users:        maps.Clone(st.users),
		accountTypes: maps.Clone(st.accountTypes),
		loanTypes:    maps.Clone(st.loanTypes),
		accounts:     make(map[uuid.UUID]model.Account, len(st.accounts)),
		transactions: slices.Clone(st.transactions),
		loans:        maps.Clone(st.loans),
		jobRuns:      maps.Clone(st.jobRuns),
	}
	for id, acc := range st.accounts {
		out.accounts[id] = copyAccount(acc)
	}
	return out
}

func copyAccount(acc model.Account) model.Account {
	if acc.Term != nil {
		term := *acc.Term
		acc.Term = &term
	}
	return acc
}

func byCreated[T any](created func(T) time.Time, id func(T) uuid.UUID) func(a, b T) int {
	return func(a, b T) int {
		if c := created(a).Compare(created(b)); c != 0 {
			return c
		}
		return strings.Compare(id(a).String(), id(b).String())
	}
}

var sortAccounts = byCreated(
	func(a model.Account) time.Time { return a.CreatedAt },
	func(a model.Account) uuid.UUID { return a.ID },
)

var sortLoans = byCreated(
	func(l model.Loan) time.Time { return l.CreatedAt },
	func(l model.Loan) uuid.UUID { return l.ID },
)

func (st *memState) filterAccounts(keep func(model.Account) bool) []model.Account {
	var out []model.Account
	for _, acc := range st.accounts {
		if keep(acc) {
			out = append(out, copyAccount(acc))
		}
	}
	slices.SortFunc(out, sortAccounts)
	return out
}

func (st *memState) filterLoans(keep func(model.Loan) bool) []model.Loan {
	var out []model.Loan
	for _, l := range st.loans {
		if keep(l) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, sortLoans)
	return out
}

// Accounts

func (st *memState) CreateAccount(_ context.Context, account *model.Account) error {
	for _, existing := range st.accounts {
		if existing.IBAN == account.IBAN {
			return model.ErrDuplicateIBAN
		}
	}
	st.accounts[account.ID] = copyAccount(*account)
	return nil
}

func (st *memState) GetAccountByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	acc, ok := st.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	acc = copyAccount(acc)
	return &acc, nil
}

func (st *memState) GetAccountByIBAN(_ context.Context, iban string) (*model.Account, error) {
	for _, acc := range st.accounts {
		if acc.IBAN == iban {
			acc = copyAccount(acc)
			return &acc, nil
		}
	}
	return nil, model.ErrAccountNotFound
}

func (st *memState) LockAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	// The store mutex already excludes every other transaction.
	return st.GetAccountByID(ctx, id)
}

func (st *memState) ListAccountsByOwner(_ context.Context, ownerID uuid.UUID) ([]model.Account, error) {
	return st.filterAccounts(func(a model.Account) bool { return a.OwnerID == ownerID }), nil
}

func (st *memState) FindAccountByOwnerAndType(_ context.Context, ownerID uuid.UUID, typeName string) (*model.Account, error) {
	found := st.filterAccounts(func(a model.Account) bool {
		return a.OwnerID == ownerID && a.Type.Name == typeName
	})
	if len(found) == 0 {
		return nil, model.ErrAccountNotFound
	}
	return &found[0], nil
}

func (st *memState) ListStandardAccounts(_ context.Context) ([]model.Account, error) {
	return st.filterAccounts(func(a model.Account) bool { return a.Kind == model.AccountKindStandard }), nil
}

func (st *memState) ListFixedTermAccounts(_ context.Context) ([]model.Account, error) {
	return st.filterAccounts(func(a model.Account) bool { return a.IsFixedTerm() }), nil
}

func (st *memState) ListFixedTermAccountsExpiringBy(_ context.Context, day time.Time) ([]model.Account, error) {
	return st.filterAccounts(func(a model.Account) bool {
		return a.IsFixedTerm() && !a.Term.ExpirationDate.After(day)
	}), nil
}

func (st *memState) UpdateBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal) error {
	acc, ok := st.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	acc.Balance = balance
	st.accounts[id] = acc
	return nil
}

func (st *memState) ConvertToStandard(_ context.Context, id uuid.UUID, accountType model.AccountType, balance decimal.Decimal) error {
	acc, ok := st.accounts[id]
	if !ok || !acc.IsFixedTerm() {
		return model.ErrAccountNotFound
	}
	acc.Kind = model.AccountKindStandard
	acc.Type = accountType
	acc.Term = nil
	acc.Balance = balance
	st.accounts[id] = acc
	return nil
}

// Reference data

func (st *memState) GetAccountTypeByName(_ context.Context, name string) (*model.AccountType, error) {
	for _, t := range st.accountTypes {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, model.ErrAccountTypeNotFound
}

func (st *memState) ListAccountTypes(_ context.Context) ([]model.AccountType, error) {
	out := slices.Collect(maps.Values(st.accountTypes))
	slices.SortFunc(out, func(a, b model.AccountType) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (st *memState) UpsertAccountType(_ context.Context, t *model.AccountType) error {
	for id, existing := range st.accountTypes {
		if existing.Name == t.Name {
			t.ID = id
		}
	}
	st.accountTypes[t.ID] = *t
	return nil
}

func (st *memState) GetLoanTypeByName(_ context.Context, name string) (*model.LoanType, error) {
	for _, t := range st.loanTypes {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, model.ErrLoanTypeNotFound
}

func (st *memState) ListLoanTypes(_ context.Context) ([]model.LoanType, error) {
	out := slices.Collect(maps.Values(st.loanTypes))
	slices.SortFunc(out, func(a, b model.LoanType) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (st *memState) UpsertLoanType(_ context.Context, t *model.LoanType) error {
	for id, existing := range st.loanTypes {
		if existing.Name == t.Name {
			t.ID = id
		}
	}
	st.loanTypes[t.ID] = *t
	return nil
}

// Transactions

func (st *memState) CreateTransaction(_ context.Context, rec *model.TransactionRecord) error {
	st.transactions = append(st.transactions, *rec)
	return nil
}

func (st *memState) QueryTransactions(_ context.Context, filter model.TransactionFilter, loc *time.Location) ([]model.TransactionRecord, error) {
	var out []model.TransactionRecord
	for _, rec := range st.transactions {
		if filter.Matches(rec, loc) {
			out = append(out, rec)
		}
	}
	slices.SortStableFunc(out, func(a, b model.TransactionRecord) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Loans

func (st *memState) CreateLoan(_ context.Context, loan *model.Loan) error {
	st.loans[loan.ID] = *loan
	return nil
}

func (st *memState) GetLoanByID(_ context.Context, id uuid.UUID) (*model.Loan, error) {
	l, ok := st.loans[id]
	if !ok {
		return nil, model.ErrLoanNotFound
	}
	return &l, nil
}

func (st *memState) LockLoan(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	return st.GetLoanByID(ctx, id)
}

func (st *memState) ListLoans(_ context.Context) ([]model.Loan, error) {
	return st.filterLoans(func(model.Loan) bool { return true }), nil
}

func (st *memState) ListLoansByOwner(_ context.Context, ownerID uuid.UUID) ([]model.Loan, error) {
	return st.filterLoans(func(l model.Loan) bool { return l.OwnerID == ownerID }), nil
}

func (st *memState) ListLoansInstallmentDueBy(_ context.Context, day time.Time) ([]model.Loan, error) {
	return st.filterLoans(func(l model.Loan) bool {
		return !l.FullyCharged() && !l.NextInstallmentDate.After(day)
	}), nil
}

func (st *memState) ListLoansMaturedBy(_ context.Context, day time.Time) ([]model.Loan, error) {
	return st.filterLoans(func(l model.Loan) bool { return !l.DueDate.After(day) }), nil
}

func (st *memState) UpdateLoan(_ context.Context, loan *model.Loan) error {
	if _, ok := st.loans[loan.ID]; !ok {
		return model.ErrLoanNotFound
	}
	st.loans[loan.ID] = *loan
	return nil
}

func (st *memState) DeleteLoan(_ context.Context, id uuid.UUID) error {
	if _, ok := st.loans[id]; !ok {
		return model.ErrLoanNotFound
	}
	delete(st.loans, id)
	return nil
}

// Users

func (st *memState) CreateUser(_ context.Context, user *model.User) error {
	for _, existing := range st.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return model.ErrEmailAlreadyExists
		}
	}
	st.users[user.ID] = *user
	return nil
}

func (st *memState) GetUserByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := st.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

func (st *memState) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (st *memState) LockUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return st.GetUserByID(ctx, id)
}

func (st *memState) SetHasLoan(_ context.Context, id uuid.UUID, hasLoan bool) error {
	u, ok := st.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.HasLoan = hasLoan
	st.users[id] = u
	return nil
}

// Job runs

func (st *memState) ClaimJobRun(_ context.Context, job, key string, at time.Time) (bool, error) {
	k := job + "\x00" + key
	if _, done := st.jobRuns[k]; done {
		return false, nil
	}
	st.jobRuns[k] = at
	return true, nil
}
