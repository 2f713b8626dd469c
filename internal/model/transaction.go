package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType tags the balance mutation a record describes
type TransactionType string

const (
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeWithdraw     TransactionType = "withdraw"
	TransactionTypeSend         TransactionType = "send"
	TransactionTypeReceived     TransactionType = "received"
	TransactionTypeMonthlyFee   TransactionType = "monthly-fee"
	TransactionTypeLoanPayment  TransactionType = "loan-payment"
	TransactionTypeEarlyPenalty TransactionType = "early-withdrawal-penalty"
)

// Valid returns true for known transaction types
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeSend,
		TransactionTypeReceived, TransactionTypeMonthlyFee, TransactionTypeLoanPayment,
		TransactionTypeEarlyPenalty:
		return true
	}
	return false
}

// Reasons recorded by the system itself
const (
	ReasonLoanFunding   = "deposit loan amount"
	ReasonMonthlyFee    = "monthly account fee"
	ReasonLoanPayment   = "loan installment"
	ReasonEarlyPenalty  = "early withdrawal penalty"
	ReasonFixedTermOpen = "certificate of deposit opening"
)

// TransactionRecord is an append-only record of one balance mutation.
// Both legs of a transfer share a CorrelationID.
type TransactionRecord struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	Type          TransactionType `json:"type"`
	AccountID     uuid.UUID       `json:"account_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DateFilterMode selects the date predicate of a transaction query
type DateFilterMode int

const (
	DateFilterNone DateFilterMode = iota
	DateFilterOn
	DateFilterBefore
	DateFilterAfter
	DateFilterRange
)

// TransactionFilter selects transaction records. Dates are calendar days;
// Before and After are exclusive of the named day.
type TransactionFilter struct {
	AccountID *uuid.UUID
	Type      TransactionType
	On        *time.Time
	Before    *time.Time
	After     *time.Time
}

// Validate checks the filter combination
func (f TransactionFilter) Validate() error {
	if f.On != nil && (f.Before != nil || f.After != nil) {
		return ErrInvalidDateFilter
	}
	if f.Type != "" && !f.Type.Valid() {
		return ErrInvalidTransactionType
	}
	return nil
}

// DateMode reports which date predicate the filter uses
func (f TransactionFilter) DateMode() DateFilterMode {
	switch {
	case f.On != nil:
		return DateFilterOn
	case f.Before != nil && f.After != nil:
		return DateFilterRange
	case f.Before != nil:
		return DateFilterBefore
	case f.After != nil:
		return DateFilterAfter
	}
	return DateFilterNone
}

// Matches reports whether the record satisfies the filter. Day boundaries
// are evaluated in loc.
func (f TransactionFilter) Matches(rec TransactionRecord, loc *time.Location) bool {
	if f.AccountID != nil && rec.AccountID != *f.AccountID {
		return false
	}
	if f.Type != "" && rec.Type != f.Type {
		return false
	}

	lower, upper := f.Bounds(loc)
	if !lower.IsZero() && rec.CreatedAt.Before(lower) {
		return false
	}
	if !upper.IsZero() && !rec.CreatedAt.Before(upper) {
		return false
	}
	return true
}

// Bounds converts the date predicate into a half-open [lower, upper)
// timestamp interval. A zero bound is unbounded.
func (f TransactionFilter) Bounds(loc *time.Location) (lower, upper time.Time) {
	startOf := func(d time.Time) time.Time {
		y, m, day := d.Date()
		return time.Date(y, m, day, 0, 0, 0, 0, loc)
	}

	switch f.DateMode() {
	case DateFilterOn:
		lower = startOf(*f.On)
		upper = lower.AddDate(0, 0, 1)
	case DateFilterBefore:
		upper = startOf(*f.Before)
	case DateFilterAfter:
		lower = startOf(*f.After).AddDate(0, 0, 1)
	case DateFilterRange:
		lower = startOf(*f.After).AddDate(0, 0, 1)
		upper = startOf(*f.Before)
	}
	return lower, upper
}

// DateLayout is the layout of date query parameters (yyyy-MM-dd)
const DateLayout = "2006-01-02"

// ParseTransactionFilter builds a filter from raw query parameters. Empty
// strings mean "not set".
func ParseTransactionFilter(accountID, txType, on, before, after string) (TransactionFilter, error) {
	var f TransactionFilter

	if accountID = strings.TrimSpace(accountID); accountID != "" {
		id, err := uuid.Parse(accountID)
		if err != nil {
			return f, ErrInvalidAccountID
		}
		f.AccountID = &id
	}

	f.Type = TransactionType(strings.TrimSpace(txType))

	var err error
	if f.On, err = parseDate(on); err != nil {
		return f, err
	}
	if f.Before, err = parseDate(before); err != nil {
		return f, err
	}
	if f.After, err = parseDate(after); err != nil {
		return f, err
	}

	return f, f.Validate()
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &d, nil
}

// TransferRequest is the payload for moving money between two accounts
type TransferRequest struct {
	FromIBAN string          `json:"from_iban"`
	ToIBAN   string          `json:"to_iban"`
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason"`
}

// Validate checks if the transfer request is valid
func (r TransferRequest) Validate() error {
	if strings.TrimSpace(r.FromIBAN) == "" || strings.TrimSpace(r.ToIBAN) == "" {
		return ErrInvalidIBAN
	}
	if strings.EqualFold(r.FromIBAN, r.ToIBAN) {
		return ErrSameAccount
	}
	return validateTransactionAmount(r.Amount, MinTransactionAmount)
}
