package model

import "errors"

// ErrorKind classifies a domain error for callers at the boundary
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindInvalidDateFilter ErrorKind = "invalid_date_filter"
	KindNoRecords         ErrorKind = "no_records"
	KindValidation        ErrorKind = "validation"
	KindConflict          ErrorKind = "conflict"
	KindInternal          ErrorKind = "internal"
)

// Error is a domain error carrying its kind
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError creates a domain error of the given kind
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of the first domain error in err's chain.
// Errors that carry no kind are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

var (
	// Lookup errors
	ErrAccountNotFound     = NewError(KindNotFound, "account not found")
	ErrAccountTypeNotFound = NewError(KindNotFound, "account type not found")
	ErrLoanNotFound        = NewError(KindNotFound, "loan not found")
	ErrLoanTypeNotFound    = NewError(KindNotFound, "loan type not found")
	ErrUserNotFound        = NewError(KindNotFound, "user not found")

	// Ledger errors
	ErrInsufficientFunds  = NewError(KindInsufficientFunds, "insufficient funds")
	ErrInvalidAmount      = NewError(KindValidation, "invalid amount: must be a positive number")
	ErrAmountPrecision    = NewError(KindValidation, "invalid amount: at most two decimal places")
	ErrAmountBelowMinimum = NewError(KindValidation, "amount is below the minimum allowed")
	ErrAccountNotStandard = NewError(KindValidation, "operation requires a standard account")
	ErrAccountNotFixed    = NewError(KindValidation, "operation requires a fixed-term account")
	ErrSameAccount        = NewError(KindValidation, "source and destination accounts must be different")
	ErrInvalidIBAN        = NewError(KindValidation, "invalid IBAN")
	ErrInvalidAccountID   = NewError(KindValidation, "invalid account id")
	ErrDuplicateIBAN      = NewError(KindConflict, "iban already in use")
	ErrNotAccountOwner    = NewError(KindUnauthorized, "account does not belong to the caller")

	// Transaction query errors
	ErrInvalidDateFilter      = NewError(KindInvalidDateFilter, "exact-day date filter cannot be combined with before/after filters")
	ErrInvalidDate            = NewError(KindValidation, "invalid date: expected yyyy-MM-dd")
	ErrInvalidTransactionType = NewError(KindValidation, "invalid transaction type")
	ErrNoRecords              = NewError(KindNoRecords, "no matching records")

	// Fixed-term errors
	ErrInvalidPeriodYears = NewError(KindValidation, "invalid period: must be between 1 and 10 years")

	// Loan errors
	ErrInvalidLoanAmount = NewError(KindValidation, "invalid loan amount: must be between 1000 and 500000")
	ErrInvalidLoanPeriod = NewError(KindValidation, "invalid loan period: must be between 12 and 360 months")
	ErrInvalidSalary     = NewError(KindValidation, "invalid salary: must be a positive number")
	ErrSalaryTooLow      = NewError(KindValidation, "monthly payment exceeds 40% of salary")
	ErrUserHasLoan       = NewError(KindValidation, "user already has an open loan")
	ErrLoanOutstanding   = NewError(KindConflict, "loan has uncharged installments")
	ErrNotLoanOwner      = NewError(KindUnauthorized, "loan does not belong to the caller")

	// Auth errors
	ErrEmailAlreadyExists = NewError(KindConflict, "email already registered")
	ErrInvalidCredentials = NewError(KindUnauthorized, "invalid email or password")
	ErrInvalidToken       = NewError(KindUnauthorized, "invalid or expired token")
	ErrInvalidEmail       = NewError(KindValidation, "invalid email address")
	ErrPasswordTooShort   = NewError(KindValidation, "password must be at least 8 characters")
	ErrPasswordTooWeak    = NewError(KindValidation, "password must contain uppercase, lowercase and a digit")
	ErrPasswordRequired   = NewError(KindValidation, "password is required")
	ErrNameRequired       = NewError(KindValidation, "full name is required")
	ErrAdminRequired      = NewError(KindUnauthorized, "administrator role required")

	// Batch errors
	ErrUnknownJob        = NewError(KindNotFound, "unknown job")
	ErrJobAlreadyRunning = NewError(KindConflict, "job is already running")
)
