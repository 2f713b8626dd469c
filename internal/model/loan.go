package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reference loan type names
const (
	LoanTypeConsumer = "Consumer"
	LoanTypeMortgage = "Mortgage"
)

// Loan request limits
var (
	MinLoanAmount = decimal.NewFromInt(1000)
	MaxLoanAmount = decimal.NewFromInt(500000)
)

const (
	MinLoanPeriodMonths = 12
	MaxLoanPeriodMonths = 360
)

// LoanType is immutable reference data describing the cost of a loan
type LoanType struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	ConsiderationFee decimal.Decimal `json:"consideration_fee"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	MonthlyFee       decimal.Decimal `json:"monthly_fee"`
}

// Loan is an originated loan funded into a standard account.
// RemainingAmount never increases; InstallmentsCharged counts charged
// installments and drives NextInstallmentDate.
type Loan struct {
	ID                  uuid.UUID       `json:"id"`
	OwnerID             uuid.UUID       `json:"owner_id"`
	AccountID           uuid.UUID       `json:"account_id"`
	Type                LoanType        `json:"loan_type"`
	BeginningAmount     decimal.Decimal `json:"beginning_amount"`
	RemainingAmount     decimal.Decimal `json:"remaining_amount"`
	MonthlyPayment      decimal.Decimal `json:"monthly_payment"`
	TotalAmountDue      decimal.Decimal `json:"total_amount_due"`
	PeriodMonths        int             `json:"period_months"`
	InstallmentsCharged int             `json:"installments_charged"`
	StartDate           time.Time       `json:"start_date"`
	NextInstallmentDate time.Time       `json:"next_installment_date"`
	DueDate             time.Time       `json:"due_date"`
	Approved            bool            `json:"approved"`
	CreatedAt           time.Time       `json:"created_at"`
}

// InstallmentCharge is the amount taken from the funded account each month
func (l *Loan) InstallmentCharge() decimal.Decimal {
	return l.MonthlyPayment.Add(l.Type.MonthlyFee)
}

// FullyCharged returns true once every installment has been taken
func (l *Loan) FullyCharged() bool {
	return l.InstallmentsCharged >= l.PeriodMonths
}

// LoanQuote is the result of a loan calculation
type LoanQuote struct {
	LoanType         string          `json:"loan_type"`
	LoanAmount       decimal.Decimal `json:"loan_amount"`
	PeriodMonths     int             `json:"period_months"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	MonthlyPayment   decimal.Decimal `json:"monthly_payment"`
	MonthlyFee       decimal.Decimal `json:"monthly_fee"`
	ConsiderationFee decimal.Decimal `json:"consideration_fee"`
	TotalInterest    decimal.Decimal `json:"total_interest"`
	TotalAmountDue   decimal.Decimal `json:"total_amount_due"`
}

// LoanCalculationRequest is the payload for a loan quote
type LoanCalculationRequest struct {
	LoanType     string          `json:"loan_type"`
	Amount       decimal.Decimal `json:"amount"`
	PeriodMonths int             `json:"period_months"`
}

// Validate checks if the request is valid
func (r LoanCalculationRequest) Validate() error {
	if strings.TrimSpace(r.LoanType) == "" {
		return ErrLoanTypeNotFound
	}
	if r.Amount.LessThan(MinLoanAmount) || r.Amount.GreaterThan(MaxLoanAmount) {
		return ErrInvalidLoanAmount
	}
	if r.PeriodMonths < MinLoanPeriodMonths || r.PeriodMonths > MaxLoanPeriodMonths {
		return ErrInvalidLoanPeriod
	}
	return validateTransactionAmount(r.Amount, MinLoanAmount)
}

// LoanApplicationRequest is the payload for applying for a loan
type LoanApplicationRequest struct {
	LoanCalculationRequest
	Salary decimal.Decimal `json:"salary"`
}

// Validate checks if the request is valid
func (r LoanApplicationRequest) Validate() error {
	if err := r.LoanCalculationRequest.Validate(); err != nil {
		return err
	}
	if !r.Salary.IsPositive() {
		return ErrInvalidSalary
	}
	return nil
}
