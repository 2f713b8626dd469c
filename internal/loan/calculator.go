// Package loan prices and originates loans.
package loan

import (
	"github.com/shopspring/decimal"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/money"
)

var (
	monthsPerYear = decimal.NewFromInt(12)
	one           = decimal.NewFromInt(1)

	// SalaryRatio is the share of the salary a monthly payment may take
	SalaryRatio = decimal.RequireFromString("0.4")
)

// MonthlyRate converts an annual rate in percent into a monthly ratio
func MonthlyRate(annualRatePct decimal.Decimal) decimal.Decimal {
	return money.Div(money.Percent(annualRatePct), monthsPerYear)
}

// Amortize returns the constant monthly payment that retires amount over
// periodMonths at the given annual rate. The result is not rounded.
func Amortize(amount, annualRatePct decimal.Decimal, periodMonths int) decimal.Decimal {
	n := decimal.NewFromInt(int64(periodMonths))
	r := MonthlyRate(annualRatePct)
	if r.IsZero() {
		return money.Div(amount, n)
	}

	pow := one
	growth := one.Add(r)
	for range periodMonths {
		pow = pow.Mul(growth)
	}
	return money.Div(amount.Mul(r).Mul(pow), pow.Sub(one))
}

// TotalDue is everything the borrower pays over the life of the loan
func TotalDue(payment decimal.Decimal, periodMonths int, monthlyFee, considerationFee decimal.Decimal) decimal.Decimal {
	n := decimal.NewFromInt(int64(periodMonths))
	return payment.Mul(n).Add(monthlyFee.Mul(n)).Add(considerationFee)
}

// CheckEligibility fails with ErrSalaryTooLow when payment exceeds
// SalaryRatio of salary
func CheckEligibility(payment, salary decimal.Decimal) error {
	if payment.GreaterThan(salary.Mul(SalaryRatio)) {
		return model.ErrSalaryTooLow
	}
	return nil
}

// Quote prices a loan of the given type. The monthly payment is rounded to
// storage scale first so that the totals add up to what is charged.
func Quote(loanType model.LoanType, amount decimal.Decimal, periodMonths int) model.LoanQuote {
	payment := money.Round(Amortize(amount, loanType.InterestRate, periodMonths))
	n := decimal.NewFromInt(int64(periodMonths))

	return model.LoanQuote{
		LoanType:         loanType.Name,
		LoanAmount:       amount,
		PeriodMonths:     periodMonths,
		InterestRate:     loanType.InterestRate,
		MonthlyPayment:   payment,
		MonthlyFee:       loanType.MonthlyFee,
		ConsiderationFee: loanType.ConsiderationFee,
		TotalInterest:    money.Round(payment.Mul(n).Sub(amount)),
		TotalAmountDue:   money.Round(TotalDue(payment, periodMonths, loanType.MonthlyFee, loanType.ConsiderationFee)),
	}
}
