package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"
	"strings"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

// Norwegian BBAN layout: 4-digit bank code, 6-digit account number, 1 check digit
const (
	ibanCountry  = "NO"
	ibanBankCode = "8601"
	maxIBANTries = 10
)

var ninetySeven = big.NewInt(97)

// ibanChecksum computes the ISO 13616 check digits for a country and BBAN
func ibanChecksum(country, bban string) string {
	numeric := lettersToDigits(bban + country + "00")
	n, _ := new(big.Int).SetString(numeric, 10)
	check := 98 - new(big.Int).Mod(n, ninetySeven).Int64()
	return fmt.Sprintf("%02d", check)
}

// ValidIBAN reports whether the IBAN has correct check digits
func ValidIBAN(iban string) bool {
	iban = strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if len(iban) < 5 {
		return false
	}
	rearranged := lettersToDigits(iban[4:] + iban[:4])
	n, ok := new(big.Int).SetString(rearranged, 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, ninetySeven).Int64() == 1
}

func lettersToDigits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= 'A' && c <= 'Z' {
			fmt.Fprintf(&b, "%d", c-'A'+10)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// generateIBAN returns a random IBAN with valid check digits
func generateIBAN() string {
	account := fmt.Sprintf("%06d", rand.IntN(1_000_000))
	body := ibanBankCode + account
	bban := body + fmt.Sprint(mod11(body))
	return ibanCountry + ibanChecksum(ibanCountry, bban) + bban
}

// mod11 computes the national check digit of a Norwegian account number.
// Numbers whose digit would be 10 reuse 0 here; the IBAN check digits
// still validate.
func mod11(body string) int {
	weights := []int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}
	sum := 0
	for i, c := range body {
		sum += int(c-'0') * weights[i]
	}
	digit := 11 - sum%11
	if digit >= 10 {
		return 0
	}
	return digit
}

// NewIBAN generates an IBAN not yet used by any account
func NewIBAN(ctx context.Context, q repository.Querier) (string, error) {
	for range maxIBANTries {
		iban := generateIBAN()
		_, err := q.GetAccountByIBAN(ctx, iban)
		if errors.Is(err, model.ErrAccountNotFound) {
			return iban, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", model.ErrDuplicateIBAN
}
