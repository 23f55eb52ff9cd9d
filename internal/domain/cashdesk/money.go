package cashdesk

import (
	"fmt"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for every stored amount
const MoneyScale = 4

var (
	// MaxAmount bounds a single monetary input (entry amount, balance, denomination)
	MaxAmount = decimal.New(1, 12)
	// maxTotal is the largest running total a DECIMAL(18,4) column can hold
	maxTotal = decimal.New(1, 14)
)

// CheckMoney rejects amounts that cannot be stored exactly: more than MoneyScale
// fractional digits, or a magnitude above MaxAmount.
func CheckMoney(field string, v decimal.Decimal) error {
	if !v.Equal(v.Truncate(MoneyScale)) {
		return shared.NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("%s %s has more than %d decimal places", field, v.String(), MoneyScale))
	}
	if v.Abs().GreaterThan(MaxAmount) {
		return shared.NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("%s %s exceeds the maximum of %s", field, v.String(), MaxAmount.String()))
	}
	return nil
}

func checkTotal(field string, v decimal.Decimal) error {
	if v.Abs().GreaterThanOrEqual(maxTotal) {
		return shared.NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("%s would reach %s, above what a session can hold", field, v.String()))
	}
	return nil
}
