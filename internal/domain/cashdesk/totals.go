package cashdesk

import "github.com/shopspring/decimal"

// MethodTotals holds the gross amount moved per payment method
type MethodTotals struct {
	Cash          decimal.Decimal `json:"cash"`
	Card          decimal.Decimal `json:"card"`
	Transfer      decimal.Decimal `json:"transfer"`
	DigitalWallet decimal.Decimal `json:"digital_wallet"`
	Financing     decimal.Decimal `json:"financing"`
}

func (t *MethodTotals) bucket(method PaymentMethod) *decimal.Decimal {
	switch method {
	case PaymentMethodCash:
		return &t.Cash
	case PaymentMethodCard:
		return &t.Card
	case PaymentMethodTransfer:
		return &t.Transfer
	case PaymentMethodDigitalWallet:
		return &t.DigitalWallet
	case PaymentMethodFinancing:
		return &t.Financing
	}
	return nil
}

// Get returns the bucket of method
func (t MethodTotals) Get(method PaymentMethod) decimal.Decimal {
	if b := t.bucket(method); b != nil {
		return *b
	}
	return decimal.Zero
}

// Add increases the bucket of method
func (t *MethodTotals) Add(method PaymentMethod, amount decimal.Decimal) {
	if b := t.bucket(method); b != nil {
		*b = b.Add(amount)
	}
}

// Sub decreases the bucket of method, floored at zero
func (t *MethodTotals) Sub(method PaymentMethod, amount decimal.Decimal) {
	if b := t.bucket(method); b != nil {
		*b = floorZero(b.Sub(amount))
	}
}

// Sum returns the total across all buckets
func (t MethodTotals) Sum() decimal.Decimal {
	return t.Cash.Add(t.Card).Add(t.Transfer).Add(t.DigitalWallet).Add(t.Financing)
}

// Equal compares every bucket
func (t MethodTotals) Equal(o MethodTotals) bool {
	for _, m := range AllPaymentMethods {
		if !t.Get(m).Equal(o.Get(m)) {
			return false
		}
	}
	return true
}

// LedgerTotals are the sums of the non-voided entries linked to a session
type LedgerTotals struct {
	Income   decimal.Decimal
	Expense  decimal.Decimal
	ByMethod MethodTotals
	Count    int
}

// SumLedger folds posted entries into LedgerTotals. Voided entries are skipped.
func SumLedger(entries []LedgerEntry) LedgerTotals {
	var totals LedgerTotals
	for i := range entries {
		e := &entries[i]
		if !e.IsPosted() {
			continue
		}
		switch e.Kind {
		case EntryKindIncome:
			totals.Income = totals.Income.Add(e.Amount)
		case EntryKindExpense:
			totals.Expense = totals.Expense.Add(e.Amount)
		}
		totals.ByMethod.Add(e.PaymentMethod, e.Amount)
		totals.Count++
	}
	return totals
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
