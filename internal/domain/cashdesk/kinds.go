package cashdesk

import "sort"

// EntryKind is the direction of a ledger entry
type EntryKind string

const (
	EntryKindIncome  EntryKind = "INCOME"
	EntryKindExpense EntryKind = "EXPENSE"
)

// IsValid checks if the kind is known
func (k EntryKind) IsValid() bool {
	_, ok := entryKinds[k]
	return ok
}

// String returns the string representation of EntryKind
func (k EntryKind) String() string {
	return string(k)
}

// Category classifies a ledger entry. Each category belongs to exactly one kind.
type Category string

const (
	// Income categories
	CategoryServices             Category = "SERVICES"
	CategoryProductSale          Category = "PRODUCT_SALE"
	CategoryFinancingInstallment Category = "FINANCING_INSTALLMENT"
	CategoryDeposit              Category = "DEPOSIT"
	CategoryOtherIncome          Category = "OTHER_INCOME"

	// Expense categories
	CategorySupplies     Category = "SUPPLIES"
	CategoryPayroll      Category = "PAYROLL"
	CategoryUtilities    Category = "UTILITIES"
	CategoryRent         Category = "RENT"
	CategoryMaintenance  Category = "MAINTENANCE"
	CategoryPettyCash    Category = "PETTY_CASH"
	CategoryRefund       Category = "REFUND"
	CategoryOtherExpense Category = "OTHER_EXPENSE"
)

// String returns the string representation of Category
func (c Category) String() string {
	return string(c)
}

// RequiresPatient reports whether entries of this category must reference a patient
func (c Category) RequiresPatient() bool {
	return c == CategoryServices
}

type kindSpec struct {
	categories map[Category]struct{}
}

func newKindSpec(categories ...Category) kindSpec {
	set := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return kindSpec{categories: set}
}

// entryKinds is the single source of the kind -> allowed categories relation.
// The category sets are disjoint.
var entryKinds = map[EntryKind]kindSpec{
	EntryKindIncome: newKindSpec(
		CategoryServices, CategoryProductSale, CategoryFinancingInstallment,
		CategoryDeposit, CategoryOtherIncome,
	),
	EntryKindExpense: newKindSpec(
		CategorySupplies, CategoryPayroll, CategoryUtilities, CategoryRent,
		CategoryMaintenance, CategoryPettyCash, CategoryRefund, CategoryOtherExpense,
	),
}

// ValidateCategory checks that category is allowed for kind
func ValidateCategory(kind EntryKind, category Category) error {
	spec, ok := entryKinds[kind]
	if !ok {
		return ErrInvalidEntryKind(kind)
	}
	if _, ok := spec.categories[category]; !ok {
		return ErrCategoryNotAllowed(kind, category)
	}
	return nil
}

// KindOfCategory returns the kind that owns category
func KindOfCategory(category Category) (EntryKind, bool) {
	for kind, spec := range entryKinds {
		if _, ok := spec.categories[category]; ok {
			return kind, true
		}
	}
	return "", false
}

// CategoriesFor lists the categories allowed for kind in a stable order
func CategoriesFor(kind EntryKind) []Category {
	spec, ok := entryKinds[kind]
	if !ok {
		return nil
	}
	out := make([]Category, 0, len(spec.categories))
	for c := range spec.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PaymentMethod is how money moved for a ledger entry
type PaymentMethod string

const (
	PaymentMethodCash          PaymentMethod = "CASH"
	PaymentMethodCard          PaymentMethod = "CARD"
	PaymentMethodTransfer      PaymentMethod = "TRANSFER"
	PaymentMethodDigitalWallet PaymentMethod = "DIGITAL_WALLET"
	PaymentMethodFinancing     PaymentMethod = "FINANCING"
)

// AllPaymentMethods lists every supported payment method
var AllPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodTransfer,
	PaymentMethodDigitalWallet,
	PaymentMethodFinancing,
}

// IsValid checks if the payment method is supported
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer,
		PaymentMethodDigitalWallet, PaymentMethodFinancing:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// ParsePaymentMethod converts raw input to a PaymentMethod
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(raw)
	if !m.IsValid() {
		return "", ErrInvalidPaymentMethod(raw)
	}
	return m, nil
}
