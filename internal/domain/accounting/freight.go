package accounting

import (
	"github.com/shopspring/decimal"
)

// ExpenseEntry is one additional-expense posting for a freight bracket
type ExpenseEntry struct {
	ExpenseCode int
	Amount      decimal.Decimal
}

// FreightBracket is the pair of expense lines posted for a shipping amount:
// the revenue recognized from the customer and the cost paid to the carrier.
type FreightBracket struct {
	Revenue ExpenseEntry
	Cost    ExpenseEntry
}

// FreightTable maps store key -> declared shipping amount -> bracket.
// Brackets are keyed by the exact shipping amount charged to the customer,
// normalized to its integer string form.
type FreightTable struct {
	Brackets map[string]map[string]FreightBracket
}

// Lookup finds the bracket for a store and shipping amount. The second
// return is false when no bracket is configured; the caller must log that as
// a warning and omit freight rather than fail the workflow.
func (t *FreightTable) Lookup(storeKey string, shippingAmount decimal.Decimal) (FreightBracket, bool) {
	if t == nil || !shippingAmount.IsPositive() {
		return FreightBracket{}, false
	}
	byAmount, ok := t.Brackets[storeKey]
	if !ok {
		return FreightBracket{}, false
	}
	bracket, ok := byAmount[shippingAmount.Truncate(0).String()]
	return bracket, ok
}
