package erp

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundingTolerance is the maximum absolute difference allowed between a
// document's recorded total and the sum of its parts.
var RoundingTolerance = decimal.NewFromFloat(0.01)

// DocumentKind discriminates the financial document variants
type DocumentKind string

const (
	DocumentKindInvoice    DocumentKind = "INVOICE"
	DocumentKindCreditNote DocumentKind = "CREDIT_NOTE"
)

// IsValid returns true if the kind is a known document kind
func (k DocumentKind) IsValid() bool {
	return k == DocumentKindInvoice || k == DocumentKindCreditNote
}

// PayType is the payment-type indicator stamped on invoice headers
type PayType int

const (
	// PayTypePrepaid marks orders whose funds were captured online
	PayTypePrepaid PayType = 1
	// PayTypeCollectLocal marks local cash-on-delivery orders
	PayTypeCollectLocal PayType = 2
	// PayTypeCollectInternational marks international collect orders
	PayTypeCollectInternational PayType = 3
)

// DocumentLine is one ordered line of a financial document
type DocumentLine struct {
	LineNum   int
	ItemCode  string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal

	// Warehouse and cost-allocation codes come from the resolved location
	// configuration, not from the platform line item
	Warehouse    string
	CostingCodes CostingCodes

	// GiftCardRef is the platform gift-card identifier carried on lines
	// whose item code is the configured gift-card item
	GiftCardRef string
}

// Total returns quantity times unit price
func (l *DocumentLine) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// CostingCodes are the cost-allocation dimensions stamped on each line
type CostingCodes struct {
	Dimension1 string
	Dimension2 string
	Dimension3 string
}

// IsZero reports whether no dimension is set
func (c CostingCodes) IsZero() bool {
	return c.Dimension1 == "" && c.Dimension2 == "" && c.Dimension3 == ""
}

// ExpenseLine is an additional document expense (freight revenue or cost)
type ExpenseLine struct {
	ExpenseCode int
	Amount      decimal.Decimal
	Remarks     string
}

// FinancialDocument is an invoice or credit note header plus its lines.
// Created exactly once per external order/return; immutable once created
// except for the closing reconciliation.
type FinancialDocument struct {
	// Entry is the ERP document entry, assigned on creation
	Entry int
	// TransNum is the journal transaction number, assigned on creation
	TransNum int

	Kind         DocumentKind
	Date         time.Time
	CustomerCode string
	// ExternalRef is the bare platform identifier of the originating
	// order or return. The authoritative existence check queries by it.
	ExternalRef string
	// NumAtCard is the platform display number without decoration
	NumAtCard string
	Series    int
	PayType   PayType
	Currency  string
	// Summary is the free-text order summary on the header
	Summary string

	Lines    []DocumentLine
	Expenses []ExpenseLine
}

// Total sums line totals and additional expenses
func (d *FinancialDocument) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range d.Lines {
		total = total.Add(d.Lines[i].Total())
	}
	for i := range d.Expenses {
		total = total.Add(d.Expenses[i].Amount)
	}
	return total
}

// Validate checks structural invariants before the document is written
func (d *FinancialDocument) Validate() error {
	if !d.Kind.IsValid() {
		return ErrInvalidDocument
	}
	if d.CustomerCode == "" || d.ExternalRef == "" {
		return ErrInvalidDocument
	}
	if len(d.Lines) == 0 {
		return ErrInvalidDocument
	}
	for i := range d.Lines {
		if d.Lines[i].ItemCode == "" || d.Lines[i].Quantity.IsZero() {
			return ErrInvalidDocument
		}
	}
	return nil
}

// TotalsMatch reports whether recorded equals the computed total within
// the rounding tolerance.
func (d *FinancialDocument) TotalsMatch(recorded decimal.Decimal) bool {
	return recorded.Sub(d.Total()).Abs().LessThanOrEqual(RoundingTolerance)
}

// ReconciliationLink closes a credit note against a gift-card invoice.
// Both rows must balance: the credit note credits what the invoice debits.
type ReconciliationLink struct {
	CustomerCode    string
	Date            time.Time
	CreditNoteEntry int
	CreditNoteTrans int
	InvoiceEntry    int
	InvoiceTrans    int
	Amount          decimal.Decimal
}

// Validate checks the link references both documents
func (l *ReconciliationLink) Validate() error {
	if l.CustomerCode == "" || l.CreditNoteEntry == 0 || l.InvoiceEntry == 0 {
		return ErrInvalidReconciliation
	}
	if !l.Amount.IsPositive() {
		return ErrInvalidReconciliation
	}
	return nil
}
