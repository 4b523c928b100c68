package erp

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentKind discriminates the payment record variants
type PaymentKind string

const (
	// PaymentKindIncoming collects money from the customer against an invoice
	PaymentKindIncoming PaymentKind = "INCOMING"
	// PaymentKindOutgoing pays money back against a credit note
	PaymentKindOutgoing PaymentKind = "OUTGOING"
)

// IsValid returns true if the kind is a known payment kind
func (k PaymentKind) IsValid() bool {
	return k == PaymentKindIncoming || k == PaymentKindOutgoing
}

// AppliedDocumentKind names the document type a payment row applies to
type AppliedDocumentKind string

const (
	AppliedToInvoice    AppliedDocumentKind = "INVOICE"
	AppliedToCreditNote AppliedDocumentKind = "CREDIT_NOTE"
)

// CardEntry is a card-or-voucher instrument entry on a payment
type CardEntry struct {
	// Account is the ledger account resolved for the instrument
	Account string
	// VoucherName is the gateway or voucher label recorded on the entry
	VoucherName string
	Amount      decimal.Decimal
}

// AppliedDocument applies part of the payment to a financial document
type AppliedDocument struct {
	Entry   int
	Kind    AppliedDocumentKind
	Applied decimal.Decimal
}

// PaymentRecord is an incoming or outgoing payment: instrument entries plus
// the documents the money is applied to. Created at most once per external
// order/return.
type PaymentRecord struct {
	// Entry is the ERP document entry, assigned on creation
	Entry int

	Kind         PaymentKind
	Date         time.Time
	CustomerCode string
	// ExternalRef is the bare platform identifier of the originating
	// order or return
	ExternalRef string
	Series      int

	// CashAccount/CashSum record the cash instrument when present
	CashAccount string
	CashSum     decimal.Decimal
	// TransferAccount/TransferSum record the bank-transfer instrument
	TransferAccount string
	TransferSum     decimal.Decimal
	// Cards records card-or-voucher instruments, including gift-card
	// redemptions mapped through the sentinel instrument name
	Cards []CardEntry

	Applications []AppliedDocument
}

// InstrumentTotal sums all instrument entries
func (p *PaymentRecord) InstrumentTotal() decimal.Decimal {
	total := p.CashSum.Add(p.TransferSum)
	for i := range p.Cards {
		total = total.Add(p.Cards[i].Amount)
	}
	return total
}

// AppliedTotal sums all document applications
func (p *PaymentRecord) AppliedTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range p.Applications {
		total = total.Add(p.Applications[i].Applied)
	}
	return total
}

// Validate checks structural invariants: instruments and applications must
// balance within the rounding tolerance, and every instrument entry needs a
// resolved account.
func (p *PaymentRecord) Validate() error {
	if !p.Kind.IsValid() {
		return ErrInvalidPayment
	}
	if p.CustomerCode == "" || p.ExternalRef == "" {
		return ErrInvalidPayment
	}
	if len(p.Applications) == 0 {
		return ErrInvalidPayment
	}
	if p.CashSum.IsPositive() && p.CashAccount == "" {
		return ErrInvalidPayment
	}
	if p.TransferSum.IsPositive() && p.TransferAccount == "" {
		return ErrInvalidPayment
	}
	for i := range p.Cards {
		if p.Cards[i].Amount.IsPositive() && p.Cards[i].Account == "" {
			return ErrInvalidPayment
		}
	}
	if p.InstrumentTotal().Sub(p.AppliedTotal()).Abs().GreaterThan(RoundingTolerance) {
		return ErrPaymentUnbalanced
	}
	return nil
}
