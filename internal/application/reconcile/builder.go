package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/accounting"
	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
)

// BuilderConfig tunes document construction
type BuilderConfig struct {
	// GiftCardItemCode is the ERP item code for gift-card lines
	GiftCardItemCode string
	// GiftCardGateways are gateway names whose transactions are gift-card
	// redemptions, mapped through the sentinel instrument name
	GiftCardGateways []string
	// CashGateways are gateway names settled as cash at the location
	CashGateways []string
	// InternationalStores marks store keys whose collect orders ship abroad
	InternationalStores []string
}

func (c BuilderConfig) isGiftCardGateway(gateway string) bool {
	return containsFold(c.GiftCardGateways, gateway)
}

func (c BuilderConfig) isCashGateway(gateway string) bool {
	return containsFold(c.CashGateways, gateway)
}

func (c BuilderConfig) isInternationalStore(storeKey string) bool {
	return containsFold(c.InternationalStores, storeKey)
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

// DocumentBuilder translates snapshots into ERP documents and payments.
// Building is pure: no I/O, no clock, every output derived from the inputs
// and the static account and freight tables.
type DocumentBuilder struct {
	accounts *accounting.AccountTable
	freight  *accounting.FreightTable
	config   BuilderConfig
	logger   *zap.Logger
}

// NewDocumentBuilder creates a document builder
func NewDocumentBuilder(accounts *accounting.AccountTable, freight *accounting.FreightTable, config BuilderConfig, logger *zap.Logger) *DocumentBuilder {
	return &DocumentBuilder{
		accounts: accounts,
		freight:  freight,
		config:   config,
		logger:   logger,
	}
}

// ---------------------------------------------------------------------------
// Invoice
// ---------------------------------------------------------------------------

// BuildInvoice maps a captured order to an invoice document
func (b *DocumentBuilder) BuildInvoice(order *integration.OrderSnapshot, customerCode string) (*erp.FinancialDocument, error) {
	location, err := b.accounts.Location(order.LocationKey)
	if err != nil {
		return nil, shared.Classify(shared.KindMapping, err)
	}

	lines, err := b.invoiceLines(order, location)
	if err != nil {
		return nil, err
	}

	doc := &erp.FinancialDocument{
		Kind:         erp.DocumentKindInvoice,
		Date:         order.CreatedAt,
		CustomerCode: customerCode,
		ExternalRef:  order.ExternalID(),
		NumAtCard:    strings.TrimPrefix(order.Name, "#"),
		Series:       location.Series.Invoices,
		PayType:      b.payType(order),
		Currency:     order.Currency,
		Summary:      orderSummary(order),
		Lines:        lines,
		Expenses:     b.freightExpenses(order),
	}

	if err := doc.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("invoice for order %s: %w", order.Name, err))
	}
	return doc, nil
}

func (b *DocumentBuilder) invoiceLines(order *integration.OrderSnapshot, location accounting.LocationConfig) ([]erp.DocumentLine, error) {
	lines := make([]erp.DocumentLine, 0, len(order.LineItems))
	for i := range order.LineItems {
		item := &order.LineItems[i]
		if item.Quantity <= 0 {
			continue
		}

		itemCode := item.SKU
		giftCardRef := ""
		if item.IsGiftCard {
			itemCode = b.config.GiftCardItemCode
			giftCardRef = item.GiftCardID
		}
		if itemCode == "" {
			return nil, shared.Classify(shared.KindValidation,
				fmt.Errorf("order %s line %q has no item code", order.Name, item.Title))
		}

		lines = append(lines, erp.DocumentLine{
			LineNum:      len(lines),
			ItemCode:     itemCode,
			Quantity:     decimal.NewFromInt(int64(item.Quantity)),
			UnitPrice:    effectiveUnitPrice(item),
			Warehouse:    location.Warehouse,
			CostingCodes: location.CostingCodes,
			GiftCardRef:  giftCardRef,
		})
	}
	return lines, nil
}

// effectiveUnitPrice prefers the discounted line total over the list price
func effectiveUnitPrice(item *integration.LineItem) decimal.Decimal {
	if item.LineTotal.IsPositive() && item.Quantity > 0 {
		return item.LineTotal.Div(decimal.NewFromInt(int64(item.Quantity)))
	}
	return item.UnitPrice
}

func (b *DocumentBuilder) payType(order *integration.OrderSnapshot) erp.PayType {
	if order.FinancialStatus.IsCaptured() && order.CapturedAmount().IsPositive() {
		return erp.PayTypePrepaid
	}
	if b.config.isInternationalStore(order.StoreKey) {
		return erp.PayTypeCollectInternational
	}
	return erp.PayTypeCollectLocal
}

// freightExpenses looks up the bracket pair for the declared shipping amount.
// A missing bracket is logged and freight omitted; it never fails the invoice.
func (b *DocumentBuilder) freightExpenses(order *integration.OrderSnapshot) []erp.ExpenseLine {
	if !order.TotalShipping.IsPositive() {
		return nil
	}
	bracket, ok := b.freight.Lookup(order.StoreKey, order.TotalShipping)
	if !ok {
		b.logger.Warn("no freight bracket for shipping amount, omitting freight",
			zap.String("order_name", order.Name),
			zap.String("store", order.StoreKey),
			zap.String("shipping", order.TotalShipping.String()),
		)
		return nil
	}
	return []erp.ExpenseLine{
		{ExpenseCode: bracket.Revenue.ExpenseCode, Amount: bracket.Revenue.Amount, Remarks: "Shipping revenue"},
		{ExpenseCode: bracket.Cost.ExpenseCode, Amount: bracket.Cost.Amount, Remarks: "Shipping cost"},
	}
}

// orderSummary renders the line items as a short free-text header note
func orderSummary(order *integration.OrderSnapshot) string {
	parts := make([]string, 0, len(order.LineItems))
	for i := range order.LineItems {
		item := &order.LineItems[i]
		label := item.SKU
		if label == "" {
			label = item.Title
		}
		parts = append(parts, fmt.Sprintf("%d x %s", item.Quantity, label))
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Incoming Payment
// ---------------------------------------------------------------------------

// BuildIncomingPayment maps the order's captured transactions to an incoming
// payment applied to the invoice. Gift-card redemptions become card entries
// under the sentinel instrument name.
func (b *DocumentBuilder) BuildIncomingPayment(order *integration.OrderSnapshot, invoice *erp.FinancialDocument) (*erp.PaymentRecord, error) {
	payment := &erp.PaymentRecord{
		Kind:         erp.PaymentKindIncoming,
		Date:         order.CreatedAt,
		CustomerCode: invoice.CustomerCode,
		ExternalRef:  order.ExternalID(),
	}
	location, err := b.accounts.Location(order.LocationKey)
	if err != nil {
		return nil, shared.Classify(shared.KindMapping, err)
	}
	payment.Series = location.Series.IncomingPayments

	total := decimal.Zero
	for i := range order.Transactions {
		tx := &order.Transactions[i]
		if !tx.IsSuccessfulSale() {
			continue
		}
		if err := b.addInstrument(payment, order, tx.Gateway, tx.Amount); err != nil {
			return nil, err
		}
		total = total.Add(tx.Amount)
	}
	if !total.IsPositive() {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("order %s has no captured transactions to pay with", order.Name))
	}
	if total.Sub(invoice.Total()).GreaterThan(erp.RoundingTolerance) {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("order %s captured %s but invoice %d totals %s; payment would overdraw the invoice",
				order.Name, total, invoice.Entry, invoice.Total()))
	}

	payment.Applications = []erp.AppliedDocument{
		{Entry: invoice.Entry, Kind: erp.AppliedToInvoice, Applied: total},
	}

	if err := payment.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("incoming payment for order %s: %w", order.Name, err))
	}
	return payment, nil
}

// addInstrument classifies one transaction's gateway and accumulates its
// amount on the matching instrument slot of the payment.
func (b *DocumentBuilder) addInstrument(payment *erp.PaymentRecord, order *integration.OrderSnapshot, gateway string, amount decimal.Decimal) error {
	kind, name := b.classifyGateway(order, gateway)

	account, err := b.accounts.Resolve(order.StoreKey, order.LocationKey, kind, name)
	if err != nil {
		return shared.Classify(shared.KindMapping,
			fmt.Errorf("order %s gateway %q: %w", order.Name, gateway, err))
	}

	switch kind {
	case accounting.InstrumentCash:
		payment.CashAccount = string(account)
		payment.CashSum = payment.CashSum.Add(amount)
	case accounting.InstrumentBankTransfer:
		if payment.TransferAccount != "" && payment.TransferAccount != string(account) {
			return shared.Classify(shared.KindValidation,
				fmt.Errorf("order %s mixes transfer accounts %s and %s", order.Name, payment.TransferAccount, account))
		}
		payment.TransferAccount = string(account)
		payment.TransferSum = payment.TransferSum.Add(amount)
	case accounting.InstrumentCardOrVoucher:
		for i := range payment.Cards {
			if payment.Cards[i].Account == string(account) && payment.Cards[i].VoucherName == name {
				payment.Cards[i].Amount = payment.Cards[i].Amount.Add(amount)
				return nil
			}
		}
		payment.Cards = append(payment.Cards, erp.CardEntry{
			Account:     string(account),
			VoucherName: name,
			Amount:      amount,
		})
	}
	return nil
}

// classifyGateway maps a gateway name to an instrument kind and the name the
// account table is keyed by. COD transfers are keyed by courier; gift-card
// redemptions always resolve through the sentinel name.
func (b *DocumentBuilder) classifyGateway(order *integration.OrderSnapshot, gateway string) (accounting.InstrumentKind, string) {
	switch {
	case b.config.isGiftCardGateway(gateway):
		return accounting.InstrumentCardOrVoucher, accounting.GiftCardInstrument
	case b.config.isCashGateway(gateway):
		return accounting.InstrumentCash, gateway
	case strings.EqualFold(gateway, accounting.CODGateway):
		return accounting.InstrumentBankTransfer, order.Courier
	default:
		return accounting.InstrumentBankTransfer, gateway
	}
}

// ---------------------------------------------------------------------------
// Credit Note
// ---------------------------------------------------------------------------

// BuildCreditNote maps a return to a credit note priced from the original
// invoice lines. Unit prices and costing codes are copied per item, never
// recomputed, so the credit reverses the original cost attribution; only
// the warehouse follows the location that received the goods back.
func (b *DocumentBuilder) BuildCreditNote(ret *integration.ReturnSnapshot, invoice *erp.FinancialDocument) (*erp.FinancialDocument, error) {
	location, err := b.accounts.Location(ret.LocationKey)
	if err != nil {
		return nil, shared.Classify(shared.KindMapping, err)
	}

	byItem := make(map[string]*erp.DocumentLine, len(invoice.Lines))
	for i := range invoice.Lines {
		byItem[invoice.Lines[i].ItemCode] = &invoice.Lines[i]
	}

	lines := make([]erp.DocumentLine, 0, len(ret.Items))
	for _, returned := range ret.Items {
		if returned.Quantity <= 0 {
			continue
		}
		sold, ok := byItem[returned.SKU]
		if !ok {
			return nil, shared.Classify(shared.KindValidation,
				fmt.Errorf("return %s item %q is not on invoice %d", ret.ExternalID(), returned.SKU, invoice.Entry))
		}
		lines = append(lines, erp.DocumentLine{
			LineNum:      len(lines),
			ItemCode:     returned.SKU,
			Quantity:     decimal.NewFromInt(int64(returned.Quantity)),
			UnitPrice:    sold.UnitPrice,
			Warehouse:    location.Warehouse,
			CostingCodes: sold.CostingCodes,
		})
	}

	doc := &erp.FinancialDocument{
		Kind:         erp.DocumentKindCreditNote,
		Date:         ret.CreatedAt,
		CustomerCode: invoice.CustomerCode,
		ExternalRef:  ret.ExternalID(),
		NumAtCard:    strings.TrimPrefix(ret.OrderName, "#"),
		Series:       location.Series.CreditNotes,
		Currency:     invoice.Currency,
		Summary:      fmt.Sprintf("Return for order %s", ret.OrderName),
		Lines:        lines,
	}

	if err := doc.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("credit note for return %s: %w", ret.ExternalID(), err))
	}
	return doc, nil
}

// ---------------------------------------------------------------------------
// Refund Payment
// ---------------------------------------------------------------------------

// BuildRefundPayment maps a refund-disposition return to an outgoing payment
// applied to the credit note. The paid amount is the sum of the actual refund
// transactions, which for partial refunds is less than the credited total.
func (b *DocumentBuilder) BuildRefundPayment(ret *integration.ReturnSnapshot, order *integration.OrderSnapshot, creditNote *erp.FinancialDocument) (*erp.PaymentRecord, error) {
	refunded := ret.RefundedAmount()
	if !refunded.IsPositive() {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("return %s has no successful refund transactions", ret.ExternalID()))
	}
	if refunded.Sub(creditNote.Total()).GreaterThan(erp.RoundingTolerance) {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("return %s refunded %s but credit note %d totals %s; payment would overdraw the credit",
				ret.ExternalID(), refunded, creditNote.Entry, creditNote.Total()))
	}

	location, err := b.accounts.Location(ret.LocationKey)
	if err != nil {
		return nil, shared.Classify(shared.KindMapping, err)
	}

	payment := &erp.PaymentRecord{
		Kind:         erp.PaymentKindOutgoing,
		Date:         ret.CreatedAt,
		CustomerCode: creditNote.CustomerCode,
		ExternalRef:  ret.ExternalID(),
		Series:       location.Series.OutgoingPayments,
	}

	for i := range ret.RefundTransactions {
		tx := &ret.RefundTransactions[i]
		if !tx.IsSuccessfulRefund() {
			continue
		}
		if err := b.addInstrument(payment, order, tx.Gateway, tx.Amount); err != nil {
			return nil, err
		}
	}

	payment.Applications = []erp.AppliedDocument{
		{Entry: creditNote.Entry, Kind: erp.AppliedToCreditNote, Applied: refunded},
	}

	if err := payment.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("refund payment for return %s: %w", ret.ExternalID(), err))
	}
	return payment, nil
}

// ---------------------------------------------------------------------------
// Store Credit
// ---------------------------------------------------------------------------

// BuildGiftCardInvoice maps a store-credit return to a one-line invoice for
// the issued gift card, priced at the credited amount. Closing it against the
// credit note is the reconciliation link's job.
func (b *DocumentBuilder) BuildGiftCardInvoice(ret *integration.ReturnSnapshot, creditNote *erp.FinancialDocument) (*erp.FinancialDocument, error) {
	location, err := b.accounts.Location(ret.LocationKey)
	if err != nil {
		return nil, shared.Classify(shared.KindMapping, err)
	}
	if b.config.GiftCardItemCode == "" {
		return nil, shared.Classify(shared.KindMapping,
			fmt.Errorf("no gift-card item code configured for store-credit return %s", ret.ExternalID()))
	}

	doc := &erp.FinancialDocument{
		Kind:         erp.DocumentKindInvoice,
		Date:         ret.CreatedAt,
		CustomerCode: creditNote.CustomerCode,
		ExternalRef:  ret.ExternalID(),
		NumAtCard:    strings.TrimPrefix(ret.OrderName, "#"),
		Series:       location.Series.Invoices,
		PayType:      erp.PayTypePrepaid,
		Currency:     creditNote.Currency,
		Summary:      fmt.Sprintf("Store credit for order %s", ret.OrderName),
		Lines: []erp.DocumentLine{
			{
				ItemCode:     b.config.GiftCardItemCode,
				Quantity:     decimal.NewFromInt(1),
				UnitPrice:    creditNote.Total(),
				Warehouse:    location.Warehouse,
				CostingCodes: location.CostingCodes,
			},
		},
	}

	if err := doc.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("gift-card invoice for return %s: %w", ret.ExternalID(), err))
	}
	return doc, nil
}

// ReconciliationLinkFor closes a credit note against its gift-card invoice
func (b *DocumentBuilder) ReconciliationLinkFor(creditNote, giftCardInvoice *erp.FinancialDocument) (*erp.ReconciliationLink, error) {
	link := &erp.ReconciliationLink{
		CustomerCode:    creditNote.CustomerCode,
		Date:            creditNote.Date,
		CreditNoteEntry: creditNote.Entry,
		CreditNoteTrans: creditNote.TransNum,
		InvoiceEntry:    giftCardInvoice.Entry,
		InvoiceTrans:    giftCardInvoice.TransNum,
		Amount:          creditNote.Total(),
	}
	if err := link.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation, err)
	}
	return link, nil
}
