package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erpsync/backend/internal/domain/accounting"
	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
)

func TestDocumentBuilder_BuildInvoice(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()

	doc, err := builder.BuildInvoice(order, "CSARHAS")

	require.NoError(t, err)
	assert.Equal(t, erp.DocumentKindInvoice, doc.Kind)
	assert.Equal(t, "6120006557912", doc.ExternalRef)
	assert.Equal(t, "1042", doc.NumAtCard, "display number without decoration")
	assert.Equal(t, 82, doc.Series)
	assert.Equal(t, erp.PayTypePrepaid, doc.PayType)
	assert.Equal(t, "2 x SKU-A, 1 x SKU-B", doc.Summary)

	require.Len(t, doc.Lines, 2)
	assert.Equal(t, "SW", doc.Lines[0].Warehouse)
	assert.Equal(t, "ONL", doc.Lines[0].CostingCodes.Dimension1)
	assert.True(t, doc.Total().Equal(decimal.NewFromInt(100)))
}

func TestDocumentBuilder_BuildInvoice_DiscountedLineUsesEffectivePrice(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	// 2 units listed at 40 but sold for 60 total after discount.
	order.LineItems[0].LineTotal = decimal.NewFromInt(60)

	doc, err := builder.BuildInvoice(order, "CSARHAS")

	require.NoError(t, err)
	assert.True(t, doc.Lines[0].UnitPrice.Equal(decimal.NewFromInt(30)))
	assert.True(t, doc.Lines[0].Total().Equal(decimal.NewFromInt(60)))
}

func TestDocumentBuilder_BuildInvoice_GiftCardLine(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	order.LineItems = append(order.LineItems, integration.LineItem{
		SKU:        "GC-SKU",
		Title:      "Gift Card",
		Quantity:   1,
		UnitPrice:  decimal.NewFromInt(200),
		LineTotal:  decimal.NewFromInt(200),
		IsGiftCard: true,
		GiftCardID: "gid://platform/GiftCard/901",
	})

	doc, err := builder.BuildInvoice(order, "CSARHAS")

	require.NoError(t, err)
	giftLine := doc.Lines[2]
	assert.Equal(t, "GIFT-CARD", giftLine.ItemCode, "configured item code replaces the platform SKU")
	assert.Equal(t, "gid://platform/GiftCard/901", giftLine.GiftCardRef)
}

func TestDocumentBuilder_BuildInvoice_FreightBracketPair(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	order.TotalShipping = decimal.NewFromInt(50)

	doc, err := builder.BuildInvoice(order, "CSARHAS")

	require.NoError(t, err)
	require.Len(t, doc.Expenses, 2, "revenue and cost lines travel together")
	assert.True(t, doc.Expenses[0].Amount.Equal(decimal.NewFromInt(50)))
	assert.True(t, doc.Expenses[1].Amount.Equal(decimal.NewFromInt(35)))
}

func TestDocumentBuilder_BuildInvoice_MissingFreightBracketIsNotFatal(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	order.TotalShipping = decimal.NewFromInt(75)

	doc, err := builder.BuildInvoice(order, "CSARHAS")

	require.NoError(t, err)
	assert.Empty(t, doc.Expenses, "unmatched shipping amount omits freight")
}

func TestDocumentBuilder_BuildInvoice_MissingSKUFails(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	order.LineItems[1].SKU = ""

	_, err := builder.BuildInvoice(order, "CSARHAS")

	require.Error(t, err)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestDocumentBuilder_BuildIncomingPayment_SingleGateway(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	invoice := newTestInvoiceDocument()

	payment, err := builder.BuildIncomingPayment(order, invoice)

	require.NoError(t, err)
	assert.Equal(t, erp.PaymentKindIncoming, payment.Kind)
	assert.Equal(t, "112001", payment.TransferAccount)
	assert.True(t, payment.TransferSum.Equal(decimal.NewFromInt(100)))
	require.Len(t, payment.Applications, 1)
	assert.Equal(t, 9001, payment.Applications[0].Entry)
	assert.True(t, payment.Applications[0].Applied.Equal(decimal.NewFromInt(100)))
}

func TestDocumentBuilder_BuildIncomingPayment_GiftCardRedemption(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	// 100 total captured as 70 via the gateway and 30 redeemed from a
	// gift card.
	order.Transactions = []integration.PaymentTransaction{
		{ID: "t1", Gateway: "Paymob", Kind: integration.TransactionKindSale, Status: integration.TransactionStatusSuccess, Amount: decimal.NewFromInt(70)},
		{ID: "t2", Gateway: "gift_card", Kind: integration.TransactionKindSale, Status: integration.TransactionStatusSuccess, Amount: decimal.NewFromInt(30)},
	}
	invoice := newTestInvoiceDocument()

	payment, err := builder.BuildIncomingPayment(order, invoice)

	require.NoError(t, err)
	assert.True(t, payment.TransferSum.Equal(decimal.NewFromInt(70)))
	require.Len(t, payment.Cards, 1)
	assert.Equal(t, accounting.GiftCardInstrument, payment.Cards[0].VoucherName)
	assert.Equal(t, "114050", payment.Cards[0].Account)
	assert.True(t, payment.Cards[0].Amount.Equal(decimal.NewFromInt(30)))
	assert.True(t, payment.InstrumentTotal().Equal(decimal.NewFromInt(100)),
		"instruments cover the full captured amount")
}

func TestDocumentBuilder_BuildIncomingPayment_CODKeyedByCourier(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	order.Courier = "Aramex"
	order.Transactions = []integration.PaymentTransaction{
		{ID: "t1", Gateway: accounting.CODGateway, Kind: integration.TransactionKindSale, Status: integration.TransactionStatusSuccess, Amount: decimal.NewFromInt(100)},
	}
	invoice := newTestInvoiceDocument()

	payment, err := builder.BuildIncomingPayment(order, invoice)

	require.NoError(t, err)
	assert.Equal(t, "112010", payment.TransferAccount, "courier account, not gateway account")
}

func TestDocumentBuilder_BuildIncomingPayment_UnmappedGateway(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	order.Transactions[0].Gateway = "UnknownPay"
	invoice := newTestInvoiceDocument()

	_, err := builder.BuildIncomingPayment(order, invoice)

	require.Error(t, err)
	assert.Equal(t, shared.KindMapping, shared.KindOf(err))
}

func TestDocumentBuilder_BuildIncomingPayment_CaptureExceedingInvoiceFails(t *testing.T) {
	builder := newTestBuilder()
	order := newTestOrder()
	// 130 captured against a 100 invoice, as happens when a shipping
	// charge never made it onto the document.
	order.Transactions[0].Amount = decimal.NewFromInt(130)
	invoice := newTestInvoiceDocument()

	_, err := builder.BuildIncomingPayment(order, invoice)

	require.Error(t, err)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	assert.Contains(t, err.Error(), "overdraw")
}

func TestDocumentBuilder_BuildCreditNote(t *testing.T) {
	builder := newTestBuilder()
	ret := newTestReturn()
	invoice := newTestInvoiceDocument()

	doc, err := builder.BuildCreditNote(ret, invoice)

	require.NoError(t, err)
	assert.Equal(t, erp.DocumentKindCreditNote, doc.Kind)
	assert.Equal(t, "7710001", doc.ExternalRef, "keyed by return, not order")
	assert.Equal(t, 83, doc.Series)
	assert.Equal(t, invoice.CustomerCode, doc.CustomerCode)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "SKU-A", doc.Lines[0].ItemCode)
	assert.True(t, doc.Lines[0].UnitPrice.Equal(decimal.NewFromInt(40)), "priced from the invoice line")
	assert.True(t, doc.Total().Equal(decimal.NewFromInt(40)))
}

func TestDocumentBuilder_BuildCreditNote_CopiesInvoiceCostingCodes(t *testing.T) {
	builder := newTestBuilder()
	ret := newTestReturn()
	// Goods go back to a store, not the online warehouse the invoice
	// was cut from.
	ret.LocationKey = "downtown"
	invoice := newTestInvoiceDocument()

	doc, err := builder.BuildCreditNote(ret, invoice)

	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "ST", doc.Lines[0].Warehouse, "warehouse follows the receiving location")
	assert.Equal(t, erp.CostingCodes{Dimension1: "ONL", Dimension2: "SAL"}, doc.Lines[0].CostingCodes,
		"cost attribution reverses the invoice line, not the receiving location")
	assert.Equal(t, 93, doc.Series)
}

func TestDocumentBuilder_BuildCreditNote_ItemNotOnInvoiceFails(t *testing.T) {
	builder := newTestBuilder()
	ret := newTestReturn()
	ret.Items[0].SKU = "SKU-NEVER-SOLD"
	invoice := newTestInvoiceDocument()

	_, err := builder.BuildCreditNote(ret, invoice)

	require.Error(t, err)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestDocumentBuilder_BuildRefundPayment_PartialRefundUsesActualAmount(t *testing.T) {
	builder := newTestBuilder()
	ret := newTestReturn()
	order := newTestOrder()
	// Credit note credits 50 but the merchant only refunded 20.
	creditNote := &erp.FinancialDocument{
		Entry:        9002,
		Kind:         erp.DocumentKindCreditNote,
		CustomerCode: "CSARHAS",
		Lines: []erp.DocumentLine{
			{ItemCode: "SKU-A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50)},
		},
	}
	ret.RefundTransactions = []integration.PaymentTransaction{
		{ID: "r1", Gateway: "Paymob", Kind: integration.TransactionKindRefund, Status: integration.TransactionStatusSuccess, Amount: decimal.NewFromInt(20)},
	}

	payment, err := builder.BuildRefundPayment(ret, order, creditNote)

	require.NoError(t, err)
	assert.Equal(t, erp.PaymentKindOutgoing, payment.Kind)
	assert.Equal(t, 85, payment.Series)
	assert.True(t, payment.TransferSum.Equal(decimal.NewFromInt(20)), "actual refunded amount, not credited total")
	require.Len(t, payment.Applications, 1)
	assert.Equal(t, erp.AppliedToCreditNote, payment.Applications[0].Kind)
	assert.True(t, payment.Applications[0].Applied.Equal(decimal.NewFromInt(20)))
}

func TestDocumentBuilder_BuildRefundPayment_RefundExceedingCreditFails(t *testing.T) {
	builder := newTestBuilder()
	ret := newTestReturn()
	order := newTestOrder()
	creditNote := &erp.FinancialDocument{
		Entry:        9002,
		Kind:         erp.DocumentKindCreditNote,
		CustomerCode: "CSARHAS",
		Lines: []erp.DocumentLine{
			{ItemCode: "SKU-A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(40)},
		},
	}
	ret.RefundTransactions[0].Amount = decimal.NewFromInt(55)

	_, err := builder.BuildRefundPayment(ret, order, creditNote)

	require.Error(t, err)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	assert.Contains(t, err.Error(), "overdraw")
}

func TestDocumentBuilder_BuildRefundPayment_NoRefundTransactions(t *testing.T) {
	builder := newTestBuilder()
	ret := newTestReturn()
	ret.RefundTransactions = nil
	order := newTestOrder()
	creditNote := &erp.FinancialDocument{Entry: 9002, CustomerCode: "CSARHAS"}

	_, err := builder.BuildRefundPayment(ret, order, creditNote)

	require.Error(t, err)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestDocumentBuilder_BuildGiftCardInvoice(t *testing.T) {
	builder := newTestBuilder()
	ret := newTestReturn()
	ret.Disposition = integration.DispositionStoreCredit
	creditNote := &erp.FinancialDocument{
		Entry:        9002,
		TransNum:     71002,
		Kind:         erp.DocumentKindCreditNote,
		CustomerCode: "CSARHAS",
		Currency:     "EGP",
		Lines: []erp.DocumentLine{
			{ItemCode: "SKU-A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(40)},
		},
	}

	doc, err := builder.BuildGiftCardInvoice(ret, creditNote)

	require.NoError(t, err)
	assert.Equal(t, erp.DocumentKindInvoice, doc.Kind)
	assert.Equal(t, "7710001", doc.ExternalRef)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "GIFT-CARD", doc.Lines[0].ItemCode)
	assert.True(t, doc.Lines[0].UnitPrice.Equal(decimal.NewFromInt(40)), "priced at the credited amount")
}

func TestDocumentBuilder_ReconciliationLinkFor(t *testing.T) {
	builder := newTestBuilder()
	creditNote := &erp.FinancialDocument{
		Entry:        9002,
		TransNum:     71002,
		CustomerCode: "CSARHAS",
		Lines: []erp.DocumentLine{
			{ItemCode: "SKU-A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(40)},
		},
	}
	invoice := &erp.FinancialDocument{Entry: 9003, TransNum: 71003, CustomerCode: "CSARHAS"}

	link, err := builder.ReconciliationLinkFor(creditNote, invoice)

	require.NoError(t, err)
	assert.Equal(t, 9002, link.CreditNoteEntry)
	assert.Equal(t, 9003, link.InvoiceEntry)
	assert.True(t, link.Amount.Equal(decimal.NewFromInt(40)))
}
