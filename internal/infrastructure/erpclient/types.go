package erpclient

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erpsync/backend/internal/domain/erp"
)

const wireDateFormat = "2006-01-02"

// collection is the OData list envelope
type collection[T any] struct {
	Value []T `json:"value"`
}

// ---------------------------------------------------------------------------
// Business Partners
// ---------------------------------------------------------------------------

type businessPartnerResource struct {
	CardCode     string `json:"CardCode"`
	CardName     string `json:"CardName"`
	CardType     string `json:"CardType,omitempty"`
	Phone1       string `json:"Phone1"`
	Phone2       string `json:"Phone2"`
	Cellular     string `json:"Cellular"`
	EmailAddress string `json:"EmailAddress"`
	Address      string `json:"Address"`
	City         string `json:"City"`
	County       string `json:"County"`
	ZipCode      string `json:"ZipCode"`
	Country      string `json:"Country"`
	GroupCode    int    `json:"GroupCode,omitempty"`

	ExternalCustomerID string `json:"U_ExternalCustomerID"`
}

func (r *businessPartnerResource) toDomain() erp.CustomerRecord {
	return erp.CustomerRecord{
		Code:               r.CardCode,
		Name:               r.CardName,
		Phone1:             r.Phone1,
		Phone2:             r.Phone2,
		Mobile:             r.Cellular,
		Email:              r.EmailAddress,
		Address:            r.Address,
		City:               r.City,
		State:              r.County,
		ZipCode:            r.ZipCode,
		Country:            r.Country,
		GroupCode:          r.GroupCode,
		ExternalCustomerID: r.ExternalCustomerID,
	}
}

func businessPartnerFromDomain(c *erp.CustomerRecord) businessPartnerResource {
	return businessPartnerResource{
		CardCode:           c.Code,
		CardName:           c.Name,
		CardType:           "cCustomer",
		Phone1:             c.Phone1,
		Phone2:             c.Phone2,
		Cellular:           c.Mobile,
		EmailAddress:       c.Email,
		Address:            c.Address,
		City:               c.City,
		County:             c.State,
		ZipCode:            c.ZipCode,
		Country:            c.Country,
		GroupCode:          c.GroupCode,
		ExternalCustomerID: c.ExternalCustomerID,
	}
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

type documentLineResource struct {
	ItemCode      string  `json:"ItemCode"`
	Quantity      float64 `json:"Quantity"`
	UnitPrice     float64 `json:"UnitPrice"`
	WarehouseCode string  `json:"WarehouseCode,omitempty"`
	CostingCode   string  `json:"CostingCode,omitempty"`
	CostingCode2  string  `json:"CostingCode2,omitempty"`
	CostingCode3  string  `json:"CostingCode3,omitempty"`
}

type expenseResource struct {
	ExpenseCode int     `json:"ExpenseCode"`
	LineTotal   float64 `json:"LineTotal"`
	Remarks     string  `json:"Remarks,omitempty"`
}

type documentResource struct {
	DocEntry    int                    `json:"DocEntry"`
	TransNum    int                    `json:"TransNum"`
	DocDate     string                 `json:"DocDate"`
	CardCode    string                 `json:"CardCode"`
	NumAtCard   string                 `json:"NumAtCard"`
	Series      int                    `json:"Series"`
	DocCurrency string                 `json:"DocCurrency"`
	Comments    string                 `json:"Comments"`
	PayType     int                    `json:"U_Pay_type"`
	Lines       []documentLineResource `json:"DocumentLines"`
	Expenses    []expenseResource      `json:"DocumentAdditionalExpenses"`
}

func (r *documentResource) toDomain(kind erp.DocumentKind, externalRef string) *erp.FinancialDocument {
	doc := &erp.FinancialDocument{
		Entry:        r.DocEntry,
		TransNum:     r.TransNum,
		Kind:         kind,
		CustomerCode: r.CardCode,
		ExternalRef:  externalRef,
		NumAtCard:    r.NumAtCard,
		Series:       r.Series,
		PayType:      erp.PayType(r.PayType),
		Currency:     r.DocCurrency,
		Summary:      r.Comments,
	}
	if parsed, err := time.Parse(wireDateFormat, r.DocDate); err == nil {
		doc.Date = parsed
	}
	for i, line := range r.Lines {
		doc.Lines = append(doc.Lines, erp.DocumentLine{
			LineNum:   i,
			ItemCode:  line.ItemCode,
			Quantity:  decimal.NewFromFloat(line.Quantity),
			UnitPrice: decimal.NewFromFloat(line.UnitPrice),
			Warehouse: line.WarehouseCode,
			CostingCodes: erp.CostingCodes{
				Dimension1: line.CostingCode,
				Dimension2: line.CostingCode2,
				Dimension3: line.CostingCode3,
			},
		})
	}
	for _, expense := range r.Expenses {
		doc.Expenses = append(doc.Expenses, erp.ExpenseLine{
			ExpenseCode: expense.ExpenseCode,
			Amount:      decimal.NewFromFloat(expense.LineTotal),
			Remarks:     expense.Remarks,
		})
	}
	return doc
}

// documentPayload builds the outbound document body. The external and
// gift-card references live in configurable user fields, so the body is a
// map rather than a fixed struct.
func (c *ServiceLayerClient) documentPayload(doc *erp.FinancialDocument) map[string]any {
	lines := make([]map[string]any, 0, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		entry := map[string]any{
			"ItemCode":  line.ItemCode,
			"Quantity":  line.Quantity.InexactFloat64(),
			"UnitPrice": line.UnitPrice.InexactFloat64(),
		}
		if line.Warehouse != "" {
			entry["WarehouseCode"] = line.Warehouse
		}
		if !line.CostingCodes.IsZero() {
			entry["CostingCode"] = line.CostingCodes.Dimension1
			entry["CostingCode2"] = line.CostingCodes.Dimension2
			entry["CostingCode3"] = line.CostingCodes.Dimension3
		}
		if line.GiftCardRef != "" {
			entry[c.cfg.GiftCardRefField] = line.GiftCardRef
		}
		lines = append(lines, entry)
	}

	payload := map[string]any{
		"DocDate":       doc.Date.Format(wireDateFormat),
		"CardCode":      doc.CustomerCode,
		"NumAtCard":     doc.NumAtCard,
		"ImportFileNum": doc.NumAtCard,
		"Series":        doc.Series,
		"DocCurrency":   doc.Currency,
		"Comments":      doc.Summary,
		"U_Pay_type":    int(doc.PayType),
		"DocumentLines": lines,

		c.cfg.ExternalRefField: doc.ExternalRef,
	}

	if len(doc.Expenses) > 0 {
		expenses := make([]map[string]any, 0, len(doc.Expenses))
		for i := range doc.Expenses {
			expense := map[string]any{
				"ExpenseCode": doc.Expenses[i].ExpenseCode,
				"LineTotal":   doc.Expenses[i].Amount.InexactFloat64(),
			}
			if doc.Expenses[i].Remarks != "" {
				expense["Remarks"] = doc.Expenses[i].Remarks
			}
			expenses = append(expenses, expense)
		}
		payload["DocumentAdditionalExpenses"] = expenses
	}
	return payload
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

type paymentCardResource struct {
	CreditCard int     `json:"CreditCard"`
	CreditAcct string  `json:"CreditAcct"`
	VoucherNum string  `json:"VoucherNum"`
	CreditSum  float64 `json:"CreditSum"`
}

type paymentApplicationResource struct {
	DocEntry    int     `json:"DocEntry"`
	SumApplied  float64 `json:"SumApplied"`
	InvoiceType string  `json:"InvoiceType"`
}

type paymentResource struct {
	DocEntry        int                          `json:"DocEntry"`
	DocDate         string                       `json:"DocDate"`
	CardCode        string                       `json:"CardCode"`
	Series          int                          `json:"Series"`
	CashAccount     string                       `json:"CashAccount"`
	CashSum         float64                      `json:"CashSum"`
	TransferAccount string                       `json:"TransferAccount"`
	TransferSum     float64                      `json:"TransferSum"`
	Cards           []paymentCardResource        `json:"PaymentCreditCards"`
	Invoices        []paymentApplicationResource `json:"PaymentInvoices"`
}

const (
	appliedInvoiceType    = "it_Invoice"
	appliedCreditNoteType = "it_CredItnote"
)

func appliedKindFromWire(invoiceType string) erp.AppliedDocumentKind {
	if invoiceType == appliedCreditNoteType {
		return erp.AppliedToCreditNote
	}
	return erp.AppliedToInvoice
}

func appliedKindToWire(kind erp.AppliedDocumentKind) string {
	if kind == erp.AppliedToCreditNote {
		return appliedCreditNoteType
	}
	return appliedInvoiceType
}

func (r *paymentResource) toDomain(kind erp.PaymentKind, externalRef string) *erp.PaymentRecord {
	payment := &erp.PaymentRecord{
		Entry:           r.DocEntry,
		Kind:            kind,
		CustomerCode:    r.CardCode,
		ExternalRef:     externalRef,
		Series:          r.Series,
		CashAccount:     r.CashAccount,
		CashSum:         decimal.NewFromFloat(r.CashSum),
		TransferAccount: r.TransferAccount,
		TransferSum:     decimal.NewFromFloat(r.TransferSum),
	}
	if parsed, err := time.Parse(wireDateFormat, r.DocDate); err == nil {
		payment.Date = parsed
	}
	for _, card := range r.Cards {
		payment.Cards = append(payment.Cards, erp.CardEntry{
			Account:     card.CreditAcct,
			VoucherName: card.VoucherNum,
			Amount:      decimal.NewFromFloat(card.CreditSum),
		})
	}
	for _, applied := range r.Invoices {
		payment.Applications = append(payment.Applications, erp.AppliedDocument{
			Entry:   applied.DocEntry,
			Kind:    appliedKindFromWire(applied.InvoiceType),
			Applied: decimal.NewFromFloat(applied.SumApplied),
		})
	}
	return payment
}

func (c *ServiceLayerClient) paymentPayload(payment *erp.PaymentRecord) map[string]any {
	date := payment.Date.Format(wireDateFormat)
	payload := map[string]any{
		"DocDate":  date,
		"TaxDate":  date,
		"DueDate":  date,
		"CardCode": payment.CustomerCode,
		"DocType":  "rCustomer",
		"Series":   payment.Series,

		c.cfg.ExternalRefField: payment.ExternalRef,
	}

	if payment.CashSum.IsPositive() {
		payload["CashAccount"] = payment.CashAccount
		payload["CashSum"] = payment.CashSum.InexactFloat64()
	}
	if payment.TransferSum.IsPositive() {
		payload["TransferAccount"] = payment.TransferAccount
		payload["TransferSum"] = payment.TransferSum.InexactFloat64()
	}

	if len(payment.Cards) > 0 {
		cards := make([]map[string]any, 0, len(payment.Cards))
		for i := range payment.Cards {
			card := &payment.Cards[i]
			cards = append(cards, map[string]any{
				"CreditAcct":        card.Account,
				"VoucherNum":        card.VoucherName,
				"CreditSum":         card.Amount.InexactFloat64(),
				"CreditCardNumber":  "1234",
				"PaymentMethodCode": 1,
				"CreditType":        "cr_Regular",
				"SplitPayments":     "tNO",
			})
		}
		payload["PaymentCreditCards"] = cards
	}

	applications := make([]map[string]any, 0, len(payment.Applications))
	for i := range payment.Applications {
		applied := &payment.Applications[i]
		applications = append(applications, map[string]any{
			"DocEntry":    applied.Entry,
			"SumApplied":  applied.Applied.InexactFloat64(),
			"InvoiceType": appliedKindToWire(applied.Kind),
		})
	}
	payload["PaymentInvoices"] = applications

	return payload
}

// ---------------------------------------------------------------------------
// Reconciliations
// ---------------------------------------------------------------------------

const (
	creditNoteObjectType = "14"
	invoiceObjectType    = "13"
)

func reconciliationPayload(link *erp.ReconciliationLink) map[string]any {
	amount := link.Amount.InexactFloat64()
	rows := []map[string]any{
		{
			"ShortName":       link.CustomerCode,
			"TransId":         link.CreditNoteTrans,
			"TransRowId":      0,
			"SrcObjTyp":       creditNoteObjectType,
			"SrcObjAbs":       link.CreditNoteEntry,
			"CreditOrDebit":   "codCredit",
			"ReconcileAmount": amount,
			"Selected":        "tYES",
		},
		{
			"ShortName":       link.CustomerCode,
			"TransId":         link.InvoiceTrans,
			"TransRowId":      0,
			"SrcObjTyp":       invoiceObjectType,
			"SrcObjAbs":       link.InvoiceEntry,
			"CreditOrDebit":   "codDebit",
			"ReconcileAmount": amount,
			"Selected":        "tYES",
		},
	}
	return map[string]any{
		"ReconDate":                           link.Date.Format(wireDateFormat),
		"CardOrAccount":                       "coaCard",
		"InternalReconciliationOpenTransRows": rows,
	}
}
