package erpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/shared"
)

// endpointForDocument maps a document kind to its service-layer collection
func endpointForDocument(kind erp.DocumentKind) (string, error) {
	switch kind {
	case erp.DocumentKindInvoice:
		return "Invoices", nil
	case erp.DocumentKindCreditNote:
		return "CreditNotes", nil
	default:
		return "", shared.Classify(shared.KindValidation, fmt.Errorf("%w: unknown document kind %q", erp.ErrInvalidDocument, kind))
	}
}

// endpointForPayment maps a payment kind to its service-layer collection
func endpointForPayment(kind erp.PaymentKind) (string, error) {
	switch kind {
	case erp.PaymentKindIncoming:
		return "IncomingPayments", nil
	case erp.PaymentKindOutgoing:
		return "VendorPayments", nil
	default:
		return "", shared.Classify(shared.KindValidation, fmt.Errorf("%w: unknown payment kind %q", erp.ErrInvalidPayment, kind))
	}
}

// FindDocumentByExternalRef queries documents of the given kind by the
// configured external-reference user field. Returns (nil, nil) when no
// document exists; this is the authoritative existence check.
func (c *ServiceLayerClient) FindDocumentByExternalRef(ctx context.Context, kind erp.DocumentKind, externalRef string) (*erp.FinancialDocument, error) {
	endpoint, err := endpointForDocument(kind)
	if err != nil {
		return nil, err
	}
	if externalRef == "" {
		return nil, shared.Classify(shared.KindValidation, fmt.Errorf("erpclient: empty external reference"))
	}

	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("%s eq '%s' and Cancelled eq 'tNO'", c.cfg.ExternalRefField, escapeFilterValue(externalRef)))
	query.Set("$orderby", "DocEntry desc")
	query.Set("$top", "1")

	var envelope collection[documentResource]
	if err := c.do(ctx, http.MethodGet, endpoint, query, nil, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Value) == 0 {
		return nil, nil
	}
	return envelope.Value[0].toDomain(kind, externalRef), nil
}

// FindPaymentByExternalRef is the authoritative existence check for
// payments. Returns (nil, nil) when no payment exists.
func (c *ServiceLayerClient) FindPaymentByExternalRef(ctx context.Context, kind erp.PaymentKind, externalRef string) (*erp.PaymentRecord, error) {
	endpoint, err := endpointForPayment(kind)
	if err != nil {
		return nil, err
	}
	if externalRef == "" {
		return nil, shared.Classify(shared.KindValidation, fmt.Errorf("erpclient: empty external reference"))
	}

	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("%s eq '%s' and Cancelled eq 'tNO'", c.cfg.ExternalRefField, escapeFilterValue(externalRef)))
	query.Set("$orderby", "DocEntry desc")
	query.Set("$top", "1")

	var envelope collection[paymentResource]
	if err := c.do(ctx, http.MethodGet, endpoint, query, nil, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Value) == 0 {
		return nil, nil
	}
	return envelope.Value[0].toDomain(kind, externalRef), nil
}

// CreateDocument writes an invoice or credit note and returns it with the
// ERP-assigned entry and transaction numbers
func (c *ServiceLayerClient) CreateDocument(ctx context.Context, doc *erp.FinancialDocument) (*erp.FinancialDocument, error) {
	if err := doc.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation, err)
	}
	endpoint, err := endpointForDocument(doc.Kind)
	if err != nil {
		return nil, err
	}

	var created documentResource
	if err := c.do(ctx, http.MethodPost, endpoint, nil, c.documentPayload(doc), &created); err != nil {
		return nil, err
	}

	c.logger.Info("document created",
		zap.String("kind", string(doc.Kind)),
		zap.Int("doc_entry", created.DocEntry),
		zap.Int("trans_num", created.TransNum),
		zap.String("external_ref", doc.ExternalRef),
	)
	return created.toDomain(doc.Kind, doc.ExternalRef), nil
}

// CreatePayment writes an incoming or outgoing payment and returns it with
// the ERP-assigned entry
func (c *ServiceLayerClient) CreatePayment(ctx context.Context, payment *erp.PaymentRecord) (*erp.PaymentRecord, error) {
	if err := payment.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation, err)
	}
	endpoint, err := endpointForPayment(payment.Kind)
	if err != nil {
		return nil, err
	}

	var created paymentResource
	if err := c.do(ctx, http.MethodPost, endpoint, nil, c.paymentPayload(payment), &created); err != nil {
		return nil, err
	}

	c.logger.Info("payment created",
		zap.String("kind", string(payment.Kind)),
		zap.Int("doc_entry", created.DocEntry),
		zap.String("external_ref", payment.ExternalRef),
	)
	return created.toDomain(payment.Kind, payment.ExternalRef), nil
}

// CreateReconciliation links a credit note to a gift-card invoice
func (c *ServiceLayerClient) CreateReconciliation(ctx context.Context, link *erp.ReconciliationLink) error {
	if err := link.Validate(); err != nil {
		return shared.Classify(shared.KindValidation, err)
	}

	if err := c.do(ctx, http.MethodPost, "InternalReconciliations", nil, reconciliationPayload(link), nil); err != nil {
		return err
	}

	c.logger.Info("reconciliation created",
		zap.Int("credit_note_entry", link.CreditNoteEntry),
		zap.Int("invoice_entry", link.InvoiceEntry),
		zap.String("amount", link.Amount.String()),
	)
	return nil
}
