package erp

import (
	"context"
	"errors"
)

// ---------------------------------------------------------------------------
// ERP Errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidDocument       = errors.New("erp: invalid financial document")
	ErrInvalidPayment        = errors.New("erp: invalid payment record")
	ErrPaymentUnbalanced     = errors.New("erp: payment instruments do not balance applications")
	ErrInvalidReconciliation = errors.New("erp: invalid reconciliation link")
	ErrInvalidCustomer       = errors.New("erp: invalid customer record")
	ErrCustomerNotFound      = errors.New("erp: customer not found")
	ErrDocumentNotFound      = errors.New("erp: document not found")
	ErrUnavailable           = errors.New("erp: service temporarily unavailable")
	ErrSessionExpired        = errors.New("erp: session expired")
	ErrRejected              = errors.New("erp: request rejected")
)

// ---------------------------------------------------------------------------
// Client Port
// ---------------------------------------------------------------------------

// Client is the port to the ERP system of record. Implementations classify
// failures with shared.Classify: connection problems as KindTransientIO,
// expired sessions as KindAuthExpired, structural rejections as
// KindValidation, duplicate-reference rejections as KindConflict.
type Client interface {
	// FindCustomers returns customer records matching the filter
	FindCustomers(ctx context.Context, filter CustomerFilter) ([]CustomerRecord, error)

	// CreateCustomer creates a new customer record and returns it with
	// ERP-assigned fields populated
	CreateCustomer(ctx context.Context, customer *CustomerRecord) (*CustomerRecord, error)

	// UpdateCustomer updates back-reference fields on an existing record
	UpdateCustomer(ctx context.Context, code string, customer *CustomerRecord) error

	// FindDocumentByExternalRef is the authoritative existence check: it
	// queries documents of the given kind by external reference field.
	// Returns (nil, nil) when no document exists.
	FindDocumentByExternalRef(ctx context.Context, kind DocumentKind, externalRef string) (*FinancialDocument, error)

	// FindPaymentByExternalRef is the authoritative existence check for
	// payments. Returns (nil, nil) when no payment exists.
	FindPaymentByExternalRef(ctx context.Context, kind PaymentKind, externalRef string) (*PaymentRecord, error)

	// CreateDocument writes an invoice or credit note and returns it with
	// the ERP-assigned entry and transaction numbers
	CreateDocument(ctx context.Context, doc *FinancialDocument) (*FinancialDocument, error)

	// CreatePayment writes an incoming or outgoing payment and returns it
	// with the ERP-assigned entry
	CreatePayment(ctx context.Context, payment *PaymentRecord) (*PaymentRecord, error)

	// CreateReconciliation links a credit note to a gift-card invoice
	CreateReconciliation(ctx context.Context, link *ReconciliationLink) error
}
