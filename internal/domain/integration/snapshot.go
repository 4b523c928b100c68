package integration

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Status Enums
// ---------------------------------------------------------------------------

// FinancialStatus represents the payment state of an order on the platform
type FinancialStatus string

const (
	FinancialStatusPending           FinancialStatus = "PENDING"
	FinancialStatusPaid              FinancialStatus = "PAID"
	FinancialStatusPartiallyRefunded FinancialStatus = "PARTIALLY_REFUNDED"
	FinancialStatusRefunded          FinancialStatus = "REFUNDED"
	FinancialStatusVoided            FinancialStatus = "VOIDED"
)

// IsCaptured returns true if funds have been captured for the order
func (s FinancialStatus) IsCaptured() bool {
	return s == FinancialStatusPaid || s == FinancialStatusPartiallyRefunded
}

// FulfillmentStatus represents the fulfillment state of an order
type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "UNFULFILLED"
	FulfillmentStatusPartial     FulfillmentStatus = "PARTIAL"
	FulfillmentStatusFulfilled   FulfillmentStatus = "FULFILLED"
)

// TransactionKind represents the direction of a payment transaction
type TransactionKind string

const (
	TransactionKindSale    TransactionKind = "SALE"
	TransactionKindCapture TransactionKind = "CAPTURE"
	TransactionKindRefund  TransactionKind = "REFUND"
)

// TransactionStatus represents the outcome of a payment transaction
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusFailure TransactionStatus = "FAILURE"
)

// ReturnDisposition determines which reconciling document a return produces
type ReturnDisposition string

const (
	// DispositionRefund pays the customer back via the original instrument
	DispositionRefund ReturnDisposition = "REFUND"
	// DispositionStoreCredit issues a gift card for the credited amount
	DispositionStoreCredit ReturnDisposition = "STORE_CREDIT"
)

// IsValid returns true if the disposition is one of the known values
func (d ReturnDisposition) IsValid() bool {
	switch d {
	case DispositionRefund, DispositionStoreCredit:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Snapshot Parts
// ---------------------------------------------------------------------------

// Address is a postal address as reported by the platform
type Address struct {
	Address1 string
	Address2 string
	City     string
	Province string
	Zip      string
	Country  string
	Phone    string
}

// Flatten renders the address as a single pipe-separated line for
// free-text document fields.
func (a *Address) Flatten() string {
	if a == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	if a.Address1 != "" {
		parts = append(parts, a.Address1)
	}
	if a.Address2 != "" {
		parts = append(parts, a.Address2)
	}
	cityParts := make([]string, 0, 3)
	for _, p := range []string{a.City, a.Province, a.Zip} {
		if p != "" {
			cityParts = append(cityParts, p)
		}
	}
	if len(cityParts) > 0 {
		parts = append(parts, strings.Join(cityParts, ", "))
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, " | ")
}

// CustomerSnapshot is the customer as embedded in an order snapshot
type CustomerSnapshot struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Addresses []Address
}

// FullName returns the customer's display name
func (c *CustomerSnapshot) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Phones returns candidate phone numbers in match-priority order:
// the profile phone first, then address phones.
func (c *CustomerSnapshot) Phones() []string {
	phones := make([]string, 0, 1+len(c.Addresses))
	if c.Phone != "" {
		phones = append(phones, c.Phone)
	}
	for _, addr := range c.Addresses {
		if addr.Phone != "" {
			phones = append(phones, addr.Phone)
		}
	}
	return phones
}

// LineItem is a single order line as sold on the platform
type LineItem struct {
	ID         string
	SKU        string
	Title      string
	Quantity   int
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
	IsGiftCard bool
	// GiftCardID is the platform identifier of the gift card sold on this
	// line, when the line's SKU is the configured gift-card item.
	GiftCardID string
}

// PaymentTransaction is a money movement recorded on the platform
type PaymentTransaction struct {
	ID          string
	Gateway     string
	Kind        TransactionKind
	Status      TransactionStatus
	Amount      decimal.Decimal
	Currency    string
	ProcessedAt time.Time
}

// IsSuccessfulSale returns true for captured sale transactions
func (t *PaymentTransaction) IsSuccessfulSale() bool {
	return t.Status == TransactionStatusSuccess &&
		(t.Kind == TransactionKindSale || t.Kind == TransactionKindCapture)
}

// IsSuccessfulRefund returns true for completed refund transactions
func (t *PaymentTransaction) IsSuccessfulRefund() bool {
	return t.Status == TransactionStatusSuccess && t.Kind == TransactionKindRefund
}

// DiscountApplication is a discount applied to the whole order
type DiscountApplication struct {
	Type   string
	Code   string
	Amount decimal.Decimal
}

// ---------------------------------------------------------------------------
// OrderSnapshot
// ---------------------------------------------------------------------------

// OrderSnapshot is the immutable external representation of a placed order.
// It is produced by the storefront platform and read-only to this service.
type OrderSnapshot struct {
	// ID is the platform global identifier (e.g. "gid://platform/Order/123")
	ID string
	// Name is the human-facing order number (e.g. "#1001")
	Name string
	// StoreKey identifies which configured store the order came from
	StoreKey string
	// LocationKey is the fulfillment location key ("web" for online orders,
	// otherwise the retail location the order was placed at)
	LocationKey string
	// Courier is the delivery courier for COD orders, when known
	Courier string

	CreatedAt         time.Time
	Currency          string
	FinancialStatus   FinancialStatus
	FulfillmentStatus FulfillmentStatus
	Note              string
	Tags              []string

	TotalPrice    decimal.Decimal
	SubtotalPrice decimal.Decimal
	TotalTax      decimal.Decimal
	TotalShipping decimal.Decimal

	Customer        *CustomerSnapshot
	BillingAddress  *Address
	ShippingAddress *Address
	LineItems       []LineItem
	Transactions    []PaymentTransaction
	Discounts       []DiscountApplication
}

// ExternalID returns the bare numeric identifier from the platform global ID.
// "gid://platform/Order/123" yields "123"; plain IDs pass through unchanged.
func (o *OrderSnapshot) ExternalID() string {
	return trailingID(o.ID)
}

// HasTag reports whether the order carries the given tag
func (o *OrderSnapshot) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CapturedAmount sums successful sale transactions
func (o *OrderSnapshot) CapturedAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Transactions {
		if o.Transactions[i].IsSuccessfulSale() {
			total = total.Add(o.Transactions[i].Amount)
		}
	}
	return total
}

// ---------------------------------------------------------------------------
// ReturnSnapshot
// ---------------------------------------------------------------------------

// ReturnedLineItem is a returned quantity of an originally sold line
type ReturnedLineItem struct {
	SKU      string
	Title    string
	Quantity int
}

// ReturnSnapshot is the immutable representation of a return/refund request
type ReturnSnapshot struct {
	// ID is the platform global identifier of the return
	ID string
	// OrderID is the platform global identifier of the originating order
	OrderID string
	// OrderName is the originating order's display number
	OrderName string
	// StoreKey identifies which configured store the return belongs to
	StoreKey string
	// LocationKey is where the goods were returned to ("web" when shipped back)
	LocationKey string

	CreatedAt   time.Time
	Disposition ReturnDisposition
	Items       []ReturnedLineItem
	// RefundTransactions are the actual money movements recorded for the
	// return. For partial refunds their sum is less than the credited total.
	RefundTransactions []PaymentTransaction
}

// ExternalID returns the bare numeric identifier from the platform global ID
func (r *ReturnSnapshot) ExternalID() string {
	return trailingID(r.ID)
}

// OrderExternalID returns the bare numeric identifier of the originating order
func (r *ReturnSnapshot) OrderExternalID() string {
	return trailingID(r.OrderID)
}

// RefundedAmount sums successful refund transactions
func (r *ReturnSnapshot) RefundedAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range r.RefundTransactions {
		if r.RefundTransactions[i].IsSuccessfulRefund() {
			total = total.Add(r.RefundTransactions[i].Amount)
		}
	}
	return total
}

func trailingID(gid string) string {
	if idx := strings.LastIndex(gid, "/"); idx >= 0 {
		return gid[idx+1:]
	}
	return gid
}
