package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/accounting"
	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
)

// MockERPClient is a mock implementation of erp.Client
type MockERPClient struct {
	mock.Mock
}

func (m *MockERPClient) FindCustomers(ctx context.Context, filter erp.CustomerFilter) ([]erp.CustomerRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]erp.CustomerRecord), args.Error(1)
}

func (m *MockERPClient) CreateCustomer(ctx context.Context, customer *erp.CustomerRecord) (*erp.CustomerRecord, error) {
	args := m.Called(ctx, customer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*erp.CustomerRecord), args.Error(1)
}

func (m *MockERPClient) UpdateCustomer(ctx context.Context, code string, customer *erp.CustomerRecord) error {
	args := m.Called(ctx, code, customer)
	return args.Error(0)
}

func (m *MockERPClient) FindDocumentByExternalRef(ctx context.Context, kind erp.DocumentKind, externalRef string) (*erp.FinancialDocument, error) {
	args := m.Called(ctx, kind, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*erp.FinancialDocument), args.Error(1)
}

func (m *MockERPClient) FindPaymentByExternalRef(ctx context.Context, kind erp.PaymentKind, externalRef string) (*erp.PaymentRecord, error) {
	args := m.Called(ctx, kind, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*erp.PaymentRecord), args.Error(1)
}

func (m *MockERPClient) CreateDocument(ctx context.Context, doc *erp.FinancialDocument) (*erp.FinancialDocument, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*erp.FinancialDocument), args.Error(1)
}

func (m *MockERPClient) CreatePayment(ctx context.Context, payment *erp.PaymentRecord) (*erp.PaymentRecord, error) {
	args := m.Called(ctx, payment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*erp.PaymentRecord), args.Error(1)
}

func (m *MockERPClient) CreateReconciliation(ctx context.Context, link *erp.ReconciliationLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

var _ erp.Client = (*MockERPClient)(nil)

// MockPlatformClient is a mock implementation of integration.PlatformClient
type MockPlatformClient struct {
	mock.Mock
}

func (m *MockPlatformClient) PullOrders(ctx context.Context, req integration.OrderPullRequest) (*integration.OrderPullResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderPullResponse), args.Error(1)
}

func (m *MockPlatformClient) PullReturns(ctx context.Context, req integration.ReturnPullRequest) (*integration.ReturnPullResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ReturnPullResponse), args.Error(1)
}

func (m *MockPlatformClient) GetOrder(ctx context.Context, storeKey, orderID string) (*integration.OrderSnapshot, error) {
	args := m.Called(ctx, storeKey, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderSnapshot), args.Error(1)
}

func (m *MockPlatformClient) AddOrderTags(ctx context.Context, storeKey, orderID string, tags []string) error {
	args := m.Called(ctx, storeKey, orderID, tags)
	return args.Error(0)
}

func (m *MockPlatformClient) RemoveOrderTags(ctx context.Context, storeKey, orderID string, tags []string) error {
	args := m.Called(ctx, storeKey, orderID, tags)
	return args.Error(0)
}

var _ integration.PlatformClient = (*MockPlatformClient)(nil)

// MockMarkerStore is a mock implementation of shared.MarkerStore
type MockMarkerStore struct {
	mock.Mock
}

func (m *MockMarkerStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockMarkerStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockMarkerStore) Clear(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockMarkerStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ shared.MarkerStore = (*MockMarkerStore)(nil)

// MockAttemptJournal is a mock implementation of integration.AttemptJournal
type MockAttemptJournal struct {
	mock.Mock
}

func (m *MockAttemptJournal) Record(ctx context.Context, attempt *integration.SyncAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptJournal) Find(ctx context.Context, filter integration.AttemptFilter) ([]integration.SyncAttempt, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncAttempt), args.Error(1)
}

func (m *MockAttemptJournal) LatestByRef(ctx context.Context, externalRef string) ([]integration.SyncAttempt, error) {
	args := m.Called(ctx, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncAttempt), args.Error(1)
}

func (m *MockAttemptJournal) Count(ctx context.Context, filter integration.AttemptFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

var _ integration.AttemptJournal = (*MockAttemptJournal)(nil)

// Test helper functions

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestAccountTable() *accounting.AccountTable {
	return &accounting.AccountTable{
		DefaultLocation: "web",
		Locations: map[string]accounting.LocationConfig{
			"web": {
				Type:      accounting.LocationTypeOnline,
				Warehouse: "SW",
				CostingCodes: erp.CostingCodes{
					Dimension1: "ONL",
					Dimension2: "SAL",
				},
				Series:    accounting.SeriesConfig{Invoices: 82, CreditNotes: 83, IncomingPayments: 84, OutgoingPayments: 85},
				GroupCode: 105,
				StoreTransfers: map[string]map[string]accounting.AccountRef{
					"local": {
						"Paymob": "112001",
						"Aramex": "112010",
					},
				},
				Cards: map[string]accounting.AccountRef{
					accounting.GiftCardInstrument: "114050",
				},
			},
			"downtown": {
				Type:      accounting.LocationTypeStore,
				Warehouse: "ST",
				CostingCodes: erp.CostingCodes{
					Dimension1: "RET",
					Dimension2: "STR",
				},
				Series:    accounting.SeriesConfig{Invoices: 92, CreditNotes: 93, IncomingPayments: 94, OutgoingPayments: 95},
				GroupCode: 106,
			},
		},
	}
}

func newTestFreightTable() *accounting.FreightTable {
	return &accounting.FreightTable{
		Brackets: map[string]map[string]accounting.FreightBracket{
			"local": {
				"50": {
					Revenue: accounting.ExpenseEntry{ExpenseCode: 1, Amount: decimal.NewFromInt(50)},
					Cost:    accounting.ExpenseEntry{ExpenseCode: 2, Amount: decimal.NewFromInt(35)},
				},
			},
		},
	}
}

func newTestBuilder() *DocumentBuilder {
	return NewDocumentBuilder(newTestAccountTable(), newTestFreightTable(), BuilderConfig{
		GiftCardItemCode: "GIFT-CARD",
		GiftCardGateways: []string{"gift_card"},
		CashGateways:     []string{"Cash"},
	}, newTestLogger())
}

func newTestOrder() *integration.OrderSnapshot {
	return &integration.OrderSnapshot{
		ID:              "gid://platform/Order/6120006557912",
		Name:            "#1042",
		StoreKey:        "local",
		LocationKey:     "web",
		CreatedAt:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Currency:        "EGP",
		FinancialStatus: integration.FinancialStatusPaid,
		TotalPrice:      decimal.NewFromInt(100),
		Customer: &integration.CustomerSnapshot{
			ID:        "gid://platform/Customer/555",
			FirstName: "Sara",
			LastName:  "Hassan",
			Phone:     "+20 100 111 2222",
		},
		LineItems: []integration.LineItem{
			{SKU: "SKU-A", Title: "Shirt", Quantity: 2, UnitPrice: decimal.NewFromInt(40), LineTotal: decimal.NewFromInt(80)},
			{SKU: "SKU-B", Title: "Cap", Quantity: 1, UnitPrice: decimal.NewFromInt(20), LineTotal: decimal.NewFromInt(20)},
		},
		Transactions: []integration.PaymentTransaction{
			{ID: "t1", Gateway: "Paymob", Kind: integration.TransactionKindSale, Status: integration.TransactionStatusSuccess, Amount: decimal.NewFromInt(100)},
		},
	}
}

// newTestInvoiceDocument mirrors the invoice BuildInvoice would produce
// for newTestOrder, with ERP-assigned entry numbers.
func newTestInvoiceDocument() *erp.FinancialDocument {
	return &erp.FinancialDocument{
		Entry:        9001,
		TransNum:     71001,
		Kind:         erp.DocumentKindInvoice,
		CustomerCode: "CSARHAS",
		ExternalRef:  "6120006557912",
		NumAtCard:    "1042",
		Series:       82,
		Currency:     "EGP",
		Lines: []erp.DocumentLine{
			{
				ItemCode:     "SKU-A",
				Quantity:     decimal.NewFromInt(2),
				UnitPrice:    decimal.NewFromInt(40),
				Warehouse:    "SW",
				CostingCodes: erp.CostingCodes{Dimension1: "ONL", Dimension2: "SAL"},
			},
			{
				ItemCode:     "SKU-B",
				Quantity:     decimal.NewFromInt(1),
				UnitPrice:    decimal.NewFromInt(20),
				Warehouse:    "SW",
				CostingCodes: erp.CostingCodes{Dimension1: "ONL", Dimension2: "SAL"},
			},
		},
	}
}

func newTestReturn() *integration.ReturnSnapshot {
	return &integration.ReturnSnapshot{
		ID:          "gid://platform/Return/7710001",
		OrderID:     "gid://platform/Order/6120006557912",
		OrderName:   "#1042",
		StoreKey:    "local",
		LocationKey: "web",
		CreatedAt:   time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC),
		Disposition: integration.DispositionRefund,
		Items: []integration.ReturnedLineItem{
			{SKU: "SKU-A", Title: "Shirt", Quantity: 1},
		},
		RefundTransactions: []integration.PaymentTransaction{
			{ID: "r1", Gateway: "Paymob", Kind: integration.TransactionKindRefund, Status: integration.TransactionStatusSuccess, Amount: decimal.NewFromInt(40)},
		},
	}
}
