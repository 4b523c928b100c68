package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erpsync/backend/internal/domain/accounting"
	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
)

func newTestResolver(client erp.Client) *CustomerResolver {
	return NewCustomerResolver(client, ResolverConfig{
		CountryPrefix: "20",
		CodePrefix:    "C",
	}, newTestLogger())
}

func testLocation() accounting.LocationConfig {
	return accounting.LocationConfig{GroupCode: 105}
}

func TestCustomerResolver_Resolve_ExistingByPhone(t *testing.T) {
	ctx := context.Background()
	mockERP := new(MockERPClient)
	resolver := newTestResolver(mockERP)
	order := newTestOrder()

	existing := erp.CustomerRecord{
		Code:               "C1001112222",
		Name:               "Sara Hassan",
		Phone1:             "1001112222",
		ExternalCustomerID: "gid://platform/Customer/555",
	}
	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{Phone: "1001112222", Limit: 5}).
		Return([]erp.CustomerRecord{existing}, nil)

	customer, err := resolver.Resolve(ctx, order, testLocation())

	require.NoError(t, err)
	assert.Equal(t, "C1001112222", customer.Code)
	mockERP.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	mockERP.AssertExpectations(t)
}

func TestCustomerResolver_Resolve_BackfillsExternalID(t *testing.T) {
	ctx := context.Background()
	mockERP := new(MockERPClient)
	resolver := newTestResolver(mockERP)
	order := newTestOrder()

	// Matched record predates the integration and has no back-reference.
	existing := erp.CustomerRecord{Code: "C1001112222", Phone1: "1001112222"}
	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{Phone: "1001112222", Limit: 5}).
		Return([]erp.CustomerRecord{existing}, nil)
	mockERP.On("UpdateCustomer", ctx, "C1001112222", mock.MatchedBy(func(c *erp.CustomerRecord) bool {
		return c.ExternalCustomerID == "gid://platform/Customer/555"
	})).Return(nil)

	customer, err := resolver.Resolve(ctx, order, testLocation())

	require.NoError(t, err)
	assert.Equal(t, "gid://platform/Customer/555", customer.ExternalCustomerID)
	mockERP.AssertExpectations(t)
}

func TestCustomerResolver_Resolve_CreatesWhenNoMatch(t *testing.T) {
	ctx := context.Background()
	mockERP := new(MockERPClient)
	resolver := newTestResolver(mockERP)
	order := newTestOrder()

	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{Phone: "1001112222", Limit: 5}).
		Return([]erp.CustomerRecord{}, nil)
	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{CodePrefix: "CSARHAS", Limit: 50}).
		Return([]erp.CustomerRecord{}, nil)
	mockERP.On("CreateCustomer", ctx, mock.MatchedBy(func(c *erp.CustomerRecord) bool {
		return c.Code == "CSARHAS" &&
			c.Name == "Sara Hassan" &&
			c.Phone1 == "1001112222" &&
			c.GroupCode == 105 &&
			c.ExternalCustomerID == "gid://platform/Customer/555"
	})).Return(&erp.CustomerRecord{Code: "CSARHAS", Name: "Sara Hassan"}, nil)

	customer, err := resolver.Resolve(ctx, order, testLocation())

	require.NoError(t, err)
	assert.Equal(t, "CSARHAS", customer.Code, "first three letters of each name, uppercased")
	mockERP.AssertExpectations(t)
}

func TestCustomerResolver_Resolve_CreateFallsBackToPhoneCode(t *testing.T) {
	ctx := context.Background()
	mockERP := new(MockERPClient)
	resolver := newTestResolver(mockERP)
	order := newTestOrder()
	order.Customer.FirstName = ""
	order.Customer.LastName = ""

	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{Phone: "1001112222", Limit: 5}).
		Return([]erp.CustomerRecord{}, nil)
	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{CodePrefix: "C1001112222", Limit: 50}).
		Return([]erp.CustomerRecord{}, nil)
	mockERP.On("CreateCustomer", ctx, mock.MatchedBy(func(c *erp.CustomerRecord) bool {
		return c.Code == "C1001112222"
	})).Return(&erp.CustomerRecord{Code: "C1001112222"}, nil)

	customer, err := resolver.Resolve(ctx, order, testLocation())

	require.NoError(t, err)
	assert.Equal(t, "C1001112222", customer.Code, "no usable name, code falls back to the phone")
	mockERP.AssertExpectations(t)
}

func TestCustomerResolver_Resolve_CodeCollisionGetsSuffix(t *testing.T) {
	ctx := context.Background()
	mockERP := new(MockERPClient)
	resolver := newTestResolver(mockERP)
	order := newTestOrder()

	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{Phone: "1001112222", Limit: 5}).
		Return([]erp.CustomerRecord{}, nil)
	// The base code belongs to a different Sara whose phones no longer match.
	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{CodePrefix: "CSARHAS", Limit: 50}).
		Return([]erp.CustomerRecord{{Code: "CSARHAS", Phone1: "1099999999"}}, nil)
	mockERP.On("CreateCustomer", ctx, mock.MatchedBy(func(c *erp.CustomerRecord) bool {
		return c.Code == "CSARHAS-1"
	})).Return(&erp.CustomerRecord{Code: "CSARHAS-1"}, nil)

	customer, err := resolver.Resolve(ctx, order, testLocation())

	require.NoError(t, err)
	assert.Equal(t, "CSARHAS-1", customer.Code)
	mockERP.AssertExpectations(t)
}

func TestCustomerResolver_Resolve_AddressPhoneFallback(t *testing.T) {
	ctx := context.Background()
	mockERP := new(MockERPClient)
	resolver := newTestResolver(mockERP)
	order := newTestOrder()
	order.Customer.Phone = ""
	order.Customer.Addresses = []integration.Address{{Phone: "+20 100 333 4444"}}

	matched := erp.CustomerRecord{Code: "C1003334444", Mobile: "1003334444"}
	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{Phone: "1003334444", Limit: 5}).
		Return([]erp.CustomerRecord{matched}, nil)
	mockERP.On("UpdateCustomer", ctx, "C1003334444", mock.Anything).Return(nil)

	customer, err := resolver.Resolve(ctx, order, testLocation())

	require.NoError(t, err)
	assert.Equal(t, "C1003334444", customer.Code)
	mockERP.AssertExpectations(t)
}

func TestCustomerResolver_Resolve_NoPhoneNoFallback(t *testing.T) {
	ctx := context.Background()
	mockERP := new(MockERPClient)
	resolver := newTestResolver(mockERP)
	order := newTestOrder()
	order.Customer.Phone = ""

	_, err := resolver.Resolve(ctx, order, testLocation())

	require.Error(t, err)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	mockERP.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestCustomerResolver_Resolve_FallbackCustomer(t *testing.T) {
	ctx := context.Background()
	mockERP := new(MockERPClient)
	resolver := NewCustomerResolver(mockERP, ResolverConfig{
		CountryPrefix:        "20",
		CodePrefix:           "C",
		FallbackCustomerCode: "WALKIN",
	}, newTestLogger())
	order := newTestOrder()
	order.Customer = nil

	mockERP.On("FindCustomers", ctx, erp.CustomerFilter{Code: "WALKIN", Limit: 1}).
		Return([]erp.CustomerRecord{{Code: "WALKIN", Name: "Walk-in Customer"}}, nil)

	customer, err := resolver.Resolve(ctx, order, testLocation())

	require.NoError(t, err)
	assert.Equal(t, "WALKIN", customer.Code)
	mockERP.AssertExpectations(t)
}
