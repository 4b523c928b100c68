package integration

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFinancialStatus_IsCaptured(t *testing.T) {
	assert.True(t, FinancialStatusPaid.IsCaptured())
	assert.True(t, FinancialStatusPartiallyRefunded.IsCaptured())
	assert.False(t, FinancialStatusPending.IsCaptured())
	assert.False(t, FinancialStatusRefunded.IsCaptured())
	assert.False(t, FinancialStatusVoided.IsCaptured())
}

func TestAddress_Flatten(t *testing.T) {
	tests := []struct {
		name string
		addr *Address
		want string
	}{
		{
			name: "full address",
			addr: &Address{
				Address1: "12 Nile St",
				Address2: "Apt 4",
				City:     "Cairo",
				Province: "Cairo Governorate",
				Zip:      "11511",
				Country:  "Egypt",
			},
			want: "12 Nile St | Apt 4 | Cairo, Cairo Governorate, 11511 | Egypt",
		},
		{
			name: "sparse address",
			addr: &Address{Address1: "12 Nile St", Country: "Egypt"},
			want: "12 Nile St | Egypt",
		},
		{
			name: "nil address",
			addr: nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.Flatten())
		})
	}
}

func TestCustomerSnapshot_Phones(t *testing.T) {
	customer := &CustomerSnapshot{
		FirstName: "Sara",
		LastName:  "Hassan",
		Phone:     "+20 100 111 2222",
		Addresses: []Address{
			{Phone: "+20 100 333 4444"},
			{Phone: ""},
			{Phone: "+20 100 555 6666"},
		},
	}

	assert.Equal(t, "Sara Hassan", customer.FullName())
	assert.Equal(t, []string{"+20 100 111 2222", "+20 100 333 4444", "+20 100 555 6666"},
		customer.Phones(), "profile phone first, empty address phones skipped")
}

func TestOrderSnapshot_ExternalID(t *testing.T) {
	order := &OrderSnapshot{ID: "gid://platform/Order/6120006557912"}
	assert.Equal(t, "6120006557912", order.ExternalID())

	plain := &OrderSnapshot{ID: "6120006557912"}
	assert.Equal(t, "6120006557912", plain.ExternalID())
}

func TestOrderSnapshot_CapturedAmount(t *testing.T) {
	order := &OrderSnapshot{
		Transactions: []PaymentTransaction{
			{Kind: TransactionKindSale, Status: TransactionStatusSuccess, Amount: decimal.NewFromInt(70)},
			{Kind: TransactionKindCapture, Status: TransactionStatusSuccess, Amount: decimal.NewFromInt(30)},
			{Kind: TransactionKindSale, Status: TransactionStatusFailure, Amount: decimal.NewFromInt(500)},
			{Kind: TransactionKindRefund, Status: TransactionStatusSuccess, Amount: decimal.NewFromInt(20)},
		},
	}
	assert.True(t, order.CapturedAmount().Equal(decimal.NewFromInt(100)),
		"failed sales and refunds excluded")
}

func TestOrderSnapshot_HasTag(t *testing.T) {
	order := &OrderSnapshot{Tags: []string{"vip", "erp-invoice-synced"}}
	assert.True(t, order.HasTag("erp-invoice-synced"))
	assert.False(t, order.HasTag("erp-payment-synced"))
}

func TestReturnSnapshot_RefundedAmount(t *testing.T) {
	ret := &ReturnSnapshot{
		ID:      "gid://platform/Return/7710001",
		OrderID: "gid://platform/Order/6120006557912",
		RefundTransactions: []PaymentTransaction{
			{Kind: TransactionKindRefund, Status: TransactionStatusSuccess, Amount: decimal.NewFromInt(20)},
			{Kind: TransactionKindRefund, Status: TransactionStatusPending, Amount: decimal.NewFromInt(30)},
		},
	}

	assert.Equal(t, "7710001", ret.ExternalID())
	assert.Equal(t, "6120006557912", ret.OrderExternalID())
	assert.True(t, ret.RefundedAmount().Equal(decimal.NewFromInt(20)),
		"pending refunds excluded")
}
