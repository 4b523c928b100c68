package storefront

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/infrastructure/config"
)

// giftCardTagPrefix marks orders whose gift-card line has a known platform
// gift-card ID attached by the issuing workflow
const giftCardTagPrefix = "giftcard_"

type moneyBag struct {
	ShopMoney struct {
		Amount       string `json:"amount"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"shopMoney"`
}

func (m moneyBag) decimal() decimal.Decimal {
	amount, err := decimal.NewFromString(m.ShopMoney.Amount)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

type addressNode struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

func (a *addressNode) toDomain() *integration.Address {
	if a == nil {
		return nil
	}
	return &integration.Address{
		Address1: a.Address1,
		Address2: a.Address2,
		City:     a.City,
		Province: a.Province,
		Zip:      a.Zip,
		Country:  a.Country,
		Phone:    a.Phone,
	}
}

type customerNode struct {
	ID        string        `json:"id"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone"`
	Addresses []addressNode `json:"addresses"`
}

type lineItemNode struct {
	ID                 string   `json:"id"`
	SKU                string   `json:"sku"`
	Title              string   `json:"title"`
	Quantity           int      `json:"quantity"`
	IsGiftCard         bool     `json:"isGiftCard"`
	DiscountedTotalSet moneyBag `json:"discountedTotalSet"`
	OriginalUnitPrice  moneyBag `json:"originalUnitPriceSet"`
}

type transactionNode struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	Gateway     string   `json:"gateway"`
	ProcessedAt string   `json:"processedAt"`
	AmountSet   moneyBag `json:"amountSet"`
}

type discountNode struct {
	Code  string   `json:"code"`
	Value moneyBag `json:"value"`
}

type returnLineItemNode struct {
	Quantity            int `json:"quantity"`
	FulfillmentLineItem struct {
		LineItem struct {
			SKU   string `json:"sku"`
			Title string `json:"title"`
		} `json:"lineItem"`
	} `json:"fulfillmentLineItem"`
}

type returnNode struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
	ReturnLineItems struct {
		Edges []struct {
			Node returnLineItemNode `json:"node"`
		} `json:"edges"`
	} `json:"returnLineItems"`
}

type orderNode struct {
	ID                       string   `json:"id"`
	Name                     string   `json:"name"`
	CreatedAt                string   `json:"createdAt"`
	Tags                     []string `json:"tags"`
	Note                     string   `json:"note"`
	DisplayFinancialStatus   string   `json:"displayFinancialStatus"`
	DisplayFulfillmentStatus string   `json:"displayFulfillmentStatus"`
	RetailLocation           *struct {
		ID string `json:"id"`
	} `json:"retailLocation"`
	ShippingLine *struct {
		Title string `json:"title"`
	} `json:"shippingLine"`
	TotalPriceSet         moneyBag      `json:"totalPriceSet"`
	SubtotalPriceSet      moneyBag      `json:"subtotalPriceSet"`
	TotalTaxSet           moneyBag      `json:"totalTaxSet"`
	TotalShippingPriceSet moneyBag      `json:"totalShippingPriceSet"`
	Customer              *customerNode `json:"customer"`
	ShippingAddress       *addressNode  `json:"shippingAddress"`
	BillingAddress        *addressNode  `json:"billingAddress"`
	LineItems             struct {
		Edges []struct {
			Node lineItemNode `json:"node"`
		} `json:"edges"`
	} `json:"lineItems"`
	Transactions         []transactionNode `json:"transactions"`
	DiscountApplications struct {
		Edges []struct {
			Node discountNode `json:"node"`
		} `json:"edges"`
	} `json:"discountApplications"`
	Returns struct {
		Edges []struct {
			Node returnNode `json:"node"`
		} `json:"edges"`
	} `json:"returns"`
}

type ordersQueryData struct {
	Orders struct {
		Edges []struct {
			Node orderNode `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"orders"`
}

type orderQueryData struct {
	Order *orderNode `json:"order"`
}

type tagsMutationResult struct {
	Node struct {
		ID string `json:"id"`
	} `json:"node"`
	UserErrors []struct {
		Field   []string `json:"field"`
		Message string   `json:"message"`
	} `json:"userErrors"`
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func trailingID(gid string) string {
	if idx := strings.LastIndex(gid, "/"); idx >= 0 {
		return gid[idx+1:]
	}
	return gid
}

// locationKey resolves the fulfillment location table key for an order.
// Orders without a retail location were placed online and resolve to "web";
// retail locations map through the store's configured aliases.
func (n *orderNode) locationKey(store config.StoreConfig) string {
	if n.RetailLocation == nil || n.RetailLocation.ID == "" {
		return "web"
	}
	id := trailingID(n.RetailLocation.ID)
	if alias, ok := store.LocationAliases[id]; ok {
		return alias
	}
	return id
}

func (n *orderNode) giftCardID() string {
	for _, tag := range n.Tags {
		if strings.HasPrefix(tag, giftCardTagPrefix) {
			return strings.TrimPrefix(tag, giftCardTagPrefix)
		}
	}
	return ""
}

func (n *orderNode) toSnapshot(storeKey string, store config.StoreConfig) integration.OrderSnapshot {
	snapshot := integration.OrderSnapshot{
		ID:                n.ID,
		Name:              n.Name,
		StoreKey:          storeKey,
		LocationKey:       n.locationKey(store),
		CreatedAt:         parseTime(n.CreatedAt),
		Currency:          n.TotalPriceSet.ShopMoney.CurrencyCode,
		FinancialStatus:   integration.FinancialStatus(n.DisplayFinancialStatus),
		FulfillmentStatus: integration.FulfillmentStatus(n.DisplayFulfillmentStatus),
		Note:              n.Note,
		Tags:              n.Tags,
		TotalPrice:        n.TotalPriceSet.decimal(),
		SubtotalPrice:     n.SubtotalPriceSet.decimal(),
		TotalTax:          n.TotalTaxSet.decimal(),
		TotalShipping:     n.TotalShippingPriceSet.decimal(),
		BillingAddress:    n.BillingAddress.toDomain(),
		ShippingAddress:   n.ShippingAddress.toDomain(),
	}

	if n.ShippingLine != nil {
		snapshot.Courier = n.ShippingLine.Title
	}

	if n.Customer != nil {
		customer := &integration.CustomerSnapshot{
			ID:        n.Customer.ID,
			FirstName: n.Customer.FirstName,
			LastName:  n.Customer.LastName,
			Email:     n.Customer.Email,
			Phone:     n.Customer.Phone,
		}
		for i := range n.Customer.Addresses {
			customer.Addresses = append(customer.Addresses, *n.Customer.Addresses[i].toDomain())
		}
		snapshot.Customer = customer
	}

	giftCardID := n.giftCardID()
	for _, edge := range n.LineItems.Edges {
		item := edge.Node
		line := integration.LineItem{
			ID:         item.ID,
			SKU:        item.SKU,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.OriginalUnitPrice.decimal(),
			LineTotal:  item.DiscountedTotalSet.decimal(),
			IsGiftCard: item.IsGiftCard,
		}
		if item.IsGiftCard {
			line.GiftCardID = giftCardID
		}
		snapshot.LineItems = append(snapshot.LineItems, line)
	}

	for _, tx := range n.Transactions {
		snapshot.Transactions = append(snapshot.Transactions, tx.toDomain())
	}

	for _, edge := range n.DiscountApplications.Edges {
		snapshot.Discounts = append(snapshot.Discounts, integration.DiscountApplication{
			Type:   "code",
			Code:   edge.Node.Code,
			Amount: edge.Node.Value.decimal(),
		})
	}

	return snapshot
}

func (t *transactionNode) toDomain() integration.PaymentTransaction {
	return integration.PaymentTransaction{
		ID:          t.ID,
		Gateway:     t.Gateway,
		Kind:        integration.TransactionKind(strings.ToUpper(t.Kind)),
		Status:      integration.TransactionStatus(strings.ToUpper(t.Status)),
		Amount:      t.AmountSet.decimal(),
		Currency:    t.AmountSet.ShopMoney.CurrencyCode,
		ProcessedAt: parseTime(t.ProcessedAt),
	}
}

// storeCreditGateways are refund gateways that credit the customer's wallet
// instead of moving money back through the original instrument
var storeCreditGateways = map[string]bool{
	"shopify_store_credit": true,
	"gift_card":            true,
}

// toReturnSnapshots flattens an order's returns. The platform records the
// money movements on the order, not on the return, so each refund
// transaction is attributed to the most recent return opened before the
// refund was processed.
func (n *orderNode) toReturnSnapshots(storeKey string, store config.StoreConfig) []integration.ReturnSnapshot {
	if len(n.Returns.Edges) == 0 {
		return nil
	}

	snapshots := make([]integration.ReturnSnapshot, 0, len(n.Returns.Edges))
	for _, edge := range n.Returns.Edges {
		ret := edge.Node
		if ret.Status == "CANCELED" || ret.Status == "DECLINED" {
			continue
		}

		snapshot := integration.ReturnSnapshot{
			ID:          ret.ID,
			OrderID:     n.ID,
			OrderName:   n.Name,
			StoreKey:    storeKey,
			LocationKey: n.locationKey(store),
			CreatedAt:   parseTime(ret.CreatedAt),
			Disposition: integration.DispositionRefund,
		}
		for _, itemEdge := range ret.ReturnLineItems.Edges {
			item := itemEdge.Node
			snapshot.Items = append(snapshot.Items, integration.ReturnedLineItem{
				SKU:      item.FulfillmentLineItem.LineItem.SKU,
				Title:    item.FulfillmentLineItem.LineItem.Title,
				Quantity: item.Quantity,
			})
		}
		snapshots = append(snapshots, snapshot)
	}
	if len(snapshots) == 0 {
		return nil
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})

	for _, tx := range n.Transactions {
		domainTx := tx.toDomain()
		if !domainTx.IsSuccessfulRefund() {
			continue
		}
		owner := &snapshots[0]
		for i := range snapshots {
			if snapshots[i].CreatedAt.After(domainTx.ProcessedAt) {
				break
			}
			owner = &snapshots[i]
		}
		if storeCreditGateways[domainTx.Gateway] {
			owner.Disposition = integration.DispositionStoreCredit
			continue
		}
		owner.RefundTransactions = append(owner.RefundTransactions, domainTx)
	}
	return snapshots
}
