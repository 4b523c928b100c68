package erpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/shared"
)

// FindCustomers returns business partners matching the filter
func (c *ServiceLayerClient) FindCustomers(ctx context.Context, filter erp.CustomerFilter) ([]erp.CustomerRecord, error) {
	clauses := make([]string, 0, 2)
	if filter.Phone != "" {
		phone := escapeFilterValue(filter.Phone)
		clauses = append(clauses, fmt.Sprintf("(Phone1 eq '%s' or Phone2 eq '%s' or Cellular eq '%s')", phone, phone, phone))
	}
	if filter.Code != "" {
		clauses = append(clauses, fmt.Sprintf("CardCode eq '%s'", escapeFilterValue(filter.Code)))
	}
	if filter.CodePrefix != "" {
		clauses = append(clauses, fmt.Sprintf("startswith(CardCode, '%s')", escapeFilterValue(filter.CodePrefix)))
	}
	if len(clauses) == 0 {
		return nil, shared.Classify(shared.KindValidation, fmt.Errorf("erpclient: customer filter is empty"))
	}

	query := url.Values{}
	query.Set("$filter", strings.Join(clauses, " and "))
	if filter.Limit > 0 {
		query.Set("$top", strconv.Itoa(filter.Limit))
	}

	var envelope collection[businessPartnerResource]
	if err := c.do(ctx, http.MethodGet, "BusinessPartners", query, nil, &envelope); err != nil {
		return nil, err
	}

	records := make([]erp.CustomerRecord, len(envelope.Value))
	for i := range envelope.Value {
		records[i] = envelope.Value[i].toDomain()
	}
	return records, nil
}

// CreateCustomer creates a new business partner and returns it with
// ERP-assigned fields populated
func (c *ServiceLayerClient) CreateCustomer(ctx context.Context, customer *erp.CustomerRecord) (*erp.CustomerRecord, error) {
	if customer.Code == "" || customer.Name == "" {
		return nil, shared.Classify(shared.KindValidation, erp.ErrInvalidCustomer)
	}

	payload := businessPartnerFromDomain(customer)
	var created businessPartnerResource
	if err := c.do(ctx, http.MethodPost, "BusinessPartners", nil, payload, &created); err != nil {
		return nil, err
	}

	c.logger.Info("customer created",
		zap.String("card_code", created.CardCode),
		zap.String("external_customer_id", created.ExternalCustomerID),
	)
	record := created.toDomain()
	return &record, nil
}

// UpdateCustomer patches back-reference fields on an existing partner
func (c *ServiceLayerClient) UpdateCustomer(ctx context.Context, code string, customer *erp.CustomerRecord) error {
	if code == "" {
		return shared.Classify(shared.KindValidation, erp.ErrInvalidCustomer)
	}

	patch := map[string]any{}
	if customer.ExternalCustomerID != "" {
		patch["U_ExternalCustomerID"] = customer.ExternalCustomerID
	}
	if customer.Email != "" {
		patch["EmailAddress"] = customer.Email
	}
	if len(patch) == 0 {
		return nil
	}

	path := fmt.Sprintf("BusinessPartners('%s')", url.PathEscape(code))
	return c.do(ctx, http.MethodPatch, path, nil, patch, nil)
}
