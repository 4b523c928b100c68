package reconcile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/accounting"
	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
)

// ResolverConfig tunes customer resolution
type ResolverConfig struct {
	// CountryPrefix is the phone country code stripped during
	// normalization, e.g. "20"
	CountryPrefix string
	// CodePrefix is prepended to synthesized customer codes, e.g. "C"
	CodePrefix string
	// FallbackCustomerCode is the walk-in customer used when a snapshot
	// carries no usable phone number. Resolution fails when empty.
	FallbackCustomerCode string
}

// CustomerResolver finds the ERP customer for an order snapshot by phone
// match, creating the record when no match exists. The ERP owns customer
// records; the resolver only reads them, creates missing ones and backfills
// the platform back-reference.
type CustomerResolver struct {
	erp    erp.Client
	config ResolverConfig
	logger *zap.Logger
}

// NewCustomerResolver creates a customer resolver
func NewCustomerResolver(client erp.Client, config ResolverConfig, logger *zap.Logger) *CustomerResolver {
	return &CustomerResolver{
		erp:    client,
		config: config,
		logger: logger,
	}
}

// Resolve returns the ERP customer for the order, creating it if needed.
// Candidate phones are tried in snapshot priority order; the first record
// whose phone fields match wins.
func (r *CustomerResolver) Resolve(ctx context.Context, order *integration.OrderSnapshot, location accounting.LocationConfig) (*erp.CustomerRecord, error) {
	phones := r.candidatePhones(order)

	if len(phones) == 0 {
		if r.config.FallbackCustomerCode == "" {
			return nil, shared.Classify(shared.KindValidation,
				fmt.Errorf("order %s has no phone number and no fallback customer is configured", order.Name))
		}
		r.logger.Warn("order has no phone number, using fallback customer",
			zap.String("order_name", order.Name),
			zap.String("customer_code", r.config.FallbackCustomerCode),
		)
		return r.fetchByCode(ctx, r.config.FallbackCustomerCode)
	}

	for _, phone := range phones {
		record, err := r.findByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}
		if err := r.backfillExternalID(ctx, record, order); err != nil {
			// The customer is usable either way; the back-reference is
			// best effort and retried on the next order.
			r.logger.Warn("failed to backfill customer back-reference",
				zap.String("customer_code", record.Code),
				zap.Error(err),
			)
		}
		return record, nil
	}

	return r.create(ctx, order, phones[0], location)
}

// candidatePhones normalizes the snapshot's phones, dropping empties and
// duplicates while preserving priority order.
func (r *CustomerResolver) candidatePhones(order *integration.OrderSnapshot) []string {
	if order.Customer == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var phones []string
	for _, raw := range order.Customer.Phones() {
		normalized := erp.NormalizePhone(raw, r.config.CountryPrefix)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		phones = append(phones, normalized)
	}
	return phones
}

func (r *CustomerResolver) findByPhone(ctx context.Context, phone string) (*erp.CustomerRecord, error) {
	records, err := r.erp.FindCustomers(ctx, erp.CustomerFilter{Phone: phone, Limit: 5})
	if err != nil {
		return nil, fmt.Errorf("find customer by phone: %w", err)
	}
	for i := range records {
		if records[i].MatchesPhone(phone) {
			return &records[i], nil
		}
	}
	return nil, nil
}

func (r *CustomerResolver) fetchByCode(ctx context.Context, code string) (*erp.CustomerRecord, error) {
	records, err := r.erp.FindCustomers(ctx, erp.CustomerFilter{Code: code, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find customer by code: %w", err)
	}
	if len(records) == 0 {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("fallback customer %q does not exist: %w", code, erp.ErrCustomerNotFound))
	}
	return &records[0], nil
}

// backfillExternalID writes the platform customer ID onto matched records
// that predate the integration.
func (r *CustomerResolver) backfillExternalID(ctx context.Context, record *erp.CustomerRecord, order *integration.OrderSnapshot) error {
	if record.ExternalCustomerID != "" || order.Customer == nil || order.Customer.ID == "" {
		return nil
	}
	record.ExternalCustomerID = order.Customer.ID
	return r.erp.UpdateCustomer(ctx, record.Code, record)
}

func (r *CustomerResolver) create(ctx context.Context, order *integration.OrderSnapshot, primaryPhone string, location accounting.LocationConfig) (*erp.CustomerRecord, error) {
	code, err := r.nextFreeCode(ctx, order, primaryPhone)
	if err != nil {
		return nil, err
	}

	customer := &erp.CustomerRecord{
		Code:      code,
		Name:      r.displayName(order),
		Phone1:    primaryPhone,
		GroupCode: location.GroupCode,
	}
	if order.Customer != nil {
		customer.Email = order.Customer.Email
		customer.ExternalCustomerID = order.Customer.ID
	}
	if addr := order.ShippingAddress; addr != nil {
		customer.Address = addr.Flatten()
		customer.City = addr.City
		customer.State = addr.Province
		customer.ZipCode = addr.Zip
		customer.Country = addr.Country
	}

	created, err := r.erp.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("create customer %q: %w", code, err)
	}

	r.logger.Info("created customer",
		zap.String("customer_code", created.Code),
		zap.String("order_name", order.Name),
	)
	return created, nil
}

// nextFreeCode synthesizes a customer code from the customer's name,
// suffixing a counter when the base code is taken by a different person.
// Orders without a usable name fall back to the primary phone.
func (r *CustomerResolver) nextFreeCode(ctx context.Context, order *integration.OrderSnapshot, primaryPhone string) (string, error) {
	stem := r.codeStem(order)
	if stem == "" {
		stem = primaryPhone
	}
	base := r.config.CodePrefix + stem
	taken, err := r.erp.FindCustomers(ctx, erp.CustomerFilter{CodePrefix: base, Limit: 50})
	if err != nil {
		return "", fmt.Errorf("check customer code collisions: %w", err)
	}
	if len(taken) == 0 {
		return base, nil
	}
	inUse := make(map[string]struct{}, len(taken))
	for i := range taken {
		inUse[taken[i].Code] = struct{}{}
	}
	if _, ok := inUse[base]; !ok {
		return base, nil
	}
	for i := 1; i <= len(inUse); i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if _, ok := inUse[candidate]; !ok {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s-%d", base, len(inUse)+1), nil
}

// codeStem joins the first three letters of the first and last name,
// uppercased, keeping only letters and digits.
func (r *CustomerResolver) codeStem(order *integration.OrderSnapshot) string {
	if order.Customer == nil {
		return ""
	}
	return namePart(order.Customer.FirstName) + namePart(order.Customer.LastName)
}

func namePart(name string) string {
	part := make([]rune, 0, 3)
	for _, ch := range strings.ToUpper(strings.TrimSpace(name)) {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			continue
		}
		part = append(part, ch)
		if len(part) == 3 {
			break
		}
	}
	return string(part)
}

func (r *CustomerResolver) displayName(order *integration.OrderSnapshot) string {
	if order.Customer != nil {
		if name := order.Customer.FullName(); name != "" {
			return name
		}
	}
	return strings.TrimSpace("Customer " + order.Name)
}
