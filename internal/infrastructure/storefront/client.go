package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
	"github.com/erpsync/backend/internal/infrastructure/config"
)

const (
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024 // 10MB max response

	accessTokenHeader = "X-Shopify-Access-Token"
)

// MultiStoreClient implements integration.PlatformClient over the
// storefront's GraphQL admin API, one endpoint per configured store.
type MultiStoreClient struct {
	stores     map[string]config.StoreConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.PlatformClient = (*MultiStoreClient)(nil)

// NewMultiStoreClient creates a new MultiStoreClient
func NewMultiStoreClient(stores map[string]config.StoreConfig, logger *zap.Logger) *MultiStoreClient {
	return &MultiStoreClient{
		stores: stores,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *MultiStoreClient) storeConfig(storeKey string) (config.StoreConfig, error) {
	store, ok := c.stores[storeKey]
	if !ok {
		return config.StoreConfig{}, shared.Classify(shared.KindValidation,
			fmt.Errorf("%w: %s", integration.ErrStoreNotConfigured, storeKey))
	}
	if !store.Enabled {
		return config.StoreConfig{}, shared.Classify(shared.KindValidation,
			fmt.Errorf("%w: %s", integration.ErrStoreNotEnabled, storeKey))
	}
	return store, nil
}

func endpointURL(store config.StoreConfig) string {
	domain := store.Domain
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", domain, store.APIVersion)
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// execute runs one GraphQL request against the store's endpoint and decodes
// the data payload into out.
func (c *MultiStoreClient) execute(ctx context.Context, storeKey, query string, variables map[string]any, out any) error {
	store, err := c.storeConfig(storeKey)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("storefront: failed to marshal request: %w", err)
	}

	endpoint := endpointURL(store)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("storefront: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, store.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.Classify(shared.KindTransientIO, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return shared.Classify(shared.KindTransientIO, fmt.Errorf("storefront: failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return shared.Classify(shared.KindAuthExpired, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRequestFailed, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return shared.Classify(shared.KindTransientIO, integration.ErrPlatformRateLimited)
	case resp.StatusCode >= 500:
		return shared.Classify(shared.KindTransientIO, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformUnavailable, resp.StatusCode))
	case resp.StatusCode >= 400:
		return shared.Classify(shared.KindValidation, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRequestFailed, resp.StatusCode))
	}

	var envelope graphqlEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return shared.Classify(shared.KindUnknown, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err))
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		throttled := false
		for _, e := range envelope.Errors {
			messages = append(messages, e.Message)
			if e.Extensions.Code == "THROTTLED" {
				throttled = true
			}
		}
		c.logger.Warn("graphql request rejected",
			zap.String("store", storeKey),
			zap.Strings("errors", messages),
		)
		if throttled {
			return shared.Classify(shared.KindTransientIO, integration.ErrPlatformRateLimited)
		}
		return shared.Classify(shared.KindValidation,
			fmt.Errorf("%w: %s", integration.ErrPlatformRequestFailed, strings.Join(messages, "; ")))
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return shared.Classify(shared.KindUnknown, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err))
		}
	}
	return nil
}

// searchQuery assembles the platform order search string
func searchQuery(excludeTag string, createdAfter time.Time) string {
	terms := []string{"status:any"}
	if excludeTag != "" {
		terms = append(terms, "-tag:"+excludeTag)
	}
	if !createdAfter.IsZero() {
		terms = append(terms, "created_at:>="+createdAfter.UTC().Format(time.RFC3339))
	}
	return strings.Join(terms, " ")
}

// PullOrders fetches a bounded batch of orders matching the request
func (c *MultiStoreClient) PullOrders(ctx context.Context, req integration.OrderPullRequest) (*integration.OrderPullResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation, err)
	}

	variables := map[string]any{
		"first": req.First,
		"query": searchQuery(req.ExcludeTag, req.CreatedAfter),
	}
	if req.After != "" {
		variables["after"] = req.After
	}

	var data ordersQueryData
	if err := c.execute(ctx, req.StoreKey, ordersQuery, variables, &data); err != nil {
		return nil, err
	}

	store := c.stores[req.StoreKey]
	orders := make([]integration.OrderSnapshot, 0, len(data.Orders.Edges))
	for i := range data.Orders.Edges {
		orders = append(orders, data.Orders.Edges[i].Node.toSnapshot(req.StoreKey, store))
	}
	return &integration.OrderPullResponse{
		Orders:     orders,
		HasMore:    data.Orders.PageInfo.HasNextPage,
		NextCursor: data.Orders.PageInfo.EndCursor,
	}, nil
}

// PullReturns fetches a bounded batch of returns. The platform exposes
// returns nested under their orders, so the batch pulls candidate orders
// and flattens their returns.
func (c *MultiStoreClient) PullReturns(ctx context.Context, req integration.ReturnPullRequest) (*integration.ReturnPullResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, shared.Classify(shared.KindValidation, err)
	}

	variables := map[string]any{
		"first": req.First,
		"query": searchQuery(req.ExcludeTag, req.CreatedAfter),
	}
	if req.After != "" {
		variables["after"] = req.After
	}

	var data ordersQueryData
	if err := c.execute(ctx, req.StoreKey, ordersQuery, variables, &data); err != nil {
		return nil, err
	}

	store := c.stores[req.StoreKey]
	returns := make([]integration.ReturnSnapshot, 0, len(data.Orders.Edges))
	for i := range data.Orders.Edges {
		returns = append(returns, data.Orders.Edges[i].Node.toReturnSnapshots(req.StoreKey, store)...)
	}
	return &integration.ReturnPullResponse{
		Returns:    returns,
		HasMore:    data.Orders.PageInfo.HasNextPage,
		NextCursor: data.Orders.PageInfo.EndCursor,
	}, nil
}

// GetOrder fetches a single order snapshot by platform ID
func (c *MultiStoreClient) GetOrder(ctx context.Context, storeKey, orderID string) (*integration.OrderSnapshot, error) {
	var data orderQueryData
	if err := c.execute(ctx, storeKey, orderQuery, map[string]any{"id": orderID}, &data); err != nil {
		return nil, err
	}
	if data.Order == nil {
		return nil, shared.Classify(shared.KindValidation,
			fmt.Errorf("%w: %s", integration.ErrOrderNotFound, orderID))
	}

	snapshot := data.Order.toSnapshot(storeKey, c.stores[storeKey])
	return &snapshot, nil
}

// AddOrderTags attaches marker tags to the external order record
func (c *MultiStoreClient) AddOrderTags(ctx context.Context, storeKey, orderID string, tags []string) error {
	return c.mutateTags(ctx, storeKey, tagsAddMutation, "tagsAdd", orderID, tags)
}

// RemoveOrderTags removes marker tags from the external order record
func (c *MultiStoreClient) RemoveOrderTags(ctx context.Context, storeKey, orderID string, tags []string) error {
	return c.mutateTags(ctx, storeKey, tagsRemoveMutation, "tagsRemove", orderID, tags)
}

func (c *MultiStoreClient) mutateTags(ctx context.Context, storeKey, mutation, field, orderID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	var data map[string]tagsMutationResult
	err := c.execute(ctx, storeKey, mutation, map[string]any{"id": orderID, "tags": tags}, &data)
	if err != nil {
		return err
	}

	result := data[field]
	if len(result.UserErrors) > 0 {
		messages := make([]string, 0, len(result.UserErrors))
		for _, ue := range result.UserErrors {
			messages = append(messages, ue.Message)
		}
		return shared.Classify(shared.KindValidation,
			fmt.Errorf("%w: %s", integration.ErrUserErrors, strings.Join(messages, "; ")))
	}

	c.logger.Debug("order tags updated",
		zap.String("store", storeKey),
		zap.String("order_id", orderID),
		zap.String("operation", field),
		zap.Strings("tags", tags),
	)
	return nil
}
