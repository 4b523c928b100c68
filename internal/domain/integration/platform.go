package integration

import (
	"context"
	"errors"
	"time"
)

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	ErrStoreNotConfigured      = errors.New("integration: store not configured")
	ErrStoreNotEnabled         = errors.New("integration: store not enabled")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
	ErrOrderNotFound           = errors.New("integration: platform order not found")
	ErrReturnNotFound          = errors.New("integration: platform return not found")
	ErrUserErrors              = errors.New("integration: platform rejected the mutation")
)

// ---------------------------------------------------------------------------
// Pull Requests
// ---------------------------------------------------------------------------

// OrderPullRequest describes a bounded batch query for candidate orders
type OrderPullRequest struct {
	// StoreKey selects the configured store to query
	StoreKey string
	// ExcludeTag filters out orders already carrying this marker tag
	ExcludeTag string
	// CreatedAfter bounds the query window; zero means no lower bound
	CreatedAfter time.Time
	// First is the maximum number of orders to return
	First int
	// After is the pagination cursor from a previous response
	After string
}

// Validate checks the request shape
func (r *OrderPullRequest) Validate() error {
	if r.StoreKey == "" {
		return ErrStoreNotConfigured
	}
	if r.First <= 0 {
		return ErrPlatformRequestFailed
	}
	return nil
}

// OrderPullResponse is a page of candidate orders
type OrderPullResponse struct {
	Orders     []OrderSnapshot
	HasMore    bool
	NextCursor string
}

// ReturnPullRequest describes a bounded batch query for candidate returns
type ReturnPullRequest struct {
	StoreKey     string
	ExcludeTag   string
	CreatedAfter time.Time
	First        int
	After        string
}

// Validate checks the request shape
func (r *ReturnPullRequest) Validate() error {
	if r.StoreKey == "" {
		return ErrStoreNotConfigured
	}
	if r.First <= 0 {
		return ErrPlatformRequestFailed
	}
	return nil
}

// ReturnPullResponse is a page of candidate returns
type ReturnPullResponse struct {
	Returns    []ReturnSnapshot
	HasMore    bool
	NextCursor string
}

// ---------------------------------------------------------------------------
// PlatformClient Port
// ---------------------------------------------------------------------------

// PlatformClient is the port to the storefront platform. It reads order and
// return snapshots and writes back marker tags on external records.
// Implementations classify transport failures with shared.Classify so the
// orchestrator can apply its retry policy.
type PlatformClient interface {
	// PullOrders fetches a bounded batch of orders matching the request
	PullOrders(ctx context.Context, req OrderPullRequest) (*OrderPullResponse, error)

	// PullReturns fetches a bounded batch of returns matching the request
	PullReturns(ctx context.Context, req ReturnPullRequest) (*ReturnPullResponse, error)

	// GetOrder fetches a single order snapshot by platform ID
	GetOrder(ctx context.Context, storeKey, orderID string) (*OrderSnapshot, error)

	// AddOrderTags attaches marker tags to the external order record
	AddOrderTags(ctx context.Context, storeKey, orderID string, tags []string) error

	// RemoveOrderTags removes marker tags from the external order record.
	// Used only by manual reprocessing.
	RemoveOrderTags(ctx context.Context, storeKey, orderID string, tags []string) error
}
