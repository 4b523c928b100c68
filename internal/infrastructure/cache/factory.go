package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/shared"
)

// MarkerStoreFactory creates marker stores based on configuration
type MarkerStoreFactory struct {
	redisConfig           RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// MarkerStoreFactoryOption is a functional option for configuring the factory
type MarkerStoreFactoryOption func(*MarkerStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) MarkerStoreFactoryOption {
	return func(f *MarkerStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) MarkerStoreFactoryOption {
	return func(f *MarkerStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewMarkerStoreFactory creates a new factory
func NewMarkerStoreFactory(cfg RedisConfig, opts ...MarkerStoreFactoryOption) *MarkerStoreFactory {
	f := &MarkerStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore tries Redis first and falls back to the in-memory store when
// allowed. The marker cache is an optimization, so a fallback degrades to
// extra existence queries, never to duplicate documents.
func (f *MarkerStoreFactory) CreateStore() (shared.MarkerStore, error) {
	store, err := NewRedisMarkerStore(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis marker store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for marker cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory marker store",
		zap.Error(err),
	)
	return NewInMemoryMarkerStore(), nil
}
