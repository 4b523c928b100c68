package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
)

func newTestGuard(client erp.Client, markers shared.MarkerStore) *Guard {
	return NewGuard(client, markers, shared.DefaultMarkerConfig(), newTestLogger())
}

func TestGuard_SeenRecently(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit", func(t *testing.T) {
		markers := new(MockMarkerStore)
		guard := newTestGuard(new(MockERPClient), markers)
		markers.On("IsProcessed", ctx, "sync:invoice:6120006557912").Return(true, nil)

		assert.True(t, guard.SeenRecently(ctx, integration.StepInvoice, "6120006557912"))
		markers.AssertExpectations(t)
	})

	t.Run("cache error degrades to miss", func(t *testing.T) {
		markers := new(MockMarkerStore)
		guard := newTestGuard(new(MockERPClient), markers)
		markers.On("IsProcessed", ctx, mock.Anything).Return(false, errors.New("redis down"))

		assert.False(t, guard.SeenRecently(ctx, integration.StepInvoice, "6120006557912"))
	})

	t.Run("disabled cache never hits", func(t *testing.T) {
		markers := new(MockMarkerStore)
		guard := NewGuard(new(MockERPClient), markers, shared.MarkerConfig{Enabled: false}, newTestLogger())

		assert.False(t, guard.SeenRecently(ctx, integration.StepInvoice, "6120006557912"))
		markers.AssertNotCalled(t, "IsProcessed", mock.Anything, mock.Anything)
	})
}

func TestGuard_Forget_ClearsAllSteps(t *testing.T) {
	ctx := context.Background()
	markers := new(MockMarkerStore)
	guard := newTestGuard(new(MockERPClient), markers)

	for _, key := range []string{
		"sync:invoice:6120006557912",
		"sync:payment:6120006557912",
		"sync:credit-note:6120006557912",
		"sync:reconcile:6120006557912",
	} {
		markers.On("Clear", ctx, key).Return(nil)
	}

	require.NoError(t, guard.Forget(ctx, "6120006557912"))
	markers.AssertExpectations(t)
}

func TestGuard_ExistingDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("absent document returns nil without error", func(t *testing.T) {
		mockERP := new(MockERPClient)
		guard := newTestGuard(mockERP, new(MockMarkerStore))
		mockERP.On("FindDocumentByExternalRef", ctx, erp.DocumentKindInvoice, "6120006557912").
			Return(nil, nil)

		doc, err := guard.ExistingDocument(ctx, erp.DocumentKindInvoice, "6120006557912")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("classification survives the wrap", func(t *testing.T) {
		mockERP := new(MockERPClient)
		guard := newTestGuard(mockERP, new(MockMarkerStore))
		mockERP.On("FindDocumentByExternalRef", ctx, erp.DocumentKindInvoice, "6120006557912").
			Return(nil, shared.Classify(shared.KindTransientIO, errors.New("timeout")))

		_, err := guard.ExistingDocument(ctx, erp.DocumentKindInvoice, "6120006557912")
		require.Error(t, err)
		assert.Equal(t, shared.KindTransientIO, shared.KindOf(err))
	})
}
