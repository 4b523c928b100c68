package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	base := errors.New("connection reset")

	t.Run("wraps with kind", func(t *testing.T) {
		err := Classify(KindTransientIO, base)
		assert.Equal(t, KindTransientIO, KindOf(err))
		assert.ErrorIs(t, err, base)
	})

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, Classify(KindTransientIO, nil))
	})

	t.Run("kind survives further wrapping", func(t *testing.T) {
		err := fmt.Errorf("create invoice: %w", Classify(KindAuthExpired, base))
		assert.Equal(t, KindAuthExpired, KindOf(err))
	})

	t.Run("unclassified reports unknown", func(t *testing.T) {
		assert.Equal(t, KindUnknown, KindOf(base))
	})
}

func TestErrorKind_Retryable(t *testing.T) {
	assert.True(t, KindTransientIO.Retryable())
	assert.True(t, KindAuthExpired.Retryable())
	assert.True(t, KindPartialWrite.Retryable())
	assert.False(t, KindValidation.Retryable())
	assert.False(t, KindConflict.Retryable())
	assert.False(t, KindMapping.Retryable())
	assert.False(t, KindUnknown.Retryable())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Classify(KindTransientIO, errors.New("timeout"))))
	assert.False(t, IsRetryable(Classify(KindValidation, errors.New("bad payload"))))
	assert.False(t, IsRetryable(errors.New("unclassified")))
}
