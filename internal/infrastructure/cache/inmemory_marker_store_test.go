package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryMarkerStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryMarkerStore()
	defer store.Close()

	newly, err := store.MarkProcessed(ctx, "sync:invoice:123", time.Minute)
	require.NoError(t, err)
	assert.True(t, newly)

	again, err := store.MarkProcessed(ctx, "sync:invoice:123", time.Minute)
	require.NoError(t, err)
	assert.False(t, again, "second mark reports already set")

	seen, err := store.IsProcessed(ctx, "sync:invoice:123")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestInMemoryMarkerStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryMarkerStore()
	defer store.Close()

	_, err := store.MarkProcessed(ctx, "sync:invoice:123", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	seen, err := store.IsProcessed(ctx, "sync:invoice:123")
	require.NoError(t, err)
	assert.False(t, seen, "expired markers read as unset")

	newly, err := store.MarkProcessed(ctx, "sync:invoice:123", time.Minute)
	require.NoError(t, err)
	assert.True(t, newly, "expired markers can be re-marked")
}

func TestInMemoryMarkerStore_Clear(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryMarkerStore()
	defer store.Close()

	_, err := store.MarkProcessed(ctx, "sync:payment:123", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "sync:payment:123"))

	seen, err := store.IsProcessed(ctx, "sync:payment:123")
	require.NoError(t, err)
	assert.False(t, seen)

	// Clearing a missing key is not an error.
	require.NoError(t, store.Clear(ctx, "sync:payment:nope"))
}

func TestInMemoryMarkerStore_ConcurrentMark(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryMarkerStore()
	defer store.Close()

	const goroutines = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	newlyCount := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			newly, err := store.MarkProcessed(ctx, "sync:invoice:race", time.Minute)
			assert.NoError(t, err)
			if newly {
				mu.Lock()
				newlyCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, newlyCount, "exactly one caller wins the mark")
	assert.Equal(t, 1, store.Size())
}

func TestInMemoryMarkerStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryMarkerStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
