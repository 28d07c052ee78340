package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	value, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	value, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	require.NoError(t, c.Set(ctx, "k", "v2", 0))
	value, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)

	require.NoError(t, c.Delete(ctx, "k"))
	value, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, c.Delete(ctx, "k"), "deleting an absent key is a no-op")
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	value, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	time.Sleep(20 * time.Millisecond)
	value, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, value, "expired entries read as absent")
}
