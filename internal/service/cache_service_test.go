package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	var kind models.PaymentProviderKind
	hit, err := cache.Get(context.Background(), "k", &kind)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(context.Background(), "k", models.ProviderSandbox, 0))
	hit, err = cache.Get(context.Background(), "k", &kind)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, models.ProviderSandbox, kind)

	require.NoError(t, cache.Invalidate(context.Background(), "k"))
	hit, _ = cache.Get(context.Background(), "k", &kind)
	assert.False(t, hit)
}

func TestDisabledCacheServiceIsNoop(t *testing.T) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, nil, false)
	require.NoError(t, cache.Set(context.Background(), "k", "v", time.Minute))
	assert.Empty(t, repo.items)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	assert.NoError(t, nilCache.Invalidate(context.Background(), "k"))
}
