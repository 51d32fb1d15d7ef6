package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/uidetect/internal/vision"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewFromClient(client, time.Minute)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestCache_LocalizationRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	loc := &vision.Localization{Success: true, Elements: []vision.UIElement{
		{Type: "input", Content: "Password", Center: [2]float64{320, 240}, Confidence: 0.9, Interactable: true},
	}}

	require.NoError(t, cache.SetLocalization(ctx, "abc", loc))
	assert.True(t, mr.Exists(PrefixLocalization+"abc"))
	assert.Equal(t, time.Minute, mr.TTL(PrefixLocalization+"abc"))

	got, err := cache.GetLocalization(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, loc, got)

	require.NoError(t, cache.InvalidateLocalization(ctx, "abc"))
	got, err = cache.GetLocalization(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_MissAndExpiry(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	got, err := cache.GetLocalization(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.SetLocalization(ctx, "k", &vision.Localization{Success: true}))
	mr.FastForward(2 * time.Minute)

	got, err = cache.GetLocalization(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, mr.Set(PrefixLocalization+"bad", "{not json"))
	_, err := cache.GetLocalization(ctx, "bad")
	assert.Error(t, err)
}

func TestCache_Health(t *testing.T) {
	cache, mr := newTestCache(t)
	assert.NoError(t, cache.Health(context.Background()))

	mr.Close()
	assert.Error(t, cache.Health(context.Background()))
}

func TestCache_CheckRateLimit(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	for i := 1; i <= 3; i++ {
		allowed, count, err := cache.CheckRateLimit(ctx, "ip:10.0.0.1", 3)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}

	allowed, count, err := cache.CheckRateLimit(ctx, "ip:10.0.0.1", 3)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 4, count)

	allowed, _, err = cache.CheckRateLimit(ctx, "ip:10.0.0.2", 3)
	require.NoError(t, err)
	assert.True(t, allowed, "keys are counted separately")

	mr.FastForward(RateLimitWindow + time.Second)
	allowed, count, err = cache.CheckRateLimit(ctx, "ip:10.0.0.1", 3)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}
