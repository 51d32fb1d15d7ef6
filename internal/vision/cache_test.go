package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCachedLocalizer(t *testing.T) {
	ctx := context.Background()
	next := &fakeLocalizer{result: &Localization{Success: true, Elements: []UIElement{{Type: "button", Content: "Login"}}}}
	store := newMemoryStore()
	rec := &fakeRecorder{}
	cached := NewCachedLocalizer(next, store, rec, zaptest.NewLogger(t))

	path := writeImage(t, []byte("same screenshot"))

	first, err := cached.Localize(ctx, path)
	require.NoError(t, err)
	second, err := cached.Localize(ctx, writeImage(t, []byte("same screenshot")))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls, "identical bytes hit the cache")
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.miss)

	_, err = cached.Localize(ctx, writeImage(t, []byte("different screenshot")))
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	require.NoError(t, cached.Close())
	assert.True(t, next.closed)
}

func TestCachedLocalizer_DoesNotCacheUnusable(t *testing.T) {
	ctx := context.Background()
	next := &fakeLocalizer{result: &Localization{Success: false}}
	store := newMemoryStore()
	cached := NewCachedLocalizer(next, store, nil, nil)

	_, err := cached.Localize(ctx, writeImage(t, []byte("x")))
	require.NoError(t, err)
	assert.Zero(t, store.setCalls)
}

func TestCachedLocalizer_StoreErrorsDegrade(t *testing.T) {
	ctx := context.Background()
	next := &fakeLocalizer{result: &Localization{Success: true, Elements: []UIElement{{Type: "input"}}}}
	store := newMemoryStore()
	store.getErr = errors.New("redis down")
	cached := NewCachedLocalizer(next, store, nil, zaptest.NewLogger(t))

	loc, err := cached.Localize(ctx, writeImage(t, []byte("x")))
	require.NoError(t, err)
	assert.True(t, loc.Usable())
	assert.Equal(t, 1, next.calls)
}
