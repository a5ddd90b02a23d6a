package embed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/kennis/internal/testutil"
)

func TestCache_HitBypassesProvider(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewMockEmbedder(8)
	cache, err := NewCache(provider, testutil.DiscardLogger())
	require.NoError(t, err)

	first, err := cache.Embed(ctx, "medicatieronde")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Equal(t, 1, provider.Calls())

	second, err := cache.Embed(ctx, "medicatieronde")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.Calls(), "hit must not reach the provider")

	_, err = cache.Embed(ctx, "wondzorg")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls())

	hits, misses := cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestCache_HitReturnsCopy(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewMockEmbedder(4)
	cache, err := NewCache(provider, testutil.DiscardLogger())
	require.NoError(t, err)

	first, err := cache.Embed(ctx, "tekst")
	require.NoError(t, err)
	first[0] = 99

	second, err := cache.Embed(ctx, "tekst")
	require.NoError(t, err)
	assert.NotEqual(t, float32(99), second[0], "caller mutation must not poison the cache")
}

func TestCache_EmptyVectorNotCached(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewMockEmbedder(8)
	provider.SetVector("leeg", []float32{})
	cache, err := NewCache(provider, testutil.DiscardLogger())
	require.NoError(t, err)

	vec, err := cache.Embed(ctx, "leeg")
	require.NoError(t, err)
	assert.Empty(t, vec)

	// The miss is not cached, so the provider is consulted again.
	_, err = cache.Embed(ctx, "leeg")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls())
	assert.Equal(t, 0, cache.Len())
}

func TestCache_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewMockEmbedder(8)
	provider.SetError(errors.New("quota exceeded"))
	cache, err := NewCache(provider, testutil.DiscardLogger())
	require.NoError(t, err)

	_, err = cache.Embed(ctx, "vraag")
	assert.Error(t, err)

	provider.SetError(nil)
	vec, err := cache.Embed(ctx, "vraag")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewMockEmbedder(8)
	cache, err := NewCache(provider, testutil.DiscardLogger(), WithCapacity(2))
	require.NoError(t, err)

	_, err = cache.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = cache.Embed(ctx, "b")
	require.NoError(t, err)

	// Touch "a" so "b" becomes the LRU victim.
	_, err = cache.Embed(ctx, "a")
	require.NoError(t, err)

	_, err = cache.Embed(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	calls := provider.Calls()
	_, err = cache.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, calls, provider.Calls(), "a should have survived eviction")

	_, err = cache.Embed(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, calls+1, provider.Calls(), "b should have been evicted")
}

func TestCache_TTLStaleEntryRefetched(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewMockEmbedder(8)

	ttl := NewTTL(NewLRU(), time.Minute).(*ttlEvictor)
	base := time.Now()
	ttl.now = func() time.Time { return base }

	cache, err := NewCache(provider, testutil.DiscardLogger(), WithEvictor(ttl))
	require.NoError(t, err)

	_, err = cache.Embed(ctx, "vers")
	require.NoError(t, err)
	_, err = cache.Embed(ctx, "vers")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Calls())

	base = base.Add(2 * time.Minute)

	_, err = cache.Embed(ctx, "vers")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls(), "expired entry should be refetched")
	assert.Equal(t, 1, cache.Len(), "refetched entry is cached again")
}

func TestCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewMockEmbedder(8)
	cache, err := NewCache(provider, testutil.DiscardLogger(), WithCapacity(4))
	require.NoError(t, err)

	texts := []string{"a", "b", "c", "d", "e", "f"}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := cache.Embed(ctx, texts[i%len(texts)])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 4, "capacity bound must hold under concurrency")
}

func TestCacheKey_Separation(t *testing.T) {
	assert.NotEqual(t, cacheKey("model-a", "tekst"), cacheKey("model-b", "tekst"),
		"same text under different models must not collide")
	assert.NotEqual(t, cacheKey("a", "b\x00c"), cacheKey("a\x00b", "c"),
		"separator must prevent boundary ambiguity")
	assert.Equal(t, cacheKey("m", "t"), cacheKey("m", "t"))
}
