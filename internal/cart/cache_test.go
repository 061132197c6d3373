package cart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/cybershop/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a RedisCache pointing at it
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client), mr
}

func TestCacheGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	owner := UserOwner(123)

	cart := &domain.Cart{
		Owner: owner,
		Items: []domain.CartItem{
			{ProductID: 1, Quantity: 2, Plan: domain.PlanYearly},
			{ProductID: 2, Quantity: 3},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	cartJSON, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(owner), string(cartJSON)))

	result, err := cache.Get(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, owner, result.Owner)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, domain.PlanYearly, result.Items[0].Plan)
}

func TestCacheGet_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	result, err := cache.Get(context.Background(), "guest:nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestCacheGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	owner := UserOwner(1)

	require.NoError(t, mr.Set(cacheKey(owner), `{"owner":"us`))

	_, err := cache.Get(context.Background(), owner)
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestCacheGet_RedisDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), UserOwner(1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestCacheSet_WithTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	owner := GuestOwner("abc")

	err := cache.Set(context.Background(), owner, &domain.Cart{Owner: owner, Items: []domain.CartItem{}})
	require.NoError(t, err)

	stored, err := mr.Get(cacheKey(owner))
	require.NoError(t, err)
	var storedCart domain.Cart
	require.NoError(t, json.Unmarshal([]byte(stored), &storedCart))
	assert.Equal(t, owner, storedCart.Owner)

	ttl := mr.TTL(cacheKey(owner))
	assert.GreaterOrEqual(t, ttl, defaultCacheTTL, "TTL should be at least base TTL")
	assert.Less(t, ttl, defaultCacheTTL+maxTTLJitter*time.Minute, "TTL should be base + max jitter")
}

func TestCacheDelete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	owner := UserOwner(9)

	require.NoError(t, mr.Set(cacheKey(owner), `{}`))
	require.NoError(t, cache.Delete(context.Background(), owner))
	assert.False(t, mr.Exists(cacheKey(owner)))

	// deleting a missing key is not an error
	assert.NoError(t, cache.Delete(context.Background(), "user:nonexistent"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "cart:user:42", cacheKey(UserOwner(42)))
	assert.Equal(t, "cart:guest:s1", cacheKey(GuestOwner("s1")))
}
