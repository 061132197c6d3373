package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/cybershop/internal/domain"
	"github.com/fjod/cybershop/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRepository struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
	gets  atomic.Int32
	delay time.Duration
}

func newMockRepository(carts ...*domain.Cart) *mockRepository {
	m := &mockRepository{carts: map[string]*domain.Cart{}}
	for _, c := range carts {
		m.carts[c.Owner] = c
	}
	return m
}

func (m *mockRepository) GetCart(_ context.Context, owner string) (*domain.Cart, error) {
	m.gets.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[owner]
	if !ok {
		return nil, ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp, nil
}

func (m *mockRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.carts[c.Owner] = c
	return nil
}

func (m *mockRepository) AddItem(_ context.Context, owner string, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[owner]
	if !ok {
		c = &domain.Cart{Owner: owner}
		m.carts[owner] = c
	}
	if existing := findItem(c.Items, item.ProductID); existing != nil {
		*existing = item
		return nil
	}
	c.Items = append(c.Items, item)
	return nil
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, owner string, productID int64, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[owner]
	if !ok {
		return ErrItemNotFound
	}
	it := findItem(c.Items, productID)
	if it == nil {
		return ErrItemNotFound
	}
	it.Quantity = quantity
	return nil
}

func (m *mockRepository) RemoveItem(_ context.Context, owner string, productID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[owner]
	if !ok {
		return ErrItemNotFound
	}
	for i, item := range c.Items {
		if item.ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (m *mockRepository) DeleteCart(_ context.Context, owner string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[owner]; !ok {
		return ErrCartNotFound
	}
	delete(m.carts, owner)
	return nil
}

func (m *mockRepository) cart(owner string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[owner]
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, owner string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[owner]
	if !ok {
		return nil, ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, owner string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[owner] = cart
	return m.err
}

func (m *mockCache) Delete(_ context.Context, owner string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, owner)
	return m.err
}

func (m *mockCache) has(owner string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[owner]
	return ok
}

type mockCatalog struct {
	products map[int64]*domain.Product
	err      error
}

func (m *mockCatalog) GetProducts(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func testCatalog() *mockCatalog {
	return &mockCatalog{products: map[int64]*domain.Product{
		1: {ID: 1, Title: "Firewall", Price: decimal.RequireFromString("10"), Stock: 5},
		2: {ID: 2, Title: "VPN", Price: decimal.RequireFromString("5"), Plan: domain.PlanPerUser, Stock: 100},
		3: {ID: 3, Title: "Discontinued", Price: decimal.RequireFromString("1"), Stock: 0},
	}}
}

func newTestService(t *testing.T, repo Repository, cache Cache, catalog ProductCatalog) *Service {
	t.Helper()
	agg, err := pricing.NewAggregator(decimal.RequireFromString("0.20"))
	require.NoError(t, err)
	return NewService(repo, cache, catalog, agg, zap.NewNop())
}

func TestGetCart_FromRepoPopulatesCache(t *testing.T) {
	owner := UserOwner(123)
	repo := newMockRepository(&domain.Cart{
		Owner: owner,
		Items: []domain.CartItem{{ProductID: 1, Quantity: 5}, {ProductID: 2, Quantity: 10}},
	})
	cache := newMockCache()

	sut := newTestService(t, repo, cache, testCatalog())
	ret, err := sut.GetCart(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, ret.Items, 2)
	assert.Equal(t, 5, ret.Items[0].Quantity)

	require.Eventually(t, func() bool {
		return cache.has(owner)
	}, 100*time.Millisecond, 10*time.Millisecond, "cart was not set in cache")
}

func TestGetCart_CacheHit(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository()
	cache := newMockCache()
	cache.carts[owner] = &domain.Cart{Owner: owner, Items: []domain.CartItem{{ProductID: 1, Quantity: 3}}}

	sut := newTestService(t, repo, cache, testCatalog())
	ret, err := sut.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, ret.Items, 1)
	assert.Zero(t, repo.gets.Load(), "repository should not be read on a cache hit")
}

func TestGetCart_CacheErrorFallsBackToRepo(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository(&domain.Cart{Owner: owner, Items: []domain.CartItem{{ProductID: 2, Quantity: 1}}})
	cache := newMockCache()
	cache.err = errors.New("redis down")

	sut := newTestService(t, repo, cache, testCatalog())
	ret, err := sut.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, ret.Items, 1)
}

func TestGetCart_NotFoundReturnsEmptyCart(t *testing.T) {
	sut := newTestService(t, newMockRepository(), newMockCache(), testCatalog())

	ret, err := sut.GetCart(context.Background(), GuestOwner("s"))
	require.NoError(t, err)
	assert.Equal(t, "guest:s", ret.Owner)
	assert.Empty(t, ret.Items)
}

func TestGetCart_RepoError(t *testing.T) {
	repo := newMockRepository()
	repo.err = fmt.Errorf("database error")
	cache := newMockCache()

	sut := newTestService(t, repo, cache, testCatalog())
	ret, err := sut.GetCart(context.Background(), UserOwner(1))
	require.ErrorContains(t, err, "database error")
	assert.Nil(t, ret)
	assert.False(t, cache.has(UserOwner(1)))
}

func TestGetCart_ConcurrentMissesShareOneRead(t *testing.T) {
	owner := UserOwner(7)
	repo := newMockRepository(&domain.Cart{Owner: owner, Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}})
	repo.delay = 50 * time.Millisecond

	sut := newTestService(t, repo, newMockCache(), testCatalog())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sut.GetCart(context.Background(), owner)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, repo.gets.Load(), int32(10))
}

func TestAddItem_NewLineUsesProductPlan(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository()
	cache := newMockCache()
	cache.carts[owner] = &domain.Cart{Owner: owner}

	sut := newTestService(t, repo, cache, testCatalog())
	require.NoError(t, sut.AddItem(context.Background(), owner, 2, 3, ""))

	c := repo.cart(owner)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, domain.PlanPerUser, c.Items[0].Plan)
	assert.False(t, cache.has(owner), "cache was not invalidated")
}

func TestAddItem_ExistingLineIncreasesQuantity(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository(&domain.Cart{
		Owner: owner,
		Items: []domain.CartItem{{ProductID: 1, Quantity: 2, Plan: domain.PlanMonthly}},
	})

	sut := newTestService(t, repo, newMockCache(), testCatalog())
	require.NoError(t, sut.AddItem(context.Background(), owner, 1, 3, ""))

	c := repo.cart(owner)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, domain.PlanMonthly, c.Items[0].Plan)

	require.NoError(t, sut.AddItem(context.Background(), owner, 1, 1, "yearly"))
	c = repo.cart(owner)
	assert.Equal(t, 6, c.Items[0].Quantity)
	assert.Equal(t, domain.PlanYearly, c.Items[0].Plan)
}

func TestAddItem_Validation(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository(&domain.Cart{
		Owner: owner,
		Items: []domain.CartItem{{ProductID: 1, Quantity: 98}},
	})
	sut := newTestService(t, repo, newMockCache(), testCatalog())
	ctx := context.Background()

	tests := []struct {
		name      string
		productID int64
		quantity  int
		plan      string
		wantErr   error
	}{
		{"zero quantity", 2, 0, "", pricing.ErrInvalidInput},
		{"over max", 2, 100, "", pricing.ErrInvalidInput},
		{"sum over max", 1, 2, "", pricing.ErrInvalidInput},
		{"unknown plan", 2, 1, "WEEKLY", pricing.ErrInvalidInput},
		{"unknown product", 42, 1, "", ErrUnknownProduct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sut.AddItem(ctx, owner, tt.productID, tt.quantity, tt.plan)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Len(t, repo.cart(owner).Items, 1, "rejected adds must not touch the cart")
}

func TestAddItem_RepoError(t *testing.T) {
	repo := newMockRepository()
	repo.err = fmt.Errorf("database error")

	sut := newTestService(t, repo, newMockCache(), testCatalog())
	err := sut.AddItem(context.Background(), UserOwner(1), 1, 1, "")
	require.ErrorContains(t, err, "database error")
}

func TestUpdateQuantity(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository(&domain.Cart{
		Owner: owner,
		Items: []domain.CartItem{{ProductID: 1, Quantity: 5}, {ProductID: 2, Quantity: 10}},
	})
	cache := newMockCache()
	cache.carts[owner] = repo.cart(owner)
	sut := newTestService(t, repo, cache, testCatalog())
	ctx := context.Background()

	require.NoError(t, sut.UpdateQuantity(ctx, owner, 1, 20))
	assert.Equal(t, 20, repo.cart(owner).Items[0].Quantity)
	assert.False(t, cache.has(owner))

	require.ErrorIs(t, sut.UpdateQuantity(ctx, owner, 1, -1), pricing.ErrInvalidInput)
	require.ErrorIs(t, sut.UpdateQuantity(ctx, owner, 1, 100), pricing.ErrInvalidInput)
	require.ErrorIs(t, sut.UpdateQuantity(ctx, owner, 9, 1), ErrItemNotFound)

	require.NoError(t, sut.UpdateQuantity(ctx, owner, 1, 0))
	require.Len(t, repo.cart(owner).Items, 1)
	assert.Equal(t, int64(2), repo.cart(owner).Items[0].ProductID)
}

func TestRemoveItem(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository(&domain.Cart{
		Owner: owner,
		Items: []domain.CartItem{{ProductID: 1, Quantity: 5}, {ProductID: 2, Quantity: 10}},
	})
	sut := newTestService(t, repo, newMockCache(), testCatalog())

	require.NoError(t, sut.RemoveItem(context.Background(), owner, 1))
	require.Len(t, repo.cart(owner).Items, 1)

	require.ErrorIs(t, sut.RemoveItem(context.Background(), owner, 1), ErrItemNotFound)
}

func TestClearCart(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository(&domain.Cart{Owner: owner, Items: []domain.CartItem{{ProductID: 1, Quantity: 5}}})
	cache := newMockCache()
	cache.carts[owner] = repo.cart(owner)
	sut := newTestService(t, repo, cache, testCatalog())

	require.NoError(t, sut.ClearCart(context.Background(), owner))
	assert.Nil(t, repo.cart(owner))
	assert.False(t, cache.has(owner))

	// clearing again is fine
	require.NoError(t, sut.ClearCart(context.Background(), owner))
}

func TestClearCart_RepoError(t *testing.T) {
	repo := newMockRepository()
	repo.err = fmt.Errorf("database error")
	sut := newTestService(t, repo, newMockCache(), testCatalog())

	require.ErrorContains(t, sut.ClearCart(context.Background(), UserOwner(1)), "database error")
}

func TestMergeGuestCart(t *testing.T) {
	guest := GuestOwner("sess")
	user := UserOwner(5)
	repo := newMockRepository(
		&domain.Cart{Owner: guest, Items: []domain.CartItem{
			{ProductID: 1, Quantity: 60, Plan: domain.PlanYearly},
			{ProductID: 2, Quantity: 2},
		}},
		&domain.Cart{Owner: user, Items: []domain.CartItem{
			{ProductID: 1, Quantity: 50, Plan: domain.PlanMonthly},
		}},
	)
	cache := newMockCache()
	cache.carts[guest] = repo.cart(guest)
	cache.carts[user] = repo.cart(user)
	sut := newTestService(t, repo, cache, testCatalog())

	merged, err := sut.MergeGuestCart(context.Background(), guest, user)
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, MaxQuantity, merged.Items[0].Quantity)
	assert.Equal(t, domain.PlanMonthly, merged.Items[0].Plan)
	assert.Equal(t, int64(2), merged.Items[1].ProductID)

	assert.Nil(t, repo.cart(guest))
	assert.False(t, cache.has(guest))
	assert.False(t, cache.has(user))
}

func TestMergeGuestCart_NoGuestCart(t *testing.T) {
	user := UserOwner(5)
	repo := newMockRepository(&domain.Cart{Owner: user, Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}})
	sut := newTestService(t, repo, newMockCache(), testCatalog())

	merged, err := sut.MergeGuestCart(context.Background(), GuestOwner("none"), user)
	require.NoError(t, err)
	assert.Len(t, merged.Items, 1)
}

func TestMergeGuestCart_NoUserCart(t *testing.T) {
	guest := GuestOwner("sess")
	user := UserOwner(5)
	repo := newMockRepository(&domain.Cart{Owner: guest, Items: []domain.CartItem{{ProductID: 2, Quantity: 4}}})
	sut := newTestService(t, repo, newMockCache(), testCatalog())

	merged, err := sut.MergeGuestCart(context.Background(), guest, user)
	require.NoError(t, err)
	assert.Equal(t, user, merged.Owner)
	require.Len(t, repo.cart(user).Items, 1)
	assert.Equal(t, 4, repo.cart(user).Items[0].Quantity)
}

func TestPricedCart(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository(&domain.Cart{
		Owner: owner,
		Items: []domain.CartItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1, Plan: domain.PlanYearly},
			{ProductID: 3, Quantity: 1},
			{ProductID: 99, Quantity: 1},
		},
	})
	sut := newTestService(t, repo, newMockCache(), testCatalog())

	priced, err := sut.PricedCart(context.Background(), owner)
	require.NoError(t, err)

	require.Len(t, priced.Lines, 2)
	assert.Equal(t, "Firewall", priced.Lines[0].Title)
	assert.True(t, decimal.RequireFromString("20").Equal(priced.Lines[0].LineTotal))
	assert.True(t, decimal.RequireFromString("60").Equal(priced.Lines[1].EffectiveUnitPrice))
	assert.True(t, decimal.RequireFromString("80").Equal(priced.Totals.Subtotal))
	assert.True(t, decimal.RequireFromString("16").Equal(priced.Totals.TaxAmount))
	assert.True(t, decimal.RequireFromString("96").Equal(priced.Totals.GrandTotal))
	assert.Equal(t, []int64{3, 99}, priced.Unavailable)
}

func TestPricedCart_Empty(t *testing.T) {
	sut := newTestService(t, newMockRepository(), newMockCache(), testCatalog())

	priced, err := sut.PricedCart(context.Background(), GuestOwner("x"))
	require.NoError(t, err)
	assert.Empty(t, priced.Lines)
	assert.True(t, priced.Totals.GrandTotal.IsZero())
}

func TestPricedCart_CatalogError(t *testing.T) {
	owner := UserOwner(1)
	repo := newMockRepository(&domain.Cart{Owner: owner, Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}})
	sut := newTestService(t, repo, newMockCache(), &mockCatalog{err: errors.New("db gone")})

	_, err := sut.PricedCart(context.Background(), owner)
	require.ErrorContains(t, err, "db gone")
}
