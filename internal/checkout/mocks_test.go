package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/cybershop/internal/cart"
	"github.com/fjod/cybershop/internal/domain"
	"github.com/fjod/cybershop/internal/payment"
	"github.com/fjod/cybershop/internal/repository"
)

// MockOrderStore keeps orders by (user, key) in memory
type MockOrderStore struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	GetErr   error
	PlaceErr error
	Placed   []*domain.Order
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{orders: map[string]*domain.Order{}}
}

func orderKey(userID int64, key string) string {
	return fmt.Sprintf("%d/%s", userID, key)
}

func (m *MockOrderStore) GetOrderByIdempotencyKey(_ context.Context, userID int64, key string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	o, ok := m.orders[orderKey(userID, key)]
	if !ok {
		return nil, fmt.Errorf("order for %q: %w", key, repository.ErrNotFound)
	}
	return o, nil
}

func (m *MockOrderStore) PlaceOrder(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlaceErr != nil {
		return m.PlaceErr
	}
	k := orderKey(o.UserID, o.IdempotencyKey)
	if _, ok := m.orders[k]; ok {
		return repository.ErrConflict
	}
	m.orders[k] = o
	m.Placed = append(m.Placed, o)
	return nil
}

// MockCarts returns a fixed priced cart
type MockCarts struct {
	Priced   *cart.Priced
	PriceErr error
	ClearErr error
	Cleared  []string
}

func (m *MockCarts) PricedCart(_ context.Context, owner string) (*cart.Priced, error) {
	if m.PriceErr != nil {
		return nil, m.PriceErr
	}
	p := *m.Priced
	p.Owner = owner
	return &p, nil
}

func (m *MockCarts) ClearCart(_ context.Context, owner string) error {
	m.Cleared = append(m.Cleared, owner)
	return m.ClearErr
}

// MockInventory records reservations and releases
type MockInventory struct {
	ReserveErr error
	ReleaseErr error
	Reserved   [][]domain.StockItem
	Released   [][]domain.StockItem
	// Calls interleaves "reserve", "release" with payment "charge" calls
	Calls *[]string
}

func (m *MockInventory) ReserveStock(_ context.Context, items []domain.StockItem) error {
	m.call("reserve")
	if m.ReserveErr != nil {
		return m.ReserveErr
	}
	m.Reserved = append(m.Reserved, items)
	return nil
}

func (m *MockInventory) ReleaseStock(_ context.Context, items []domain.StockItem) error {
	m.call("release")
	m.Released = append(m.Released, items)
	return m.ReleaseErr
}

func (m *MockInventory) call(name string) {
	if m.Calls != nil {
		*m.Calls = append(*m.Calls, name)
	}
}

// MockPayments records charge requests
type MockPayments struct {
	Result   *payment.ChargeResult
	Err      error
	Requests []payment.ChargeRequest
	Calls    *[]string
}

func (m *MockPayments) Charge(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	if m.Calls != nil {
		*m.Calls = append(*m.Calls, "charge")
	}
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return m.Result, m.Err
	}
	return m.Result, nil
}
