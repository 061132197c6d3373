package http

import (
	"context"
	"sync"

	"github.com/fjod/cybershop/internal/cart"
	"github.com/fjod/cybershop/internal/chatbot"
	"github.com/fjod/cybershop/internal/checkout"
	"github.com/fjod/cybershop/internal/domain"
)

type addCall struct {
	owner     string
	productID int64
	quantity  int
	plan      string
}

// MockCarts records the owner of every call and returns a fixed priced cart
type MockCarts struct {
	mu      sync.Mutex
	Priced  *cart.Priced
	Err     error
	Owners  []string
	Added   []addCall
	Updated map[int64]int
	Merged  [][2]string
}

func (m *MockCarts) record(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Owners = append(m.Owners, owner)
}

func (m *MockCarts) AddItem(_ context.Context, owner string, productID int64, quantity int, plan string) error {
	m.record(owner)
	m.mu.Lock()
	m.Added = append(m.Added, addCall{owner, productID, quantity, plan})
	m.mu.Unlock()
	return m.Err
}

func (m *MockCarts) UpdateQuantity(_ context.Context, owner string, productID int64, quantity int) error {
	m.record(owner)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Updated == nil {
		m.Updated = map[int64]int{}
	}
	m.Updated[productID] = quantity
	return m.Err
}

func (m *MockCarts) RemoveItem(_ context.Context, owner string, _ int64) error {
	m.record(owner)
	return m.Err
}

func (m *MockCarts) ClearCart(_ context.Context, owner string) error {
	m.record(owner)
	return m.Err
}

func (m *MockCarts) MergeGuestCart(_ context.Context, guestOwner, userOwner string) (*domain.Cart, error) {
	m.mu.Lock()
	m.Merged = append(m.Merged, [2]string{guestOwner, userOwner})
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return &domain.Cart{Owner: userOwner}, nil
}

func (m *MockCarts) PricedCart(_ context.Context, owner string) (*cart.Priced, error) {
	if m.Priced == nil {
		return &cart.Priced{Owner: owner}, nil
	}
	p := *m.Priced
	p.Owner = owner
	return &p, nil
}

// MockCheckout returns Result or Err and records idempotency keys
type MockCheckout struct {
	Result *checkout.Result
	Err    error
	Keys   []string
	Users  []int64
}

func (m *MockCheckout) Checkout(_ context.Context, userID int64, key string) (*checkout.Result, error) {
	m.Keys = append(m.Keys, key)
	m.Users = append(m.Users, userID)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

type MockChat struct {
	Sessions []string
	Messages []chatbot.Message
	Err      error
}

func (m *MockChat) Reply(_ context.Context, sessionID, message string) (*chatbot.Message, error) {
	m.Sessions = append(m.Sessions, sessionID)
	if m.Err != nil {
		return nil, m.Err
	}
	return &chatbot.Message{SessionID: sessionID, Role: chatbot.RoleBot, Text: "re: " + message, Intent: chatbot.IntentUnknown}, nil
}

func (m *MockChat) History(_ context.Context, sessionID string) ([]chatbot.Message, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Messages, nil
}
