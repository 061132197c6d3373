// Package checkout turns a priced cart into a paid order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/cybershop/internal/cart"
	"github.com/fjod/cybershop/internal/domain"
	"github.com/fjod/cybershop/internal/payment"
	"github.com/fjod/cybershop/internal/pricing"
	"github.com/fjod/cybershop/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrProductUnavailable    = errors.New("cart contains unavailable products")
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
)

var orderNamespace = uuid.MustParse("6f1c2a4e-5b7d-4c1e-9a3f-2d8e7b6c5a40")

type OrderStore interface {
	GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error)
	PlaceOrder(ctx context.Context, o *domain.Order) error
}

type Carts interface {
	PricedCart(ctx context.Context, owner string) (*cart.Priced, error)
	ClearCart(ctx context.Context, owner string) error
}

// Inventory holds stock for an order between the charge and the order insert.
type Inventory interface {
	ReserveStock(ctx context.Context, items []domain.StockItem) error
	ReleaseStock(ctx context.Context, items []domain.StockItem) error
}

type PaymentGateway interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error)
}

type Result struct {
	Order *domain.Order
	// Replayed is set when the idempotency key had already produced this order.
	Replayed bool
}

type Service struct {
	orders    OrderStore
	carts     Carts
	inventory Inventory
	payments  PaymentGateway
	currency  string
	logger    *zap.Logger
}

func NewService(orders OrderStore, carts Carts, inventory Inventory, payments PaymentGateway, currency string, logger *zap.Logger) *Service {
	return &Service{
		orders:    orders,
		carts:     carts,
		inventory: inventory,
		payments:  payments,
		currency:  currency,
		logger:    logger,
	}
}

// OrderID derives the order id from the user and idempotency key, so retries
// of one checkout reach the payment gateway with the same checkout id.
func OrderID(userID int64, idempotencyKey string) uuid.UUID {
	return uuid.NewSHA1(orderNamespace, []byte(fmt.Sprintf("%d:%s", userID, idempotencyKey)))
}

// Checkout reserves stock for the user's cart, charges it and records the
// order. Stock is released again when the charge or the order insert fails.
// Repeating a call with the same idempotency key returns the order of the
// first successful call without charging again.
func (s *Service) Checkout(ctx context.Context, userID int64, idempotencyKey string) (*Result, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	log := s.logger.With(zap.Int64("user_id", userID), zap.String("idempotency_key", idempotencyKey))

	existing, err := s.orders.GetOrderByIdempotencyKey(ctx, userID, idempotencyKey)
	if err == nil {
		log.Info("duplicate checkout request", zap.Stringer("order_id", existing.ID))
		return &Result{Order: existing, Replayed: true}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}

	owner := cart.UserOwner(userID)
	priced, err := s.carts.PricedCart(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to price cart: %w", err)
	}
	if len(priced.Unavailable) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrProductUnavailable, priced.Unavailable)
	}
	if len(priced.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	orderID := OrderID(userID, idempotencyKey)
	reserved := stockItems(priced)
	if err := s.inventory.ReserveStock(ctx, reserved); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, fmt.Errorf("%w: %v", ErrProductUnavailable, err)
		}
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	charge, err := s.payments.Charge(ctx, payment.ChargeRequest{
		CheckoutID: orderID.String(),
		Amount:     pricing.Round(priced.Totals.GrandTotal),
		Currency:   s.currency,
	})
	if err != nil {
		log.Warn("payment failed", zap.Stringer("order_id", orderID), zap.Error(err))
		s.releaseStock(ctx, log, reserved)
		return nil, err
	}

	order := buildOrder(orderID, userID, idempotencyKey, s.currency, priced, charge.PaymentID)
	if err := s.orders.PlaceOrder(ctx, order); err != nil {
		s.releaseStock(ctx, log, reserved)
		if errors.Is(err, repository.ErrConflict) {
			// a concurrent request with the same key won the insert and
			// holds its own reservation
			winner, getErr := s.orders.GetOrderByIdempotencyKey(ctx, userID, idempotencyKey)
			if getErr == nil {
				return &Result{Order: winner, Replayed: true}, nil
			}
		}
		log.Error("order not stored after successful charge",
			zap.Stringer("order_id", orderID),
			zap.String("payment_id", charge.PaymentID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	if err := s.carts.ClearCart(ctx, owner); err != nil {
		log.Warn("failed to clear cart after checkout", zap.Stringer("order_id", orderID), zap.Error(err))
	}

	log.Info("checkout completed",
		zap.Stringer("order_id", order.ID),
		zap.String("grand_total", order.GrandTotal.String()),
		zap.Int("items", len(order.Items)),
	)
	return &Result{Order: order}, nil
}

func (s *Service) releaseStock(ctx context.Context, log *zap.Logger, items []domain.StockItem) {
	if err := s.inventory.ReleaseStock(context.WithoutCancel(ctx), items); err != nil {
		log.Error("failed to release reserved stock", zap.Any("items", items), zap.Error(err))
	}
}

func stockItems(priced *cart.Priced) []domain.StockItem {
	items := make([]domain.StockItem, 0, len(priced.Lines))
	for _, l := range priced.Lines {
		items = append(items, domain.StockItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return items
}

func buildOrder(id uuid.UUID, userID int64, key, currency string, priced *cart.Priced, paymentID string) *domain.Order {
	items := make([]domain.OrderItem, 0, len(priced.Lines))
	for _, l := range priced.Lines {
		items = append(items, domain.OrderItem{
			ProductID:          l.ProductID,
			ProductTitle:       l.Title,
			Quantity:           l.Quantity,
			Plan:               l.Plan,
			UnitPrice:          l.UnitPrice,
			EffectiveUnitPrice: l.EffectiveUnitPrice,
			LineTotal:          l.LineTotal,
		})
	}
	return &domain.Order{
		ID:             id,
		UserID:         userID,
		IdempotencyKey: key,
		Subtotal:       priced.Totals.Subtotal,
		TaxAmount:      priced.Totals.TaxAmount,
		GrandTotal:     priced.Totals.GrandTotal,
		Currency:       currency,
		Status:         domain.OrderStatusPaid,
		PaymentID:      paymentID,
		Items:          items,
	}
}
