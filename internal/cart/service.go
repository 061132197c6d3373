package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cybershop/internal/domain"
	"github.com/fjod/cybershop/internal/pricing"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 99

var ErrUnknownProduct = errors.New("unknown product")

// ProductCatalog resolves current product data for cart lines.
type ProductCatalog interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

func UserOwner(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func GuestOwner(sessionID string) string {
	return "guest:" + sessionID
}

// Priced is a cart joined with live catalog prices. Items whose product no
// longer exists or is out of stock are listed in Unavailable and left out of
// the totals.
type Priced struct {
	Owner       string               `json:"owner"`
	Lines       []pricing.PricedLine `json:"lines"`
	Totals      pricing.Totals       `json:"totals"`
	Unavailable []int64              `json:"unavailable,omitempty"`
}

type Service struct {
	repo    Repository
	cache   Cache
	catalog ProductCatalog
	pricer  *pricing.Aggregator
	logger  *zap.Logger
	sfg     singleflight.Group
}

func NewService(repo Repository, cache Cache, catalog ProductCatalog, pricer *pricing.Aggregator, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		pricer:  pricer,
		logger:  logger,
	}
}

// GetCart returns the owner's cart, or an empty one if none was stored.
// Concurrent cache misses for the same owner share one repository read.
// The returned cart may be shared between callers and must not be mutated.
func (s *Service) GetCart(ctx context.Context, owner string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(owner, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, owner)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("cart cache get failed", zap.String("owner", owner), zap.Error(err))
		}

		cart, err = s.repo.GetCart(ctx, owner)
		if errors.Is(err, ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{
				Owner:     owner,
				Items:     []domain.CartItem{},
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(setCtx, owner, cart); err != nil {
				s.logger.Warn("cart cache set failed", zap.String("owner", owner), zap.Error(err))
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// AddItem adds quantity units of a product. Adding a product already in the
// cart increases its quantity. An empty plan keeps the line's current plan,
// or the product's default plan for a new line.
func (s *Service) AddItem(ctx context.Context, owner string, productID int64, quantity int, plan string) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	parsed, err := pricing.ParsePlan(plan)
	if err != nil {
		return err
	}

	products, err := s.catalog.GetProducts(ctx, []int64{productID})
	if err != nil {
		return fmt.Errorf("lookup product: %w", err)
	}
	product, ok := products[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, ErrUnknownProduct)
	}

	item := domain.CartItem{ProductID: productID, Quantity: quantity, Plan: parsed}

	current, err := s.repo.GetCart(ctx, owner)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}
	var existing *domain.CartItem
	if current != nil {
		existing = findItem(current.Items, productID)
	}
	if existing != nil {
		item.Quantity += existing.Quantity
		if item.Plan == "" {
			item.Plan = existing.Plan
		}
	} else if item.Plan == "" {
		item.Plan = product.Plan
	}
	if err := validateQuantity(item.Quantity); err != nil {
		return err
	}

	if err := s.repo.AddItem(ctx, owner, item); err != nil {
		s.logger.Error("cart add item failed", zap.String("owner", owner), zap.Int64("product_id", productID), zap.Error(err))
		return err
	}

	s.invalidateCache(owner)
	return nil
}

// UpdateQuantity sets a line's quantity. Zero removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, owner string, productID int64, quantity int) error {
	if quantity == 0 {
		return s.RemoveItem(ctx, owner, productID)
	}
	if err := validateQuantity(quantity); err != nil {
		return err
	}

	if err := s.repo.UpdateItemQuantity(ctx, owner, productID, quantity); err != nil {
		if !errors.Is(err, ErrItemNotFound) {
			s.logger.Error("cart update quantity failed", zap.String("owner", owner), zap.Error(err))
		}
		return err
	}

	s.invalidateCache(owner)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, owner string, productID int64) error {
	if err := s.repo.RemoveItem(ctx, owner, productID); err != nil {
		if !errors.Is(err, ErrItemNotFound) {
			s.logger.Error("cart remove item failed", zap.String("owner", owner), zap.Error(err))
		}
		return err
	}

	s.invalidateCache(owner)
	return nil
}

// ClearCart deletes the cart. Clearing a cart that does not exist succeeds.
func (s *Service) ClearCart(ctx context.Context, owner string) error {
	if err := s.repo.DeleteCart(ctx, owner); err != nil && !errors.Is(err, ErrCartNotFound) {
		s.logger.Error("cart delete failed", zap.String("owner", owner), zap.Error(err))
		return err
	}

	s.invalidateCache(owner)
	return nil
}

// MergeGuestCart folds a guest cart into the user's cart after sign-in and
// deletes the guest cart. Quantities of products present in both are summed
// and capped at MaxQuantity; the user's plan choice wins.
func (s *Service) MergeGuestCart(ctx context.Context, guestOwner, userOwner string) (*domain.Cart, error) {
	guest, err := s.repo.GetCart(ctx, guestOwner)
	if errors.Is(err, ErrCartNotFound) {
		return s.GetCart(ctx, userOwner)
	}
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetCart(ctx, userOwner)
	if errors.Is(err, ErrCartNotFound) {
		user = &domain.Cart{Owner: userOwner}
	} else if err != nil {
		return nil, err
	}

	for _, gi := range guest.Items {
		if ui := findItem(user.Items, gi.ProductID); ui != nil {
			ui.Quantity = min(ui.Quantity+gi.Quantity, MaxQuantity)
			if ui.Plan == "" {
				ui.Plan = gi.Plan
			}
			continue
		}
		user.Items = append(user.Items, gi)
	}

	if err := s.repo.UpsertCart(ctx, user); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteCart(ctx, guestOwner); err != nil && !errors.Is(err, ErrCartNotFound) {
		s.logger.Warn("guest cart delete failed after merge", zap.String("owner", guestOwner), zap.Error(err))
	}

	s.invalidateCache(guestOwner)
	s.invalidateCache(userOwner)

	s.logger.Info("guest cart merged",
		zap.String("guest", guestOwner),
		zap.String("user", userOwner),
		zap.Int("guest_items", len(guest.Items)),
	)
	return user, nil
}

// PricedCart prices the owner's cart with current catalog prices.
func (s *Service) PricedCart(ctx context.Context, owner string) (*Priced, error) {
	cart, err := s.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}

	priced := &Priced{Owner: owner}
	lines := make([]domain.CartLine, 0, len(cart.Items))
	for _, it := range cart.Items {
		p, ok := products[it.ProductID]
		if !ok || !p.Available() {
			priced.Unavailable = append(priced.Unavailable, it.ProductID)
			continue
		}
		lines = append(lines, domain.CartLine{
			ProductID: it.ProductID,
			Title:     p.Title,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
			Plan:      it.Plan,
		})
	}

	priced.Lines, priced.Totals, err = s.pricer.Aggregate(lines)
	if err != nil {
		return nil, err
	}
	return priced, nil
}

func (s *Service) invalidateCache(owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, owner); err != nil {
		s.logger.Warn("cart cache invalidate failed", zap.String("owner", owner), zap.Error(err))
	}
}

func validateQuantity(q int) error {
	if q < 1 || q > MaxQuantity {
		return fmt.Errorf("quantity %d outside 1..%d: %w", q, MaxQuantity, pricing.ErrInvalidInput)
	}
	return nil
}

func findItem(items []domain.CartItem, productID int64) *domain.CartItem {
	for i := range items {
		if items[i].ProductID == productID {
			return &items[i]
		}
	}
	return nil
}
