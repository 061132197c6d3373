// Package http exposes the storefront over a JSON REST API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/cybershop/internal/access"
	"github.com/fjod/cybershop/internal/cart"
	"github.com/fjod/cybershop/internal/chatbot"
	"github.com/fjod/cybershop/internal/checkout"
	"github.com/fjod/cybershop/internal/domain"
	"github.com/fjod/cybershop/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Catalog interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context, f repository.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type Carts interface {
	AddItem(ctx context.Context, owner string, productID int64, quantity int, plan string) error
	UpdateQuantity(ctx context.Context, owner string, productID int64, quantity int) error
	RemoveItem(ctx context.Context, owner string, productID int64) error
	ClearCart(ctx context.Context, owner string) error
	MergeGuestCart(ctx context.Context, guestOwner, userOwner string) (*domain.Cart, error)
	PricedCart(ctx context.Context, owner string) (*cart.Priced, error)
}

type Checkout interface {
	Checkout(ctx context.Context, userID int64, idempotencyKey string) (*checkout.Result, error)
}

type Orders interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
}

type Users interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, u *domain.User) error
	DeleteUser(ctx context.Context, id int64) error
}

type Content interface {
	ListSlides(ctx context.Context, activeOnly bool) ([]*domain.Slide, error)
	CreateSlide(ctx context.Context, sl *domain.Slide) error
	UpdateSlide(ctx context.Context, sl *domain.Slide) error
	DeleteSlide(ctx context.Context, id int64) error
	GetBanner(ctx context.Context) (*domain.Banner, error)
	SetBanner(ctx context.Context, b *domain.Banner) error
	CreateContactMessage(ctx context.Context, m *domain.ContactMessage) error
	ListContactMessages(ctx context.Context, unreadOnly bool) ([]*domain.ContactMessage, error)
	MarkContactMessageRead(ctx context.Context, id int64) error
	DeleteContactMessage(ctx context.Context, id int64) error
}

type Chat interface {
	Reply(ctx context.Context, sessionID, message string) (*chatbot.Message, error)
	History(ctx context.Context, sessionID string) ([]chatbot.Message, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerState reports the circuit breaker state of an outbound client.
type BreakerState interface {
	State() string
}

type Deps struct {
	Catalog  Catalog
	Carts    Carts
	Checkout Checkout
	Orders   Orders
	Users    Users
	Content  Content
	Chat     Chat
	Health   Pinger
	Payments BreakerState
}

type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func NewRouter(deps Deps, opts Options, logger *zap.Logger) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	catalog := NewCatalogHandler(deps.Catalog, logger)
	carts := NewCartHandler(deps.Carts, deps.Checkout, logger)
	orders := NewOrdersHandler(deps.Orders, logger)
	users := NewUsersHandler(deps.Users, logger)
	content := NewContentHandler(deps.Content, logger)
	chat := NewChatHandler(deps.Chat, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.RequestSize(opts.MaxBodyBytes))
	r.Use(IdentityMiddleware)

	r.Get("/health", healthHandler(deps.Health, deps.Payments))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", catalog.ListCategories)
			r.Get("/{id}", catalog.GetCategory)
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(access.Manager))
				r.Post("/", catalog.CreateCategory)
				r.Put("/{id}", catalog.UpdateCategory)
				r.Delete("/{id}", catalog.DeleteCategory)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", catalog.ListProducts)
			r.Get("/search", catalog.SearchProducts)
			r.Get("/{id}", catalog.GetProduct)
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(access.Manager))
				r.Post("/", catalog.CreateProduct)
				r.Put("/{id}", catalog.UpdateProduct)
				r.Delete("/{id}", catalog.DeleteProduct)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{product_id}", carts.UpdateQuantity)
			r.Delete("/items/{product_id}", carts.RemoveItem)
			r.With(RequireRole(access.Customer)).Post("/merge", carts.MergeGuestCart)
		})

		r.With(RequireRole(access.Customer)).Post("/checkout", carts.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireRole(access.Customer))
			r.Get("/", orders.ListOwn)
			r.Get("/{id}", orders.Get)
		})

		r.Route("/content", func(r chi.Router) {
			r.Get("/slides", content.ListActiveSlides)
			r.Get("/banner", content.GetBanner)
		})
		r.Post("/contact", content.CreateContactMessage)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", chat.Reply)
			r.Get("/{session_id}", chat.History)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(access.Manager))
				r.Get("/orders", orders.ListAll)
				r.Put("/orders/{id}/status", orders.UpdateStatus)

				r.Get("/content/slides", content.ListAllSlides)
				r.Post("/content/slides", content.CreateSlide)
				r.Put("/content/slides/{id}", content.UpdateSlide)
				r.Delete("/content/slides/{id}", content.DeleteSlide)
				r.Put("/content/banner", content.SetBanner)

				r.Get("/contact", content.ListContactMessages)
				r.Put("/contact/{id}/read", content.MarkContactMessageRead)
				r.Delete("/contact/{id}", content.DeleteContactMessage)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(RequireRole(access.Admin))
				r.Get("/", users.List)
				r.Post("/", users.Create)
				r.Get("/{id}", users.Get)
				r.Put("/{id}", users.Update)
				r.Delete("/{id}", users.Delete)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

// healthHandler fails only when the database is down. An open payment
// breaker is reported but leaves the catalog and carts serviceable.
func healthHandler(db Pinger, payments BreakerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if payments != nil {
			body["payment_gateway"] = payments.State()
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				body["status"] = "unavailable"
				body["database"] = err.Error()
				respondJSON(w, http.StatusServiceUnavailable, body)
				return
			}
		}
		respondJSON(w, http.StatusOK, body)
	}
}
