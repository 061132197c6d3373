package http

import (
	"net/http"
	"strings"

	"github.com/fjod/cybershop/internal/cart"
	"github.com/fjod/cybershop/internal/pricing"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts    Carts
	checkout Checkout
	logger   *zap.Logger
}

func NewCartHandler(carts Carts, checkout Checkout, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, checkout: checkout, logger: logger}
}

type AddItemRequestDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Plan      string `json:"plan"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CheckoutRequestDTO struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// CartResponse carries the exact totals of the priced cart and the same
// totals rounded for display.
type CartResponse struct {
	*cart.Priced
	Display pricing.DisplayTotals `json:"display"`
}

// cartOwner resolves the cart of the caller: the user's cart when
// authenticated, otherwise the guest cart of the session.
func cartOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := identityFrom(r.Context())
	switch {
	case id.Authenticated():
		return cart.UserOwner(id.UserID), true
	case id.SessionID != "":
		return cart.GuestOwner(id.SessionID), true
	}
	respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or "+headerSessionID)
	return "", false
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int, owner string) {
	priced, err := h.carts.PricedCart(r.Context(), owner)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, status, CartResponse{Priced: priced, Display: priced.Totals.Display()})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	h.respondCart(w, r, http.StatusOK, owner)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > cart.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	if err := h.carts.AddItem(r.Context(), owner, req.ProductID, req.Quantity, req.Plan); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusCreated, owner)
}

// UpdateQuantity sets the quantity of a line; zero removes it.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	productID, ok := idParam(w, r, "product_id")
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity < 0 || req.Quantity > cart.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), owner, productID, req.Quantity); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, owner)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	productID, ok := idParam(w, r, "product_id")
	if !ok {
		return
	}
	if err := h.carts.RemoveItem(r.Context(), owner, productID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, owner)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	if err := h.carts.ClearCart(r.Context(), owner); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, owner)
}

// MergeGuestCart moves the guest cart of X-Session-ID into the signed-in
// user's cart.
func (h *CartHandler) MergeGuestCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if id.SessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", headerSessionID+" is required")
		return
	}
	userOwner := cart.UserOwner(id.UserID)
	if _, err := h.carts.MergeGuestCart(r.Context(), cart.GuestOwner(id.SessionID), userOwner); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, userOwner)
}

// Checkout places an order for the caller's cart. The idempotency key comes
// from the Idempotency-Key header or the request body. A replayed request
// answers 200 with the original order instead of 201.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" && r.ContentLength != 0 {
		var req CheckoutRequestDTO
		if !decodeJSON(w, r, &req) {
			return
		}
		key = req.IdempotencyKey
	}

	res, err := h.checkout.Checkout(r.Context(), id.UserID, key)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, res.Order)
}
