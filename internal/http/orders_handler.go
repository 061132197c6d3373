package http

import (
	"net/http"
	"strings"

	"github.com/fjod/cybershop/internal/access"
	"github.com/fjod/cybershop/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	orders Orders
	logger *zap.Logger
}

func NewOrdersHandler(orders Orders, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, logger: logger}
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseStatus(raw string) (domain.OrderStatus, bool) {
	s := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

func (h *OrdersHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	orders, err := h.orders.ListOrdersByUser(r.Context(), id.UserID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// Get returns an order to its owner or to staff. Other customers get 404 so
// order ids cannot be probed.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	id := identityFrom(r.Context())
	if o.UserID != id.UserID && !access.HasAccess(id.Role, access.Manager) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	var status domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, ok := parseStatus(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status "+raw)
			return
		}
		status = s
	}
	orders, err := h.orders.ListOrders(r.Context(), status)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	next, ok := parseStatus(req.Status)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status "+req.Status)
		return
	}

	o, err := h.orders.UpdateOrderStatus(r.Context(), orderID, next)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	h.logger.Info("order status changed",
		zap.Stringer("order_id", o.ID),
		zap.String("status", string(o.Status)),
		zap.Int64("changed_by", identityFrom(r.Context()).UserID),
	)
	respondJSON(w, http.StatusOK, o)
}
