package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/fjod/cybershop/internal/cart"
	"github.com/fjod/cybershop/internal/chatbot"
	"github.com/fjod/cybershop/internal/checkout"
	"github.com/fjod/cybershop/internal/payment"
	"github.com/fjod/cybershop/internal/pricing"
	"github.com/fjod/cybershop/internal/repository"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// errorMapping pairs a sentinel error with its HTTP status and error code.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{pricing.ErrInvalidInput, http.StatusBadRequest, "invalid_argument"},
	{checkout.ErrMissingIdempotencyKey, http.StatusBadRequest, "missing_idempotency_key"},
	{chatbot.ErrEmptyMessage, http.StatusBadRequest, "invalid_argument"},
	{chatbot.ErrMessageTooLong, http.StatusBadRequest, "invalid_argument"},
	{chatbot.ErrMissingSession, http.StatusBadRequest, "missing_session"},
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},
	{cart.ErrCartNotFound, http.StatusNotFound, "not_found"},
	{cart.ErrItemNotFound, http.StatusNotFound, "not_found"},
	{cart.ErrUnknownProduct, http.StatusNotFound, "unknown_product"},
	{repository.ErrConflict, http.StatusConflict, "already_exists"},
	{repository.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{checkout.ErrProductUnavailable, http.StatusConflict, "product_unavailable"},
	{checkout.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{payment.ErrDeclined, http.StatusPaymentRequired, "payment_declined"},
	{payment.ErrUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
}

// handleError writes the response for err. Errors without a mapping are
// logged and reported as internal errors without their message.
func handleError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
		return
	}
	logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return false
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// idParam parses a positive integer URL parameter, responding 400 on failure.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
