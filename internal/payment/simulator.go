package payment

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutcomeSource decides how a simulated charge ends.
type OutcomeSource interface {
	Outcome() (status, reason string)
}

var declineReasons = []string{
	"insufficient_funds",
	"card_expired",
	"card_declined",
	"fraud_suspected",
	"limit_exceeded",
}

// RandomOutcome approves about 95% of charges.
type RandomOutcome struct{}

func (RandomOutcome) Outcome() (string, string) {
	return outcomeFor(rand.Intn(101)) // 101 because IntN is exclusive of the upper bound
}

func outcomeFor(n int) (string, string) {
	if n < 95 {
		return StatusSucceeded, ""
	}
	idx := n - 95
	if idx == 0 || idx > len(declineReasons) {
		return StatusDeclined, "unknown reason"
	}
	return StatusDeclined, declineReasons[idx-1]
}

// NewSimulator serves a fake gateway with the same wire format the Client
// expects, for local development.
func NewSimulator(source OutcomeSource, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Post("/charges", func(w http.ResponseWriter, r *http.Request) {
		var req ChargeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.CheckoutID == "" || !req.Amount.IsPositive() {
			http.Error(w, "checkout_id and a positive amount are required", http.StatusBadRequest)
			return
		}

		status, reason := source.Outcome()
		res := ChargeResult{
			Status:    status,
			PaymentID: "TXN-" + uuid.NewString(),
			Reason:    reason,
		}
		logger.Info("simulated charge",
			zap.String("checkout_id", req.CheckoutID),
			zap.String("amount", req.Amount.String()),
			zap.String("status", status),
		)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	})
	return r
}
