package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedOutcome struct {
	status string
	reason string
}

func (f fixedOutcome) Outcome() (string, string) {
	return f.status, f.reason
}

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		v          int
		wantStatus string
		wantReason string
	}{
		{v: 0, wantStatus: StatusSucceeded},
		{v: 94, wantStatus: StatusSucceeded},
		{v: 95, wantStatus: StatusDeclined, wantReason: "unknown reason"},
		{v: 96, wantStatus: StatusDeclined, wantReason: "insufficient_funds"},
		{v: 100, wantStatus: StatusDeclined, wantReason: "limit_exceeded"},
		{v: 101, wantStatus: StatusDeclined, wantReason: "unknown reason"},
	}
	for _, tt := range tests {
		status, reason := outcomeFor(tt.v)
		assert.Equal(t, tt.wantStatus, status, "v=%d", tt.v)
		assert.Equal(t, tt.wantReason, reason, "v=%d", tt.v)
	}
}

func TestSimulator_RejectsBadRequests(t *testing.T) {
	h := NewSimulator(fixedOutcome{status: StatusSucceeded}, zap.NewNop())

	for _, body := range []string{`not json`, `{"amount":"10"}`, `{"checkout_id":"c","amount":"0"}`} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/charges", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestSimulator_WithClient(t *testing.T) {
	srv := httptest.NewServer(NewSimulator(fixedOutcome{status: StatusDeclined, reason: "card_expired"}, zap.NewNop()))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Timeout: time.Second}, zap.NewNop())
	res, err := c.Charge(context.Background(), testCharge)
	require.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, "card_expired", res.Reason)
	assert.True(t, strings.HasPrefix(res.PaymentID, "TXN-"))
}
