// Package payment charges orders through an external payment gateway. The
// gateway speaks JSON over HTTP; calls go through a circuit breaker so an
// unhealthy gateway fails checkouts fast instead of stalling them.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var (
	// ErrDeclined means the gateway answered and refused the charge.
	ErrDeclined = errors.New("payment declined")
	// ErrUnavailable means the gateway could not be reached, failed, or the
	// breaker is open.
	ErrUnavailable = errors.New("payment gateway unavailable")

	errRejectedRequest = errors.New("payment gateway rejected request")
)

const (
	StatusSucceeded = "succeeded"
	StatusDeclined  = "declined"
)

type ChargeRequest struct {
	CheckoutID string          `json:"checkout_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

type ChargeResult struct {
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason,omitempty"`
}

type Config struct {
	URL         string
	Timeout     time.Duration
	MaxFailures uint32        // consecutive failures before the breaker opens
	OpenTimeout time.Duration // how long the breaker stays open
}

type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*ChargeResult]
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		timeout: cfg.Timeout,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	c.cb = gobreaker.NewCircuitBreaker[*ChargeResult](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// the gateway is healthy if it tells us our request was bad
			return err == nil || errors.Is(err, errRejectedRequest)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// Charge asks the gateway to charge req.Amount. A declined charge returns the
// gateway's result together with an error wrapping ErrDeclined; declines do
// not count against the breaker.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	res, err := c.cb.Execute(func() (*ChargeResult, error) {
		return c.doCharge(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if errors.Is(err, errRejectedRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch res.Status {
	case StatusSucceeded:
		return res, nil
	case StatusDeclined:
		reason := res.Reason
		if reason == "" {
			reason = "unknown reason"
		}
		return res, fmt.Errorf("%w: %s", ErrDeclined, reason)
	default:
		return nil, fmt.Errorf("%w: unexpected charge status %q", ErrUnavailable, res.Status)
	}
}

func (c *Client) doCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.CheckoutID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("charge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d %s", errRejectedRequest, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var res ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}
	return &res, nil
}

// State reports the breaker state ("closed", "half-open" or "open").
func (c *Client) State() string {
	return c.cb.State().String()
}
