package chatbot

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Backend answers messages the keyword rules do not cover.
type Backend interface {
	Answer(ctx context.Context, sessionID, message string) (string, error)
}

type HTTPBackend struct {
	url        string
	httpClient *http.Client
}

func NewHTTPBackend(url string, timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPBackend{
		url: strings.TrimRight(url, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type replyRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

func (b *HTTPBackend) Answer(ctx context.Context, sessionID, message string) (string, error) {
	body, err := json.Marshal(replyRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return "", fmt.Errorf("failed to marshal reply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url+"/reply", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out replyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat backend reply: %w", err)
	}
	if strings.TrimSpace(out.Reply) == "" {
		return "", errors.New("chat backend returned an empty reply")
	}
	return out.Reply, nil
}
