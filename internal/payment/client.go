package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is the HTTP implementation of Gateway against the tokenized-card
// payment provider.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a gateway client. A zero timeout falls back to 30s.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type chargeResponse struct {
	Status            string `json:"status"`
	AuthorizationCode string `json:"authorization_code"`
	ResponseCode      int    `json:"response_code"`
	ErrorMessage      string `json:"error_message"`
}

// Charge POSTs a tokenized charge. Declines come back as a normal
// ChargeResult; only transport and protocol failures return an error.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("charge POST %s: %w", req.OrderRef, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway returned %d for order %s", resp.StatusCode, req.OrderRef)
	}

	var cr chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}

	if resp.StatusCode == http.StatusOK && cr.Status == "authorized" && cr.ResponseCode == 0 {
		return &ChargeResult{Approved: true, AuthorizationCode: cr.AuthorizationCode}, nil
	}

	msg := cr.ErrorMessage
	if msg == "" {
		msg = fmt.Sprintf("charge declined (status %s, response_code %d)", cr.Status, cr.ResponseCode)
	}
	return &ChargeResult{Approved: false, ErrorMessage: msg}, nil
}
