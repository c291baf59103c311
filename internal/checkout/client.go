package checkout

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

	"merchant/internal/payauth"
)

const (
	processPaymentPath = "/api/process-payment"
	maxResultBytes     = 64 << 10
)

// ErrTransport is returned when the payment endpoint could not be reached or
// its response could not be read.
var ErrTransport = errors.New("payment endpoint unreachable")

// PaymentError is a payment the endpoint refused. Message is safe to show.
type PaymentError struct {
	StatusCode int
	Message    string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// Processor submits a payment request.
type Processor interface {
	Process(ctx context.Context, req payauth.PaymentRequest) (*payauth.PaymentResult, error)
}

// PaymentClient posts payment requests to the merchant's own endpoint.
type PaymentClient struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a PaymentClient.
type ClientOption func(*PaymentClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *PaymentClient) {
		c.httpClient = hc
	}
}

// NewPaymentClient builds a client for the merchant server at baseURL.
func NewPaymentClient(baseURL string, opts ...ClientOption) *PaymentClient {
	c := &PaymentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process submits req. A refused payment yields *PaymentError carrying the
// endpoint's message, or "Server error: <status>" when the body is not a result.
func (c *PaymentClient) Process(ctx context.Context, req payauth.PaymentRequest) (*payauth.PaymentResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPaymentPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	var result payauth.PaymentResult
	decodeErr := json.Unmarshal(raw, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := result.Error
		if decodeErr != nil || msg == "" {
			msg = fmt.Sprintf("Server error: %d", resp.StatusCode)
		}
		return nil, &PaymentError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrTransport, decodeErr)
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, &PaymentError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &result, nil
}
