// Package verification calls the remote authentication service's
// verify-token endpoint on behalf of the merchant.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"merchant/internal/payauth"
)

const (
	verifyPath        = "/api/verify-token"
	maxResponseBytes  = 1 << 20
	bodyPreviewLength = 200
	tracerName        = "merchant/internal/verification"
)

// Verifier confirms a client-supplied token with the issuing service.
type Verifier interface {
	Verify(ctx context.Context, token string) (payauth.VerificationOutcome, error)
}

// Client is the HTTP Verifier. It authenticates as the merchant with a
// server-held secret and never retries: every call is one round trip.
type Client struct {
	baseURL    string
	apiSecret  string
	timeout    time.Duration
	httpClient *http.Client
	tracer     trace.Tracer
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each verification call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithClock overrides the clock used for the expiry check.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient builds a Client for the service at baseURL.
func NewClient(baseURL, apiSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiSecret:  apiSecret,
		timeout:    10 * time.Second,
		httpClient: &http.Client{},
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"userId,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"` // epoch milliseconds
}

// Verify posts the token to the verification endpoint.
//
// Transport failures wrap ErrUnavailable, non-2xx answers return
// *RejectedError and an undecodable success body wraps ErrMalformedResponse.
// A syntactically valid answer of valid=false is an outcome, not an error.
func (c *Client) Verify(ctx context.Context, token string) (payauth.VerificationOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "verification.Verify", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	outcome, err := c.verify(ctx, token, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
		return payauth.VerificationOutcome{}, err
	}
	span.SetAttributes(attribute.Bool("verification.valid", outcome.Valid))
	return outcome, nil
}

func (c *Client) verify(ctx context.Context, token string, span trace.Span) (payauth.VerificationOutcome, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return payauth.VerificationOutcome{}, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+verifyPath, bytes.NewReader(payload))
	if err != nil {
		return payauth.VerificationOutcome{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return payauth.VerificationOutcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return payauth.VerificationOutcome{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return payauth.VerificationOutcome{}, &RejectedError{
			StatusCode: resp.StatusCode,
			Body:       preview(body),
		}
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return payauth.VerificationOutcome{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	outcome := payauth.VerificationOutcome{Valid: vr.Valid, UserID: vr.UserID}
	if vr.ExpiresAt > 0 {
		outcome.ExpiresAt = time.UnixMilli(vr.ExpiresAt)
		if !c.now().Before(outcome.ExpiresAt) {
			outcome.Valid = false
		}
	}
	if !outcome.Valid {
		outcome.UserID = ""
	}
	return outcome, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > bodyPreviewLength {
		return s[:bodyPreviewLength] + "..."
	}
	return s
}
