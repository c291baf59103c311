// Package payauth holds the types exchanged across the passkey payment
// handshake: the widget's authentication result, the payment request the host
// page forwards, the remote verification verdict and the payment result.
package payauth

import (
	"encoding/json"
	"time"
)

// AuthResult is produced by the remote widget on successful authentication.
// Token is a short-lived bearer credential: forward it once, never persist it,
// never log it except through RedactToken.
type AuthResult struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	PasskeyCount int       `json:"passkeyCount"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"-"`
}

type authResultWire struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	PasskeyCount int    `json:"passkeyCount"`
	Token        string `json:"token"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
}

// MarshalJSON encodes ExpiresAt as epoch milliseconds, matching the widget.
func (a AuthResult) MarshalJSON() ([]byte, error) {
	w := authResultWire{
		UserID:       a.UserID,
		Email:        a.Email,
		PasskeyCount: a.PasskeyCount,
		Token:        a.Token,
	}
	if !a.ExpiresAt.IsZero() {
		w.ExpiresAt = a.ExpiresAt.UnixMilli()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the widget's epoch-millisecond expiry.
func (a *AuthResult) UnmarshalJSON(data []byte) error {
	var w authResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = AuthResult{
		UserID:       w.UserID,
		Email:        w.Email,
		PasskeyCount: w.PasskeyCount,
		Token:        w.Token,
	}
	if w.ExpiresAt > 0 {
		a.ExpiresAt = time.UnixMilli(w.ExpiresAt)
	}
	return nil
}

// Expired reports whether the token's expiry has passed at now. A result
// without an expiry is never considered expired locally; the remote service
// remains the authority.
func (a AuthResult) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// Order is the checkout context the host page pairs with an AuthResult.
type Order struct {
	ID     string
	Amount float64
}

// PaymentRequest is the body of POST /api/process-payment.
type PaymentRequest struct {
	Token   string  `json:"token"`
	Email   string  `json:"email,omitempty"`
	OrderID string  `json:"orderId,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
}

// NewPaymentRequest pairs a widget result with order context. Only the token
// and the contact email leave the widget result.
func NewPaymentRequest(result AuthResult, order Order) PaymentRequest {
	return PaymentRequest{
		Token:   result.Token,
		Email:   result.Email,
		OrderID: order.ID,
		Amount:  order.Amount,
	}
}

// VerificationOutcome is the remote service's verdict on a token.
type VerificationOutcome struct {
	Valid     bool
	UserID    string
	ExpiresAt time.Time
}

// PaymentResult is the sole externally observable output of a payment attempt.
type PaymentResult struct {
	Success     bool      `json:"success"`
	OrderID     string    `json:"orderId,omitempty"`
	PaymentDate time.Time `json:"-"`
	Error       string    `json:"error,omitempty"`
}

type paymentResultWire struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderId,omitempty"`
	PaymentDate string `json:"paymentDate,omitempty"`
	Error       string `json:"error,omitempty"`
}

// MarshalJSON renders PaymentDate as ISO-8601 UTC with millisecond precision
// and omits it when unset.
func (p PaymentResult) MarshalJSON() ([]byte, error) {
	w := paymentResultWire{
		Success: p.Success,
		OrderID: p.OrderID,
		Error:   p.Error,
	}
	if !p.PaymentDate.IsZero() {
		w.PaymentDate = p.PaymentDate.UTC().Format(PaymentDateLayout)
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts any RFC 3339 payment date.
func (p *PaymentResult) UnmarshalJSON(data []byte) error {
	var w paymentResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = PaymentResult{Success: w.Success, OrderID: w.OrderID, Error: w.Error}
	if w.PaymentDate != "" {
		t, err := time.Parse(time.RFC3339Nano, w.PaymentDate)
		if err != nil {
			return err
		}
		p.PaymentDate = t
	}
	return nil
}

// PaymentDateLayout is the wire layout for PaymentResult.PaymentDate.
const PaymentDateLayout = "2006-01-02T15:04:05.000Z07:00"

// Failed builds a failure result carrying a client-safe message.
func Failed(message string) *PaymentResult {
	return &PaymentResult{Success: false, Error: message}
}
