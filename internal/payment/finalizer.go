package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"merchant/internal/payauth"
	"merchant/pkg/requestcontext"
)

// VerifiedPayment is a payment request whose token the remote service has
// confirmed in this same request. Only Service constructs it.
type VerifiedPayment struct {
	Request payauth.PaymentRequest
	UserID  string
}

// Finalizer turns a verified payment into a result. A real implementation
// captures the payment with a processor; the stub only assigns an order id.
type Finalizer interface {
	Finalize(ctx context.Context, payment VerifiedPayment) (*payauth.PaymentResult, error)
}

// StubFinalizer simulates a successful capture.
type StubFinalizer struct {
	newOrderID func() string
}

// NewStubFinalizer returns a StubFinalizer that generates ORDER-XXXXXXXXXXXX ids.
func NewStubFinalizer() *StubFinalizer {
	return &StubFinalizer{newOrderID: GenerateOrderID}
}

// Finalize keeps a caller-supplied order id verbatim, otherwise generates one,
// and stamps the request-scoped time as the payment date.
func (f *StubFinalizer) Finalize(ctx context.Context, payment VerifiedPayment) (*payauth.PaymentResult, error) {
	orderID := payment.Request.OrderID
	if orderID == "" {
		orderID = f.newOrderID()
	}
	return &payauth.PaymentResult{
		Success:     true,
		OrderID:     orderID,
		PaymentDate: requestcontext.Now(ctx).UTC(),
	}, nil
}

// GenerateOrderID returns "ORDER-" followed by 12 random uppercase hex digits.
func GenerateOrderID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORDER-" + strings.ToUpper(hex[:12])
}
