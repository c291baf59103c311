package checkout_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant/internal/checkout"
	"merchant/internal/payauth"
	"merchant/internal/payment"
	"merchant/internal/payment/handler"
	"merchant/internal/verification"
	"merchant/internal/widget"
	"merchant/internal/widget/widgettest"
	"merchant/pkg/testutil"
)

const merchantSecret = "merchant-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMerchant starts the merchant payment endpoint backed by a fake remote
// verification service.
func newMerchant(t *testing.T) (*httptest.Server, *testutil.VerifyServer) {
	t.Helper()
	remote := testutil.NewVerifyServer(t, merchantSecret)
	logger := discardLogger()
	svc := payment.NewService(verification.NewClient(remote.URL, merchantSecret), logger)
	r := chi.NewRouter()
	handler.New(svc, logger).Register(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, remote
}

func TestPaymentClient(t *testing.T) {
	merchant, remote := newMerchant(t)
	client := checkout.NewPaymentClient(merchant.URL)

	t.Run("paid", func(t *testing.T) {
		remote.Set("good", testutil.Verdict{Valid: true, UserID: "u1"})
		res, err := client.Process(context.Background(), payauth.PaymentRequest{Token: "good", OrderID: "12345", Amount: 99.99})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "12345", res.OrderID)
		assert.False(t, res.PaymentDate.IsZero())
	})

	t.Run("refused with endpoint message", func(t *testing.T) {
		_, err := client.Process(context.Background(), payauth.PaymentRequest{Token: "unknown"})
		var pe *checkout.PaymentError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
		assert.Equal(t, "Invalid authentication token", pe.Message)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := client.Process(context.Background(), payauth.PaymentRequest{})
		var pe *checkout.PaymentError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
		assert.Equal(t, "Authentication token is required", pe.Message)
	})
}

func TestPaymentClientNonResultBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	_, err := checkout.NewPaymentClient(server.URL).Process(context.Background(), payauth.PaymentRequest{Token: "t"})

	var pe *checkout.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Server error: 502", pe.Message)
}

func TestPaymentClientUnsuccessfulResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	_, err := checkout.NewPaymentClient(server.URL).Process(context.Background(), payauth.PaymentRequest{Token: "t"})

	var pe *checkout.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Unknown error", pe.Message)
}

func TestPaymentClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := checkout.NewPaymentClient(url).Process(context.Background(), payauth.PaymentRequest{Token: "t"})

	assert.ErrorIs(t, err, checkout.ErrTransport)
}

type processorFunc func(ctx context.Context, req payauth.PaymentRequest) (*payauth.PaymentResult, error)

func (f processorFunc) Process(ctx context.Context, req payauth.PaymentRequest) (*payauth.PaymentResult, error) {
	return f(ctx, req)
}

type statusLog struct {
	mu    sync.Mutex
	texts []string
}

func (l *statusLog) record(s checkout.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.texts = append(l.texts, s.Text())
}

func (l *statusLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.texts...)
}

func TestFlowStatuses(t *testing.T) {
	order := payauth.Order{ID: "12345", Amount: 99.99}
	result := payauth.AuthResult{Token: "tok-abcdefghijkl", Email: "buyer@example.com", UserID: "u1"}

	t.Run("paid", func(t *testing.T) {
		var got payauth.PaymentRequest
		log := &statusLog{}
		flow := checkout.NewFlow(processorFunc(func(_ context.Context, req payauth.PaymentRequest) (*payauth.PaymentResult, error) {
			got = req
			return &payauth.PaymentResult{Success: true, OrderID: "12345"}, nil
		}), order, discardLogger(), checkout.WithOnChange(log.record))

		flow.Callbacks().OnSuccess(result)

		assert.Equal(t, []string{"Processing payment...", "Payment successful! Order #12345"}, log.all())
		assert.Equal(t, payauth.PaymentRequest{Token: result.Token, Email: result.Email, OrderID: "12345", Amount: 99.99}, got)
	})

	t.Run("refused", func(t *testing.T) {
		flow := checkout.NewFlow(processorFunc(func(context.Context, payauth.PaymentRequest) (*payauth.PaymentResult, error) {
			return nil, &checkout.PaymentError{StatusCode: 401, Message: "Invalid authentication token"}
		}), order, discardLogger())

		flow.Callbacks().OnSuccess(result)

		assert.Equal(t, checkout.KindPaymentFailed, flow.Status().Kind)
		assert.Equal(t, "Payment failed: Invalid authentication token", flow.Status().Text())
	})

	t.Run("unreachable", func(t *testing.T) {
		flow := checkout.NewFlow(processorFunc(func(context.Context, payauth.PaymentRequest) (*payauth.PaymentResult, error) {
			return nil, checkout.ErrTransport
		}), order, discardLogger())

		flow.Callbacks().OnSuccess(result)

		assert.Equal(t, "Payment processing error. Please try again.", flow.Status().Text())
	})

	t.Run("authentication error", func(t *testing.T) {
		flow := checkout.NewFlow(nil, order, discardLogger())

		flow.Callbacks().OnError(errors.New("NotAllowedError"))

		assert.Equal(t, "Authentication failed: NotAllowedError", flow.Status().Text())
	})
}

func TestFlowCancelResetsToReady(t *testing.T) {
	log := &statusLog{}
	flow := checkout.NewFlow(nil, payauth.Order{}, discardLogger(),
		checkout.WithResetDelay(10*time.Millisecond),
		checkout.WithOnChange(log.record),
	)
	defer flow.Close()

	flow.Callbacks().OnCancel()
	assert.Equal(t, "Authentication cancelled. You can try again when ready.", flow.Status().Text())

	assert.Eventually(t, func() bool { return flow.Status().Kind == checkout.KindReady }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Authentication cancelled. You can try again when ready.", ""}, log.all())
}

func TestFlowLaterStatusWinsOverReset(t *testing.T) {
	flow := checkout.NewFlow(nil, payauth.Order{}, discardLogger(), checkout.WithResetDelay(10*time.Millisecond))
	defer flow.Close()

	flow.Callbacks().OnCancel()
	flow.Callbacks().OnError(errors.New("timeout"))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, checkout.KindAuthFailed, flow.Status().Kind)
}

func TestCheckoutEndToEnd(t *testing.T) {
	merchant, remote := newMerchant(t)
	remote.Set("tok-e2e-000000", testutil.Verdict{Valid: true, UserID: "u1"})

	flow := checkout.NewFlow(checkout.NewPaymentClient(merchant.URL), payauth.Order{ID: "12345", Amount: 99.99}, discardLogger())
	init := &widgettest.Initializer{}
	loader := widget.NewLoader("https://auth.example.com/sdk/payauth.js", &widgettest.Source{Init: init})
	adapter := widget.New(loader, flow.Callbacks(), discardLogger())
	defer adapter.Teardown()

	require.NoError(t, adapter.Start(context.Background(), widget.Config{
		MerchantID: "DEMO_MERCHANT_123",
		ServiceURL: "https://auth.example.com",
		Container:  "#payauth-container",
	}))

	init.Last().EmitSuccess(payauth.AuthResult{Token: "tok-e2e-000000", Email: "buyer@example.com", UserID: "u1"})

	assert.Equal(t, "Payment successful! Order #12345", flow.Status().Text())
	assert.Equal(t, []string{"tok-e2e-000000"}, remote.Tokens())
	assert.Equal(t, widget.StateSucceeded, adapter.State())
}

func TestCheckoutRetryThroughWidget(t *testing.T) {
	merchant, remote := newMerchant(t)
	remote.Set("tok-good-000000", testutil.Verdict{Valid: true, UserID: "u1"})

	flow := checkout.NewFlow(checkout.NewPaymentClient(merchant.URL), payauth.Order{ID: "12345", Amount: 99.99}, discardLogger())
	init := &widgettest.Initializer{}
	loader := widget.NewLoader("https://auth.example.com/sdk/payauth.js", &widgettest.Source{Init: init})
	adapter := widget.New(loader, flow.Callbacks(), discardLogger())
	defer adapter.Teardown()

	require.NoError(t, adapter.Start(context.Background(), widget.Config{
		MerchantID: "DEMO_MERCHANT_123",
		ServiceURL: "https://auth.example.com",
		Container:  "#payauth-container",
	}))
	sdk := init.Last()

	sdk.EmitSuccess(payauth.AuthResult{Token: "tok-bad-000000", UserID: "u1"})
	assert.Equal(t, "Payment failed: Invalid authentication token", flow.Status().Text())

	sdk.EmitSuccess(payauth.AuthResult{Token: "tok-good-000000", UserID: "u1"})
	assert.Equal(t, "Payment successful! Order #12345", flow.Status().Text())
	assert.Equal(t, []string{"tok-bad-000000", "tok-good-000000"}, remote.Tokens())
	assert.Equal(t, widget.StateSucceeded, adapter.State())
}

func TestCheckoutCustomButtonRetry(t *testing.T) {
	merchant, remote := newMerchant(t)
	remote.Set("tok-good-000000", testutil.Verdict{Valid: true, UserID: "u1"})

	flow := checkout.NewFlow(checkout.NewPaymentClient(merchant.URL), payauth.Order{ID: "12345", Amount: 99.99}, discardLogger())
	var calls atomic.Int32
	init := &widgettest.Initializer{
		Authenticate: func(context.Context) (payauth.AuthResult, error) {
			if calls.Add(1) == 1 {
				return payauth.AuthResult{}, errors.New("NotAllowedError")
			}
			return payauth.AuthResult{Token: "tok-good-000000", UserID: "u1"}, nil
		},
	}
	loader := widget.NewLoader("https://auth.example.com/sdk/payauth.js", &widgettest.Source{Init: init})
	adapter := widget.New(loader, flow.Callbacks(), discardLogger())
	defer adapter.Teardown()

	trigger := &widgettest.Trigger{}
	require.NoError(t, adapter.Start(context.Background(), widget.Config{
		MerchantID: "DEMO_MERCHANT_123",
		ServiceURL: "https://auth.example.com",
		Trigger:    trigger,
	}))

	trigger.Click()
	require.Eventually(t, func() bool {
		return flow.Status().Text() == "Authentication failed: NotAllowedError"
	}, time.Second, 5*time.Millisecond)

	trigger.Click()
	require.Eventually(t, func() bool {
		return flow.Status().Text() == "Payment successful! Order #12345"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"tok-good-000000"}, remote.Tokens())
}
