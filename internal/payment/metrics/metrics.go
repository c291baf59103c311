package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for payment requests.
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeBadRequest  = "bad_request"
	OutcomeUnverified  = "unverified"
	OutcomeUnavailable = "verification_unavailable"
	OutcomeFailed      = "failed"
)

// Verification result labels.
const (
	VerificationValid       = "valid"
	VerificationInvalid     = "invalid"
	VerificationRejected    = "rejected"
	VerificationUnavailable = "unavailable"
)

// Metrics provides observability for the payment module.
// Tracks request outcomes, verification verdicts and critical path durations.
type Metrics struct {
	PaymentRequests      *prometheus.CounterVec
	TokenVerifications   *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	PaymentDuration      prometheus.Histogram
}

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// New creates payment metrics registered against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PaymentRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "merchant_payment_requests_total",
			Help: "Payment requests by outcome",
		}, []string{"outcome"}),
		TokenVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "merchant_token_verifications_total",
			Help: "Remote token verifications by result",
		}, []string{"result"}),
		VerificationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "merchant_verification_duration_seconds",
			Help:    "Duration of verify-token round trips",
			Buckets: latencyBuckets,
		}),
		PaymentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "merchant_payment_duration_seconds",
			Help:    "Duration of payment processing including verification",
			Buckets: latencyBuckets,
		}),
	}
}

// IncrementPaymentRequest records a payment request outcome.
func (m *Metrics) IncrementPaymentRequest(outcome string) {
	m.PaymentRequests.WithLabelValues(outcome).Inc()
}

// IncrementVerification records a verification result.
func (m *Metrics) IncrementVerification(result string) {
	m.TokenVerifications.WithLabelValues(result).Inc()
}

// ObserveVerification records the duration of a verify-token round trip.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveVerification(start time.Time) {
	m.VerificationDuration.Observe(time.Since(start).Seconds())
}

// ObservePayment records the duration of a payment request.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObservePayment(start time.Time) {
	m.PaymentDuration.Observe(time.Since(start).Seconds())
}
