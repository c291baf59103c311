package payauthstub

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"merchant/internal/payauth"
	"merchant/internal/verification"
	"merchant/pkg/platform/sentinel"
	"merchant/pkg/testutil"
)

const (
	signingKey     = "test-signing-key"
	merchantSecret = "merchant-secret"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)}
}

func TestIssuer(t *testing.T) {
	clk := newClock()
	issuer := NewIssuer(signingKey, 5*time.Minute, clk.Now)

	result, err := issuer.Issue("user_1", "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user_1", result.UserID)
	assert.Equal(t, "buyer@example.com", result.Email)
	assert.Equal(t, clk.Now().Add(5*time.Minute), result.ExpiresAt.UTC())

	t.Run("valid until expiry", func(t *testing.T) {
		claims, err := issuer.Verify(result.Token)
		require.NoError(t, err)
		assert.Equal(t, "user_1", claims.Subject)
		assert.Equal(t, "buyer@example.com", claims.Email)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("distinct token ids", func(t *testing.T) {
		other, err := issuer.Issue("user_1", "buyer@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, result.Token, other.Token)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := NewIssuer("other-key", time.Minute, clk.Now).Verify(result.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user_1",
				Issuer:    issuerName,
				ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
			},
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		clk.Advance(6 * time.Minute)
		_, err := issuer.Verify(result.Token)
		assert.ErrorIs(t, err, sentinel.ErrExpired)
	})
}

type HandlerSuite struct {
	suite.Suite
	clock  *clock
	issuer *Issuer
	router http.Handler
}

func (s *HandlerSuite) SetupTest() {
	s.clock = newClock()
	s.issuer = NewIssuer(signingKey, 5*time.Minute, s.clock.Now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(s.issuer, merchantSecret, logger, WithScript([]byte("window.PayAuth={};"))).Register(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) verify(secret string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/verify-token", body)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestVerifyRequiresMerchantSecret() {
	result, err := s.issuer.Issue("user_1", "")
	s.Require().NoError(err)

	testutil.AssertStatus(s.T(), s.verify("", map[string]string{"token": result.Token}), http.StatusUnauthorized)
	testutil.AssertStatus(s.T(), s.verify("wrong", map[string]string{"token": result.Token}), http.StatusUnauthorized)
}

func (s *HandlerSuite) TestVerifyValidToken() {
	result, err := s.issuer.Issue("user_1", "buyer@example.com")
	s.Require().NoError(err)

	for range 2 {
		rec := s.verify(merchantSecret, map[string]string{"token": result.Token})
		testutil.AssertStatus(s.T(), rec, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rec, "valid", true)
		testutil.AssertJSONContains(s.T(), rec, "userId", "user_1")
		testutil.AssertJSONContains(s.T(), rec, "expiresAt", float64(result.ExpiresAt.UnixMilli()))
	}
}

func (s *HandlerSuite) TestVerifyUnknownToken() {
	rec := s.verify(merchantSecret, map[string]string{"token": "forged"})

	testutil.AssertStatus(s.T(), rec, http.StatusOK)
	s.JSONEq(`{"valid":false}`, rec.Body.String())
}

func (s *HandlerSuite) TestVerifyBadBody() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/verify-token", "{")
	req.Header.Set("Authorization", "Bearer "+merchantSecret)
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest)

	testutil.AssertStatus(s.T(), s.verify(merchantSecret, map[string]string{}), http.StatusBadRequest)
}

func (s *HandlerSuite) TestAuthenticateIssuesToken() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/authenticate",
		map[string]string{"userId": "user_9", "email": "nine@example.com"})
	rec := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rec, http.StatusOK)
	result := testutil.UnmarshalResponse[payauth.AuthResult](s.T(), rec)
	s.Equal("user_9", result.UserID)
	s.NotEmpty(result.Token)
	s.False(result.Expired(s.clock.Now()))

	claims, err := s.issuer.Verify(result.Token)
	s.Require().NoError(err)
	s.Equal("user_9", claims.Subject)
}

func (s *HandlerSuite) TestAuthenticateRequiresUser() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/authenticate", map[string]string{"email": "x@example.com"})
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest)
}

func (s *HandlerSuite) TestScript() {
	rec := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/sdk/payauth.min.js", nil))

	testutil.AssertStatus(s.T(), rec, http.StatusOK)
	s.Equal("application/javascript", rec.Header().Get("Content-Type"))
	s.Equal("window.PayAuth={};", rec.Body.String())
}

// The merchant's verification client and the stub agree on the contract.
func TestVerificationClientAgainstStub(t *testing.T) {
	clk := newClock()
	issuer := NewIssuer(signingKey, 5*time.Minute, clk.Now)
	r := chi.NewRouter()
	NewHandler(issuer, merchantSecret, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	server := httptest.NewServer(r)
	defer server.Close()

	client := verification.NewClient(server.URL, merchantSecret, verification.WithClock(clk.Now))
	result, err := issuer.Issue("user_1", "buyer@example.com")
	require.NoError(t, err)

	outcome, err := client.Verify(context.Background(), result.Token)
	require.NoError(t, err)
	assert.True(t, outcome.Valid)
	assert.Equal(t, "user_1", outcome.UserID)

	outcome, err = client.Verify(context.Background(), "forged")
	require.NoError(t, err)
	assert.False(t, outcome.Valid)

	clk.Advance(10 * time.Minute)
	outcome, err = client.Verify(context.Background(), result.Token)
	require.NoError(t, err)
	assert.False(t, outcome.Valid)

	_, err = verification.NewClient(server.URL, "wrong-secret").Verify(context.Background(), result.Token)
	assert.ErrorIs(t, err, verification.ErrRejected)
}
