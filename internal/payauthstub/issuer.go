// Package payauthstub is a local stand-in for the remote authentication
// service. It mints short-lived tokens and answers the merchant-facing
// verify-token contract so the checkout can run without the real service.
package payauthstub

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"merchant/internal/payauth"
	"merchant/pkg/platform/sentinel"
)

const issuerName = "payauth-stub"

// ErrInvalidToken covers malformed, forged and wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are carried by stub tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and checks HS256 tokens.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewIssuer creates an Issuer. now may be nil.
func NewIssuer(signingKey string, ttl time.Duration, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{signingKey: []byte(signingKey), ttl: ttl, now: now}
}

// Issue mints a token for the user, as a completed passkey ceremony would.
func (i *Issuer) Issue(userID, email string) (payauth.AuthResult, error) {
	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return payauth.AuthResult{}, err
	}

	return payauth.AuthResult{
		UserID:       userID,
		Email:        email,
		PasskeyCount: 1,
		Token:        signed,
		ExpiresAt:    jwt.NewNumericDate(expiresAt).Time,
	}, nil
}

// Verify checks signature and expiry. Expired tokens return an error
// matching sentinel.ErrExpired; everything else that fails returns
// ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.signingKey, nil
	},
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, sentinel.ErrExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
