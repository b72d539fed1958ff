// Package credential mints and validates the signed, expiring access
// tokens that content delivery trusts. A credential binds a content id,
// a payer, and the transaction signature that paid for it. There is no
// revocation list: expiry is the only termination mechanism, and
// deleting a listing does not invalidate tokens already issued for it.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	paytypes "github.com/paywall402/paywall402/types"
)

// Validation failures. Callers at the delivery boundary must collapse
// these into a generic "access denied" and never tell the client which
// check failed.
var (
	ErrInvalidSignature = errors.New("credential signature invalid")
	ErrExpired          = errors.New("credential expired")
	ErrTypeMismatch     = errors.New("credential type mismatch")
	ErrContentMismatch  = errors.New("credential issued for different content")
)

// Claims are the payload of an access credential.
type Claims struct {
	ContentID            string `json:"contentId"`
	TransactionSignature string `json:"txSignature"`
	PayerAddress         string `json:"payer"`
	Type                 string `json:"type"`
	jwt.RegisteredClaims
}

// Issuer signs and validates access credentials with a server-held
// secret (HS256; the signature check inside the JWT library is
// constant-time).
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. A zero ttl uses the 7-day default.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if ttl <= 0 {
		ttl = paytypes.DefaultCredentialTTL
	}

	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// SetClock overrides the issuer clock. Test hook.
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// Issue mints a credential for a verified payment.
func (i *Issuer) Issue(contentID, transactionSignature, payerAddress string) (string, error) {
	now := i.now()

	claims := &Claims{
		ContentID:            contentID,
		TransactionSignature: transactionSignature,
		PayerAddress:         payerAddress,
		Type:                 paytypes.CredentialTypePayment,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Validate checks the credential signature, expiry, and claim type, and
// returns the claims on success.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now() }))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidSignature
	}

	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	if claims.Type != paytypes.CredentialTypePayment {
		return nil, ErrTypeMismatch
	}

	return claims, nil
}

// ValidateForContent validates the credential and additionally checks
// that it was issued for the requested content.
func (i *Issuer) ValidateForContent(tokenString, contentID string) (*Claims, error) {
	claims, err := i.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.ContentID != contentID {
		return nil, ErrContentMismatch
	}
	return claims, nil
}
