package credential

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	paytypes "github.com/paywall402/paywall402/types"
)

const (
	testSecret    = "test-signing-secret-0123456789abcdef"
	testContentID = "content-1"
	testSignature = "5SigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSig"
	testPayer     = "PayerWallet111111111111111111111111111111111"
)

func newTestIssuer(t *testing.T, ttl time.Duration) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testSecret, ttl)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return issuer
}

func TestIssueRequiresSecret(t *testing.T) {
	if _, err := NewIssuer("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	token, err := issuer.Issue(testContentID, testSignature, testPayer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if claims.ContentID != testContentID {
		t.Errorf("contentId = %s, want %s", claims.ContentID, testContentID)
	}
	if claims.TransactionSignature != testSignature {
		t.Errorf("txSignature = %s, want %s", claims.TransactionSignature, testSignature)
	}
	if claims.PayerAddress != testPayer {
		t.Errorf("payer = %s, want %s", claims.PayerAddress, testPayer)
	}
	if claims.Type != paytypes.CredentialTypePayment {
		t.Errorf("type = %s, want %s", claims.Type, paytypes.CredentialTypePayment)
	}
}

func TestCredentialExpiry(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	token, err := issuer.Issue(testContentID, testSignature, testPayer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Jump past the expiry; the signature stays valid.
	issuer.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })

	if _, err := issuer.Validate(token); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestCredentialTamperDetection(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	token, err := issuer.Issue(testContentID, testSignature, testPayer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 token segments, got %d", len(parts))
	}

	// Flip one character inside the claims segment.
	claims := []byte(parts[1])
	if claims[10] == 'A' {
		claims[10] = 'B'
	} else {
		claims[10] = 'A'
	}
	tampered := parts[0] + "." + string(claims) + "." + parts[2]

	if _, err := issuer.Validate(tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestCredentialWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	other, err := NewIssuer("another-secret-entirely", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	token, err := other.Issue(testContentID, testSignature, testPayer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuer.Validate(token); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestCredentialTypeMismatch(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	// A token signed with the right secret but a different claim type
	// must be refused.
	claims := &Claims{
		ContentID: testContentID,
		Type:      "session",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := issuer.Validate(token); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestValidateForContent(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	token, err := issuer.Issue(testContentID, testSignature, testPayer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuer.ValidateForContent(token, testContentID); err != nil {
		t.Errorf("ValidateForContent: %v", err)
	}

	if _, err := issuer.ValidateForContent(token, "other-content"); !errors.Is(err, ErrContentMismatch) {
		t.Errorf("expected ErrContentMismatch, got %v", err)
	}
}
