package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// CredentialTypePayment is the claim type embedded in issued access credentials.
const CredentialTypePayment = "payment"

// VerificationMode selects how payments are checked at startup.
type VerificationMode string

const (
	// ModeLedger verifies every payment against live ledger state.
	ModeLedger VerificationMode = "ledger"

	// ModeSimulated accepts payments without touching the ledger.
	// Intended for integration environments only; it must never be
	// selected in production configuration.
	ModeSimulated VerificationMode = "simulated"
)

// ContentListing is a priced piece of content gated behind a payment.
type ContentListing struct {
	ID               string          `json:"id" db:"id"`
	PriceAmount      decimal.Decimal `json:"priceAmount" db:"price_amount"`
	PriceCurrency    string          `json:"priceCurrency" db:"price_currency"`
	RecipientAddress string          `json:"recipientAddress" db:"recipient_address"`
	ExpiresAt        *time.Time      `json:"expiresAt,omitempty" db:"expires_at"`
	PaymentCount     int64           `json:"paymentCount" db:"payment_count"`
	ViewCount        int64           `json:"viewCount" db:"view_count"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
}

// Expired reports whether the listing is past its expiry at the given time.
func (l *ContentListing) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// PaymentRecord is one verified payment, keyed by transaction signature.
// The signature is the idempotency key: at most one record may ever
// exist per signature, across all listings.
type PaymentRecord struct {
	TransactionSignature string          `json:"transactionSignature" db:"transaction_signature"`
	ContentID            string          `json:"contentId" db:"content_id"`
	PayerAddress         string          `json:"payerAddress" db:"payer_address"`
	Amount               decimal.Decimal `json:"amount" db:"amount"`
	Status               PaymentStatus   `json:"status" db:"status"`
	PaidAt               time.Time       `json:"paidAt" db:"paid_at"`
}

// PayerUnknown is recorded when the caller did not identify the payer.
const PayerUnknown = "unknown"

// PaymentChallenge is the stateless quote a client must satisfy on-chain.
type PaymentChallenge struct {
	ContentID        string          `json:"contentId"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	RecipientAddress string          `json:"recipientAddress"`

	// Reference correlates a client payment flow with this quote. It is
	// not persisted and carries no server-side state.
	Reference string `json:"reference,omitempty"`
}

// TransferDelta is the net token balance change of one account within a
// single transaction. Ephemeral; derived, never persisted.
type TransferDelta struct {
	AccountIndex  uint16          `json:"accountIndex"`
	OwnerAddress  string          `json:"ownerAddress"`
	TokenMint     string          `json:"tokenMint"`
	BalanceChange decimal.Decimal `json:"balanceChange"`
}

// TokenBalance is a token account balance snapshot inside a transaction
// record, either before or after execution.
type TokenBalance struct {
	AccountIndex uint16
	OwnerAddress string
	TokenMint    string
	Amount       decimal.Decimal
}

// TransactionRecord is a normalized view of a finalized transaction as
// returned by the ledger client.
type TransactionRecord struct {
	Signature         string
	Slot              uint64
	BlockTime         *time.Time
	Failed            bool
	AccountKeys       []string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// HasAccount reports whether the address appears among the transaction's
// referenced accounts.
func (t *TransactionRecord) HasAccount(address string) bool {
	for _, k := range t.AccountKeys {
		if k == address {
			return true
		}
	}
	return false
}

// VerifiedPayment carries the details of a payment that passed all
// verification rules.
type VerifiedPayment struct {
	Signature string          `json:"signature"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	BlockTime *time.Time      `json:"blockTime,omitempty"`
	Slot      uint64          `json:"slot"`

	// MatchTier records which matcher tier located the credited
	// transfer. Anything other than the owner tier widened the
	// acceptance surface and is logged as such.
	MatchTier string `json:"matchTier,omitempty"`
}

// VerifyPaymentRequest is the inbound verification request.
type VerifyPaymentRequest struct {
	ContentID            string `json:"contentId" validate:"required"`
	TransactionSignature string `json:"transactionSignature" validate:"required"`
	PayerWallet          string `json:"payerWallet,omitempty"`
}

// VerifyPaymentResponse is returned to the caller after a verification
// attempt.
type VerifyPaymentResponse struct {
	Verified    bool             `json:"verified"`
	AccessToken string           `json:"accessToken,omitempty"`
	Error       string           `json:"error,omitempty"`
	ErrorCode   string           `json:"errorCode,omitempty"`
	Details     *VerifiedPayment `json:"details,omitempty"`

	// Recorded is false when the payment verified against the ledger but
	// the record write failed. The payment is real; the caller should
	// retry recording, not pay again.
	Recorded bool `json:"recorded"`
}

// CreateListingRequest creates a new content listing.
type CreateListingRequest struct {
	PriceAmount      string     `json:"priceAmount" validate:"required"`
	RecipientAddress string     `json:"recipientAddress" validate:"required"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
}

// Config is the externally supplied configuration consumed by the core.
type Config struct {
	// RPCUrl is the ledger RPC endpoint.
	RPCUrl string `json:"rpcUrl"`

	// PaymentTokenMint is the single accepted stablecoin mint.
	PaymentTokenMint string `json:"paymentTokenMint"`

	// TolerancePercent is the relative amount-match band, e.g. 0.001
	// for 0.1%. Absorbs rounding noise only, never real underpayment.
	TolerancePercent decimal.Decimal `json:"tolerancePercent"`

	// ToleranceFloor is the absolute floor of the tolerance band.
	ToleranceFloor decimal.Decimal `json:"toleranceFloor"`

	// PriceMin and PriceMax bound listing prices.
	PriceMin decimal.Decimal `json:"priceMin"`
	PriceMax decimal.Decimal `json:"priceMax"`

	// SigningSecret signs access credentials.
	SigningSecret string `json:"-"`

	// CredentialTTL is the lifetime of issued access credentials.
	CredentialTTL time.Duration `json:"credentialTtl"`

	// LedgerTimeout bounds a single ledger fetch.
	LedgerTimeout time.Duration `json:"ledgerTimeout"`

	// Mode selects the verification strategy at startup.
	Mode VerificationMode `json:"mode"`

	// StorageRetryAttempts bounds retries of the payment record write.
	StorageRetryAttempts uint64 `json:"storageRetryAttempts"`
}

// Validate checks that the config carries everything the core needs.
func (c *Config) Validate() error {
	if c.PaymentTokenMint == "" {
		return fmt.Errorf("paymentTokenMint is required")
	}

	if c.SigningSecret == "" {
		return fmt.Errorf("signingSecret is required")
	}

	if c.Mode == ModeLedger && c.RPCUrl == "" {
		return fmt.Errorf("rpcUrl is required in ledger mode")
	}

	if c.Mode != ModeLedger && c.Mode != ModeSimulated {
		return fmt.Errorf("unsupported verification mode: %s", c.Mode)
	}

	if c.TolerancePercent.IsNegative() || c.ToleranceFloor.IsNegative() {
		return fmt.Errorf("tolerance values cannot be negative")
	}

	if c.CredentialTTL < 0 {
		return fmt.Errorf("credentialTtl cannot be negative")
	}

	return nil
}

// Defaults that apply when the corresponding Config field is zero.
var (
	DefaultTolerancePercent = decimal.RequireFromString("0.001")
	DefaultToleranceFloor   = decimal.RequireFromString("0.01")
	DefaultPriceMin         = decimal.RequireFromString("0.01")
	DefaultPriceMax         = decimal.RequireFromString("100")
)

const (
	DefaultCredentialTTL        = 7 * 24 * time.Hour
	DefaultLedgerTimeout        = 30 * time.Second
	DefaultStorageRetryAttempts = 3
)

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	if c.TolerancePercent.IsZero() {
		c.TolerancePercent = DefaultTolerancePercent
	}
	if c.ToleranceFloor.IsZero() {
		c.ToleranceFloor = DefaultToleranceFloor
	}
	if c.PriceMin.IsZero() {
		c.PriceMin = DefaultPriceMin
	}
	if c.PriceMax.IsZero() {
		c.PriceMax = DefaultPriceMax
	}
	if c.CredentialTTL == 0 {
		c.CredentialTTL = DefaultCredentialTTL
	}
	if c.LedgerTimeout == 0 {
		c.LedgerTimeout = DefaultLedgerTimeout
	}
	if c.StorageRetryAttempts == 0 {
		c.StorageRetryAttempts = DefaultStorageRetryAttempts
	}
	if c.Mode == "" {
		c.Mode = ModeLedger
	}
}
