package types

import "errors"

// PaywallError is a structured error carried across the verification
// boundary.
type PaywallError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *PaywallError) Error() string {
	return e.Message
}

// NewPaywallError builds a PaywallError from a code and message.
func NewPaywallError(code, message string) *PaywallError {
	return &PaywallError{Code: code, Message: message}
}

// Rejection and error codes. Business-rule rejections are terminal for
// the submitted signature; infrastructure codes are retryable.
const (
	// -----------------------------
	// INPUT
	// -----------------------------
	ErrCodeInvalidContentID = "invalid_content_id"
	ErrCodeInvalidSignature = "invalid_signature_format"
	ErrCodeInvalidRequest   = "invalid_request"

	// -----------------------------
	// NOT FOUND
	// -----------------------------
	ErrCodeContentNotFound     = "content_not_found"
	ErrCodeTransactionNotFound = "transaction_not_found"

	// -----------------------------
	// BUSINESS RULES
	// -----------------------------
	ErrCodeContentExpired       = "content_expired"
	ErrCodeTransactionFailed    = "transaction_failed"
	ErrCodeNoPaymentFound       = "no_payment_found"
	ErrCodeRecipientMismatch    = "recipient_mismatch"
	ErrCodeAmountMismatch       = "amount_mismatch"
	ErrCodeSignatureAlreadyUsed = "signature_already_used"

	// -----------------------------
	// INFRASTRUCTURE
	// -----------------------------
	ErrCodeLedgerUnavailable = "ledger_unavailable"
	ErrCodeStorageError      = "storage_error"

	// -----------------------------
	// CREDENTIAL TRUST BOUNDARY
	// -----------------------------
	ErrCodeCredentialInvalid = "credential_invalid"
)

// Sentinel errors for errors.Is branching across package boundaries.
var (
	ErrListingNotFound     = errors.New("content listing not found")
	ErrListingExpired      = errors.New("content listing expired")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrLedgerUnavailable   = errors.New("ledger unavailable")
	ErrStorageUnavailable  = errors.New("storage unavailable")

	// ErrSignatureAlreadyUsed means the transaction signature is already
	// bound to a different content item. One payment buys one item.
	ErrSignatureAlreadyUsed = errors.New("transaction signature already used for different content")
)

// Retryable reports whether an error code denotes a transient
// infrastructure failure the caller may retry after backoff.
func Retryable(code string) bool {
	return code == ErrCodeLedgerUnavailable || code == ErrCodeStorageError
}

// AmountMismatchData carries expected vs. actual amounts on an
// amount_mismatch rejection.
type AmountMismatchData struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}
