package utils

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Input validation helpers. These run before any ledger or storage
// access so malformed requests are rejected without spending RPC quota.

var base58Pattern = regexp.MustCompile("^[1-9A-HJ-NP-Za-km-z]+$")

// ValidateTransactionSignature checks the shape of a ledger transaction
// signature: base58, 80-90 characters.
func ValidateTransactionSignature(signature string) error {
	if signature == "" {
		return fmt.Errorf("transaction signature cannot be empty")
	}
	if len(signature) < 80 || len(signature) > 90 {
		return fmt.Errorf("transaction signature has invalid length")
	}
	if !base58Pattern.MatchString(signature) {
		return fmt.Errorf("transaction signature must be valid base58")
	}
	return nil
}

// ValidateWalletAddress checks the shape of a wallet address: base58,
// 32-44 characters. An empty address is allowed; payer identification
// is best-effort.
func ValidateWalletAddress(address string) error {
	if address == "" {
		return nil
	}
	if len(address) < 32 || len(address) > 44 {
		return fmt.Errorf("wallet address has invalid length")
	}
	if !base58Pattern.MatchString(address) {
		return fmt.Errorf("wallet address must be valid base58")
	}
	return nil
}

// ValidateRecipientAddress is ValidateWalletAddress but the address is
// required.
func ValidateRecipientAddress(address string) error {
	if address == "" {
		return fmt.Errorf("recipient address cannot be empty")
	}
	return ValidateWalletAddress(address)
}

// ValidateContentID checks the shape of a content identifier.
func ValidateContentID(contentID string) error {
	if contentID == "" {
		return fmt.Errorf("content id cannot be empty")
	}
	if len(contentID) > 128 {
		return fmt.Errorf("content id too long")
	}
	return nil
}

// ValidateAmount parses an amount string into a positive decimal.
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if !dec.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}

	return &dec, nil
}

// ValidatePriceBounds checks a listing price against the platform range.
func ValidatePriceBounds(price, min, max decimal.Decimal) error {
	if price.LessThan(min) || price.GreaterThan(max) {
		return fmt.Errorf("price %s outside allowed range [%s, %s]", price, min, max)
	}
	return nil
}
