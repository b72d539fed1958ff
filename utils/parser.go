package utils

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	paytypes "github.com/paywall402/paywall402/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ParseVerifyPaymentRequest parses and validates an inbound
// verification request from JSON, including the format checks that run
// before any ledger access.
func ParseVerifyPaymentRequest(data []byte) (*paytypes.VerifyPaymentRequest, error) {
	var req paytypes.VerifyPaymentRequest

	if err := json.Unmarshal(data, &req); err != nil {
		return nil, paytypes.NewPaywallError(
			paytypes.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to parse verify request: %v", err),
		)
	}

	if err := ValidateVerifyPaymentRequest(&req); err != nil {
		return nil, err
	}

	return &req, nil
}

// ValidateVerifyPaymentRequest runs struct-tag and format validation on
// a verification request. Signature shape is not checked here; it
// depends on the verification mode and belongs to the caller.
func ValidateVerifyPaymentRequest(req *paytypes.VerifyPaymentRequest) error {
	if err := ValidateContentID(req.ContentID); err != nil {
		return paytypes.NewPaywallError(paytypes.ErrCodeInvalidContentID, err.Error())
	}

	if err := ValidateWalletAddress(req.PayerWallet); err != nil {
		return paytypes.NewPaywallError(paytypes.ErrCodeInvalidRequest, err.Error())
	}

	if err := validate.Struct(req); err != nil {
		return paytypes.NewPaywallError(
			paytypes.ErrCodeInvalidRequest,
			fmt.Sprintf("validation failed: %v", err),
		)
	}

	return nil
}

// ParseCreateListingRequest parses and validates a listing creation
// request from JSON.
func ParseCreateListingRequest(data []byte) (*paytypes.CreateListingRequest, error) {
	var req paytypes.CreateListingRequest

	if err := json.Unmarshal(data, &req); err != nil {
		return nil, paytypes.NewPaywallError(
			paytypes.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to parse listing request: %v", err),
		)
	}

	if err := validate.Struct(&req); err != nil {
		return nil, paytypes.NewPaywallError(
			paytypes.ErrCodeInvalidRequest,
			fmt.Sprintf("validation failed: %v", err),
		)
	}

	return &req, nil
}
