package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/paywall402/paywall402/clients"
	"github.com/paywall402/paywall402/logger"
	paytypes "github.com/paywall402/paywall402/types"
)

// Strategy checks a claimed transaction against a listing. The strategy
// is chosen once at construction; request content never selects it.
type Strategy interface {
	Verify(ctx context.Context, signature string, listing *paytypes.ContentListing) (*paytypes.VerifiedPayment, error)
}

// LedgerStrategy re-derives truth from finalized ledger state.
type LedgerStrategy struct {
	ledger         clients.LedgerClient
	tokenMint      string
	tolerancePct   decimal.Decimal
	toleranceFloor decimal.Decimal
	log            logger.Logger
}

var _ Strategy = (*LedgerStrategy)(nil)

// NewLedgerStrategy builds the production verification strategy.
func NewLedgerStrategy(
	ledger clients.LedgerClient,
	tokenMint string,
	tolerancePct decimal.Decimal,
	toleranceFloor decimal.Decimal,
	log logger.Logger,
) *LedgerStrategy {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &LedgerStrategy{
		ledger:         ledger,
		tokenMint:      tokenMint,
		tolerancePct:   tolerancePct,
		toleranceFloor: toleranceFloor,
		log:            log,
	}
}

// Verify applies the business rules in order, short-circuiting on the
// first failure. Rejections are returned as *types.PaywallError;
// infrastructure failures wrap the matching sentinel.
func (s *LedgerStrategy) Verify(
	ctx context.Context,
	signature string,
	listing *paytypes.ContentListing,
) (*paytypes.VerifiedPayment, error) {
	record, err := s.ledger.FetchTransaction(ctx, signature)
	if err != nil {
		if errors.Is(err, paytypes.ErrTransactionNotFound) {
			return nil, paytypes.NewPaywallError(
				paytypes.ErrCodeTransactionNotFound,
				fmt.Sprintf("transaction %s not found on ledger", signature),
			)
		}
		return nil, fmt.Errorf("%w: %v", paytypes.ErrLedgerUnavailable, err)
	}

	// A failed transaction's apparent transfers must never be trusted,
	// whatever its balance deltas look like.
	if record.Failed {
		return nil, paytypes.NewPaywallError(
			paytypes.ErrCodeTransactionFailed,
			"transaction execution failed on ledger",
		)
	}

	deltas := ExtractTransfers(record, s.tokenMint)
	if len(deltas) == 0 {
		return nil, paytypes.NewPaywallError(
			paytypes.ErrCodeNoPaymentFound,
			fmt.Sprintf("no %s transfers found in transaction", s.tokenMint),
		)
	}

	candidate, tier, ok := MatchRecipient(deltas, record, listing.RecipientAddress)
	if !ok {
		return nil, paytypes.NewPaywallError(
			paytypes.ErrCodeRecipientMismatch,
			fmt.Sprintf("no transfer credits recipient %s", listing.RecipientAddress),
		)
	}
	if tier == MatchedByAccountKey {
		s.log.Warn("recipient matched by account key fallback", map[string]any{
			"signature": signature,
			"contentId": listing.ID,
			"recipient": listing.RecipientAddress,
		})
	}

	tolerance := decimal.Max(listing.PriceAmount.Mul(s.tolerancePct), s.toleranceFloor)
	diff := listing.PriceAmount.Sub(candidate.BalanceChange).Abs()
	if diff.GreaterThan(tolerance) {
		rejection := paytypes.NewPaywallError(
			paytypes.ErrCodeAmountMismatch,
			fmt.Sprintf("expected %s, got %s", listing.PriceAmount, candidate.BalanceChange),
		)
		rejection.Data = &paytypes.AmountMismatchData{
			Expected: listing.PriceAmount.String(),
			Actual:   candidate.BalanceChange.String(),
		}
		return nil, rejection
	}

	return &paytypes.VerifiedPayment{
		Signature: signature,
		Recipient: listing.RecipientAddress,
		Amount:    candidate.BalanceChange,
		BlockTime: record.BlockTime,
		Slot:      record.Slot,
		MatchTier: string(tier),
	}, nil
}

// SimulatedStrategy accepts any signature without touching the ledger.
// It exists for integration environments and must be selected only by
// startup configuration.
type SimulatedStrategy struct {
	log logger.Logger
}

var _ Strategy = (*SimulatedStrategy)(nil)

// NewSimulatedStrategy builds the non-production strategy.
func NewSimulatedStrategy(log logger.Logger) *SimulatedStrategy {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &SimulatedStrategy{log: log}
}

// Verify returns synthetic verified details mirroring the listing.
func (s *SimulatedStrategy) Verify(
	_ context.Context,
	signature string,
	listing *paytypes.ContentListing,
) (*paytypes.VerifiedPayment, error) {
	s.log.Warn("simulated verification accepted without ledger check", map[string]any{
		"signature": signature,
		"contentId": listing.ID,
	})

	return &paytypes.VerifiedPayment{
		Signature: signature,
		Recipient: listing.RecipientAddress,
		Amount:    listing.PriceAmount,
		MatchTier: "simulated",
	}, nil
}
