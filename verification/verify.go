package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	paytypes "github.com/paywall402/paywall402/types"
)

// ListingSource resolves content ids to listings. Satisfied by the
// storage persisters; narrowed here so the verifier can be exercised
// with test doubles.
type ListingSource interface {
	GetListing(ctx context.Context, contentID string) (*paytypes.ContentListing, error)
}

// Service applies the ordered verification rules for one payment claim.
// Listing checks run before any ledger access: cheap rejects first.
type Service struct {
	listings ListingSource
	strategy Strategy
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a verification service with the given strategy.
func NewService(listings ListingSource, strategy Strategy, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = paytypes.DefaultLedgerTimeout
	}
	return &Service{
		listings: listings,
		strategy: strategy,
		timeout:  timeout,
		now:      time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Verify resolves the listing and delegates the transaction checks to
// the configured strategy. Returns the verified details, the listing,
// and an error: *types.PaywallError for terminal rejections, a wrapped
// infrastructure sentinel otherwise.
func (s *Service) Verify(
	ctx context.Context,
	signature string,
	contentID string,
) (*paytypes.VerifiedPayment, *paytypes.ContentListing, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	listing, err := s.listings.GetListing(verifyCtx, contentID)
	if err != nil {
		if errors.Is(err, paytypes.ErrListingNotFound) {
			return nil, nil, paytypes.NewPaywallError(
				paytypes.ErrCodeContentNotFound,
				fmt.Sprintf("content %s not found", contentID),
			)
		}
		return nil, nil, fmt.Errorf("%w: %v", paytypes.ErrStorageUnavailable, err)
	}

	if listing.Expired(s.now()) {
		return nil, nil, paytypes.NewPaywallError(
			paytypes.ErrCodeContentExpired,
			fmt.Sprintf("content %s is expired", contentID),
		)
	}

	details, err := s.strategy.Verify(verifyCtx, signature, listing)
	if err != nil {
		return nil, listing, err
	}

	return details, listing, nil
}
