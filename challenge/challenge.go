// Package challenge produces the payment instructions a client must
// satisfy on-chain. A challenge is a stateless quote: nothing is
// reserved or locked, and the server only needs to recognize a valid
// payment later.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	paytypes "github.com/paywall402/paywall402/types"
	"github.com/paywall402/paywall402/verification"
)

// Generator builds payment challenges from listings.
type Generator struct {
	listings verification.ListingSource
	currency string
	now      func() time.Time
}

// NewGenerator creates a challenge generator. currency is the platform
// payment token identifier quoted to clients.
func NewGenerator(listings verification.ListingSource, currency string) *Generator {
	return &Generator{
		listings: listings,
		currency: currency,
		now:      time.Now,
	}
}

// SetClock overrides the generator clock. Test hook.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// CreateChallenge returns the quote for a content item. Fails with
// types.ErrListingNotFound for unknown content and
// types.ErrListingExpired once the listing is past its expiry.
func (g *Generator) CreateChallenge(ctx context.Context, contentID string) (*paytypes.PaymentChallenge, error) {
	listing, err := g.listings.GetListing(ctx, contentID)
	if err != nil {
		if errors.Is(err, paytypes.ErrListingNotFound) {
			return nil, paytypes.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to resolve listing %s: %w", contentID, err)
	}

	if listing.Expired(g.now()) {
		return nil, paytypes.ErrListingExpired
	}

	return &paytypes.PaymentChallenge{
		ContentID:        listing.ID,
		Amount:           listing.PriceAmount,
		Currency:         g.currency,
		RecipientAddress: listing.RecipientAddress,
		Reference:        uuid.NewString(),
	}, nil
}
