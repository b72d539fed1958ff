package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	paytypes "github.com/paywall402/paywall402/types"
)

const testRecipient = "Recipient11111111111111111111111111111111111"

type fakeListings struct {
	listings map[string]*paytypes.ContentListing
	err      error
}

func (f *fakeListings) GetListing(_ context.Context, contentID string) (*paytypes.ContentListing, error) {
	if f.err != nil {
		return nil, f.err
	}
	listing, ok := f.listings[contentID]
	if !ok {
		return nil, paytypes.ErrListingNotFound
	}
	return listing, nil
}

func TestCreateChallengeQuotesListing(t *testing.T) {
	source := &fakeListings{listings: map[string]*paytypes.ContentListing{
		"content-1": {
			ID:               "content-1",
			PriceAmount:      decimal.RequireFromString("2.50"),
			RecipientAddress: testRecipient,
		},
	}}
	gen := NewGenerator(source, "USDC")

	ch, err := gen.CreateChallenge(context.Background(), "content-1")
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	if ch.ContentID != "content-1" {
		t.Errorf("contentID = %s", ch.ContentID)
	}
	if !ch.Amount.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("amount = %s, want 2.50", ch.Amount)
	}
	if ch.Currency != "USDC" {
		t.Errorf("currency = %s", ch.Currency)
	}
	if ch.RecipientAddress != testRecipient {
		t.Errorf("recipient = %s", ch.RecipientAddress)
	}
	if ch.Reference == "" {
		t.Error("reference is empty")
	}

	second, err := gen.CreateChallenge(context.Background(), "content-1")
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	if second.Reference == ch.Reference {
		t.Error("references should be unique per challenge")
	}
}

func TestCreateChallengeNotFound(t *testing.T) {
	gen := NewGenerator(&fakeListings{listings: map[string]*paytypes.ContentListing{}}, "USDC")

	_, err := gen.CreateChallenge(context.Background(), "missing")
	if !errors.Is(err, paytypes.ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

func TestCreateChallengeExpired(t *testing.T) {
	expiry := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeListings{listings: map[string]*paytypes.ContentListing{
		"content-1": {
			ID:               "content-1",
			PriceAmount:      decimal.RequireFromString("1.00"),
			RecipientAddress: testRecipient,
			ExpiresAt:        &expiry,
		},
	}}
	gen := NewGenerator(source, "USDC")
	gen.SetClock(func() time.Time { return expiry.Add(time.Minute) })

	_, err := gen.CreateChallenge(context.Background(), "content-1")
	if !errors.Is(err, paytypes.ErrListingExpired) {
		t.Fatalf("expected ErrListingExpired, got %v", err)
	}
}

func TestCreateChallengeStorageFailure(t *testing.T) {
	gen := NewGenerator(&fakeListings{err: paytypes.ErrStorageUnavailable}, "USDC")

	_, err := gen.CreateChallenge(context.Background(), "content-1")
	if !errors.Is(err, paytypes.ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
