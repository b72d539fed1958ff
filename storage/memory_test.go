package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	paytypes "github.com/paywall402/paywall402/types"
)

const (
	testContentID = "content-1"
	testSignature = "5SigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSigSig"
	testPayer     = "PayerWallet111111111111111111111111111111111"
)

func newStoreWithListing(t *testing.T) *MemoryPersister {
	t.Helper()
	store := NewMemoryPersister()
	err := store.CreateListing(context.Background(), &paytypes.ContentListing{
		ID:               testContentID,
		PriceAmount:      decimal.RequireFromString("1.00"),
		PriceCurrency:    "USDC",
		RecipientAddress: "Recipient11111111111111111111111111111111111",
		CreatedAt:        time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	return store
}

func TestRecordPaymentIdempotent(t *testing.T) {
	store := newStoreWithListing(t)
	amount := decimal.RequireFromString("1.00")

	first, err := store.RecordPayment(context.Background(), testContentID, testPayer, amount, testSignature)
	if err != nil {
		t.Fatalf("first RecordPayment: %v", err)
	}

	second, err := store.RecordPayment(context.Background(), testContentID, testPayer, amount, testSignature)
	if err != nil {
		t.Fatalf("second RecordPayment: %v", err)
	}

	if first.TransactionSignature != second.TransactionSignature {
		t.Errorf("records differ across calls")
	}
	if !first.PaidAt.Equal(second.PaidAt) {
		t.Errorf("existing record was mutated")
	}

	listing, err := store.GetListing(context.Background(), testContentID)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if listing.PaymentCount != 1 {
		t.Errorf("paymentCount = %d, want 1", listing.PaymentCount)
	}
}

func TestRecordPaymentDistinctSignatures(t *testing.T) {
	store := newStoreWithListing(t)
	amount := decimal.RequireFromString("1.00")

	otherSig := testSignature[:len(testSignature)-1] + "x"
	if _, err := store.RecordPayment(context.Background(), testContentID, testPayer, amount, testSignature); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if _, err := store.RecordPayment(context.Background(), testContentID, testPayer, amount, otherSig); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	listing, _ := store.GetListing(context.Background(), testContentID)
	if listing.PaymentCount != 2 {
		t.Errorf("paymentCount = %d, want 2", listing.PaymentCount)
	}
}

func TestRecordPaymentUnknownPayer(t *testing.T) {
	store := newStoreWithListing(t)

	record, err := store.RecordPayment(context.Background(), testContentID, "", decimal.RequireFromString("1.00"), testSignature)
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if record.PayerAddress != paytypes.PayerUnknown {
		t.Errorf("payer = %s, want %s", record.PayerAddress, paytypes.PayerUnknown)
	}
	if record.Status != paytypes.PaymentStatusCompleted {
		t.Errorf("status = %s, want %s", record.Status, paytypes.PaymentStatusCompleted)
	}
}

func TestRecordPaymentRejectsReuseAcrossContent(t *testing.T) {
	store := newStoreWithListing(t)
	err := store.CreateListing(context.Background(), &paytypes.ContentListing{
		ID:               "content-2",
		PriceAmount:      decimal.RequireFromString("1.00"),
		RecipientAddress: "Recipient11111111111111111111111111111111111",
	})
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}

	if _, err := store.RecordPayment(context.Background(), testContentID, testPayer, decimal.RequireFromString("1.00"), testSignature); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	_, err = store.RecordPayment(context.Background(), "content-2", testPayer, decimal.RequireFromString("1.00"), testSignature)
	if !errors.Is(err, paytypes.ErrSignatureAlreadyUsed) {
		t.Fatalf("expected ErrSignatureAlreadyUsed, got %v", err)
	}

	record, err := store.GetPayment(context.Background(), testSignature)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if record.ContentID != testContentID {
		t.Errorf("record rebound to %s", record.ContentID)
	}

	other, _ := store.GetListing(context.Background(), "content-2")
	if other.PaymentCount != 0 {
		t.Errorf("paymentCount = %d, want 0", other.PaymentCount)
	}
}

func TestDeleteListingCascades(t *testing.T) {
	store := newStoreWithListing(t)

	if _, err := store.RecordPayment(context.Background(), testContentID, testPayer, decimal.RequireFromString("1.00"), testSignature); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	if err := store.DeleteListing(context.Background(), testContentID); err != nil {
		t.Fatalf("DeleteListing: %v", err)
	}

	if _, err := store.GetListing(context.Background(), testContentID); err != paytypes.ErrListingNotFound {
		t.Errorf("expected ErrListingNotFound, got %v", err)
	}

	record, err := store.GetPayment(context.Background(), testSignature)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if record != nil {
		t.Errorf("payment record survived cascade")
	}
}

func TestIncrementViewCount(t *testing.T) {
	store := newStoreWithListing(t)

	for i := 0; i < 3; i++ {
		if err := store.IncrementViewCount(context.Background(), testContentID); err != nil {
			t.Fatalf("IncrementViewCount: %v", err)
		}
	}

	listing, _ := store.GetListing(context.Background(), testContentID)
	if listing.ViewCount != 3 {
		t.Errorf("viewCount = %d, want 3", listing.ViewCount)
	}

	if err := store.IncrementViewCount(context.Background(), "missing"); err != paytypes.ErrListingNotFound {
		t.Errorf("expected ErrListingNotFound, got %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	store := newStoreWithListing(t)

	past := time.Now().Add(-time.Hour)
	for _, id := range []string{"expired-1", "expired-2"} {
		err := store.CreateListing(context.Background(), &paytypes.ContentListing{
			ID:               id,
			PriceAmount:      decimal.RequireFromString("2.00"),
			RecipientAddress: "Recipient11111111111111111111111111111111111",
			ExpiresAt:        &past,
		})
		if err != nil {
			t.Fatalf("CreateListing: %v", err)
		}
	}
	if _, err := store.RecordPayment(context.Background(), "expired-1", testPayer, decimal.RequireFromString("2.00"), testSignature); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	n, err := store.DeleteExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("swept = %d, want 2", n)
	}

	if _, err := store.GetListing(context.Background(), testContentID); err != nil {
		t.Errorf("unexpired listing swept: %v", err)
	}
	record, err := store.GetPayment(context.Background(), testSignature)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if record != nil {
		t.Errorf("payment record survived sweep")
	}
}
