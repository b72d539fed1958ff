package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	paytypes "github.com/paywall402/paywall402/types"
)

func TestCreateListingTableQuery(t *testing.T) {
	query := CreateListingTableQuery()
	for _, col := range []string{
		"id TEXT PRIMARY KEY",
		"price_amount NUMERIC NOT NULL",
		"recipient_address TEXT NOT NULL",
		"expires_at TIMESTAMPTZ",
		"payment_count BIGINT NOT NULL DEFAULT 0",
		"view_count BIGINT NOT NULL DEFAULT 0",
	} {
		if !strings.Contains(query, col) {
			t.Errorf("listing table query missing %q", col)
		}
	}
}

func TestCreatePaymentTableQuery(t *testing.T) {
	query := CreatePaymentTableQuery()

	if !strings.Contains(query, "transaction_signature TEXT PRIMARY KEY") {
		t.Error("signature must be the primary key")
	}
	if !strings.Contains(query, "ON DELETE CASCADE") {
		t.Error("payment rows must cascade with their listing")
	}
	if !strings.Contains(query, listingTableName) {
		t.Error("foreign key must reference the listing table")
	}
}

func TestCreatePaymentTableIndicesQuery(t *testing.T) {
	if !strings.Contains(CreatePaymentTableIndicesQuery(), "content_id") {
		t.Error("payments must be indexed by content id")
	}
}

func TestListingRowRoundTrip(t *testing.T) {
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	row := &listingRow{
		ID:               "content-1",
		PriceAmount:      decimal.RequireFromString("3.25"),
		PriceCurrency:    "USDC",
		RecipientAddress: "Recipient11111111111111111111111111111111111",
		ExpiresAt:        &expiry,
		PaymentCount:     4,
		ViewCount:        9,
		CreatedAt:        time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	}

	listing := row.toListing()
	if listing.ID != row.ID {
		t.Errorf("id = %s", listing.ID)
	}
	if !listing.PriceAmount.Equal(row.PriceAmount) {
		t.Errorf("price = %s", listing.PriceAmount)
	}
	if listing.ExpiresAt == nil || !listing.ExpiresAt.Equal(expiry) {
		t.Errorf("expiresAt = %v", listing.ExpiresAt)
	}
	if listing.PaymentCount != 4 || listing.ViewCount != 9 {
		t.Errorf("counters = %d, %d", listing.PaymentCount, listing.ViewCount)
	}
}

func TestPaymentRowRoundTrip(t *testing.T) {
	row := &paymentRow{
		TransactionSignature: testSignature,
		ContentID:            "content-1",
		PayerAddress:         testPayer,
		Amount:               decimal.RequireFromString("3.25"),
		Status:               "completed",
		PaidAt:               time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	}

	record := row.toRecord()
	if record.TransactionSignature != testSignature {
		t.Errorf("signature = %s", record.TransactionSignature)
	}
	if record.Status != paytypes.PaymentStatusCompleted {
		t.Errorf("status = %s", record.Status)
	}
	if !record.Amount.Equal(row.Amount) {
		t.Errorf("amount = %s", record.Amount)
	}
}
