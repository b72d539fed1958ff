package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	paytypes "github.com/paywall402/paywall402/types"
)

// flakyPaymentStore fails RecordPayment a fixed number of times before
// delegating to the wrapped store.
type flakyPaymentStore struct {
	inner    PaymentStore
	failures int
	failWith error
	attempts int
}

func (f *flakyPaymentStore) RecordPayment(
	ctx context.Context,
	contentID string,
	payerAddress string,
	amount decimal.Decimal,
	signature string,
) (*paytypes.PaymentRecord, error) {
	f.attempts++
	if f.attempts <= f.failures {
		return nil, f.failWith
	}
	return f.inner.RecordPayment(ctx, contentID, payerAddress, amount, signature)
}

func (f *flakyPaymentStore) GetPayment(ctx context.Context, signature string) (*paytypes.PaymentRecord, error) {
	return f.inner.GetPayment(ctx, signature)
}

func transientErr() error {
	return fmt.Errorf("record payment: %w", paytypes.ErrStorageUnavailable)
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	inner := newStoreWithListing(t)
	flaky := &flakyPaymentStore{inner: inner, failures: 2, failWith: transientErr()}
	store := NewRetryingPaymentStore(flaky, 3, time.Millisecond)

	record, err := store.RecordPayment(context.Background(), testContentID, testPayer, decimal.RequireFromString("1.00"), testSignature)
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if record == nil || record.TransactionSignature != testSignature {
		t.Fatalf("unexpected record: %+v", record)
	}
	if flaky.attempts != 3 {
		t.Errorf("attempts = %d, want 3", flaky.attempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("constraint violation")
	flaky := &flakyPaymentStore{inner: NewMemoryPersister(), failures: 10, failWith: permanent}
	store := NewRetryingPaymentStore(flaky, 5, time.Millisecond)

	_, err := store.RecordPayment(context.Background(), testContentID, testPayer, decimal.RequireFromString("1.00"), testSignature)
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if flaky.attempts != 1 {
		t.Errorf("attempts = %d, want 1", flaky.attempts)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	flaky := &flakyPaymentStore{inner: NewMemoryPersister(), failures: 10, failWith: transientErr()}
	store := NewRetryingPaymentStore(flaky, 2, time.Millisecond)

	_, err := store.RecordPayment(context.Background(), testContentID, testPayer, decimal.RequireFromString("1.00"), testSignature)
	if !errors.Is(err, paytypes.ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
	// initial attempt plus two retries
	if flaky.attempts != 3 {
		t.Errorf("attempts = %d, want 3", flaky.attempts)
	}
}

func TestRetryReadsDelegate(t *testing.T) {
	inner := newStoreWithListing(t)
	store := NewRetryingPaymentStore(inner, 3, time.Millisecond)

	if _, err := inner.RecordPayment(context.Background(), testContentID, testPayer, decimal.RequireFromString("1.00"), testSignature); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	record, err := store.GetPayment(context.Background(), testSignature)
	if err != nil || record == nil {
		t.Fatalf("GetPayment = %+v, %v", record, err)
	}
}

func TestRetryDoesNotRepeatSignatureReuse(t *testing.T) {
	flaky := &flakyPaymentStore{inner: NewMemoryPersister(), failures: 10, failWith: paytypes.ErrSignatureAlreadyUsed}
	store := NewRetryingPaymentStore(flaky, 5, time.Millisecond)

	_, err := store.RecordPayment(context.Background(), testContentID, testPayer, decimal.RequireFromString("1.00"), testSignature)
	if !errors.Is(err, paytypes.ErrSignatureAlreadyUsed) {
		t.Fatalf("expected ErrSignatureAlreadyUsed, got %v", err)
	}
	if flaky.attempts != 1 {
		t.Errorf("attempts = %d, want 1", flaky.attempts)
	}
}
