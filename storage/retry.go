package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	paytypes "github.com/paywall402/paywall402/types"
)

// RetryingPaymentStore wraps a PaymentStore with a bounded exponential
// backoff around RecordPayment. Only transient storage failures are
// retried; the wrapped call is idempotent on signature, so repeating it
// is safe. Reads pass through unwrapped.
type RetryingPaymentStore struct {
	inner       PaymentStore
	maxAttempts uint64
	baseDelay   time.Duration
}

var _ PaymentStore = (*RetryingPaymentStore)(nil)

// NewRetryingPaymentStore builds the retry decorator. maxAttempts
// counts retries after the first attempt; a zero baseDelay uses the
// backoff default.
func NewRetryingPaymentStore(inner PaymentStore, maxAttempts uint64, baseDelay time.Duration) *RetryingPaymentStore {
	return &RetryingPaymentStore{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// RecordPayment retries the inner write on transient failures.
func (r *RetryingPaymentStore) RecordPayment(
	ctx context.Context,
	contentID string,
	payerAddress string,
	amount decimal.Decimal,
	signature string,
) (*paytypes.PaymentRecord, error) {
	var record *paytypes.PaymentRecord

	op := func() error {
		var err error
		record, err = r.inner.RecordPayment(ctx, contentID, payerAddress, amount, signature)
		if err == nil {
			return nil
		}
		if errors.Is(err, paytypes.ErrStorageUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	if r.baseDelay > 0 {
		bo.InitialInterval = r.baseDelay
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, r.maxAttempts), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}

	return record, nil
}

// GetPayment delegates without retry.
func (r *RetryingPaymentStore) GetPayment(ctx context.Context, signature string) (*paytypes.PaymentRecord, error) {
	return r.inner.GetPayment(ctx, signature)
}
