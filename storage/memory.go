package storage

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	paytypes "github.com/paywall402/paywall402/types"
)

// MemoryPersister is an in-process Store used by tests and simulated
// environments. The mutex covers only the local map access; it is never
// held across external calls.
type MemoryPersister struct {
	mu       sync.Mutex
	listings map[string]*paytypes.ContentListing
	payments map[string]*paytypes.PaymentRecord
}

var _ Store = (*MemoryPersister)(nil)

// NewMemoryPersister creates an empty in-memory store.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{
		listings: make(map[string]*paytypes.ContentListing),
		payments: make(map[string]*paytypes.PaymentRecord),
	}
}

func (m *MemoryPersister) Close() error { return nil }

func copyListing(l *paytypes.ContentListing) *paytypes.ContentListing {
	c := *l
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func copyRecord(r *paytypes.PaymentRecord) *paytypes.PaymentRecord {
	c := *r
	return &c
}

// CreateListing stores a copy of the listing.
func (m *MemoryPersister) CreateListing(_ context.Context, listing *paytypes.ContentListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[listing.ID] = copyListing(listing)
	return nil
}

// GetListing returns a copy of the stored listing.
func (m *MemoryPersister) GetListing(_ context.Context, contentID string) (*paytypes.ContentListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, ok := m.listings[contentID]
	if !ok {
		return nil, paytypes.ErrListingNotFound
	}
	return copyListing(listing), nil
}

// DeleteListing removes the listing and cascades its payment records.
func (m *MemoryPersister) DeleteListing(_ context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.listings[contentID]; !ok {
		return paytypes.ErrListingNotFound
	}
	delete(m.listings, contentID)

	for sig, record := range m.payments {
		if record.ContentID == contentID {
			delete(m.payments, sig)
		}
	}
	return nil
}

// IncrementViewCount bumps the view counter.
func (m *MemoryPersister) IncrementViewCount(_ context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, ok := m.listings[contentID]
	if !ok {
		return paytypes.ErrListingNotFound
	}
	listing.ViewCount++
	return nil
}

// DeleteExpired sweeps listings past their expiry, cascading their
// payment records. The returned count is the number actually removed.
func (m *MemoryPersister) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var swept int64
	for id, listing := range m.listings {
		if !listing.Expired(now) {
			continue
		}
		delete(m.listings, id)
		for sig, record := range m.payments {
			if record.ContentID == id {
				delete(m.payments, sig)
			}
		}
		swept++
	}
	return swept, nil
}

// RecordPayment applies the same at-most-once contract as the postgres
// persister: an existing signature returns the stored record unchanged
// when it belongs to the same content, and fails with
// ErrSignatureAlreadyUsed when it belongs to another item.
func (m *MemoryPersister) RecordPayment(
	_ context.Context,
	contentID string,
	payerAddress string,
	amount decimal.Decimal,
	signature string,
) (*paytypes.PaymentRecord, error) {
	if payerAddress == "" {
		payerAddress = paytypes.PayerUnknown
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.payments[signature]; ok {
		if existing.ContentID != contentID {
			return nil, paytypes.ErrSignatureAlreadyUsed
		}
		return copyRecord(existing), nil
	}

	record := &paytypes.PaymentRecord{
		TransactionSignature: signature,
		ContentID:            contentID,
		PayerAddress:         payerAddress,
		Amount:               amount,
		Status:               paytypes.PaymentStatusCompleted,
		PaidAt:               time.Now().UTC(),
	}
	m.payments[signature] = record

	if listing, ok := m.listings[contentID]; ok {
		listing.PaymentCount++
	}

	return copyRecord(record), nil
}

// GetPayment returns a copy of the record, or nil when absent.
func (m *MemoryPersister) GetPayment(_ context.Context, signature string) (*paytypes.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.payments[signature]
	if !ok {
		return nil, nil
	}
	return copyRecord(record), nil
}
