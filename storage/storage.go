// Package storage persists content listings and payment records. The
// payment table is the replay-protection boundary: one row per
// transaction signature, ever.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	paytypes "github.com/paywall402/paywall402/types"
)

// ListingStore persists content listings.
type ListingStore interface {
	// CreateListing inserts a new listing.
	CreateListing(ctx context.Context, listing *paytypes.ContentListing) error

	// GetListing returns the listing or types.ErrListingNotFound.
	GetListing(ctx context.Context, contentID string) (*paytypes.ContentListing, error)

	// DeleteListing removes a listing; its payment records cascade.
	DeleteListing(ctx context.Context, contentID string) error

	// IncrementViewCount bumps the view counter by one.
	IncrementViewCount(ctx context.Context, contentID string) error

	// DeleteExpired removes listings whose expiry is before now and
	// returns how many were swept.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PaymentStore persists verified payments, idempotent on signature.
type PaymentStore interface {
	// RecordPayment inserts one payment record and increments the
	// listing's payment counter, atomically. If a record already exists
	// for the signature and the same content, the existing record is
	// returned unchanged and no counter moves; if it exists for other
	// content the call fails with types.ErrSignatureAlreadyUsed.
	// Infrastructure failures wrap types.ErrStorageUnavailable.
	RecordPayment(ctx context.Context, contentID, payerAddress string, amount decimal.Decimal, signature string) (*paytypes.PaymentRecord, error)

	// GetPayment returns the record for a signature, or nil when none
	// exists.
	GetPayment(ctx context.Context, signature string) (*paytypes.PaymentRecord, error)
}

// Store combines both persistence surfaces.
type Store interface {
	ListingStore
	PaymentStore
	Close() error
}
