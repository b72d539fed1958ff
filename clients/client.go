// Package clients provides read-only ledger connectors. The core never
// builds or broadcasts transactions; it only fetches finalized records.
package clients

import (
	"context"

	paytypes "github.com/paywall402/paywall402/types"
)

// LedgerClient fetches finalized transaction records by signature.
type LedgerClient interface {
	// FetchTransaction returns the finalized record for the signature.
	// It returns types.ErrTransactionNotFound when the ledger answered
	// and no such transaction exists, and types.ErrLedgerUnavailable
	// (wrapped) on RPC or network failure.
	FetchTransaction(ctx context.Context, signature string) (*paytypes.TransactionRecord, error)

	Close()
}
