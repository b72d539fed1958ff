package verification

import (
	paytypes "github.com/paywall402/paywall402/types"
)

// MatchTier identifies which tier of the recipient matcher located the
// credited transfer.
type MatchTier string

const (
	// MatchedByOwner means a delta's owning account equals the expected
	// recipient directly.
	MatchedByOwner MatchTier = "owner"

	// MatchedByAccountKey means no delta owner matched, but the expected
	// recipient appears among the transaction's referenced accounts and
	// a positive-change delta was accepted on that basis. This tier is a
	// deliberate leniency for relayed transfers and widens the
	// acceptance surface; callers must log when it fires.
	MatchedByAccountKey MatchTier = "account_key"
)

// MatchRecipient locates the delta crediting the expected recipient.
//
// Tier one requires owner equality and a positive change. Tier two
// fires only when the recipient address is referenced anywhere in the
// transaction's account keys: the first positive-change delta is then
// accepted as the candidate. Returns ok=false when neither tier finds
// a candidate.
func MatchRecipient(
	deltas []paytypes.TransferDelta,
	record *paytypes.TransactionRecord,
	recipient string,
) (paytypes.TransferDelta, MatchTier, bool) {
	for _, d := range deltas {
		if d.OwnerAddress == recipient && d.BalanceChange.IsPositive() {
			return d, MatchedByOwner, true
		}
	}

	if record.HasAccount(recipient) {
		for _, d := range deltas {
			if d.BalanceChange.IsPositive() {
				return d, MatchedByAccountKey, true
			}
		}
	}

	return paytypes.TransferDelta{}, "", false
}
