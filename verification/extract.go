package verification

import (
	"sort"

	"github.com/shopspring/decimal"

	paytypes "github.com/paywall402/paywall402/types"
)

// ExtractTransfers computes the net balance change of every token
// account a transaction touched, filtered to a single mint. Accounts
// with no pre-balance entry are treated as starting from zero (a token
// account created by this transaction). Accounts with zero net change
// are dropped.
//
// Pure function: the same record and filter always produce the same
// deltas, in ascending account-index order.
func ExtractTransfers(record *paytypes.TransactionRecord, tokenMint string) []paytypes.TransferDelta {
	type balanceKey struct {
		index uint16
	}

	pre := make(map[balanceKey]paytypes.TokenBalance, len(record.PreTokenBalances))
	for _, b := range record.PreTokenBalances {
		if b.TokenMint != tokenMint {
			continue
		}
		pre[balanceKey{b.AccountIndex}] = b
	}

	deltas := make([]paytypes.TransferDelta, 0, len(record.PostTokenBalances))
	seen := make(map[balanceKey]bool, len(record.PostTokenBalances))

	for _, post := range record.PostTokenBalances {
		if post.TokenMint != tokenMint {
			continue
		}

		key := balanceKey{post.AccountIndex}
		seen[key] = true

		before := decimal.Zero
		if p, ok := pre[key]; ok {
			before = p.Amount
		}

		change := post.Amount.Sub(before)
		if change.IsZero() {
			continue
		}

		owner := post.OwnerAddress
		if owner == "" {
			if p, ok := pre[key]; ok {
				owner = p.OwnerAddress
			}
		}

		deltas = append(deltas, paytypes.TransferDelta{
			AccountIndex:  post.AccountIndex,
			OwnerAddress:  owner,
			TokenMint:     tokenMint,
			BalanceChange: change,
		})
	}

	// An account drained to zero may appear only in the pre set.
	for key, p := range pre {
		if seen[key] {
			continue
		}
		deltas = append(deltas, paytypes.TransferDelta{
			AccountIndex:  p.AccountIndex,
			OwnerAddress:  p.OwnerAddress,
			TokenMint:     tokenMint,
			BalanceChange: p.Amount.Neg(),
		})
	}

	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i].AccountIndex < deltas[j].AccountIndex
	})

	return deltas
}
