package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	paytypes "github.com/paywall402/paywall402/types"
)

// SolanaClient is a read-only connector to a Solana RPC node. Every
// fetch requests finalized commitment; records that can still be rolled
// back are never returned.
type SolanaClient struct {
	rpcURL  string
	client  *rpc.Client
	timeout time.Duration
}

var _ LedgerClient = (*SolanaClient)(nil)

// NewSolanaClient creates a Solana ledger client.
func NewSolanaClient(rpcURL string, timeout time.Duration) (*SolanaClient, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if timeout <= 0 {
		timeout = paytypes.DefaultLedgerTimeout
	}

	return &SolanaClient{
		rpcURL:  rpcURL,
		client:  rpc.New(rpcURL),
		timeout: timeout,
	}, nil
}

// FetchTransaction fetches a finalized transaction record and
// normalizes it into a types.TransactionRecord.
func (c *SolanaClient) FetchTransaction(
	ctx context.Context,
	signature string,
) (*paytypes.TransactionRecord, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTxVersion := uint64(0)
	out, err := c.client.GetTransaction(fetchCtx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxTxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, paytypes.ErrTransactionNotFound
		}
		// Includes context deadline expiry: the ledger did not answer,
		// which is distinct from "answered: no such transaction".
		return nil, fmt.Errorf("%w: %v", paytypes.ErrLedgerUnavailable, err)
	}
	if out == nil {
		return nil, paytypes.ErrTransactionNotFound
	}

	return normalizeTransaction(signature, out)
}

func (c *SolanaClient) Close() {}

// normalizeTransaction converts an RPC result into the chain-neutral
// record the extractor and verifier operate on.
func normalizeTransaction(
	signature string,
	out *rpc.GetTransactionResult,
) (*paytypes.TransactionRecord, error) {
	record := &paytypes.TransactionRecord{
		Signature: signature,
		Slot:      out.Slot,
	}

	if out.BlockTime != nil {
		t := out.BlockTime.Time()
		record.BlockTime = &t
	}

	if out.Meta != nil {
		record.Failed = out.Meta.Err != nil
		record.PreTokenBalances = normalizeTokenBalances(out.Meta.PreTokenBalances)
		record.PostTokenBalances = normalizeTokenBalances(out.Meta.PostTokenBalances)
	}

	if out.Transaction != nil {
		tx, err := out.Transaction.GetTransaction()
		if err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %w", err)
		}
		record.AccountKeys = make([]string, 0, len(tx.Message.AccountKeys))
		for _, key := range tx.Message.AccountKeys {
			record.AccountKeys = append(record.AccountKeys, key.String())
		}
	}

	return record, nil
}

func normalizeTokenBalances(balances []rpc.TokenBalance) []paytypes.TokenBalance {
	out := make([]paytypes.TokenBalance, 0, len(balances))
	for _, b := range balances {
		if b.UiTokenAmount == nil {
			continue
		}

		amount, err := decimal.NewFromString(b.UiTokenAmount.UiAmountString)
		if err != nil {
			// Raw integer amount plus decimals is the fallback source.
			raw, rawErr := decimal.NewFromString(b.UiTokenAmount.Amount)
			if rawErr != nil {
				continue
			}
			amount = raw.Shift(-int32(b.UiTokenAmount.Decimals))
		}

		owner := ""
		if b.Owner != nil {
			owner = b.Owner.String()
		}

		out = append(out, paytypes.TokenBalance{
			AccountIndex: b.AccountIndex,
			OwnerAddress: owner,
			TokenMint:    b.Mint.String(),
			Amount:       amount,
		})
	}
	return out
}
