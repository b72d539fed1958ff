// Package paywall402 gates content behind verified on-chain stablecoin
// payments. It issues payment challenges, independently verifies
// claimed transactions against finalized ledger state, records accepted
// payments at most once per signature, and mints the signed access
// credentials content delivery trusts.
package paywall402

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paywall402/paywall402/challenge"
	"github.com/paywall402/paywall402/clients"
	"github.com/paywall402/paywall402/credential"
	"github.com/paywall402/paywall402/logger"
	"github.com/paywall402/paywall402/metrics"
	"github.com/paywall402/paywall402/storage"
	paytypes "github.com/paywall402/paywall402/types"
	"github.com/paywall402/paywall402/utils"
	"github.com/paywall402/paywall402/verification"
)

// Paywall wires the payment-gating core together. All collaborators are
// explicitly constructed and injected; there is no ambient global
// state, so every piece can be replaced by a test double.
type Paywall struct {
	cfg        *paytypes.Config
	store      storage.Store
	payments   storage.PaymentStore
	ledger     clients.LedgerClient
	ownsLedger bool
	verifier   *verification.Service
	challenges *challenge.Generator
	issuer     *credential.Issuer
	log        logger.Logger
	metrics    metrics.Recorder
	now        func() time.Time
}

// New creates a Paywall instance around the given store. The
// verification strategy is fixed here, at startup, by cfg.Mode; request
// content can never select it.
func New(cfg *paytypes.Config, store storage.Store, opts ...Option) (*Paywall, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &Paywall{
		cfg:     cfg,
		store:   store,
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	var strategy verification.Strategy
	switch cfg.Mode {
	case paytypes.ModeSimulated:
		strategy = verification.NewSimulatedStrategy(p.log)
	default:
		if p.ledger == nil {
			ledger, err := clients.NewSolanaClient(cfg.RPCUrl, cfg.LedgerTimeout)
			if err != nil {
				return nil, fmt.Errorf("failed to create ledger client: %w", err)
			}
			p.ledger = ledger
			p.ownsLedger = true
		}
		strategy = verification.NewLedgerStrategy(
			p.ledger,
			cfg.PaymentTokenMint,
			cfg.TolerancePercent,
			cfg.ToleranceFloor,
			p.log,
		)
	}

	p.verifier = verification.NewService(store, strategy, cfg.LedgerTimeout)
	p.verifier.SetClock(func() time.Time { return p.now() })

	p.challenges = challenge.NewGenerator(store, cfg.PaymentTokenMint)
	p.challenges.SetClock(func() time.Time { return p.now() })

	issuer, err := credential.NewIssuer(cfg.SigningSecret, cfg.CredentialTTL)
	if err != nil {
		return nil, err
	}
	issuer.SetClock(func() time.Time { return p.now() })
	p.issuer = issuer

	p.payments = storage.NewRetryingPaymentStore(store, cfg.StorageRetryAttempts, 0)

	return p, nil
}

// CreateListing registers priced content. The price must sit inside the
// platform bounds and the recipient address is immutable once set.
func (p *Paywall) CreateListing(ctx context.Context, req *paytypes.CreateListingRequest) (*paytypes.ContentListing, error) {
	price, err := utils.ValidateAmount(req.PriceAmount)
	if err != nil {
		return nil, paytypes.NewPaywallError(paytypes.ErrCodeInvalidRequest, err.Error())
	}
	if err := utils.ValidatePriceBounds(*price, p.cfg.PriceMin, p.cfg.PriceMax); err != nil {
		return nil, paytypes.NewPaywallError(paytypes.ErrCodeInvalidRequest, err.Error())
	}
	if err := utils.ValidateRecipientAddress(req.RecipientAddress); err != nil {
		return nil, paytypes.NewPaywallError(paytypes.ErrCodeInvalidRequest, err.Error())
	}

	listing := &paytypes.ContentListing{
		ID:               uuid.NewString(),
		PriceAmount:      *price,
		PriceCurrency:    p.cfg.PaymentTokenMint,
		RecipientAddress: req.RecipientAddress,
		ExpiresAt:        req.ExpiresAt,
		CreatedAt:        p.now().UTC(),
	}

	if err := p.store.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	p.log.Info("listing created", map[string]any{
		"contentId": listing.ID,
		"price":     listing.PriceAmount.String(),
	})

	return listing, nil
}

// CreateChallenge returns the payment instructions for a content item.
func (p *Paywall) CreateChallenge(ctx context.Context, contentID string) (*paytypes.PaymentChallenge, error) {
	if err := utils.ValidateContentID(contentID); err != nil {
		return nil, paytypes.NewPaywallError(paytypes.ErrCodeInvalidContentID, err.Error())
	}

	ch, err := p.challenges.CreateChallenge(ctx, contentID)
	if err != nil {
		switch {
		case errors.Is(err, paytypes.ErrListingNotFound):
			return nil, paytypes.NewPaywallError(paytypes.ErrCodeContentNotFound, fmt.Sprintf("content %s not found", contentID))
		case errors.Is(err, paytypes.ErrListingExpired):
			return nil, paytypes.NewPaywallError(paytypes.ErrCodeContentExpired, fmt.Sprintf("content %s is expired", contentID))
		}
		return nil, err
	}

	return ch, nil
}

// VerifyPayment runs the full verification flow: input checks, listing
// resolution, ledger verification, idempotent recording, and credential
// issuance. Business-rule rejections come back inside the response;
// infrastructure failures come back as an error so callers can retry
// the whole attempt after backoff.
func (p *Paywall) VerifyPayment(ctx context.Context, req *paytypes.VerifyPaymentRequest) (*paytypes.VerifyPaymentResponse, error) {
	started := p.now()

	resp, err := p.verifyPayment(ctx, req)

	outcome := "error"
	if err == nil {
		if resp.Verified {
			outcome = "verified"
		} else {
			outcome = resp.ErrorCode
		}
	}
	p.metrics.IncCounter("verification", map[string]string{"outcome": outcome})
	p.metrics.ObserveLatency("verify", p.now().Sub(started), map[string]string{"outcome": outcome})

	return resp, err
}

func (p *Paywall) verifyPayment(ctx context.Context, req *paytypes.VerifyPaymentRequest) (*paytypes.VerifyPaymentResponse, error) {
	if err := utils.ValidateVerifyPaymentRequest(req); err != nil {
		var pwErr *paytypes.PaywallError
		if errors.As(err, &pwErr) {
			return rejection(pwErr.Code, pwErr.Message), nil
		}
		return rejection(paytypes.ErrCodeInvalidRequest, err.Error()), nil
	}
	// Signature shape only matters when the ledger will be asked about
	// it; simulated environments use synthetic signatures.
	if p.cfg.Mode == paytypes.ModeLedger {
		if err := utils.ValidateTransactionSignature(req.TransactionSignature); err != nil {
			return rejection(paytypes.ErrCodeInvalidSignature, err.Error()), nil
		}
	}

	// One signature buys one item. A signature already bound to other
	// content is rejected before the ledger is consulted.
	existing, err := p.payments.GetPayment(ctx, req.TransactionSignature)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ContentID != req.ContentID {
		p.log.Warn("signature replay across content rejected", map[string]any{
			"contentId": req.ContentID,
			"signature": req.TransactionSignature,
			"boundTo":   existing.ContentID,
		})
		return rejection(paytypes.ErrCodeSignatureAlreadyUsed, "transaction signature already used for other content"), nil
	}

	details, _, err := p.verifier.Verify(ctx, req.TransactionSignature, req.ContentID)
	if err != nil {
		var rejected *paytypes.PaywallError
		if errors.As(err, &rejected) {
			p.log.Info("payment rejected", map[string]any{
				"contentId": req.ContentID,
				"signature": req.TransactionSignature,
				"code":      rejected.Code,
			})
			resp := rejection(rejected.Code, rejected.Message)
			return resp, nil
		}
		return nil, err
	}

	resp := &paytypes.VerifyPaymentResponse{
		Verified: true,
		Details:  details,
		Recorded: true,
	}

	_, recordErr := p.payments.RecordPayment(ctx, req.ContentID, req.PayerWallet, details.Amount, req.TransactionSignature)
	if errors.Is(recordErr, paytypes.ErrSignatureAlreadyUsed) {
		// A concurrent attempt bound the signature to other content
		// between the replay check and the write.
		return rejection(paytypes.ErrCodeSignatureAlreadyUsed, "transaction signature already used for other content"), nil
	}
	if recordErr != nil {
		// The payment is real; losing the record is an operational
		// problem, not a verification failure. Surface it distinctly so
		// tooling reconciles instead of asking the payer to pay again.
		p.log.Error("verified payment could not be recorded", map[string]any{
			"contentId": req.ContentID,
			"signature": req.TransactionSignature,
			"error":     recordErr.Error(),
		})
		resp.Recorded = false
		resp.ErrorCode = paytypes.ErrCodeStorageError
		resp.Error = "payment verified but not yet recorded"
	}

	token, err := p.issuer.Issue(req.ContentID, req.TransactionSignature, payerOrUnknown(req.PayerWallet))
	if err != nil {
		return nil, fmt.Errorf("failed to issue access credential: %w", err)
	}
	resp.AccessToken = token

	p.log.Info("payment verified", map[string]any{
		"contentId": req.ContentID,
		"signature": req.TransactionSignature,
		"amount":    details.Amount.String(),
		"matchTier": details.MatchTier,
		"recorded":  resp.Recorded,
	})

	return resp, nil
}

// ValidateAccess checks an access credential against a content request.
// Callers must report any failure as a generic access denial; the
// specific failed check stays server-side.
func (p *Paywall) ValidateAccess(token, contentID string) (*credential.Claims, error) {
	return p.issuer.ValidateForContent(token, contentID)
}

// RecordView bumps the view counter for delivered content.
func (p *Paywall) RecordView(ctx context.Context, contentID string) error {
	return p.store.IncrementViewCount(ctx, contentID)
}

// GetListing fetches a listing by id.
func (p *Paywall) GetListing(ctx context.Context, contentID string) (*paytypes.ContentListing, error) {
	return p.store.GetListing(ctx, contentID)
}

// DeleteListing removes a listing and cascades its payment records.
// Previously issued credentials stay valid until they expire.
func (p *Paywall) DeleteListing(ctx context.Context, contentID string) error {
	return p.store.DeleteListing(ctx, contentID)
}

// SweepExpired removes listings past their expiry.
func (p *Paywall) SweepExpired(ctx context.Context) (int64, error) {
	n, err := p.store.DeleteExpired(ctx, p.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.log.Info("expired listings swept", map[string]any{"count": n})
	}
	return n, nil
}

// Close releases the ledger client if this instance created it. The
// store is owned by the caller.
func (p *Paywall) Close() {
	if p.ownsLedger && p.ledger != nil {
		p.ledger.Close()
	}
}

func rejection(code, message string) *paytypes.VerifyPaymentResponse {
	return &paytypes.VerifyPaymentResponse{
		Verified:  false,
		Error:     message,
		ErrorCode: code,
	}
}

func payerOrUnknown(payer string) string {
	if payer == "" {
		return paytypes.PayerUnknown
	}
	return payer
}
