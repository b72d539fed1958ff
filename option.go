package paywall402

import (
	"time"

	"github.com/paywall402/paywall402/clients"
	"github.com/paywall402/paywall402/logger"
	"github.com/paywall402/paywall402/metrics"
)

type Option func(*Paywall)

func WithLogger(l logger.Logger) Option {
	return func(p *Paywall) {
		p.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *Paywall) {
		p.metrics = r
	}
}

// WithLedgerClient substitutes the ledger connector. Used by tests and
// by callers managing the client lifecycle themselves.
func WithLedgerClient(c clients.LedgerClient) Option {
	return func(p *Paywall) {
		p.ledger = c
	}
}

// WithClock overrides the time source used for expiry checks and
// credential lifetimes.
func WithClock(now func() time.Time) Option {
	return func(p *Paywall) {
		p.now = now
	}
}
