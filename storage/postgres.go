package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	_ "github.com/jackc/pgx/v5/stdlib"

	paytypes "github.com/paywall402/paywall402/types"
)

const (
	listingTableName = "content_listings"
	paymentTableName = "payment_records"
)

// CreateListingTableQuery returns the query to create the listings table.
func CreateListingTableQuery() string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s(
			id TEXT PRIMARY KEY,
			price_amount NUMERIC NOT NULL,
			price_currency TEXT NOT NULL,
			recipient_address TEXT NOT NULL,
			expires_at TIMESTAMPTZ,
			payment_count BIGINT NOT NULL DEFAULT 0,
			view_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`, listingTableName)
}

// CreatePaymentTableQuery returns the query to create the payments
// table. The primary key on transaction_signature is the idempotency
// constraint: two racing inserts for the same signature collapse to one
// row at the database, not in application code.
func CreatePaymentTableQuery() string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s(
			transaction_signature TEXT PRIMARY KEY,
			content_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			payer_address TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			status TEXT NOT NULL,
			paid_at TIMESTAMPTZ NOT NULL
		);
	`, paymentTableName, listingTableName)
}

// CreatePaymentTableIndicesQuery returns the query to create indices
// for the payments table.
func CreatePaymentTableIndicesQuery() string {
	return fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS payment_records_content_id_idx ON %s(content_id);
	`, paymentTableName)
}

// PostgresPersister implements Store on PostgreSQL via sqlx.
type PostgresPersister struct {
	db *sqlx.DB
}

var _ Store = (*PostgresPersister)(nil)

// NewPostgresPersister connects to postgres and ensures the schema.
func NewPostgresPersister(dsn string) (*PostgresPersister, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}

	p := &PostgresPersister{db: db}
	if err := p.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return p, nil
}

func (p *PostgresPersister) createTables() error {
	for _, query := range []string{
		CreateListingTableQuery(),
		CreatePaymentTableQuery(),
		CreatePaymentTableIndicesQuery(),
	} {
		if _, err := p.db.Exec(query); err != nil {
			return fmt.Errorf("error creating tables: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (p *PostgresPersister) Close() error {
	return p.db.Close()
}

// listingRow is the postgres shape of a types.ContentListing.
type listingRow struct {
	ID               string          `db:"id"`
	PriceAmount      decimal.Decimal `db:"price_amount"`
	PriceCurrency    string          `db:"price_currency"`
	RecipientAddress string          `db:"recipient_address"`
	ExpiresAt        *time.Time      `db:"expires_at"`
	PaymentCount     int64           `db:"payment_count"`
	ViewCount        int64           `db:"view_count"`
	CreatedAt        time.Time       `db:"created_at"`
}

func (r *listingRow) toListing() *paytypes.ContentListing {
	return &paytypes.ContentListing{
		ID:               r.ID,
		PriceAmount:      r.PriceAmount,
		PriceCurrency:    r.PriceCurrency,
		RecipientAddress: r.RecipientAddress,
		ExpiresAt:        r.ExpiresAt,
		PaymentCount:     r.PaymentCount,
		ViewCount:        r.ViewCount,
		CreatedAt:        r.CreatedAt,
	}
}

// paymentRow is the postgres shape of a types.PaymentRecord.
type paymentRow struct {
	TransactionSignature string          `db:"transaction_signature"`
	ContentID            string          `db:"content_id"`
	PayerAddress         string          `db:"payer_address"`
	Amount               decimal.Decimal `db:"amount"`
	Status               string          `db:"status"`
	PaidAt               time.Time       `db:"paid_at"`
}

func (r *paymentRow) toRecord() *paytypes.PaymentRecord {
	return &paytypes.PaymentRecord{
		TransactionSignature: r.TransactionSignature,
		ContentID:            r.ContentID,
		PayerAddress:         r.PayerAddress,
		Amount:               r.Amount,
		Status:               paytypes.PaymentStatus(r.Status),
		PaidAt:               r.PaidAt,
	}
}

// CreateListing inserts a new listing row.
func (p *PostgresPersister) CreateListing(ctx context.Context, listing *paytypes.ContentListing) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, price_amount, price_currency, recipient_address, expires_at, created_at)
		VALUES (:id, :price_amount, :price_currency, :recipient_address, :expires_at, :created_at)
	`, listingTableName)

	row := &listingRow{
		ID:               listing.ID,
		PriceAmount:      listing.PriceAmount,
		PriceCurrency:    listing.PriceCurrency,
		RecipientAddress: listing.RecipientAddress,
		ExpiresAt:        listing.ExpiresAt,
		CreatedAt:        listing.CreatedAt,
	}

	if _, err := p.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("%w: insert listing: %v", paytypes.ErrStorageUnavailable, err)
	}
	return nil
}

// GetListing fetches a listing by id.
func (p *PostgresPersister) GetListing(ctx context.Context, contentID string) (*paytypes.ContentListing, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, listingTableName)

	var row listingRow
	err := p.db.GetContext(ctx, &row, query, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paytypes.ErrListingNotFound
		}
		return nil, fmt.Errorf("%w: get listing: %v", paytypes.ErrStorageUnavailable, err)
	}

	return row.toListing(), nil
}

// DeleteListing removes a listing. Payment records cascade via the
// foreign key.
func (p *PostgresPersister) DeleteListing(ctx context.Context, contentID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, listingTableName)

	res, err := p.db.ExecContext(ctx, query, contentID)
	if err != nil {
		return fmt.Errorf("%w: delete listing: %v", paytypes.ErrStorageUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return paytypes.ErrListingNotFound
	}
	return nil
}

// IncrementViewCount bumps the view counter.
func (p *PostgresPersister) IncrementViewCount(ctx context.Context, contentID string) error {
	query := fmt.Sprintf(`UPDATE %s SET view_count = view_count + 1 WHERE id = $1`, listingTableName)

	res, err := p.db.ExecContext(ctx, query, contentID)
	if err != nil {
		return fmt.Errorf("%w: increment view count: %v", paytypes.ErrStorageUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return paytypes.ErrListingNotFound
	}
	return nil
}

// DeleteExpired sweeps listings past their expiry.
func (p *PostgresPersister) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < $1`, listingTableName)

	res, err := p.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired: %v", paytypes.ErrStorageUnavailable, err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

// RecordPayment inserts the payment record and increments the listing
// payment counter in one transaction. A conflicting signature short
// circuits to the existing record without touching the counter, or
// fails with ErrSignatureAlreadyUsed when the row belongs to different
// content.
func (p *PostgresPersister) RecordPayment(
	ctx context.Context,
	contentID string,
	payerAddress string,
	amount decimal.Decimal,
	signature string,
) (*paytypes.PaymentRecord, error) {
	if payerAddress == "" {
		payerAddress = paytypes.PayerUnknown
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", paytypes.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (transaction_signature, content_id, payer_address, amount, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_signature) DO NOTHING
	`, paymentTableName)

	record := &paytypes.PaymentRecord{
		TransactionSignature: signature,
		ContentID:            contentID,
		PayerAddress:         payerAddress,
		Amount:               amount,
		Status:               paytypes.PaymentStatusCompleted,
		PaidAt:               time.Now().UTC(),
	}

	res, err := tx.ExecContext(ctx, insertQuery,
		record.TransactionSignature,
		record.ContentID,
		record.PayerAddress,
		record.Amount,
		string(record.Status),
		record.PaidAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: insert payment: %v", paytypes.ErrStorageUnavailable, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: rows affected: %v", paytypes.ErrStorageUnavailable, err)
	}

	if inserted == 0 {
		// Signature already recorded: return the stored row unchanged,
		// unless it is bound to different content.
		existing, err := p.GetPayment(ctx, signature)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: payment row vanished for %s", paytypes.ErrStorageUnavailable, signature)
		}
		if existing.ContentID != contentID {
			return nil, paytypes.ErrSignatureAlreadyUsed
		}
		return existing, nil
	}

	counterQuery := fmt.Sprintf(`UPDATE %s SET payment_count = payment_count + 1 WHERE id = $1`, listingTableName)
	if _, err := tx.ExecContext(ctx, counterQuery, contentID); err != nil {
		return nil, fmt.Errorf("%w: increment payment count: %v", paytypes.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", paytypes.ErrStorageUnavailable, err)
	}

	return record, nil
}

// GetPayment fetches a payment record by signature; nil when absent.
func (p *PostgresPersister) GetPayment(ctx context.Context, signature string) (*paytypes.PaymentRecord, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE transaction_signature = $1`, paymentTableName)

	var row paymentRow
	err := p.db.GetContext(ctx, &row, query, signature)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get payment: %v", paytypes.ErrStorageUnavailable, err)
	}

	return row.toRecord(), nil
}
