package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/pkg/database"
)

// PostgreSQL error code for unique violation
const pgUniqueViolationCode = "23505"

// PostgresLedger implements Ledger using PostgreSQL
type PostgresLedger struct {
	db *database.PostgresDB
}

// NewPostgresLedger creates a new PostgreSQL ledger
func NewPostgresLedger(db *database.PostgresDB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Record appends a new ledger entry
func (l *PostgresLedger) Record(ctx context.Context, record *domain.TransactionRecord) (string, error) {
	query := `
		INSERT INTO transactions (
			id, order_id, external_ref, gross_amount, fee_amount, net_amount,
			status, gateway, method, tier, is_fallback, meta, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`

	metaJSON, err := json.Marshal(record.Meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta: %w", err)
	}

	_, err = l.db.Pool().Exec(ctx, query,
		record.ID,
		record.OrderID,
		record.ExternalRef,
		record.GrossAmount,
		record.FeeAmount,
		record.NetAmount,
		string(record.Status),
		record.Gateway,
		string(record.Method),
		record.Tier,
		record.IsFallback,
		metaJSON,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return "", domain.ErrTransactionExists
		}
		return "", fmt.Errorf("failed to record transaction: %w", err)
	}

	return record.ID, nil
}

// UpdateStatus performs the compare-and-set transition. The WHERE clause
// carries the allowed source statuses so concurrent updates race safely in
// the database; the winner flips the row, everyone else sees zero rows.
func (l *PostgresLedger) UpdateStatus(ctx context.Context, externalRef string, status domain.TransactionStatus) (bool, error) {
	allowed := domain.AllowedFrom(status)
	if len(allowed) == 0 {
		return false, fmt.Errorf("%w: no transition leads to %s", domain.ErrInvalidStatusTransition, status)
	}
	sources := make([]string, len(allowed))
	for i, s := range allowed {
		sources[i] = string(s)
	}

	// Explicit casts keep the CAS independent of how the driver encodes a
	// []string against the transaction_status ENUM column.
	query := `
		UPDATE transactions
		SET status = $2::transaction_status, updated_at = $3
		WHERE external_ref = $1 AND status::text = ANY($4::text[])`

	tag, err := l.db.Pool().Exec(ctx, query, externalRef, string(status), time.Now().UTC(), sources)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Zero rows: either the ref is unknown, the entry already sits at the
	// target (duplicate delivery), or the transition is illegal.
	current, err := l.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return false, err
	}
	if current.Status == status {
		return false, nil
	}
	return false, fmt.Errorf("%w: %s -> %s for %s",
		domain.ErrInvalidStatusTransition, current.Status, status, externalRef)
}

// selectColumns defines the columns to select for transaction queries
const selectColumns = `
	id, order_id, external_ref, gross_amount, fee_amount, net_amount,
	status, gateway, method, tier, is_fallback, meta, created_at, updated_at
`

// GetByExternalRef retrieves a transaction by its provider reference
func (l *PostgresLedger) GetByExternalRef(ctx context.Context, externalRef string) (*domain.TransactionRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM transactions WHERE external_ref = $1`
	return l.scanTransaction(l.db.Pool().QueryRow(ctx, query, externalRef))
}

// GetByOrderID retrieves all attempts for an order, newest first
func (l *PostgresLedger) GetByOrderID(ctx context.Context, orderID string) ([]*domain.TransactionRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM transactions WHERE order_id = $1 ORDER BY created_at DESC`

	rows, err := l.db.Pool().Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		record, err := l.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return records, nil
}

// ListPendingOlderThan returns stale pending entries, oldest first
func (l *PostgresLedger) ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.TransactionRecord, error) {
	query := `SELECT ` + selectColumns + `
		FROM transactions
		WHERE status = $1::transaction_status AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`

	cutoff := time.Now().UTC().Add(-age)
	rows, err := l.db.Pool().Query(ctx, query, string(domain.TransactionStatusPending), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending transactions: %w", err)
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		record, err := l.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending transactions: %w", err)
	}

	return records, nil
}

// scanTransaction scans a single row into a TransactionRecord
func (l *PostgresLedger) scanTransaction(row pgx.Row) (*domain.TransactionRecord, error) {
	var record domain.TransactionRecord
	var status, method string
	var metaJSON []byte

	err := row.Scan(
		&record.ID,
		&record.OrderID,
		&record.ExternalRef,
		&record.GrossAmount,
		&record.FeeAmount,
		&record.NetAmount,
		&status,
		&record.Gateway,
		&method,
		&record.Tier,
		&record.IsFallback,
		&metaJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	record.Status = domain.TransactionStatus(status)
	record.Method = domain.PaymentMethod(method)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &record.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
		}
	}

	return &record, nil
}
