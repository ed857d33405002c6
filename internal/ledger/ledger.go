package ledger

import (
	"context"
	"time"

	"github.com/hngpay/splitpay/internal/domain"
)

// Ledger is the append-only transaction store. Entries are written once at
// charge submission; afterwards only the status column moves, through
// UpdateStatus, and only along the legal settlement transitions.
type Ledger interface {
	// Record appends a new entry and returns its id. A duplicate
	// external_ref is rejected with domain.ErrTransactionExists.
	Record(ctx context.Context, record *domain.TransactionRecord) (string, error)

	// UpdateStatus atomically moves the entry identified by external_ref to
	// status. It reports changed=false with a nil error when the entry
	// already sits at the target status, so duplicate webhook deliveries
	// collapse to a no-op. An illegal transition fails with
	// domain.ErrInvalidStatusTransition, an unknown ref with
	// domain.ErrTransactionNotFound.
	UpdateStatus(ctx context.Context, externalRef string, status domain.TransactionStatus) (bool, error)

	// GetByExternalRef returns the entry or domain.ErrTransactionNotFound
	GetByExternalRef(ctx context.Context, externalRef string) (*domain.TransactionRecord, error)

	// GetByOrderID returns all attempts for an order, newest first
	GetByOrderID(ctx context.Context, orderID string) ([]*domain.TransactionRecord, error)

	// ListPendingOlderThan returns pending entries created before now-age,
	// oldest first, capped at limit. Used by the reconcile worker to sweep
	// charges whose webhook never arrived.
	ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.TransactionRecord, error)
}
