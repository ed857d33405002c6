package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hngpay/splitpay/internal/domain"
)

// MemoryLedger implements Ledger in memory for tests and local development.
// The mutex gives the same winner-takes-all semantics as the SQL
// compare-and-set.
type MemoryLedger struct {
	mu      sync.Mutex
	byRef   map[string]*domain.TransactionRecord
	byOrder map[string][]string
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		byRef:   make(map[string]*domain.TransactionRecord),
		byOrder: make(map[string][]string),
	}
}

// Record appends a new entry
func (l *MemoryLedger) Record(ctx context.Context, record *domain.TransactionRecord) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byRef[record.ExternalRef]; exists {
		return "", domain.ErrTransactionExists
	}

	copied := cloneRecord(record)
	l.byRef[record.ExternalRef] = copied
	l.byOrder[record.OrderID] = append(l.byOrder[record.OrderID], record.ExternalRef)
	return record.ID, nil
}

// UpdateStatus performs the compare-and-set transition
func (l *MemoryLedger) UpdateStatus(ctx context.Context, externalRef string, status domain.TransactionStatus) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.byRef[externalRef]
	if !ok {
		return false, domain.ErrTransactionNotFound
	}
	if record.Status == status {
		return false, nil
	}
	if !domain.CanTransition(record.Status, status) {
		return false, fmt.Errorf("%w: %s -> %s for %s",
			domain.ErrInvalidStatusTransition, record.Status, status, externalRef)
	}

	record.Status = status
	record.UpdatedAt = time.Now().UTC()
	return true, nil
}

// GetByExternalRef retrieves a transaction by its provider reference
func (l *MemoryLedger) GetByExternalRef(ctx context.Context, externalRef string) (*domain.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.byRef[externalRef]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneRecord(record), nil
}

// GetByOrderID retrieves all attempts for an order, newest first
func (l *MemoryLedger) GetByOrderID(ctx context.Context, orderID string) ([]*domain.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var records []*domain.TransactionRecord
	for _, ref := range l.byOrder[orderID] {
		records = append(records, cloneRecord(l.byRef[ref]))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// ListPendingOlderThan returns stale pending entries, oldest first
func (l *MemoryLedger) ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().UTC().Add(-age)
	var records []*domain.TransactionRecord
	for _, record := range l.byRef {
		if record.Status == domain.TransactionStatusPending && record.CreatedAt.Before(cutoff) {
			records = append(records, cloneRecord(record))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func cloneRecord(record *domain.TransactionRecord) *domain.TransactionRecord {
	copied := *record
	if record.Meta != nil {
		copied.Meta = make(map[string]string, len(record.Meta))
		for k, v := range record.Meta {
			copied.Meta[k] = v
		}
	}
	return &copied
}
