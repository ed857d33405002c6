package orders

import (
	"context"
	"sync"

	"github.com/hngpay/splitpay/internal/domain"
)

// MemoryStore implements Store for tests and local development
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
	meta   map[string]map[string]string
	notes  map[string][]string
}

// NewMemoryStore creates an empty in-memory order store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*Order),
		meta:   make(map[string]map[string]string),
		notes:  make(map[string][]string),
	}
}

// Put seeds an order
func (s *MemoryStore) Put(order *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

// Get returns the order or domain.ErrOrderNotFound
func (s *MemoryStore) Get(ctx context.Context, id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

// UpdateStatus transitions the order and appends an audit note
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	if note != "" {
		s.notes[id] = append(s.notes[id], note)
	}
	return nil
}

// SetMeta writes a key/value pair onto the order
func (s *MemoryStore) SetMeta(ctx context.Context, id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	if s.meta[id] == nil {
		s.meta[id] = make(map[string]string)
	}
	s.meta[id][key] = value
	return nil
}

// GetMeta reads a previously written key, empty string when absent
func (s *MemoryStore) GetMeta(ctx context.Context, id, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orders[id]; !ok {
		return "", domain.ErrOrderNotFound
	}
	return s.meta[id][key], nil
}

// AddNote appends an audit note without changing status
func (s *MemoryStore) AddNote(ctx context.Context, id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	s.notes[id] = append(s.notes[id], note)
	return nil
}

// Notes returns the audit notes recorded for an order (test helper)
func (s *MemoryStore) Notes(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.notes[id]...)
}
