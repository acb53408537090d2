package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// OrderStore implements domain.OrderStore. Orders are never deleted.
type OrderStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Order
	now  func() time.Time
}

func newOrderStore(now func() time.Time) *OrderStore {
	return &OrderStore{
		byID: make(map[string]domain.Order),
		now:  now,
	}
}

// Create records a new order. A missing id is generated and a missing status
// defaults to pending.
func (s *OrderStore) Create(_ context.Context, o domain.Order) (domain.Order, error) {
	if o.BondID == "" {
		return domain.Order{}, fmt.Errorf("memory: create order: %w: bond id required", domain.ErrInvalidInput)
	}
	if o.ID == "" {
		o.ID = newID()
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[o.ID]; ok {
		return domain.Order{}, fmt.Errorf("memory: create order %s: %w", o.ID, domain.ErrAlreadyExists)
	}
	now := s.now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	s.byID[o.ID] = o
	return o, nil
}

// Update applies patch. Terminal orders reject any status change with
// domain.ErrTerminalOrder and are left untouched.
func (s *OrderStore) Update(_ context.Context, id string, patch domain.OrderPatch) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.byID[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("memory: update order %s: %w", id, domain.ErrNotFound)
	}
	updated, err := patch.Apply(o, s.now())
	if err != nil {
		return o, fmt.Errorf("memory: update order: %w", err)
	}
	s.byID[id] = updated
	return updated, nil
}

func (s *OrderStore) GetByID(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.byID[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("memory: order %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

// List returns orders with the given status, newest first. An empty status
// matches every order.
func (s *OrderStore) List(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	s.mu.RLock()
	out := make([]domain.Order, 0, len(s.byID))
	for _, o := range s.byID {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
