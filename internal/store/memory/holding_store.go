package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// HoldingStore implements domain.HoldingStore.
type HoldingStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Holding
	now  func() time.Time
}

func newHoldingStore(now func() time.Time) *HoldingStore {
	return &HoldingStore{
		byID: make(map[string]domain.Holding),
		now:  now,
	}
}

func (s *HoldingStore) Create(_ context.Context, h domain.Holding) (domain.Holding, error) {
	if h.BondID == "" {
		return domain.Holding{}, fmt.Errorf("memory: create holding: %w: bond id required", domain.ErrInvalidInput)
	}
	if h.ID == "" {
		h.ID = newID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[h.ID]; ok {
		return domain.Holding{}, fmt.Errorf("memory: create holding %s: %w", h.ID, domain.ErrAlreadyExists)
	}
	now := s.now()
	if h.PurchaseDate.IsZero() {
		h.PurchaseDate = now
	}
	h.CreatedAt = now
	h.UpdatedAt = now
	s.byID[h.ID] = h
	return h, nil
}

func (s *HoldingStore) Update(_ context.Context, id string, patch domain.HoldingPatch) (domain.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.byID[id]
	if !ok {
		return domain.Holding{}, fmt.Errorf("memory: update holding %s: %w", id, domain.ErrNotFound)
	}
	h = patch.Apply(h)
	h.UpdatedAt = s.now()
	s.byID[id] = h
	return h, nil
}

func (s *HoldingStore) GetByID(_ context.Context, id string) (domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.byID[id]
	if !ok {
		return domain.Holding{}, fmt.Errorf("memory: holding %s: %w", id, domain.ErrNotFound)
	}
	return h, nil
}

// ListByUser returns a user's holdings in purchase order.
func (s *HoldingStore) ListByUser(_ context.Context, userID string) ([]domain.Holding, error) {
	s.mu.RLock()
	var out []domain.Holding
	for _, h := range s.byID {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].PurchaseDate.Before(out[j].PurchaseDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *HoldingStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("memory: delete holding %s: %w", id, domain.ErrNotFound)
	}
	delete(s.byID, id)
	return nil
}
