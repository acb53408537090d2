package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

type watchKey struct {
	userID string
	bondID string
}

// WatchlistStore implements domain.WatchlistStore. (user, bond) is unique.
type WatchlistStore struct {
	mu    sync.RWMutex
	items map[watchKey]domain.WatchlistItem
	now   func() time.Time
}

func newWatchlistStore(now func() time.Time) *WatchlistStore {
	return &WatchlistStore{
		items: make(map[watchKey]domain.WatchlistItem),
		now:   now,
	}
}

func (s *WatchlistStore) Add(_ context.Context, item domain.WatchlistItem) (domain.WatchlistItem, error) {
	if item.UserID == "" || item.BondID == "" {
		return domain.WatchlistItem{}, fmt.Errorf("memory: add watchlist item: %w: user and bond required", domain.ErrInvalidInput)
	}
	key := watchKey{item.UserID, item.BondID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; ok {
		return domain.WatchlistItem{}, fmt.Errorf("memory: watchlist %s/%s: %w", item.UserID, item.BondID, domain.ErrAlreadyExists)
	}
	if item.ID == "" {
		item.ID = newID()
	}
	item.CreatedAt = s.now()
	s.items[key] = item
	return item, nil
}

func (s *WatchlistStore) Remove(_ context.Context, userID, bondID string) error {
	key := watchKey{userID, bondID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; !ok {
		return fmt.Errorf("memory: watchlist %s/%s: %w", userID, bondID, domain.ErrNotFound)
	}
	delete(s.items, key)
	return nil
}

// ListByUser returns a user's entries, oldest first.
func (s *WatchlistStore) ListByUser(_ context.Context, userID string) ([]domain.WatchlistItem, error) {
	s.mu.RLock()
	var out []domain.WatchlistItem
	for k, item := range s.items {
		if k.userID == userID {
			out = append(out, item)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].BondID < out[j].BondID
	})
	return out, nil
}
