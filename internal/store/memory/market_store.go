package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// MarketDataStore implements domain.MarketDataStore with last-write-wins on
// the snapshot timestamp.
type MarketDataStore struct {
	mu     sync.RWMutex
	byBond map[string]domain.MarketData
	now    func() time.Time
}

func newMarketDataStore(now func() time.Time) *MarketDataStore {
	return &MarketDataStore{
		byBond: make(map[string]domain.MarketData),
		now:    now,
	}
}

// Upsert stores md unless the stored snapshot is newer. A zero timestamp is
// stamped with the current time. Trade fields md leaves unset are carried
// over from the stored snapshot under the same lock.
func (s *MarketDataStore) Upsert(_ context.Context, md domain.MarketData) (bool, error) {
	if md.BondID == "" {
		return false, fmt.Errorf("memory: upsert market data: %w: bond id required", domain.ErrInvalidInput)
	}
	if md.Timestamp.IsZero() {
		md.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byBond[md.BondID]; ok {
		if prev.Timestamp.After(md.Timestamp) {
			return false, nil
		}
		md.LastTradePrice = md.LastTradePrice.Or(prev.LastTradePrice)
		md.LastTradeSize = md.LastTradeSize.Or(prev.LastTradeSize)
		md.Volume = md.Volume.Or(prev.Volume)
	}
	s.byBond[md.BondID] = md
	return true, nil
}

func (s *MarketDataStore) Get(_ context.Context, bondID string) (domain.MarketData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md, ok := s.byBond[bondID]
	if !ok {
		return domain.MarketData{}, fmt.Errorf("memory: market data %s: %w", bondID, domain.ErrNotFound)
	}
	return md, nil
}

// List returns every snapshot ordered by bond id.
func (s *MarketDataStore) List(_ context.Context) ([]domain.MarketData, error) {
	s.mu.RLock()
	out := make([]domain.MarketData, 0, len(s.byBond))
	for _, md := range s.byBond {
		out = append(out, md)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].BondID < out[j].BondID })
	return out, nil
}
