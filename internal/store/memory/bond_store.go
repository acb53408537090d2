package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/normalize"
)

// BondStore implements domain.BondStore.
type BondStore struct {
	mu       sync.RWMutex
	byID     map[string]domain.Bond
	idByISIN map[string]string

	yieldField domain.YieldField
	now        func() time.Time
}

func newBondStore(yf domain.YieldField, now func() time.Time) *BondStore {
	return &BondStore{
		byID:       make(map[string]domain.Bond),
		idByISIN:   make(map[string]string),
		yieldField: yf,
		now:        now,
	}
}

// Create normalizes and inserts a bond. Both the id and a non-empty ISIN must
// be unused.
func (s *BondStore) Create(_ context.Context, bond domain.Bond) (domain.Bond, error) {
	bond = normalize.CanonicalBond(bond)
	if bond.ID == "" {
		return domain.Bond{}, fmt.Errorf("memory: create bond: %w: id or isin required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[bond.ID]; ok {
		return domain.Bond{}, fmt.Errorf("memory: create bond %s: %w", bond.ID, domain.ErrAlreadyExists)
	}
	if bond.ISIN != "" {
		if _, ok := s.idByISIN[bond.ISIN]; ok {
			return domain.Bond{}, fmt.Errorf("memory: create bond isin %s: %w", bond.ISIN, domain.ErrAlreadyExists)
		}
	}

	now := s.now()
	if bond.CreatedAt.IsZero() {
		bond.CreatedAt = now
	}
	bond.UpdatedAt = now

	bond = cloneBond(bond)
	s.byID[bond.ID] = bond
	if bond.ISIN != "" {
		s.idByISIN[bond.ISIN] = bond.ID
	}
	return cloneBond(bond), nil
}

// Update merges patch onto the stored bond and refreshes UpdatedAt.
func (s *BondStore) Update(_ context.Context, id string, patch domain.BondPatch) (domain.Bond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bond, ok := s.byID[id]
	if !ok {
		return domain.Bond{}, fmt.Errorf("memory: update bond %s: %w", id, domain.ErrNotFound)
	}
	bond = patch.Apply(bond)
	bond.UpdatedAt = s.now()
	s.byID[id] = cloneBond(bond)
	return cloneBond(bond), nil
}

func (s *BondStore) GetByID(_ context.Context, id string) (domain.Bond, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bond, ok := s.byID[id]
	if !ok {
		return domain.Bond{}, fmt.Errorf("memory: bond %s: %w", id, domain.ErrNotFound)
	}
	return cloneBond(bond), nil
}

func (s *BondStore) GetByISIN(_ context.Context, isin string) (domain.Bond, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.idByISIN[isin]
	if !ok {
		return domain.Bond{}, fmt.Errorf("memory: bond isin %s: %w", isin, domain.ErrNotFound)
	}
	return cloneBond(s.byID[id]), nil
}

// Search returns the bonds matching every set predicate of filter, ordered
// by id.
func (s *BondStore) Search(_ context.Context, filter domain.BondFilter) ([]domain.Bond, error) {
	m := newMatcher(filter, s.yieldField, s.now())

	s.mu.RLock()
	out := make([]domain.Bond, 0, len(s.byID))
	for _, b := range s.byID {
		if m.match(b) {
			out = append(out, cloneBond(b))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *BondStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func cloneBond(b domain.Bond) domain.Bond {
	if b.MaturityDate != nil {
		t := *b.MaturityDate
		b.MaturityDate = &t
	}
	return b
}
