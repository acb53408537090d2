package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// WatchlistEntry is a watchlist item joined with its bond.
type WatchlistEntry struct {
	domain.WatchlistItem
	Bond *domain.Bond `json:"bond"`
}

// WatchlistService manages per-user bond watchlists.
type WatchlistService struct {
	items domain.WatchlistStore
	bonds domain.BondStore
}

func NewWatchlistService(items domain.WatchlistStore, bonds domain.BondStore) *WatchlistService {
	return &WatchlistService{items: items, bonds: bonds}
}

// List returns userID's watchlist.
func (s *WatchlistService) List(ctx context.Context, userID string) ([]WatchlistEntry, error) {
	items, err := s.items.ListByUser(ctx, userOrDefault(userID))
	if err != nil {
		return nil, fmt.Errorf("watchlist_service: list: %w", err)
	}
	out := make([]WatchlistEntry, 0, len(items))
	for _, it := range items {
		e := WatchlistEntry{WatchlistItem: it}
		if b, err := s.bonds.GetByID(ctx, it.BondID); err == nil {
			e.Bond = &b
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("watchlist_service: bond %q: %w", it.BondID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Add puts bondID on userID's watchlist. A duplicate fails with
// domain.ErrAlreadyExists.
func (s *WatchlistService) Add(ctx context.Context, userID, bondID string) (domain.WatchlistItem, error) {
	if strings.TrimSpace(bondID) == "" {
		return domain.WatchlistItem{}, fmt.Errorf("watchlist_service: %w: bondId is required", domain.ErrInvalidInput)
	}
	bond, err := lookupBond(ctx, s.bonds, bondID)
	if err != nil {
		return domain.WatchlistItem{}, fmt.Errorf("watchlist_service: bond %q: %w", bondID, err)
	}
	item, err := s.items.Add(ctx, domain.WatchlistItem{UserID: userOrDefault(userID), BondID: bond.ID})
	if err != nil {
		return domain.WatchlistItem{}, fmt.Errorf("watchlist_service: add: %w", err)
	}
	return item, nil
}

// Remove takes bondID off userID's watchlist.
func (s *WatchlistService) Remove(ctx context.Context, userID, bondID string) error {
	if err := s.items.Remove(ctx, userOrDefault(userID), bondID); err != nil {
		return fmt.Errorf("watchlist_service: remove: %w", err)
	}
	return nil
}

func userOrDefault(userID string) string {
	if u := strings.TrimSpace(userID); u != "" {
		return u
	}
	return DefaultUserID
}
