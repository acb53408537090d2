package domain

import "context"

// BondStore holds bond reference data. Bonds are never hard-deleted.
type BondStore interface {
	Create(ctx context.Context, bond Bond) (Bond, error)
	Update(ctx context.Context, id string, patch BondPatch) (Bond, error)
	GetByID(ctx context.Context, id string) (Bond, error)
	GetByISIN(ctx context.Context, isin string) (Bond, error)
	Search(ctx context.Context, filter BondFilter) ([]Bond, error)
	Count(ctx context.Context) (int, error)
}

// MarketDataStore holds the latest market snapshot per bond.
type MarketDataStore interface {
	// Upsert stores md unless a newer snapshot is already present. Unset
	// trade fields of md keep the stored values. It reports whether md was
	// applied.
	Upsert(ctx context.Context, md MarketData) (bool, error)
	Get(ctx context.Context, bondID string) (MarketData, error)
	List(ctx context.Context) ([]MarketData, error)
}

// OrderStore holds order attempts. Orders are never hard-deleted.
type OrderStore interface {
	Create(ctx context.Context, order Order) (Order, error)
	Update(ctx context.Context, id string, patch OrderPatch) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	// List returns orders newest first; an empty status matches all.
	List(ctx context.Context, status OrderStatus) ([]Order, error)
}

// HoldingStore holds portfolio positions.
type HoldingStore interface {
	Create(ctx context.Context, h Holding) (Holding, error)
	Update(ctx context.Context, id string, patch HoldingPatch) (Holding, error)
	GetByID(ctx context.Context, id string) (Holding, error)
	ListByUser(ctx context.Context, userID string) ([]Holding, error)
	Delete(ctx context.Context, id string) error
}

// WatchlistStore holds (user, bond) watch entries.
type WatchlistStore interface {
	Add(ctx context.Context, item WatchlistItem) (WatchlistItem, error)
	Remove(ctx context.Context, userID, bondID string) error
	ListByUser(ctx context.Context, userID string) ([]WatchlistItem, error)
}
