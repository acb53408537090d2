// Package memory implements the domain store interfaces on in-process maps.
// Each entity store guards its own maps; every mutation is atomic per entity.
package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Options configures a Store.
type Options struct {
	// YieldField selects the bond field compared by yield screens.
	YieldField domain.YieldField
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Store groups the entity stores. It is created once at process start and
// passed to whatever needs it.
type Store struct {
	Bonds     *BondStore
	Market    *MarketDataStore
	Orders    *OrderStore
	Holdings  *HoldingStore
	Watchlist *WatchlistStore
}

// New creates an empty Store.
func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	clock := func() time.Time { return now().UTC() }
	yf := opts.YieldField
	if yf == "" {
		yf = domain.YieldFieldCoupon
	}
	return &Store{
		Bonds:     newBondStore(yf, clock),
		Market:    newMarketDataStore(clock),
		Orders:    newOrderStore(clock),
		Holdings:  newHoldingStore(clock),
		Watchlist: newWatchlistStore(clock),
	}
}

func newID() string {
	return uuid.NewString()
}

// Compile-time interface checks.
var (
	_ domain.BondStore       = (*BondStore)(nil)
	_ domain.MarketDataStore = (*MarketDataStore)(nil)
	_ domain.OrderStore      = (*OrderStore)(nil)
	_ domain.HoldingStore    = (*HoldingStore)(nil)
	_ domain.WatchlistStore  = (*WatchlistStore)(nil)
)
