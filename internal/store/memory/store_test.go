package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestStore(yf domain.YieldField) *Store {
	return New(Options{YieldField: yf, Now: func() time.Time { return testNow }})
}

func years(n int) *int { return &n }
func num(s string) *domain.Num { n := domain.MustNum(s); return &n }

func seedScreeningBonds(t *testing.T, s *Store) {
	t.Helper()
	maturity := func(y int) *time.Time {
		m := testNow.AddDate(y, 0, 0)
		return &m
	}
	bonds := []domain.Bond{
		{ISIN: "C1", Issuer: "Acme Corp", BondType: "Corporate", Sector: "industrial", Rating: "A", Coupon: domain.MustNum("5"), YTM: domain.MustNum("3"), MaturityDate: maturity(2)},
		{ISIN: "C2", Issuer: "Globex", BondType: "corporate", Sector: "technology", Rating: "AA", Coupon: domain.MustNum("2"), MaturityDate: maturity(8)},
		{ISIN: "G1", Issuer: "US Treasury", BondType: "treasury", Sector: "government", Rating: "AAA", Coupon: domain.MustNum("4"), YTM: domain.MustNum("4.5"), MaturityDate: maturity(20)},
		{ISIN: "M1", Issuer: "City of Springfield", BondType: "municipal", Rating: "A"},
	}
	for _, b := range bonds {
		_, err := s.Bonds.Create(context.Background(), b)
		require.NoError(t, err)
	}
}

func ids(bonds []domain.Bond) []string {
	out := make([]string, 0, len(bonds))
	for _, b := range bonds {
		out = append(out, b.ID)
	}
	return out
}

func TestBondStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)

	b, err := s.Bonds.Create(ctx, domain.Bond{ISIN: "US037833100", LastPrice: domain.MustNum("98.50")})
	require.NoError(t, err)
	assert.Equal(t, "US037833100", b.ID)
	assert.Equal(t, domain.DefaultIssuer, b.Issuer)
	assert.Equal(t, testNow, b.CreatedAt)

	got, err := s.Bonds.GetByISIN(ctx, "US037833100")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = s.Bonds.Create(ctx, domain.Bond{ID: "other", ISIN: "US037833100"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = s.Bonds.Create(ctx, domain.Bond{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Bonds.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBondStore_UpdateMergesPatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)
	_, err := s.Bonds.Create(ctx, domain.Bond{ISIN: "B1", Issuer: "Acme", Coupon: domain.MustNum("3")})
	require.NoError(t, err)

	price := domain.MustNum("101.5")
	updated, err := s.Bonds.Update(ctx, "B1", domain.BondPatch{LastPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "101.5", updated.LastPrice.String())
	assert.Equal(t, "Acme", updated.Issuer)
	assert.Equal(t, "3", updated.Coupon.String())

	_, err = s.Bonds.Update(ctx, "nope", domain.BondPatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBondStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)
	m := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.Bonds.Create(ctx, domain.Bond{ISIN: "B1", MaturityDate: &m})
	require.NoError(t, err)

	got, err := s.Bonds.GetByID(ctx, "B1")
	require.NoError(t, err)
	*got.MaturityDate = time.Time{}

	again, err := s.Bonds.GetByID(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, m, *again.MaturityDate)
}

func TestBondStore_Search(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)
	seedScreeningBonds(t, s)

	tests := []struct {
		name   string
		filter domain.BondFilter
		want   []string
	}{
		{"no filters", domain.BondFilter{}, []string{"C1", "C2", "G1", "M1"}},
		{"all is ignored", domain.BondFilter{BondType: "all", Sector: "all", Rating: "all"}, []string{"C1", "C2", "G1", "M1"}},
		{"corporate", domain.BondFilter{BondType: "corporate"}, []string{"C1", "C2"}},
		{"government alias normalized", domain.BondFilter{BondType: "government"}, []string{"G1"}},
		{"and of predicates", domain.BondFilter{BondType: "corporate", Rating: "A"}, []string{"C1"}},
		{"search issuer", domain.BondFilter{Search: "globex"}, []string{"C2"}},
		{"min yield uses coupon", domain.BondFilter{MinYield: num("4")}, []string{"C1", "G1"}},
		{"max yield uses coupon", domain.BondFilter{MaxYield: num("3")}, []string{"C2"}},
		{"zero yield ignored", domain.BondFilter{MinYield: num("0")}, []string{"C1", "C2", "G1", "M1"}},
		{"min maturity", domain.BondFilter{MinMaturityYears: years(5)}, []string{"C2", "G1"}},
		{"max maturity", domain.BondFilter{MaxMaturityYears: years(10)}, []string{"C1", "C2"}},
		{"zero maturity ignored", domain.BondFilter{MaxMaturityYears: years(0)}, []string{"C1", "C2", "G1", "M1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Bonds.Search(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestBondStore_SearchYTMField(t *testing.T) {
	s := newTestStore(domain.YieldFieldYTM)
	seedScreeningBonds(t, s)

	// C1 ytm 3, C2 falls back to coupon 2, G1 ytm 4.5.
	got, err := s.Bonds.Search(context.Background(), domain.BondFilter{MinYield: num("2.5")})
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "G1"}, ids(got))
}

func TestMarketDataStore_CarriesTradeFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)

	_, err := s.Market.Upsert(ctx, domain.MarketData{
		BondID:         "B1",
		LastTradePrice: domain.MustNum("98"),
		LastTradeSize:  domain.MustNum("5000"),
		Volume:         domain.MustNum("250000"),
		Timestamp:      testNow.Add(-time.Hour),
	})
	require.NoError(t, err)

	// Quote-only snapshots written concurrently never drop the trade fields.
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Market.Upsert(ctx, domain.MarketData{
				BondID:    "B1",
				BidPrice:  domain.NumFromInt(int64(90 + i%10)),
				Timestamp: testNow.Add(time.Duration(i) * time.Second),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Market.Get(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(50*time.Second), got.Timestamp)
	assert.Equal(t, "98", got.LastTradePrice.String())
	assert.Equal(t, "5000", got.LastTradeSize.String())
	assert.Equal(t, "250000", got.Volume.String())

	_, err = s.Market.Upsert(ctx, domain.MarketData{
		BondID:         "B1",
		LastTradePrice: domain.MustNum("99.5"),
		Timestamp:      testNow.Add(time.Minute),
	})
	require.NoError(t, err)
	got, err = s.Market.Get(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "99.5", got.LastTradePrice.String())
	assert.Equal(t, "250000", got.Volume.String())
}

func TestMarketDataStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)

	newer := domain.MarketData{BondID: "B1", BidPrice: domain.MustNum("99"), Timestamp: testNow}
	older := domain.MarketData{BondID: "B1", BidPrice: domain.MustNum("98"), Timestamp: testNow.Add(-time.Minute)}

	applied, err := s.Market.Upsert(ctx, newer)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.Market.Upsert(ctx, older)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.Market.Get(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "99", got.BidPrice.String())

	applied, err = s.Market.Upsert(ctx, domain.MarketData{BondID: "B2"})
	require.NoError(t, err)
	assert.True(t, applied)
	got, err = s.Market.Get(ctx, "B2")
	require.NoError(t, err)
	assert.Equal(t, testNow, got.Timestamp)
}

func TestOrderStore_TerminalNeverReverts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)

	o, err := s.Orders.Create(ctx, domain.Order{BondID: "B1", Side: domain.OrderSideBuy, Quantity: domain.MustNum("1000")})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, domain.OrderStatusPending, o.Status)

	rejected := domain.OrderStatusRejected
	_, err = s.Orders.Update(ctx, o.ID, domain.OrderPatch{Status: &rejected})
	require.NoError(t, err)

	pending := domain.OrderStatusPending
	_, err = s.Orders.Update(ctx, o.ID, domain.OrderPatch{Status: &pending})
	assert.ErrorIs(t, err, domain.ErrTerminalOrder)

	got, err := s.Orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, got.Status)

	list, err := s.Orders.List(ctx, domain.OrderStatusRejected)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = s.Orders.List(ctx, domain.OrderStatusPending)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHoldingStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)

	h, err := s.Holdings.Create(ctx, domain.Holding{UserID: "u1", BondID: "B1", Quantity: domain.MustNum("10")})
	require.NoError(t, err)
	assert.Equal(t, testNow, h.PurchaseDate)

	qty := domain.MustNum("15")
	h, err = s.Holdings.Update(ctx, h.ID, domain.HoldingPatch{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "15", h.Quantity.String())

	list, err := s.Holdings.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Holdings.Delete(ctx, h.ID))
	assert.ErrorIs(t, s.Holdings.Delete(ctx, h.ID), domain.ErrNotFound)
}

func TestWatchlistStore_Unique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)

	_, err := s.Watchlist.Add(ctx, domain.WatchlistItem{UserID: "u1", BondID: "B1"})
	require.NoError(t, err)
	_, err = s.Watchlist.Add(ctx, domain.WatchlistItem{UserID: "u1", BondID: "B1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	_, err = s.Watchlist.Add(ctx, domain.WatchlistItem{UserID: "u2", BondID: "B1"})
	require.NoError(t, err)

	list, err := s.Watchlist.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Watchlist.Remove(ctx, "u1", "B1"))
	assert.ErrorIs(t, s.Watchlist.Remove(ctx, "u1", "B1"), domain.ErrNotFound)
}

func TestSeed_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)

	n, err := s.Seed(ctx, SampleBonds())
	require.NoError(t, err)
	assert.Equal(t, len(SampleBonds()), n)

	n, err = s.Seed(ctx, SampleBonds())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBondsFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "bonds.json")

	src := newTestStore(domain.YieldFieldCoupon)
	_, err := src.Seed(ctx, SampleBonds())
	require.NoError(t, err)

	n, err := src.SaveBondsFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, len(SampleBonds()), n)

	dst := newTestStore(domain.YieldFieldCoupon)
	n, err = dst.LoadBondsFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, len(SampleBonds()), n)

	want, err := src.Bonds.GetByISIN(ctx, "US594918104")
	require.NoError(t, err)
	got, err := dst.Bonds.GetByISIN(ctx, "US594918104")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, "3.125", got.Coupon.String())
	require.NotNil(t, got.MaturityDate)
	assert.True(t, want.MaturityDate.Equal(*got.MaturityDate))

	// Loading again skips what is already stored.
	n, err = dst.LoadBondsFile(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, n)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBondsFile_MissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)

	n, err := s.LoadBondsFile(ctx, filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.ReadBonds(ctx, strings.NewReader(`{"id":`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(domain.YieldFieldCoupon)
	_, err := s.Bonds.Create(ctx, domain.Bond{ISIN: "B1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			p := domain.NumFromInt(int64(90 + i))
			_, _ = s.Bonds.Update(ctx, "B1", domain.BondPatch{LastPrice: &p})
			_, _ = s.Market.Upsert(ctx, domain.MarketData{BondID: "B1", BidPrice: p, Timestamp: testNow.Add(time.Duration(i) * time.Second)})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Bonds.Search(ctx, domain.BondFilter{})
			_, _ = s.Market.List(ctx)
		}()
	}
	wg.Wait()

	md, err := s.Market.Get(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "109", md.BidPrice.String())
}
