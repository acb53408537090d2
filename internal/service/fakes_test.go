package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/platform/moment"
	"github.com/alanyoungcy/bonddesk/internal/store/memory"
)

var errUpstreamDown = errors.New("dial tcp: connection refused: upstream unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUpstream implements every upstream interface the services use. A nil
// response field makes the matching call fail.
type fakeUpstream struct {
	mu sync.Mutex

	quote   *domain.Quote
	book    *domain.OrderBook
	history *domain.PriceHistory

	submitted []moment.SubmitRequest
	submitRes *domain.UpstreamOrder
	canceled  []string
	cancelErr error

	list     []domain.Bond
	listErr  error
	bulk     []domain.Bond
	bulkErr  error
	bulkUsed bool

	quoteIDs []string
}

func (f *fakeUpstream) GetQuote(_ context.Context, id string, _ domain.Num) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteIDs = append(f.quoteIDs, id)
	if f.quote == nil {
		return domain.Quote{}, errUpstreamDown
	}
	return *f.quote, nil
}

func (f *fakeUpstream) GetOrderBook(_ context.Context, id string) (domain.OrderBook, error) {
	if f.book == nil {
		return domain.OrderBook{}, errUpstreamDown
	}
	return *f.book, nil
}

func (f *fakeUpstream) GetPriceHistory(_ context.Context, _, _, _, _ string) (domain.PriceHistory, error) {
	if f.history == nil {
		return domain.PriceHistory{}, errUpstreamDown
	}
	return *f.history, nil
}

func (f *fakeUpstream) SubmitOrder(_ context.Context, req moment.SubmitRequest) (domain.UpstreamOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if f.submitRes == nil {
		return domain.UpstreamOrder{}, errUpstreamDown
	}
	return *f.submitRes, nil
}

func (f *fakeUpstream) CancelOrder(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, id)
	return f.cancelErr
}

func (f *fakeUpstream) ListInstruments(_ context.Context, _ string, _ int) ([]domain.Bond, error) {
	return f.list, f.listErr
}

func (f *fakeUpstream) BulkDownload(_ context.Context) ([]domain.Bond, error) {
	f.bulkUsed = true
	return f.bulk, f.bulkErr
}

type fakeHub struct {
	mu  sync.Mutex
	got []domain.Quote
}

func (h *fakeHub) BroadcastQuote(q domain.Quote) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, q)
}

type fakeQuoteCache struct {
	quotes map[string]domain.Quote
}

func (c *fakeQuoteCache) SetQuote(_ context.Context, q domain.Quote) error {
	if c.quotes == nil {
		c.quotes = map[string]domain.Quote{}
	}
	c.quotes[q.BondID] = q
	return nil
}

func (c *fakeQuoteCache) GetQuotes(_ context.Context, ids []string) (map[string]domain.Quote, error) {
	out := map[string]domain.Quote{}
	for _, id := range ids {
		if q, ok := c.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = map[string][][]byte{}
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestStore() *memory.Store {
	return memory.New(memory.Options{Now: func() time.Time { return testNow }})
}

// appleBond is the reference bond used across the service tests.
func appleBond() domain.Bond {
	return domain.Bond{
		ID:        "US037833100",
		ISIN:      "US037833100",
		Issuer:    "Apple Inc",
		LastPrice: domain.MustNum("98.50"),
		Coupon:    domain.MustNum("2.400"),
	}
}

func mustCreateBond(t *testing.T, st *memory.Store, b domain.Bond) domain.Bond {
	t.Helper()
	created, err := st.Bonds.Create(context.Background(), b)
	require.NoError(t, err)
	return created
}
