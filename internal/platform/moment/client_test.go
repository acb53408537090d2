package moment

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:         srv.URL + "/",
		APIKey:          "test-key",
		Timeout:         5 * time.Second,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}, nil, opts...)
}

func TestListInstruments_WrappedAndBare(t *testing.T) {
	bodies := []string{
		`{"data":[{"isin":"US1","issuer":"Acme","coupon":"4.5"},{"id":"X2"},{"cusip":"nokey"}]}`,
		`[{"isin":"US1","issuer":"Acme","coupon":4.5},{"id":"X2"},{"cusip":"nokey"}]`,
	}
	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/data/instrument/", r.URL.Path)
			assert.Equal(t, "outstanding", r.URL.Query().Get("status"))
			assert.Equal(t, "50", r.URL.Query().Get("limit"))
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, body)
		})

		bonds, err := c.ListInstruments(context.Background(), "outstanding", 50)
		require.NoError(t, err)
		require.Len(t, bonds, 2)
		assert.Equal(t, "US1", bonds[0].ID)
		assert.Equal(t, "4.5", bonds[0].Coupon.String())
		assert.Equal(t, "X2", bonds[1].ID)
		assert.Equal(t, domain.DefaultIssuer, bonds[1].Issuer)
	}
}

func TestGetQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trading/quote/US1/", r.URL.Path)
		assert.Equal(t, "250000", r.URL.Query().Get("quantity"))
		_, _ = io.WriteString(w, `{"bid_price":99.1,"ask_price":"99.30","bid_size":500000,"timestamp":"2026-03-01T10:00:00Z"}`)
	})

	q, err := c.GetQuote(context.Background(), "US1", domain.MustNum("250000"))
	require.NoError(t, err)
	assert.Equal(t, "US1", q.BondID)
	assert.Equal(t, "99.1", q.BidPrice.String())
	assert.Equal(t, "99.3", q.AskPrice.String())
	assert.False(t, q.AskSize.Valid())
	assert.Equal(t, domain.QuoteLive, q.Status)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), q.Timestamp)
}

func TestGetMarks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/data/marks/", r.URL.Path)
		var req struct {
			InstrumentIDs []string `json:"instrument_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"A", "B"}, req.InstrumentIDs)
		_, _ = io.WriteString(w, `{"marks":{"A":{"bid_price":"100","ask_price":"100.5"},"B":{}}}`)
	})

	marks, err := c.GetMarks(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, marks, 2)
	assert.Equal(t, domain.QuoteLive, marks["A"].Status)
	assert.Equal(t, domain.QuoteUnavailable, marks["B"].Status)
	assert.Equal(t, "B", marks["B"].BondID)
}

func TestGetMarks_EmptyIDsSkipsRequest(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

	marks, err := c.GetMarks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, marks)
	assert.Zero(t, hits.Load())
}

func TestGetOrderBook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"bids":[{"price":"99","size":"1000"},{"size":"5"}],"asks":[{"price":99.5,"quantity":2000,"ytm":4.1}]}`)
	})

	book, err := c.GetOrderBook(context.Background(), "US1")
	require.NoError(t, err)
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, "2000", book.Asks[0].Size.String())
	assert.Equal(t, "4.1", book.Asks[0].YieldToMaturity.String())
	assert.False(t, book.Timestamp.IsZero())
}

func TestGetPriceHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/data/instrument/US1/price/", r.URL.Path)
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("start"))
		assert.Equal(t, "2026-01-31", r.URL.Query().Get("end"))
		assert.Equal(t, "1day", r.URL.Query().Get("frequency"))
		_, _ = io.WriteString(w, `{"price_data":[{"date":"2026-01-02","close":"98.2","yield_to_maturity":4.4}]}`)
	})

	hist, err := c.GetPriceHistory(context.Background(), "US1", "2026-01-01", "2026-01-31", "1day")
	require.NoError(t, err)
	require.Equal(t, 1, hist.Count)
	assert.Equal(t, "2026-01-02", hist.Data[0].Timestamp)
	assert.Equal(t, "98.2", hist.Data[0].Price.String())
	assert.Equal(t, "4.4", hist.Data[0].Yield.String())
	assert.Equal(t, "2026-01-01", hist.StartDate)
}

func TestSubmitOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trading/orders/", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "US1", body["instrument_id"])
		assert.Equal(t, "buy", body["side"])
		assert.Equal(t, "limit", body["order_type"])
		assert.EqualValues(t, 1000, body["quantity"])
		assert.EqualValues(t, 99.5, body["price"])
		_, _ = io.WriteString(w, `{"order_id":"up-1","status":"FILLED","filled_quantity":1000,"avg_price":"99.4"}`)
	})

	o, err := c.SubmitOrder(context.Background(), SubmitRequest{
		InstrumentID: "US1",
		Side:         domain.OrderSideBuy,
		OrderType:    domain.OrderTypeLimit,
		Quantity:     domain.MustNum("1000"),
		Price:        domain.MustNum("99.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "up-1", o.ID)
	assert.Equal(t, domain.OrderStatusFilled, o.Status)
	assert.Equal(t, "99.4", o.AverageFillPrice.String())
}

func TestSubmitOrder_MarketOmitsPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasPrice := body["price"]
		assert.False(t, hasPrice)
		_, _ = io.WriteString(w, `{"id":"up-2","status":"pending"}`)
	})

	o, err := c.SubmitOrder(context.Background(), SubmitRequest{
		InstrumentID: "US1",
		Side:         domain.OrderSideSell,
		OrderType:    domain.OrderTypeMarket,
		Quantity:     domain.MustNum("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "up-2", o.ID)
}

func TestListOrders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "filled", r.URL.Query().Get("status"))
		_, _ = io.WriteString(w, `{"orders":[{"id":"a","status":"filled"},{"order_id":"b","status":"filled"}]}`)
	})

	orders, err := c.ListOrders(context.Background(), "filled")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "b", orders[1].ID)
}

func TestCancelOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/trading/orders/up-1/cancel/", r.URL.Path)
		_, _ = io.WriteString(w, `{}`)
	})
	require.NoError(t, c.CancelOrder(context.Background(), "up-1"))
}

func TestAnalyticsPassThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/analytics/US1/price-to-yield/", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 98.5, body["price"])
		_, _ = io.WriteString(w, `{"yield_to_maturity":4.71}`)
	})

	out, err := c.PriceToYield(context.Background(), "US1", domain.MustNum("98.5"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"yield_to_maturity":4.71}`, string(out))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadRequest, domain.ErrInvalidInput},
		{http.StatusBadGateway, domain.ErrUpstreamUnavailable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		})
		_, err := c.GetInstrument(context.Background(), "US1")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	var observed atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithObserver(func(string, error, time.Duration) { observed.Add(1) }))

	for i := 0; i < 2; i++ {
		_, err := c.GetOrderBook(context.Background(), "US1")
		require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.GetOrderBook(context.Background(), "US1")
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(3), observed.Load())
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	for i := 0; i < 5; i++ {
		_, err := c.GetInstrument(context.Background(), "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, "closed", c.BreakerState())
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(f, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseBulkArchive(t *testing.T) {
	csv := "ISIN,issuer_name,asset_type,credit_rating,industry_sector,coupon,maturity,currency\n" +
		"US111,Acme Corp,Government,AA,utilities,3.25,2031-06-15,usd\n" +
		",Nobody,corporate,B,,1,2030-01-01,USD\n" +
		"US222,,,,,,,\n"
	data := buildZip(t, map[string]string{"instruments.csv": csv})

	bonds, err := ParseBulkArchive(data)
	require.NoError(t, err)
	require.Len(t, bonds, 2)

	b := bonds[0]
	assert.Equal(t, "US111", b.ID)
	assert.Equal(t, "US111", b.ISIN)
	assert.Equal(t, "Acme Corp", b.Issuer)
	assert.Equal(t, domain.BondTypeGovernment, b.BondType)
	assert.Equal(t, "AA", b.Rating)
	assert.Equal(t, "utilities", b.Sector)
	assert.Equal(t, "3.25", b.Coupon.String())
	assert.Equal(t, "USD", b.Currency)
	assert.Equal(t, "1000", b.ParValue.String())
	require.NotNil(t, b.MaturityDate)
	assert.Equal(t, 2031, b.MaturityDate.Year())

	assert.Equal(t, "US222", bonds[1].ID)
	assert.Equal(t, domain.DefaultIssuer, bonds[1].Issuer)
	assert.Equal(t, domain.BondTypeCorporate, bonds[1].BondType)
}

func TestParseBulkArchive_NoCSV(t *testing.T) {
	data := buildZip(t, map[string]string{"readme.txt": "hello"})
	_, err := ParseBulkArchive(data)
	assert.ErrorIs(t, err, ErrNoCSV)
}

func TestBulkDownload(t *testing.T) {
	data := buildZip(t, map[string]string{"bonds.csv": "instrument_id,isin\nX1,US9\n"})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/data/instrument/bulk-download/", r.URL.Path)
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(data)
	})

	bonds, err := c.BulkDownload(context.Background())
	require.NoError(t, err)
	require.Len(t, bonds, 1)
	assert.Equal(t, "US9", bonds[0].ID)
}
