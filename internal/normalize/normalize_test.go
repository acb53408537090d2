package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

func decodeInstrument(t *testing.T, body string) RawInstrument {
	t.Helper()
	var raw RawInstrument
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestBond_Defaults(t *testing.T) {
	b := Bond(decodeInstrument(t, `{"isin":"US0000000001"}`))

	assert.Equal(t, "US0000000001", b.ID)
	assert.Equal(t, domain.DefaultIssuer, b.Issuer)
	assert.Equal(t, "", b.Description)
	assert.Equal(t, domain.BondTypeCorporate, b.BondType)
	assert.Equal(t, domain.DefaultCurrency, b.Currency)
	assert.Equal(t, domain.BondStatusOutstanding, b.Status)
	assert.False(t, b.Coupon.Valid())
	assert.False(t, b.LastPrice.Valid())
	assert.Nil(t, b.MaturityDate)

	out, err := json.Marshal(b)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	for _, key := range []string{"coupon", "parValue", "lastPrice", "ytm", "ytw", "maturityDate"} {
		v, ok := fields[key]
		assert.True(t, ok, "field %s must be present", key)
		assert.Nil(t, v, "field %s must be null", key)
	}
}

func TestBond_IdentityResolution(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"isin wins", `{"isin":"US1","id":"abc"}`, "US1"},
		{"id fallback", `{"id":"abc"}`, "abc"},
		{"numeric id", `{"id":12345}`, "12345"},
		{"missing", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bond(decodeInstrument(t, tt.body)).ID)
		})
	}
}

func TestBond_NumericCoercion(t *testing.T) {
	raw := decodeInstrument(t, `{
		"isin":"US2",
		"coupon":4.875,
		"last_price":"98.50",
		"par_value":"1000",
		"yield_to_maturity":"5.123456789012345678901",
		"yield_to_worst":"N/A"
	}`)
	b := Bond(raw)

	assert.Equal(t, "4.875", b.Coupon.String())
	assert.Equal(t, "98.5", b.LastPrice.String())
	assert.Equal(t, "1000", b.ParValue.String())
	assert.Equal(t, "5.123456789012345678901", b.YTM.String())
	assert.False(t, b.YTW.Valid())
}

func TestBond_TypeAndCase(t *testing.T) {
	raw := decodeInstrument(t, `{"isin":"US3","asset_class":"TREASURY","currency":"eur","status":"Matured","maturity_date":"2031-06-15"}`)
	b := Bond(raw)

	assert.Equal(t, domain.BondTypeGovernment, b.BondType)
	assert.Equal(t, "EUR", b.Currency)
	assert.Equal(t, domain.BondStatusMatured, b.Status)
	require.NotNil(t, b.MaturityDate)
	assert.Equal(t, time.Date(2031, 6, 15, 0, 0, 0, 0, time.UTC), *b.MaturityDate)

	assert.Equal(t, domain.BondTypeCorporate, BondType("convertible"))
	assert.Equal(t, domain.BondTypeMunicipal, BondType("Muni"))
}

func TestBond_Idempotent(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"id":"x-1","issuer":"  ","coupon":"2.400"}`,
		`{"isin":"US037833100","issuer":"Apple Inc.","asset_class":"Corporate","coupon":"2.400","last_price":"98.50","maturity_date":"2030-05-15T00:00:00Z","currency":"usd"}`,
	}
	for _, body := range bodies {
		once := Bond(decodeInstrument(t, body))
		twice := Bond(FromBond(once))
		assert.Equal(t, once, twice, body)
		assert.Equal(t, once, CanonicalBond(once), body)
	}
}

func TestQuote(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var live RawQuote
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2026-01-01T00:00:00Z","bid_price":99.1,"ask_price":"99.30","bid_size":500000}`), &live))
	q := Quote(live, "US1", now)
	assert.Equal(t, domain.QuoteLive, q.Status)
	assert.Equal(t, "99.1", q.BidPrice.String())
	assert.Equal(t, "99.3", q.AskPrice.String())
	assert.Equal(t, "500000", q.BidSize.String())
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), q.Timestamp)

	var empty RawQuote
	require.NoError(t, json.Unmarshal([]byte(`{"bid_price":null,"ask_price":null}`), &empty))
	q = Quote(empty, "US1", now)
	assert.Equal(t, domain.QuoteUnavailable, q.Status)
	assert.False(t, q.HasPrices())
	assert.Equal(t, now, q.Timestamp)
}

func TestOrderBook(t *testing.T) {
	now := time.Now().UTC()

	var raw RawOrderBook
	require.NoError(t, json.Unmarshal([]byte(`{"bids":[{"price":"99.5","size":100000,"ytm":"4.1"},{"size":5}],"asks":null}`), &raw))
	book := OrderBook(raw, "US1", now)

	require.Len(t, book.Bids, 1)
	assert.Equal(t, "99.5", book.Bids[0].Price.String())
	assert.Equal(t, "100000", book.Bids[0].Size.String())
	assert.Equal(t, "4.1", book.Bids[0].YieldToMaturity.String())
	assert.NotNil(t, book.Asks)
	assert.Empty(t, book.Asks)
	assert.Equal(t, now, book.Timestamp)

	out, err := json.Marshal(OrderBook(RawOrderBook{}, "", now))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"bids":[]`)
	assert.Contains(t, string(out), `"asks":[]`)
}

func TestOrder(t *testing.T) {
	var raw RawOrder
	require.NoError(t, json.Unmarshal([]byte(`{"order_id":"up-9","instrument_id":"US1","side":"BUY","status":"Cancelled","avg_price":"99.25"}`), &raw))
	o := Order(raw)

	assert.Equal(t, "up-9", o.ID)
	assert.Equal(t, domain.OrderSideBuy, o.Side)
	assert.Equal(t, domain.OrderStatusCanceled, o.Status)
	assert.Equal(t, "99.25", o.AverageFillPrice.String())
}

func TestPricePoint(t *testing.T) {
	var raw RawPricePoint
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2026-01-05","close":101.25,"yield_to_maturity":"4.50"}`), &raw))
	p := PricePoint(raw)

	assert.Equal(t, "2026-01-05", p.Timestamp)
	assert.Equal(t, "101.25", p.Price.String())
	assert.Equal(t, "4.5", p.Yield.String())
	assert.False(t, p.Volume.Valid())
}

func TestRecordKinds(t *testing.T) {
	records := []Record{RawInstrument{}, RawQuote{}, RawOrderBook{}, RawOrder{}, RawPricePoint{}}
	kinds := make([]Kind, 0, len(records))
	for _, r := range records {
		kinds = append(kinds, r.Kind())
	}
	assert.Equal(t, []Kind{KindInstrument, KindQuote, KindOrderBook, KindOrder, KindPricePoint}, kinds)
}
