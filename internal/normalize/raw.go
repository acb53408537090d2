// Package normalize maps raw upstream records onto the internal bond, quote,
// order book and order shapes. Every function here is a pure transform.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Kind tags a raw upstream record variant.
type Kind string

const (
	KindInstrument Kind = "instrument"
	KindQuote      Kind = "quote"
	KindOrderBook  Kind = "order_book"
	KindOrder      Kind = "order"
	KindPricePoint Kind = "price_point"
)

// Record is implemented by every raw upstream variant.
type Record interface {
	Kind() Kind
}

// Number decodes a JSON number, numeric string or null. Anything else
// decodes to null rather than failing the enclosing record.
type Number domain.Num

func (n *Number) UnmarshalJSON(data []byte) error {
	var v domain.Num
	if err := v.UnmarshalJSON(data); err != nil {
		*n = Number{}
		return nil
	}
	*n = Number(v)
	return nil
}

func (n Number) Num() domain.Num { return domain.Num(n) }

// Text decodes a JSON string or number into a trimmed string.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Text(n.String())
		return nil
	}
	*t = ""
	return nil
}

func (t Text) String() string { return string(t) }

// RawInstrument is a raw upstream instrument record.
type RawInstrument struct {
	ISIN            Text   `json:"isin"`
	ID              Text   `json:"id"`
	InstrumentID    Text   `json:"instrument_id"`
	CUSIP           Text   `json:"cusip"`
	Issuer          Text   `json:"issuer"`
	Description     Text   `json:"description"`
	AssetClass      Text   `json:"asset_class"`
	BondType        Text   `json:"bond_type"`
	Sector          Text   `json:"sector"`
	Rating          Text   `json:"rating"`
	Coupon          Number `json:"coupon"`
	MaturityDate    Text   `json:"maturity_date"`
	Currency        Text   `json:"currency"`
	ParValue        Number `json:"par_value"`
	LastPrice       Number `json:"last_price"`
	YieldToMaturity Number `json:"yield_to_maturity"`
	YieldToWorst    Number `json:"yield_to_worst"`
	Status          Text   `json:"status"`
}

func (RawInstrument) Kind() Kind { return KindInstrument }

// RawQuote is a raw upstream quote record.
type RawQuote struct {
	Timestamp          Text   `json:"timestamp"`
	BidPrice           Number `json:"bid_price"`
	BidYieldToMaturity Number `json:"bid_yield_to_maturity"`
	BidYieldToWorst    Number `json:"bid_yield_to_worst"`
	BidSize            Number `json:"bid_size"`
	BidMinSize         Number `json:"bid_min_size"`
	AskPrice           Number `json:"ask_price"`
	AskYieldToMaturity Number `json:"ask_yield_to_maturity"`
	AskYieldToWorst    Number `json:"ask_yield_to_worst"`
	AskSize            Number `json:"ask_size"`
	AskMinSize         Number `json:"ask_min_size"`
}

func (RawQuote) Kind() Kind { return KindQuote }

// RawLevel is one raw order book entry.
type RawLevel struct {
	Price           Number `json:"price"`
	Size            Number `json:"size"`
	Quantity        Number `json:"quantity"`
	YieldToMaturity Number `json:"yield_to_maturity"`
	YTM             Number `json:"ytm"`
}

// RawOrderBook is a raw upstream order book.
type RawOrderBook struct {
	Bids      []RawLevel `json:"bids"`
	Asks      []RawLevel `json:"asks"`
	Timestamp Text       `json:"timestamp"`
}

func (RawOrderBook) Kind() Kind { return KindOrderBook }

// RawOrder is a raw upstream order record.
type RawOrder struct {
	ID               Text   `json:"id"`
	OrderID          Text   `json:"order_id"`
	InstrumentID     Text   `json:"instrument_id"`
	Side             Text   `json:"side"`
	Status           Text   `json:"status"`
	Quantity         Number `json:"quantity"`
	FilledQuantity   Number `json:"filled_quantity"`
	AverageFillPrice Number `json:"average_fill_price"`
	AveragePrice     Number `json:"avg_price"`
}

func (RawOrder) Kind() Kind { return KindOrder }

// RawPricePoint is one raw historical price sample.
type RawPricePoint struct {
	Timestamp       Text   `json:"timestamp"`
	Date            Text   `json:"date"`
	Price           Number `json:"price"`
	Close           Number `json:"close"`
	MidPrice        Number `json:"mid_price"`
	Yield           Number `json:"yield"`
	YieldToMaturity Number `json:"yield_to_maturity"`
	Volume          Number `json:"volume"`
}

func (RawPricePoint) Kind() Kind { return KindPricePoint }
