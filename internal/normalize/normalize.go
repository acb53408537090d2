package normalize

import (
	"strings"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseTime parses the date formats the upstream API emits. The second
// return is false when s is blank or unparseable.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// BondType lower-cases an asset class and folds it onto the known bond
// types. Missing or unknown classes become corporate.
func BondType(assetClass string) string {
	switch strings.ToLower(strings.TrimSpace(assetClass)) {
	case "government", "govt", "treasury", "sovereign":
		return domain.BondTypeGovernment
	case "municipal", "muni":
		return domain.BondTypeMunicipal
	case "agency":
		return domain.BondTypeAgency
	}
	return domain.BondTypeCorporate
}

// Bond normalizes a raw instrument. The primary key is the ISIN, then the
// upstream id or instrument id, else empty; callers reject empty ids where
// they must.
func Bond(raw RawInstrument) domain.Bond {
	b := domain.Bond{
		ID:          raw.ISIN.String(),
		ISIN:        raw.ISIN.String(),
		CUSIP:       raw.CUSIP.String(),
		Issuer:      raw.Issuer.String(),
		Description: raw.Description.String(),
		BondType:    raw.AssetClass.String(),
		Sector:      raw.Sector.String(),
		Rating:      raw.Rating.String(),
		Coupon:      raw.Coupon.Num(),
		Currency:    raw.Currency.String(),
		ParValue:    raw.ParValue.Num(),
		LastPrice:   raw.LastPrice.Num(),
		YTM:         raw.YieldToMaturity.Num(),
		YTW:         raw.YieldToWorst.Num(),
		Status:      raw.Status.String(),
	}
	if b.ID == "" {
		b.ID = raw.ID.String()
	}
	if b.ID == "" {
		b.ID = raw.InstrumentID.String()
	}
	if b.BondType == "" {
		b.BondType = raw.BondType.String()
	}
	if t, ok := ParseTime(raw.MaturityDate.String()); ok {
		b.MaturityDate = &t
	}
	return CanonicalBond(b)
}

// CanonicalBond fills defaults on an already-typed bond. An empty id falls
// back to the ISIN. Applying it twice changes nothing.
func CanonicalBond(b domain.Bond) domain.Bond {
	b.ID = strings.TrimSpace(b.ID)
	b.ISIN = strings.TrimSpace(b.ISIN)
	if b.ID == "" {
		b.ID = b.ISIN
	}
	if strings.TrimSpace(b.Issuer) == "" {
		b.Issuer = domain.DefaultIssuer
	}
	b.BondType = BondType(b.BondType)
	if strings.TrimSpace(b.Currency) == "" {
		b.Currency = domain.DefaultCurrency
	} else {
		b.Currency = strings.ToUpper(strings.TrimSpace(b.Currency))
	}
	if strings.TrimSpace(b.Status) == "" {
		b.Status = domain.BondStatusOutstanding
	} else {
		b.Status = strings.ToLower(strings.TrimSpace(b.Status))
	}
	return b
}

// FromBond converts a normalized bond back into its raw form.
func FromBond(b domain.Bond) RawInstrument {
	raw := RawInstrument{
		ISIN:            Text(b.ISIN),
		ID:              Text(b.ID),
		CUSIP:           Text(b.CUSIP),
		Issuer:          Text(b.Issuer),
		Description:     Text(b.Description),
		AssetClass:      Text(b.BondType),
		Sector:          Text(b.Sector),
		Rating:          Text(b.Rating),
		Coupon:          Number(b.Coupon),
		Currency:        Text(b.Currency),
		ParValue:        Number(b.ParValue),
		LastPrice:       Number(b.LastPrice),
		YieldToMaturity: Number(b.YTM),
		YieldToWorst:    Number(b.YTW),
		Status:          Text(b.Status),
	}
	if b.MaturityDate != nil {
		raw.MaturityDate = Text(b.MaturityDate.UTC().Format(time.RFC3339Nano))
	}
	return raw
}

// Quote normalizes a raw quote for bondID. A missing timestamp becomes now.
// Quotes with any price are live; those without are unavailable.
func Quote(raw RawQuote, bondID string, now time.Time) domain.Quote {
	q := domain.Quote{
		BondID:             bondID,
		BidPrice:           raw.BidPrice.Num(),
		AskPrice:           raw.AskPrice.Num(),
		BidYieldToMaturity: raw.BidYieldToMaturity.Num(),
		BidYieldToWorst:    raw.BidYieldToWorst.Num(),
		AskYieldToMaturity: raw.AskYieldToMaturity.Num(),
		AskYieldToWorst:    raw.AskYieldToWorst.Num(),
		BidSize:            raw.BidSize.Num(),
		AskSize:            raw.AskSize.Num(),
		BidMinSize:         raw.BidMinSize.Num(),
		AskMinSize:         raw.AskMinSize.Num(),
		Timestamp:          now.UTC(),
		Status:             domain.QuoteUnavailable,
	}
	if t, ok := ParseTime(raw.Timestamp.String()); ok {
		q.Timestamp = t
	}
	if q.HasPrices() {
		q.Status = domain.QuoteLive
	}
	return q
}

// OrderBook normalizes a raw book. Levels without a price are dropped and
// the ladders are never nil.
func OrderBook(raw RawOrderBook, bondID string, now time.Time) domain.OrderBook {
	book := domain.EmptyOrderBook(bondID, now.UTC())
	if t, ok := ParseTime(raw.Timestamp.String()); ok {
		book.Timestamp = t
	}
	book.Bids = levels(raw.Bids)
	book.Asks = levels(raw.Asks)
	return book
}

func levels(raw []RawLevel) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(raw))
	for _, l := range raw {
		price := l.Price.Num()
		if !price.Valid() {
			continue
		}
		out = append(out, domain.BookLevel{
			Price:           price,
			Size:            l.Size.Num().Or(l.Quantity.Num()),
			YieldToMaturity: l.YieldToMaturity.Num().Or(l.YTM.Num()),
		})
	}
	return out
}

// Order normalizes a raw upstream order.
func Order(raw RawOrder) domain.UpstreamOrder {
	id := raw.ID.String()
	if id == "" {
		id = raw.OrderID.String()
	}
	return domain.UpstreamOrder{
		ID:               id,
		InstrumentID:     raw.InstrumentID.String(),
		Side:             domain.OrderSide(strings.ToLower(raw.Side.String())),
		Status:           domain.ParseOrderStatus(raw.Status.String()),
		Quantity:         raw.Quantity.Num(),
		FilledQuantity:   raw.FilledQuantity.Num(),
		AverageFillPrice: raw.AverageFillPrice.Num().Or(raw.AveragePrice.Num()),
	}
}

// PricePoint normalizes one historical sample.
func PricePoint(raw RawPricePoint) domain.PricePoint {
	ts := raw.Timestamp.String()
	if ts == "" {
		ts = raw.Date.String()
	}
	return domain.PricePoint{
		Timestamp: ts,
		Price:     raw.Price.Num().Or(raw.Close.Num()).Or(raw.MidPrice.Num()),
		Yield:     raw.Yield.Num().Or(raw.YieldToMaturity.Num()),
		Volume:    raw.Volume.Num(),
	}
}
