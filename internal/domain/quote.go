package domain

import "time"

// QuoteStatus tags where a quote came from.
type QuoteStatus string

const (
	QuoteLive        QuoteStatus = "live"
	QuoteEstimated   QuoteStatus = "estimated"
	QuoteUnavailable QuoteStatus = "unavailable"
	QuoteNoData      QuoteStatus = "no_data_available"
)

// QuoteSourceFallback marks quotes synthesized locally.
const QuoteSourceFallback = "fallback"

// Quote is a point-in-time bid/ask snapshot for one bond.
type Quote struct {
	BondID             string      `json:"bondId"`
	BidPrice           Num         `json:"bidPrice"`
	AskPrice           Num         `json:"askPrice"`
	BidYieldToMaturity Num         `json:"bidYieldToMaturity"`
	BidYieldToWorst    Num         `json:"bidYieldToWorst"`
	AskYieldToMaturity Num         `json:"askYieldToMaturity"`
	AskYieldToWorst    Num         `json:"askYieldToWorst"`
	BidSize            Num         `json:"bidSize"`
	AskSize            Num         `json:"askSize"`
	BidMinSize         Num         `json:"bidMinSize"`
	AskMinSize         Num         `json:"askMinSize"`
	Timestamp          time.Time   `json:"timestamp"`
	Status             QuoteStatus `json:"status"`
	Source             string      `json:"source,omitempty"`
}

// HasPrices reports whether either side carries a price.
func (q Quote) HasPrices() bool {
	return q.BidPrice.Valid() || q.AskPrice.Valid()
}

// QuoteUpdate is the message pushed to subscribers.
type QuoteUpdate struct {
	Type   string `json:"type"`
	BondID string `json:"bondId"`
	Quote  Quote  `json:"quote"`
}

const MessageQuoteUpdate = "quote_update"
