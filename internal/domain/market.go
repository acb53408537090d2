package domain

import "time"

// MarketData is the latest market snapshot for one bond.
type MarketData struct {
	BondID         string    `json:"bondId"`
	BidPrice       Num       `json:"bidPrice"`
	AskPrice       Num       `json:"askPrice"`
	BidSize        Num       `json:"bidSize"`
	AskSize        Num       `json:"askSize"`
	LastTradePrice Num       `json:"lastTradePrice"`
	LastTradeSize  Num       `json:"lastTradeSize"`
	Volume         Num       `json:"volume"`
	QuoteStatus    string    `json:"quoteStatus"`
	Timestamp      time.Time `json:"timestamp"`
}

// MarketDataFromQuote builds a snapshot from q. Trade fields are left
// unset; the store carries them over from the previous snapshot.
func MarketDataFromQuote(q Quote) MarketData {
	return MarketData{
		BondID:      q.BondID,
		BidPrice:    q.BidPrice,
		AskPrice:    q.AskPrice,
		BidSize:     q.BidSize,
		AskSize:     q.AskSize,
		QuoteStatus: string(q.Status),
		Timestamp:   q.Timestamp,
	}
}
