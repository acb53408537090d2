package domain

import "time"

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price           Num `json:"price"`
	Size            Num `json:"size"`
	YieldToMaturity Num `json:"yieldToMaturity"`
}

// OrderBook holds the bid and ask ladders for one bond.
type OrderBook struct {
	BondID    string      `json:"bondId,omitempty"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp time.Time   `json:"timestamp"`
}

// EmptyOrderBook returns a book with non-nil empty ladders.
func EmptyOrderBook(bondID string, now time.Time) OrderBook {
	return OrderBook{
		BondID:    bondID,
		Bids:      []BookLevel{},
		Asks:      []BookLevel{},
		Timestamp: now,
	}
}
