package domain

// PricePoint is one sample of a historical price series.
type PricePoint struct {
	Timestamp string `json:"timestamp"`
	Price     Num    `json:"price"`
	Yield     Num    `json:"yield"`
	Volume    Num    `json:"volume"`
}

// PriceHistory is a price series for one bond over a date range.
type PriceHistory struct {
	Data      []PricePoint `json:"data"`
	Count     int          `json:"count"`
	Frequency string       `json:"frequency"`
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date"`
}

// EmptyPriceHistory is returned when the upstream series is unavailable.
func EmptyPriceHistory(frequency, start, end string) PriceHistory {
	return PriceHistory{
		Data:      []PricePoint{},
		Frequency: frequency,
		StartDate: start,
		EndDate:   end,
	}
}
