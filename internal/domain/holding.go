package domain

import "time"

// Holding is a portfolio position in one bond.
type Holding struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	BondID       string    `json:"bondId"`
	Quantity     Num       `json:"quantity"`
	CostBasis    Num       `json:"costBasis"`
	CurrentValue Num       `json:"currentValue"`
	PurchaseDate time.Time `json:"purchaseDate"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HoldingPatch carries a partial holding update.
type HoldingPatch struct {
	Quantity     *Num
	CostBasis    *Num
	CurrentValue *Num
}

func (p HoldingPatch) Apply(h Holding) Holding {
	if p.Quantity != nil {
		h.Quantity = *p.Quantity
	}
	if p.CostBasis != nil {
		h.CostBasis = *p.CostBasis
	}
	if p.CurrentValue != nil {
		h.CurrentValue = *p.CurrentValue
	}
	return h
}

// HoldingView is a holding joined with its bond.
type HoldingView struct {
	Holding
	Bond *Bond `json:"bond"`
}

// PortfolioSummary aggregates a user's holdings.
type PortfolioSummary struct {
	TotalValue         Num `json:"totalValue"`
	TotalCost          Num `json:"totalCost"`
	TotalReturn        Num `json:"totalReturn"`
	TotalReturnPercent Num `json:"totalReturnPercent"`
	IncomeReturn       Num `json:"incomeReturn"`
	PriceReturn        Num `json:"priceReturn"`
	AverageYield       Num `json:"averageYield"`
	ModifiedDuration   Num `json:"modifiedDuration"`
	EffectiveDuration  Num `json:"effectiveDuration"`
	Convexity          Num `json:"convexity"`
	ActiveBonds        int `json:"activeBonds"`
}

// Portfolio is the holdings listing plus its summary.
type Portfolio struct {
	Holdings []HoldingView    `json:"holdings"`
	Summary  PortfolioSummary `json:"summary"`
}

// WatchlistItem marks a bond a user is watching. (UserID, BondID) is unique.
type WatchlistItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BondID    string    `json:"bondId"`
	CreatedAt time.Time `json:"createdAt"`
}
