package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

var (
	hundred     = decimal.NewFromInt(100)
	hoursInYear = decimal.NewFromFloat(24 * 365.25)
)

// HoldingRequest is the input for adding a portfolio holding.
type HoldingRequest struct {
	UserID       string     `json:"userId"`
	BondID       string     `json:"bondId"`
	Quantity     domain.Num `json:"quantity"`
	CostBasis    domain.Num `json:"costBasis"`
	CurrentValue domain.Num `json:"currentValue"`
	PurchaseDate *time.Time `json:"purchaseDate"`
}

// PortfolioService serves holdings and their summary.
type PortfolioService struct {
	holdings domain.HoldingStore
	bonds    domain.BondStore
	market   domain.MarketDataStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewPortfolioService creates a PortfolioService.
func NewPortfolioService(
	holdings domain.HoldingStore,
	bonds domain.BondStore,
	market domain.MarketDataStore,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		holdings: holdings,
		bonds:    bonds,
		market:   market,
		logger:   logger.With(slog.String("component", "portfolio_service")),
		now:      time.Now,
	}
}

// AddHolding records a holding in an existing bond.
func (s *PortfolioService) AddHolding(ctx context.Context, req HoldingRequest) (domain.Holding, error) {
	if strings.TrimSpace(req.BondID) == "" {
		return domain.Holding{}, fmt.Errorf("portfolio_service: %w: bondId is required", domain.ErrInvalidInput)
	}
	if !req.Quantity.Positive() {
		return domain.Holding{}, fmt.Errorf("portfolio_service: %w: quantity must be greater than zero", domain.ErrInvalidInput)
	}
	if !req.CostBasis.Valid() || req.CostBasis.Decimal().IsNegative() {
		return domain.Holding{}, fmt.Errorf("portfolio_service: %w: costBasis must be zero or more", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = DefaultUserID
	}

	bond, err := lookupBond(ctx, s.bonds, req.BondID)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("portfolio_service: bond %q: %w", req.BondID, err)
	}

	h := domain.Holding{
		UserID:       req.UserID,
		BondID:       bond.ID,
		Quantity:     req.Quantity,
		CostBasis:    req.CostBasis,
		CurrentValue: req.CurrentValue,
	}
	if req.PurchaseDate != nil {
		h.PurchaseDate = req.PurchaseDate.UTC()
	}
	created, err := s.holdings.Create(ctx, h)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("portfolio_service: create holding: %w", err)
	}
	return created, nil
}

// RemoveHolding deletes a holding.
func (s *PortfolioService) RemoveHolding(ctx context.Context, id string) error {
	if err := s.holdings.Delete(ctx, id); err != nil {
		return fmt.Errorf("portfolio_service: delete holding %q: %w", id, err)
	}
	return nil
}

// Portfolio returns userID's holdings joined with their bonds, with current
// values derived from market data, and the portfolio summary.
func (s *PortfolioService) Portfolio(ctx context.Context, userID string) (domain.Portfolio, error) {
	if strings.TrimSpace(userID) == "" {
		userID = DefaultUserID
	}
	holdings, err := s.holdings.ListByUser(ctx, userID)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("portfolio_service: list holdings: %w", err)
	}

	views := make([]domain.HoldingView, 0, len(holdings))
	for _, h := range holdings {
		v := domain.HoldingView{Holding: h}
		if b, err := s.bonds.GetByID(ctx, h.BondID); err == nil {
			v.Bond = &b
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.Portfolio{}, fmt.Errorf("portfolio_service: bond %q: %w", h.BondID, err)
		}
		v.CurrentValue = s.currentValue(ctx, h, v.Bond)
		views = append(views, v)
	}

	return domain.Portfolio{
		Holdings: views,
		Summary:  summarize(views, s.now().UTC()),
	}, nil
}

// currentValue prices a holding at the market mid, else the bond's last
// price, quoted per 100 of face. Without any price it keeps the stored value,
// and without that the cost basis.
func (s *PortfolioService) currentValue(ctx context.Context, h domain.Holding, b *domain.Bond) domain.Num {
	price := domain.Num{}
	if md, err := s.market.Get(ctx, h.BondID); err == nil {
		price = mid(md.BidPrice, md.AskPrice)
	}
	if !price.Valid() && b != nil && b.LastPrice.Positive() {
		price = b.LastPrice
	}
	if price.Valid() {
		return domain.NumFromDecimal(h.Quantity.Decimal().Mul(price.Decimal()).Div(hundred).Round(2))
	}
	return h.CurrentValue.Or(h.CostBasis)
}

func mid(bid, ask domain.Num) domain.Num {
	switch {
	case bid.Valid() && ask.Valid():
		return domain.NumFromDecimal(bid.Decimal().Add(ask.Decimal()).Div(decimal.NewFromInt(2)))
	case bid.Valid():
		return bid
	default:
		return ask
	}
}

// summarize aggregates holdings. Yield is quantity weighted (ytm, else
// coupon). Durations and convexity are value weighted zero-coupon
// approximations from years to maturity T and yield y:
// modified duration T/(1+y) and convexity T(T+1)/(1+y)^2. Income return is
// not tracked and reported as zero; price return equals the total return
// percentage.
func summarize(views []domain.HoldingView, now time.Time) domain.PortfolioSummary {
	var (
		totalValue, totalCost     decimal.Decimal
		yieldSum, yieldQty        decimal.Decimal
		durSum, convSum, riskBase decimal.Decimal
	)
	for _, v := range views {
		value := v.CurrentValue.Decimal()
		totalValue = totalValue.Add(value)
		totalCost = totalCost.Add(v.CostBasis.Decimal())

		if v.Bond == nil {
			continue
		}
		y := v.Bond.YTM.Or(v.Bond.Coupon)
		if !y.Valid() {
			continue
		}
		qty := v.Quantity.Decimal()
		yieldSum = yieldSum.Add(qty.Mul(y.Decimal()))
		yieldQty = yieldQty.Add(qty)

		if v.Bond.MaturityDate == nil {
			continue
		}
		years := decimal.NewFromFloat(v.Bond.MaturityDate.Sub(now).Hours()).Div(hoursInYear)
		if years.IsNegative() {
			years = decimal.Zero
		}
		onePlusY := decimal.NewFromInt(1).Add(y.Decimal().Div(hundred))
		durSum = durSum.Add(value.Mul(years.Div(onePlusY)))
		convSum = convSum.Add(value.Mul(years.Mul(years.Add(decimal.NewFromInt(1))).Div(onePlusY.Mul(onePlusY))))
		riskBase = riskBase.Add(value)
	}

	totalReturn := totalValue.Sub(totalCost)
	returnPct := decimal.Zero
	if totalCost.IsPositive() {
		returnPct = totalReturn.Div(totalCost).Mul(hundred)
	}
	avgYield, duration, convexity := decimal.Zero, decimal.Zero, decimal.Zero
	if yieldQty.IsPositive() {
		avgYield = yieldSum.Div(yieldQty)
	}
	if riskBase.IsPositive() {
		duration = durSum.Div(riskBase)
		convexity = convSum.Div(riskBase)
	}

	return domain.PortfolioSummary{
		TotalValue:         domain.NumFromDecimal(totalValue.Round(2)),
		TotalCost:          domain.NumFromDecimal(totalCost.Round(2)),
		TotalReturn:        domain.NumFromDecimal(totalReturn.Round(2)),
		TotalReturnPercent: domain.NumFromDecimal(returnPct.Round(4)),
		IncomeReturn:       domain.NumFromInt(0),
		PriceReturn:        domain.NumFromDecimal(returnPct.Round(4)),
		AverageYield:       domain.NumFromDecimal(avgYield.Round(4)),
		ModifiedDuration:   domain.NumFromDecimal(duration.Round(4)),
		EffectiveDuration:  domain.NumFromDecimal(duration.Round(4)),
		Convexity:          domain.NumFromDecimal(convexity.Round(4)),
		ActiveBonds:        len(views),
	}
}
