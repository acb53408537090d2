package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

func TestPortfolio_Summary(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	maturity := testNow.Add(2 * 8766 * time.Hour)
	mustCreateBond(t, st, domain.Bond{ID: "b1", Coupon: domain.MustNum("5"), MaturityDate: &maturity})
	mustCreateBond(t, st, domain.Bond{ID: "b2", Coupon: domain.MustNum("3")})
	_, err := st.Market.Upsert(ctx, domain.MarketData{
		BondID:    "b1",
		BidPrice:  domain.MustNum("99"),
		AskPrice:  domain.MustNum("100"),
		Timestamp: testNow,
	})
	require.NoError(t, err)

	svc := NewPortfolioService(st.Holdings, st.Bonds, st.Market, discardLogger())
	svc.now = func() time.Time { return testNow }

	_, err = svc.AddHolding(ctx, HoldingRequest{BondID: "b1", Quantity: domain.MustNum("10000"), CostBasis: domain.MustNum("9800")})
	require.NoError(t, err)
	_, err = svc.AddHolding(ctx, HoldingRequest{
		BondID:       "b2",
		Quantity:     domain.MustNum("5000"),
		CostBasis:    domain.MustNum("5000"),
		CurrentValue: domain.MustNum("5100"),
	})
	require.NoError(t, err)

	p, err := svc.Portfolio(ctx, "")
	require.NoError(t, err)
	require.Len(t, p.Holdings, 2)
	for _, h := range p.Holdings {
		require.NotNil(t, h.Bond)
		if h.BondID == "b1" {
			assert.Equal(t, "9950", h.CurrentValue.String())
		}
	}

	s := p.Summary
	assert.Equal(t, "15050", s.TotalValue.String())
	assert.Equal(t, "14800", s.TotalCost.String())
	assert.Equal(t, "250", s.TotalReturn.String())
	assert.Equal(t, "1.6892", s.TotalReturnPercent.String())
	assert.Equal(t, s.TotalReturnPercent, s.PriceReturn)
	assert.Equal(t, "0", s.IncomeReturn.String())
	assert.Equal(t, "4.3333", s.AverageYield.String())
	assert.Equal(t, "1.9048", s.ModifiedDuration.String())
	assert.Equal(t, s.ModifiedDuration, s.EffectiveDuration)
	assert.Equal(t, "5.4422", s.Convexity.String())
	assert.Equal(t, 2, s.ActiveBonds)
}

func TestPortfolio_Empty(t *testing.T) {
	st := newTestStore()
	svc := NewPortfolioService(st.Holdings, st.Bonds, st.Market, discardLogger())

	p, err := svc.Portfolio(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, p.Holdings)
	assert.NotNil(t, p.Holdings)
	assert.Equal(t, "0", p.Summary.TotalValue.String())
	assert.Equal(t, "0", p.Summary.TotalReturnPercent.String())
	assert.Zero(t, p.Summary.ActiveBonds)
}

func TestAddHolding_Validation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	mustCreateBond(t, st, domain.Bond{ID: "b1"})
	svc := NewPortfolioService(st.Holdings, st.Bonds, st.Market, discardLogger())

	_, err := svc.AddHolding(ctx, HoldingRequest{Quantity: domain.MustNum("1"), CostBasis: domain.MustNum("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.AddHolding(ctx, HoldingRequest{BondID: "b1", Quantity: domain.MustNum("0"), CostBasis: domain.MustNum("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.AddHolding(ctx, HoldingRequest{BondID: "b1", Quantity: domain.MustNum("1"), CostBasis: domain.MustNum("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.AddHolding(ctx, HoldingRequest{BondID: "zz", Quantity: domain.MustNum("1"), CostBasis: domain.MustNum("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	h, err := svc.AddHolding(ctx, HoldingRequest{UserID: "alice", BondID: "b1", Quantity: domain.MustNum("1"), CostBasis: domain.MustNum("0")})
	require.NoError(t, err)
	assert.Equal(t, "alice", h.UserID)

	require.NoError(t, svc.RemoveHolding(ctx, h.ID))
	assert.ErrorIs(t, svc.RemoveHolding(ctx, h.ID), domain.ErrNotFound)
}
