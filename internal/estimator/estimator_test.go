package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

func fixedEstimator(now time.Time) *Estimator {
	e := New(DefaultPolicy())
	e.now = func() time.Time { return now }
	return e
}

func TestEstimate_ParProxy(t *testing.T) {
	e := fixedEstimator(time.Now())
	q := e.Estimate("B1", &domain.Bond{ID: "B1", Coupon: domain.MustNum("5")})

	bid := q.BidPrice.Decimal()
	ask := q.AskPrice.Decimal()
	base := parProxy

	assert.Equal(t, "0.25", ask.Sub(bid).String())
	assert.True(t, bid.LessThan(base))
	assert.True(t, base.LessThan(ask))
	assert.Equal(t, domain.QuoteEstimated, q.Status)
	assert.Equal(t, domain.QuoteSourceFallback, q.Source)
}

func TestEstimate_LastPriceScenario(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	e := fixedEstimator(now)
	ref := &domain.Bond{
		ID:        "US037833100",
		ISIN:      "US037833100",
		LastPrice: domain.MustNum("98.50"),
		Coupon:    domain.MustNum("2.400"),
	}

	q := e.Estimate(ref.ID, ref)

	assert.Equal(t, "98.375", q.BidPrice.String())
	assert.Equal(t, "98.625", q.AskPrice.String())
	assert.Equal(t, "2.4048", q.BidYieldToMaturity.String())
	assert.Equal(t, "2.4048", q.BidYieldToWorst.String())
	assert.Equal(t, "2.3952", q.AskYieldToMaturity.String())
	assert.Equal(t, "2.3952", q.AskYieldToWorst.String())
	assert.Equal(t, "1000000", q.BidSize.String())
	assert.Equal(t, "1000000", q.AskSize.String())
	assert.Equal(t, "25000", q.BidMinSize.String())
	assert.Equal(t, "25000", q.AskMinSize.String())
	assert.Equal(t, domain.QuoteEstimated, q.Status)
	assert.Equal(t, now, q.Timestamp)
}

func TestEstimate_YieldPrecedence(t *testing.T) {
	e := fixedEstimator(time.Now())
	q := e.Estimate("B2", &domain.Bond{
		LastPrice: domain.MustNum("0"),
		Coupon:    domain.MustNum("3"),
		YTM:       domain.MustNum("4"),
		YTW:       domain.MustNum("3.5"),
	})

	assert.Equal(t, "99.875", q.BidPrice.String(), "non-positive last price uses par")
	assert.Equal(t, "4.008", q.BidYieldToMaturity.String())
	assert.Equal(t, "3.507", q.BidYieldToWorst.String())
	assert.Equal(t, "3.992", q.AskYieldToMaturity.String())
	assert.Equal(t, "3.493", q.AskYieldToWorst.String())
	assert.True(t, q.BidYieldToMaturity.Decimal().GreaterThan(q.AskYieldToMaturity.Decimal()))
}

func TestEstimate_NoYields(t *testing.T) {
	q := fixedEstimator(time.Now()).Estimate("B3", &domain.Bond{LastPrice: domain.MustNum("101")})

	assert.Equal(t, "100.875", q.BidPrice.String())
	assert.False(t, q.BidYieldToMaturity.Valid())
	assert.False(t, q.AskYieldToWorst.Valid())
}

func TestEstimate_NoReference(t *testing.T) {
	q := fixedEstimator(time.Now()).Estimate("missing", nil)

	assert.Equal(t, domain.QuoteNoData, q.Status)
	assert.Equal(t, "missing", q.BondID)
	for _, n := range []domain.Num{
		q.BidPrice, q.AskPrice,
		q.BidYieldToMaturity, q.BidYieldToWorst,
		q.AskYieldToMaturity, q.AskYieldToWorst,
		q.BidSize, q.AskSize,
	} {
		assert.False(t, n.Valid())
	}
}

func TestResolve(t *testing.T) {
	e := fixedEstimator(time.Now())
	ref := &domain.Bond{LastPrice: domain.MustNum("98.50")}

	live := &domain.Quote{AskPrice: domain.MustNum("99"), Status: domain.QuoteUnavailable}
	q := e.Resolve("B4", live, ref)
	assert.Equal(t, domain.QuoteLive, q.Status)
	assert.Equal(t, "B4", q.BondID)
	assert.Equal(t, "99", q.AskPrice.String())

	q = e.Resolve("B4", &domain.Quote{}, ref)
	assert.Equal(t, domain.QuoteEstimated, q.Status)

	q = e.Resolve("B4", nil, nil)
	require.Equal(t, domain.QuoteNoData, q.Status)
}
