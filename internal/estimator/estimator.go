// Package estimator synthesizes bid/ask quotes from bond reference data when
// the upstream API has no usable quote.
package estimator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Policy is the fixed spread policy applied to estimated quotes.
type Policy struct {
	HalfSpread   decimal.Decimal
	BidYieldSkew decimal.Decimal
	AskYieldSkew decimal.Decimal
	Size         decimal.Decimal
	MinSize      decimal.Decimal
}

// DefaultPolicy is a 0.25 point spread around the base price, yields skewed
// by 0.2% per side, and institutional placeholder sizes.
func DefaultPolicy() Policy {
	return Policy{
		HalfSpread:   decimal.RequireFromString("0.125"),
		BidYieldSkew: decimal.RequireFromString("1.002"),
		AskYieldSkew: decimal.RequireFromString("0.998"),
		Size:         decimal.NewFromInt(1_000_000),
		MinSize:      decimal.NewFromInt(25_000),
	}
}

var parProxy = decimal.NewFromInt(100)

// Estimator builds fallback quotes.
type Estimator struct {
	policy Policy
	now    func() time.Time
}

// New creates an Estimator with the given policy.
func New(policy Policy) *Estimator {
	return &Estimator{policy: policy, now: time.Now}
}

// Estimate synthesizes a quote for bondID from ref. With no reference data it
// returns an all-null quote tagged no_data_available. It never fails.
func (e *Estimator) Estimate(bondID string, ref *domain.Bond) (q domain.Quote) {
	now := e.now().UTC()
	defer func() {
		if r := recover(); r != nil {
			q = NoData(bondID, now)
		}
	}()

	if ref == nil {
		return NoData(bondID, now)
	}

	base := parProxy
	if ref.LastPrice.Positive() {
		base = ref.LastPrice.Decimal()
	}
	ytm := ref.YTM.Or(ref.Coupon)
	ytw := ref.YTW.Or(ytm)

	return domain.Quote{
		BondID:             bondID,
		BidPrice:           domain.NumFromDecimal(base.Sub(e.policy.HalfSpread)),
		AskPrice:           domain.NumFromDecimal(base.Add(e.policy.HalfSpread)),
		BidYieldToMaturity: skew(ytm, e.policy.BidYieldSkew),
		BidYieldToWorst:    skew(ytw, e.policy.BidYieldSkew),
		AskYieldToMaturity: skew(ytm, e.policy.AskYieldSkew),
		AskYieldToWorst:    skew(ytw, e.policy.AskYieldSkew),
		BidSize:            domain.NumFromDecimal(e.policy.Size),
		AskSize:            domain.NumFromDecimal(e.policy.Size),
		BidMinSize:         domain.NumFromDecimal(e.policy.MinSize),
		AskMinSize:         domain.NumFromDecimal(e.policy.MinSize),
		Timestamp:          now,
		Status:             domain.QuoteEstimated,
		Source:             domain.QuoteSourceFallback,
	}
}

// Resolve returns upstream when it carries a bid or ask, otherwise an
// estimate from ref. A nil upstream means the fetch failed.
func (e *Estimator) Resolve(bondID string, upstream *domain.Quote, ref *domain.Bond) domain.Quote {
	if upstream != nil && upstream.HasPrices() {
		q := *upstream
		q.BondID = bondID
		q.Status = domain.QuoteLive
		return q
	}
	return e.Estimate(bondID, ref)
}

// NoData is the quote returned when nothing can be estimated.
func NoData(bondID string, now time.Time) domain.Quote {
	return domain.Quote{
		BondID:    bondID,
		Timestamp: now,
		Status:    domain.QuoteNoData,
	}
}

func skew(y domain.Num, factor decimal.Decimal) domain.Num {
	if !y.Valid() {
		return domain.Num{}
	}
	return domain.NumFromDecimal(y.Decimal().Mul(factor))
}
