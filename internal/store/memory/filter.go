package memory

import (
	"strings"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// matcher evaluates a BondFilter. Empty strings, "all", nil pointers and
// zero values impose no constraint. A bond missing the compared field
// fails a yield or maturity constraint.
type matcher struct {
	f          domain.BondFilter
	yieldField domain.YieldField
	now        time.Time
	search     string
}

func newMatcher(f domain.BondFilter, yf domain.YieldField, now time.Time) matcher {
	return matcher{
		f:          f,
		yieldField: yf,
		now:        now,
		search:     strings.ToLower(strings.TrimSpace(f.Search)),
	}
}

func (m matcher) match(b domain.Bond) bool {
	if m.search != "" && !m.matchesSearch(b) {
		return false
	}
	if !matchText(m.f.BondType, b.BondType) ||
		!matchText(m.f.Sector, b.Sector) ||
		!matchText(m.f.Rating, b.Rating) ||
		!matchText(m.f.Status, b.Status) {
		return false
	}

	if active(m.f.MinYield) || active(m.f.MaxYield) {
		y := m.yield(b)
		if !y.Valid() {
			return false
		}
		if active(m.f.MinYield) && y.Decimal().LessThan(m.f.MinYield.Decimal()) {
			return false
		}
		if active(m.f.MaxYield) && y.Decimal().GreaterThan(m.f.MaxYield.Decimal()) {
			return false
		}
	}

	if activeYears(m.f.MinMaturityYears) || activeYears(m.f.MaxMaturityYears) {
		if b.MaturityDate == nil {
			return false
		}
		if activeYears(m.f.MinMaturityYears) && b.MaturityDate.Before(m.now.AddDate(*m.f.MinMaturityYears, 0, 0)) {
			return false
		}
		if activeYears(m.f.MaxMaturityYears) && b.MaturityDate.After(m.now.AddDate(*m.f.MaxMaturityYears, 0, 0)) {
			return false
		}
	}
	return true
}

// yield returns the field yield screens compare. The ytm setting falls back
// to the coupon for bonds that carry no ytm.
func (m matcher) yield(b domain.Bond) domain.Num {
	if m.yieldField == domain.YieldFieldYTM {
		return b.YTM.Or(b.Coupon)
	}
	return b.Coupon
}

func (m matcher) matchesSearch(b domain.Bond) bool {
	for _, field := range []string{b.ID, b.ISIN, b.CUSIP, b.Issuer, b.Description} {
		if strings.Contains(strings.ToLower(field), m.search) {
			return true
		}
	}
	return false
}

func matchText(want, have string) bool {
	want = strings.TrimSpace(want)
	if want == "" || strings.EqualFold(want, "all") {
		return true
	}
	return strings.EqualFold(want, have)
}

func active(n *domain.Num) bool {
	return n != nil && n.Valid() && !n.Decimal().IsZero()
}

func activeYears(y *int) bool {
	return y != nil && *y != 0
}
