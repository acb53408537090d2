package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// SampleBonds is the demo reference data loaded when seeding is enabled.
func SampleBonds() []domain.Bond {
	date := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	return []domain.Bond{
		{
			ISIN: "US037833100", Issuer: "Apple Inc", Description: "Apple Inc 2.400% 15-Feb-2030",
			BondType: domain.BondTypeCorporate, Sector: "technology", Rating: "AA+",
			Coupon: domain.MustNum("2.400"), MaturityDate: date(2030, time.February, 15),
			ParValue: domain.MustNum("1000"), LastPrice: domain.MustNum("98.50"), YTM: domain.MustNum("2.82"),
		},
		{
			ISIN: "US594918104", Issuer: "Microsoft Corp", Description: "Microsoft Corp 3.125% 17-Nov-2028",
			BondType: domain.BondTypeCorporate, Sector: "technology", Rating: "AAA",
			Coupon: domain.MustNum("3.125"), MaturityDate: date(2028, time.November, 17),
			ParValue: domain.MustNum("1000"), LastPrice: domain.MustNum("98.45"), YTM: domain.MustNum("3.78"),
		},
		{
			ISIN: "US02079K107", Issuer: "Alphabet Inc", Description: "Alphabet Inc 2.875% 15-May-2032",
			BondType: domain.BondTypeCorporate, Sector: "technology", Rating: "AA+",
			Coupon: domain.MustNum("2.875"), MaturityDate: date(2032, time.May, 15),
			ParValue: domain.MustNum("1000"), LastPrice: domain.MustNum("92.33"), YTM: domain.MustNum("4.12"),
		},
		{
			ISIN: "US46625HJL6", Issuer: "JPMorgan Chase & Co", Description: "JPMorgan Chase & Co 4.25% 01-Oct-2027",
			BondType: domain.BondTypeCorporate, Sector: "financial", Rating: "A",
			Coupon: domain.MustNum("4.25"), MaturityDate: date(2027, time.October, 1),
			ParValue: domain.MustNum("1000"), LastPrice: domain.MustNum("101.22"), YTM: domain.MustNum("3.89"),
		},
		{
			ISIN: "US06051GHE4", Issuer: "Bank of America Corp", Description: "Bank of America Corp 3.75% 24-Apr-2026",
			BondType: domain.BondTypeCorporate, Sector: "financial", Rating: "A-",
			Coupon: domain.MustNum("3.75"), MaturityDate: date(2026, time.April, 24),
			ParValue: domain.MustNum("1000"), LastPrice: domain.MustNum("99.87"), YTM: domain.MustNum("3.95"),
		},
	}
}

// Seed inserts bonds, skipping any whose id or ISIN is already stored. It
// returns how many were inserted.
func (s *Store) Seed(ctx context.Context, bonds []domain.Bond) (int, error) {
	n := 0
	for _, b := range bonds {
		if _, err := s.Bonds.Create(ctx, b); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				continue
			}
			return n, fmt.Errorf("memory: seed: %w", err)
		}
		n++
	}
	return n, nil
}
