package domain

import "time"

// Bond type values after normalization.
const (
	BondTypeCorporate  = "corporate"
	BondTypeGovernment = "government"
	BondTypeMunicipal  = "municipal"
	BondTypeAgency     = "agency"
)

// Bond status values.
const (
	BondStatusOutstanding = "outstanding"
	BondStatusMatured     = "matured"
	BondStatusCalled      = "called"
)

const (
	DefaultIssuer   = "Unknown Issuer"
	DefaultCurrency = "USD"
)

// Bond is fixed-income reference data plus the latest observed pricing.
type Bond struct {
	ID           string     `json:"id"`
	ISIN         string     `json:"isin"`
	CUSIP        string     `json:"cusip"`
	Issuer       string     `json:"issuer"`
	Description  string     `json:"description"`
	BondType     string     `json:"bondType"`
	Sector       string     `json:"sector"`
	Rating       string     `json:"rating"`
	Coupon       Num        `json:"coupon"`
	MaturityDate *time.Time `json:"maturityDate"`
	Currency     string     `json:"currency"`
	ParValue     Num        `json:"parValue"`
	LastPrice    Num        `json:"lastPrice"`
	YTM          Num        `json:"ytm"`
	YTW          Num        `json:"ytw"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// BondPatch carries the fields of a partial bond update. Nil fields are left
// untouched.
type BondPatch struct {
	Issuer       *string
	Description  *string
	Sector       *string
	Rating       *string
	Coupon       *Num
	MaturityDate *time.Time
	LastPrice    *Num
	YTM          *Num
	YTW          *Num
	Status       *string
}

// Apply merges p onto b.
func (p BondPatch) Apply(b Bond) Bond {
	if p.Issuer != nil {
		b.Issuer = *p.Issuer
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Sector != nil {
		b.Sector = *p.Sector
	}
	if p.Rating != nil {
		b.Rating = *p.Rating
	}
	if p.Coupon != nil {
		b.Coupon = *p.Coupon
	}
	if p.MaturityDate != nil {
		t := *p.MaturityDate
		b.MaturityDate = &t
	}
	if p.LastPrice != nil {
		b.LastPrice = *p.LastPrice
	}
	if p.YTM != nil {
		b.YTM = *p.YTM
	}
	if p.YTW != nil {
		b.YTW = *p.YTW
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	return b
}

// YieldField selects which bond field the screening yield filters compare.
type YieldField string

const (
	YieldFieldCoupon YieldField = "coupon"
	YieldFieldYTM    YieldField = "ytm"
)

// BondFilter holds screening predicates. All set predicates are ANDed; an
// empty string, "all", or a nil pointer means no constraint.
type BondFilter struct {
	Search           string
	BondType         string
	Sector           string
	Rating           string
	Status           string
	MinYield         *Num
	MaxYield         *Num
	MinMaturityYears *int
	MaxMaturityYears *int
}

// BondDetail is a bond with its market data snapshot, if any.
type BondDetail struct {
	Bond
	MarketData *MarketData `json:"marketData"`
}
