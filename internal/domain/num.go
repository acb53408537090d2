package domain

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Num is an optional decimal held in canonical string form. The zero value
// is null and encodes as JSON null; present values encode as a JSON string.
type Num struct {
	s string
}

// Limits on accepted numeric input. The canonical form expands the
// exponent into digits, so both bound its length.
const (
	maxNumLen      = 64
	maxNumExponent = 64
)

// ParseNum parses a numeric string. Blank input and "null" yield a null Num.
// Inputs longer than 64 bytes or with an exponent beyond ±64 are rejected.
func ParseNum(s string) (Num, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return Num{}, nil
	}
	if len(s) > maxNumLen {
		return Num{}, fmt.Errorf("%w: number too long (%d bytes)", ErrInvalidInput, len(s))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Num{}, fmt.Errorf("%w: not a number: %q", ErrInvalidInput, s)
	}
	if exp := d.Exponent(); exp > maxNumExponent || exp < -maxNumExponent {
		return Num{}, fmt.Errorf("%w: number out of range: %q", ErrInvalidInput, s)
	}
	return NumFromDecimal(d), nil
}

// MustNum is ParseNum for literals known to be valid.
func MustNum(s string) Num {
	n, err := ParseNum(s)
	if err != nil {
		panic(err)
	}
	return n
}

// NumFromDecimal canonicalizes d. Trailing fractional zeros are dropped, no
// digits are rounded away.
func NumFromDecimal(d decimal.Decimal) Num {
	return Num{s: d.String()}
}

// NumFromInt returns the canonical form of i.
func NumFromInt(i int64) Num {
	return NumFromDecimal(decimal.NewFromInt(i))
}

func (n Num) Valid() bool { return n.s != "" }

// String returns the canonical form, or "" when null.
func (n Num) String() string { return n.s }

// Decimal returns the value, or zero when null.
func (n Num) Decimal() decimal.Decimal {
	if n.s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Positive reports whether n is present and strictly greater than zero.
func (n Num) Positive() bool {
	return n.Valid() && n.Decimal().IsPositive()
}

// Or returns n when present, otherwise fallback.
func (n Num) Or(fallback Num) Num {
	if n.Valid() {
		return n
	}
	return fallback
}

func (n Num) Float64() float64 {
	f, _ := n.Decimal().Float64()
	return f
}

func (n Num) MarshalJSON() ([]byte, error) {
	if n.s == "" {
		return []byte("null"), nil
	}
	return []byte(`"` + n.s + `"`), nil
}

// UnmarshalJSON accepts null, a JSON number, or a numeric string. Numbers
// are read from their literal text so no float64 round trip happens.
func (n *Num) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	parsed, err := ParseNum(string(data))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
