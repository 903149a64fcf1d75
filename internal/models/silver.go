package models

import "github.com/shopspring/decimal"

// wireScale is the fixed-point exponent the game client applies to prices.
const wireScale = -4

// Silver is an exact silver amount. It encodes as a bare JSON number.
type Silver struct {
	decimal.Decimal
}

// SilverFromWire converts a ×10000 wire price to true silver.
func SilverFromWire(raw int64) Silver {
	return Silver{decimal.New(raw, wireScale)}
}

// NewSilver wraps a decimal.
func NewSilver(d decimal.Decimal) Silver {
	return Silver{d}
}

// MarshalJSON emits the shortest exact decimal representation, unquoted.
func (s Silver) MarshalJSON() ([]byte, error) {
	return []byte(s.Decimal.String()), nil
}

// UnmarshalJSON accepts both quoted and bare numbers.
func (s *Silver) UnmarshalJSON(data []byte) error {
	return s.Decimal.UnmarshalJSON(data)
}
