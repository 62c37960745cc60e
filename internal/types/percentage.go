package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// PercentageScale is the number of fractional digits a percentage keeps.
const PercentageScale = 2

// percentageLimit is the first magnitude a NUMERIC(5,2) column rejects.
var percentageLimit = decimal.New(1000, 0)

// Percentage is a fixed-point humidity percentage with two fractional digits.
//
// It is stored as an integer number of hundredths so every driver
// round-trips it exactly.
type Percentage struct {
	decimal.Decimal
}

// NewPercentage rounds d half away from zero to two fractional digits.
func NewPercentage(d decimal.Decimal) Percentage {
	return Percentage{d.Round(PercentageScale)}
}

// ParsePercentage parses a decimal string such as "42.50".
func ParsePercentage(s string) (Percentage, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percentage{}, fmt.Errorf("parse percentage %q: %w", s, err)
	}
	return NewPercentage(d), nil
}

// PercentageFromHundredths rebuilds a stored percentage.
func PercentageFromHundredths(h int64) Percentage {
	return Percentage{decimal.New(h, -PercentageScale)}
}

// Hundredths returns the percentage as an integer count of 0.01 steps.
func (p Percentage) Hundredths() int64 {
	return p.Round(PercentageScale).Shift(PercentageScale).IntPart()
}

// InRange reports whether the percentage fits NUMERIC(5,2).
func (p Percentage) InRange() bool {
	return p.Round(PercentageScale).Abs().LessThan(percentageLimit)
}

// Equal reports whether two percentages hold the same value.
func (p Percentage) Equal(o Percentage) bool {
	return p.Decimal.Equal(o.Decimal)
}

// String formats the percentage with exactly two fractional digits.
func (p Percentage) String() string {
	return p.StringFixed(PercentageScale)
}

// Float64 returns the nearest float64, for sinks that only take floats.
func (p Percentage) Float64() float64 {
	f, _ := p.Decimal.Float64()
	return f
}

// MarshalJSON encodes the percentage as a JSON number like 42.50.
func (p Percentage) MarshalJSON() ([]byte, error) {
	return json.Marshal(json.Number(p.String()))
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (p *Percentage) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*p = NewPercentage(d)
	return nil
}
