// Package money converts minor-unit integers (kopiyky) to major-unit values
// for rendering. All ledger arithmetic stays in int64 minor units; conversion
// happens only at the serialization edge.
package money

import "github.com/shopspring/decimal"

// ToUAH converts minor units to major units, banker-rounded to 2 decimals.
func ToUAH(minor int64) float64 {
	d := decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
	f, _ := d.RoundBank(2).Float64()
	return f
}

// Round2 banker-rounds a major-unit value to 2 decimals.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).RoundBank(2).Float64()
	return f
}

// Percent returns part/whole*100 rounded to one decimal, or 0 when whole is 0.
func Percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	d := decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole))
	f, _ := d.RoundBank(1).Float64()
	return f
}

// PctChange returns (current-prev)/prev*100 rounded to 2 decimals.
// The second return is false when prev is zero: percent change is undefined
// and downstream renderers must use the absent sentinel.
func PctChange(current, prev float64) (float64, bool) {
	if prev == 0 {
		return 0, false
	}
	c := decimal.NewFromFloat(current)
	p := decimal.NewFromFloat(prev)
	f, _ := c.Sub(p).Div(p).Mul(decimal.NewFromInt(100)).RoundBank(2).Float64()
	return f, true
}
