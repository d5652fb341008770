// Package money provides rounding and display formatting for monetary amounts.
// Calculations elsewhere run on float64; every value that crosses a store or
// API boundary is normalized here so stored paise never accumulate float drift.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round normalizes an amount to two decimal places, half away from zero.
func Round(amount float64) float64 {
	v, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return v
}

// RoundWhole normalizes an amount to whole currency units. EMIs are quoted in
// whole rupees by convention.
func RoundWhole(amount float64) float64 {
	v, _ := decimal.NewFromFloat(amount).Round(0).Float64()
	return v
}

// Equal reports whether two amounts agree within half a paisa. Reconciliation
// checks use this instead of ==.
func Equal(a, b float64) bool {
	da := decimal.NewFromFloat(a).Round(2)
	db := decimal.NewFromFloat(b).Round(2)
	return da.Equal(db)
}

// FormatINR renders an amount with the Indian digit grouping (₹12,34,567.89).
// withDecimals controls whether paise are shown.
func FormatINR(amount float64, withDecimals bool) string {
	d := decimal.NewFromFloat(amount)
	negative := d.IsNegative()
	if negative {
		d = d.Neg()
	}

	places := int32(0)
	if withDecimals {
		places = 2
	}
	s := d.Round(places).StringFixed(places)

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	grouped := groupIndian(intPart)

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteString("₹")
	b.WriteString(grouped)
	b.WriteString(fracPart)
	return b.String()
}

// groupIndian inserts commas in the 3-then-2 Indian pattern: 1234567 -> 12,34,567.
func groupIndian(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	head := digits[:n-3]
	tail := digits[n-3:]

	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	parts = append(parts, tail)
	return strings.Join(parts, ",")
}
