// Package micros converts between the integer micro-unit values the backend
// stores and the decimal values people read and type. One display unit (a
// dollar, a mile, a minute) is PerUnit micro-units.
//
// Every function here is total: malformed input degrades to zero (or the
// caller's fallback) instead of returning an error.
package micros

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brk3/flux/pkg/flux"
	"github.com/shopspring/decimal"
)

const PerUnit = 1_000_000

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// ToDisplay converts micro-units to display units. The result is for
// rendering only.
func ToDisplay(m int64) float64 {
	return float64(m) / PerUnit
}

// ToMicros converts a display value (number or string) to micro-units,
// rounding half away from zero. Strings may carry surrounding space, a
// leading currency symbol and thousands separators. Anything unparsable,
// non-finite or out of range yields 0.
func ToMicros(v any) int64 {
	d, ok := toDecimal(v)
	if !ok {
		return 0
	}
	m, ok := toInt64(d.Shift(6).Round(0))
	if !ok {
		return 0
	}
	return m
}

// ParseMicros is ToMicros for a string that must hold an amount; ok is
// false when it does not parse or is out of range.
func ParseMicros(s string) (m int64, ok bool) {
	d, ok := parseAmount(s)
	if !ok {
		return 0, false
	}
	return toInt64(d.Shift(6).Round(0))
}

// ToIntMicros reads a value that should already be an integer micro amount.
// Fractions are truncated toward zero, not rounded; unparsable input yields
// fallback.
func ToIntMicros(v any, fallback int64) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint32:
		return int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return fallback
		}
		return int64(n)
	case float32:
		return truncFloat(float64(n), fallback)
	case float64:
		return truncFloat(n, fallback)
	case json.Number:
		return truncString(n.String(), fallback)
	case string:
		return truncString(n, fallback)
	case fmt.Stringer:
		return truncString(n.String(), fallback)
	}
	return fallback
}

// ComputeEarnings returns what a log of unitsMicros earns at rateMicros per
// unit. Binary habits pay the flat rate whatever the quantity. The product is
// computed exactly and truncated so the result matches the server's integer
// arithmetic.
func ComputeEarnings(rateType string, rateMicros, unitsMicros int64) int64 {
	if strings.EqualFold(rateType, flux.RateBinary) {
		return rateMicros
	}
	p := decimal.NewFromInt(rateMicros).Mul(decimal.NewFromInt(unitsMicros)).Shift(-6).Truncate(0)
	m, ok := toInt64(p)
	if !ok {
		return 0
	}
	return m
}

// FormatMoney renders a dollar amount with two decimals, or four when the
// magnitude is below a cent so sub-cent rates don't show as $0.00.
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$0.00"
	}
	return formatDecimal(decimal.NewFromFloat(v))
}

// FormatMicros is FormatMoney for a micro-dollar amount, without the float
// round trip.
func FormatMicros(m int64) string {
	return formatDecimal(decimal.New(m, -6))
}

func formatDecimal(d decimal.Decimal) string {
	abs := d.Abs()
	places := int32(2)
	if abs.Sign() > 0 && abs.LessThan(decimal.New(1, -2)) {
		places = 4
	}
	s := abs.StringFixed(places)
	if d.Sign() < 0 {
		return "-$" + s
	}
	return "$" + s
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		return parseAmount(n.String())
	case string:
		return parseAmount(n)
	}
	return decimal.Zero, false
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// parseAmount accepts "12.34", "$12.34", "-$1,234.50", "$-3", " 7 ".
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	for _, sym := range []string{"$", "€", "£", "¥"} {
		if strings.HasPrefix(s, sym) {
			s = strings.TrimSpace(s[len(sym):])
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func truncFloat(f float64, fallback int64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	t := math.Trunc(f)
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return fallback
	}
	return int64(t)
}

func truncString(s string, fallback int64) int64 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fallback
	}
	m, ok := toInt64(d.Truncate(0))
	if !ok {
		return fallback
	}
	return m
}

func toInt64(d decimal.Decimal) (int64, bool) {
	if d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		return 0, false
	}
	return d.IntPart(), true
}
