package provider

import (
	"math"
	"strconv"
	"strings"
)

// FormatPrice renders v as "$" followed by a comma-grouped two-decimal number.
func FormatPrice(v float64) string {
	return "$" + groupThousands(strconv.FormatFloat(v, 'f', 2, 64))
}

// FormatChange renders a percentage with one decimal, e.g. "-1.3%".
func FormatChange(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// PercentChange is 100*(current/open - 1). It reports false when open is zero
// or either value is not finite.
func PercentChange(current, open float64) (float64, bool) {
	if open == 0 || !finite(current) || !finite(open) {
		return 0, false
	}
	return 100 * ((current / open) - 1), true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// groupThousands inserts commas into the integer part of a plain decimal string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.Grow(len(sign) + len(s) + len(intPart)/3)
	b.WriteString(sign)
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
