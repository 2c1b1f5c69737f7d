package parser

import "strings"

// normalizeNumber splits a decimal literal's digit string (integer part,
// optional fractional part) into significand × 10^exponent, stripping
// trailing zeros from the integer part and trailing zeros from the
// fractional part while adjusting the exponent so the exact decimal value
// is preserved (spec.md §4.2, testable property 1).
func normalizeNumber(intPart, fracPart string, negative bool) (significand int64, exponent int32) {
	// Combine into one digit string with the fractional part shifting
	// the exponent negative.
	digits := intPart + fracPart
	exponent = -int32(len(fracPart))

	// Strip insignificant leading zeros (keep at least one digit).
	for len(digits) > 1 && digits[0] == '0' {
		digits = digits[1:]
	}

	// Strip trailing zeros, bumping the exponent back up, keeping at least
	// one digit (an integer literal like "100" becomes significand=1,
	// exponent=2; "100.00" also becomes significand=1, exponent=2, since
	// both represent the exact same value).
	for len(digits) > 1 && strings.HasSuffix(digits, "0") {
		digits = digits[:len(digits)-1]
		exponent++
	}

	if digits == "" {
		digits = "0"
	}

	var value int64
	for i := 0; i < len(digits); i++ {
		value = value*10 + int64(digits[i]-'0')
	}
	if negative {
		value = -value
	}
	return value, exponent
}
