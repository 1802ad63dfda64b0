package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the quantity precision used when the instrument's step
// and minimum size are both unavailable. Two decimals rounds most coins down
// to a size the venue accepts; it never rounds up.
const DefaultPrecision = 2

// Precision counts the significant digits after the decimal point of a
// venue size string: "0.001" -> 3, "1" -> 0, "0.10" -> 1.
func Precision(s string) int {
	s = strings.TrimSpace(s)
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	frac := strings.TrimRight(s[i+1:], "0")
	return len(frac)
}

// Normalize rounds desired down to the nearest multiple of stepSize and lifts
// the result to minQty when it falls below it.
//
// stepSize and minQty are the venue's decimal strings. An unusable stepSize is
// derived from minQty's precision, and from DefaultPrecision when minQty is
// unusable too.
func Normalize(desired float64, stepSize, minQty string) (float64, error) {
	if math.IsNaN(desired) || math.IsInf(desired, 0) {
		return 0, fmt.Errorf("%w: quantity %v is not finite", ErrInvalidRiskInput, desired)
	}

	step := resolveStep(stepSize, minQty)
	q := decimal.NewFromFloat(desired)
	if q.IsNegative() {
		q = decimal.Zero
	}
	q = q.Div(step).Floor().Mul(step)

	if min, err := decimal.NewFromString(strings.TrimSpace(minQty)); err == nil && min.IsPositive() {
		if q.LessThan(min) {
			q = min
		}
	}
	return q.InexactFloat64(), nil
}

// FormatQty renders q with exactly as many decimals as stepSize allows, so
// the order payload never carries exponent notation or float noise.
func FormatQty(q float64, stepSize, minQty string) string {
	step := resolveStep(stepSize, minQty)
	places := int32(Precision(step.String()))
	return decimal.NewFromFloat(q).Truncate(places).StringFixed(places)
}

func resolveStep(stepSize, minQty string) decimal.Decimal {
	if step, err := decimal.NewFromString(strings.TrimSpace(stepSize)); err == nil && step.IsPositive() {
		return step
	}
	prec := DefaultPrecision
	if min, err := decimal.NewFromString(strings.TrimSpace(minQty)); err == nil && min.IsPositive() {
		prec = Precision(minQty)
	}
	return decimal.New(1, -int32(prec))
}
