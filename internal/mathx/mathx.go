// Package mathx provides decimal statistics and currency formatting used by
// the valuation methods. All arithmetic is base-10 fixed point so audit
// figures reproduce exactly across runs.
package mathx

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Median returns the sorted-midpoint median of values (average of the two
// middle elements for even length).
func Median(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Zero, eris.New("mathx: median of empty sequence")
	}

	sorted := sortedCopy(values)
	n := len(sorted)
	mid := n / 2

	if n%2 == 0 {
		return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2)), nil
	}
	return sorted[mid], nil
}

// Percentile returns the p-th percentile of values using linear interpolation
// between order statistics at rank p/100*(n-1). A single-element input
// returns that element for any p.
func Percentile(values []decimal.Decimal, p int) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Zero, eris.New("mathx: percentile of empty sequence")
	}
	if p < 0 || p > 100 {
		return decimal.Zero, eris.Errorf("mathx: percentile must be between 0 and 100, got %d", p)
	}

	sorted := sortedCopy(values)
	n := len(sorted)
	if n == 1 {
		return sorted[0], nil
	}

	rank := decimal.NewFromInt(int64(p)).
		Mul(decimal.NewFromInt(int64(n - 1))).
		Div(decimal.NewFromInt(100))
	lowerIdx := rank.IntPart()
	upperIdx := lowerIdx + 1
	if upperIdx > int64(n-1) {
		upperIdx = int64(n - 1)
	}
	fraction := rank.Sub(decimal.NewFromInt(lowerIdx))

	lower := sorted[lowerIdx]
	upper := sorted[upperIdx]
	return lower.Add(fraction.Mul(upper.Sub(lower))), nil
}

// Round rounds v to places decimal digits, half away from zero. Banker's
// rounding would surprise anyone reading an audit trail, so .5 always rounds
// up in magnitude.
func Round(v decimal.Decimal, places int32) decimal.Decimal {
	return v.Round(places)
}

var (
	billion  = decimal.New(1, 9)
	million  = decimal.New(1, 6)
	thousand = decimal.New(1, 3)
)

// FormatCurrency renders v with a B/M/K suffix for billions/millions/
// thousands, keeping two rounded decimals within the chosen unit.
func FormatCurrency(v decimal.Decimal) string {
	switch {
	case v.GreaterThanOrEqual(billion):
		return "$" + Round(v.Div(billion), 2).StringFixed(2) + "B"
	case v.GreaterThanOrEqual(million):
		return "$" + Round(v.Div(million), 2).StringFixed(2) + "M"
	case v.GreaterThanOrEqual(thousand):
		return "$" + Round(v.Div(thousand), 2).StringFixed(2) + "K"
	default:
		return "$" + Round(v, 2).StringFixed(2)
	}
}

func sortedCopy(values []decimal.Decimal) []decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	return sorted
}
