package grid

import (
	"math"
	"strconv"
)

// SotkaMeters is the area of one sotka in square meters.
const SotkaMeters = 100.0

// AreaLabel renders an area in square meters as a Russian sotka label,
// e.g. 1200 → "12 соток", 100 → "1 сотка", 250 → "2.5 сотки". Values are
// rounded to hundredths of a sotka.
func AreaLabel(m2 float64) string {
	v := math.Round(m2/SotkaMeters*100) / 100
	num := strconv.FormatFloat(v, 'f', -1, 64)
	if v != math.Trunc(v) {
		return num + " сотки"
	}
	return num + " " + sotkaForm(int64(math.Abs(v)))
}

// sotkaForm picks the plural form of "сотка" for a whole count.
func sotkaForm(n int64) string {
	switch {
	case n%10 == 1 && n%100 != 11:
		return "сотка"
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return "сотки"
	default:
		return "соток"
	}
}
