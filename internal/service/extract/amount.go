package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParseAmount reads the first number in s, ignoring currency symbols and
// thousands separators. Anything unparseable yields 0.
func ParseAmount(s string) float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParsePoints reads an integer point value, rounding fractional input.
func ParsePoints(s string) int {
	return int(math.Round(ParseAmount(s)))
}
