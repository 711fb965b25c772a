package enrich

import (
	"regexp"
	"strconv"
	"strings"
)

var salaryNumberRegex = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

// ParseMinSalary extracts a numeric floor from a free-form salary string.
// "₹6-9 LPA" -> 600000, "$120k-$150k" -> 120000, "45,000/month" -> 45000.
// Returns 0 when nothing numeric can be read; the free-form string is kept
// on the posting either way.
func ParseMinSalary(salary string) int64 {
	s := strings.ToLower(salary)
	loc := salaryNumberRegex.FindStringIndex(s)
	if loc == nil {
		return 0
	}
	m := strings.ReplaceAll(s[loc[0]:loc[1]], ",", "")
	val, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}

	switch {
	case strings.Contains(s, "lpa") || strings.Contains(s, "lakh"):
		val *= 100_000
	case loc[1] < len(s) && s[loc[1]] == 'k':
		val *= 1_000
	}
	return int64(val)
}
