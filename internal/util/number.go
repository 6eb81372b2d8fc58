package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	rePlainNumber   = regexp.MustCompile(`^[+-]?(\d+([.,]\d+)?|[.,]\d+)$`)
	reThousandsDot  = regexp.MustCompile(`^[+-]?\d{1,3}(?:\.\d{3})+(?:,\d+)?$`)
	reThousandsComm = regexp.MustCompile(`^[+-]?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
)

// ParseNumber parses a spreadsheet cell as a decimal number. It accepts a dot
// or a comma as decimal separator and grouped thousands in either style.
// Anything else, including text with units, is not a number.
func ParseNumber(input string) (float64, bool) {
	token := strings.TrimSpace(strings.ReplaceAll(input, " ", ""))
	if token == "" {
		return 0, false
	}
	norm, ok := normalizeNumericToken(token)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func normalizeNumericToken(token string) (string, bool) {
	switch {
	case reThousandsDot.MatchString(token) && (strings.Contains(token, ",") || strings.Count(token, ".") > 1):
		return strings.ReplaceAll(strings.ReplaceAll(token, ".", ""), ",", "."), true
	case reThousandsComm.MatchString(token) && (strings.Contains(token, ".") || strings.Count(token, ",") > 1):
		return strings.ReplaceAll(token, ",", ""), true
	case rePlainNumber.MatchString(token):
		return strings.ReplaceAll(token, ",", "."), true
	}
	return "", false
}
