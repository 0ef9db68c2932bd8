package processing

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
)

var priceNumber = regexp.MustCompile(`(-\s*)?\d[\d.,]*`)

// ParsePrice reads a human-entered price. Either comma or dot may be the
// decimal separator; currency symbols and words are ignored. Unparseable or
// negative input yields nil, which is distinct from a zero price.
func ParsePrice(raw string) *float64 {
	m := priceNumber.FindString(raw)
	if m == "" {
		return nil
	}
	if strings.HasPrefix(m, "-") {
		return nil
	}
	m = strings.TrimRight(m, ".,")

	v, err := strconv.ParseFloat(canonicalNumber(m), 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// canonicalNumber rewrites s (digits plus separators) into ParseFloat form.
func canonicalNumber(s string) string {
	dots, commas := strings.Count(s, "."), strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		// The separator that appears last is the decimal one.
		decimal, thousands := ",", "."
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			decimal, thousands = ".", ","
		}
		s = strings.ReplaceAll(s, thousands, "")
		return strings.Replace(s, decimal, ".", 1)
	case dots+commas == 0:
		return s
	}

	sep := "."
	if commas > 0 {
		sep = ","
	}
	if strings.Count(s, sep) > 1 || looksLikeThousands(s, sep) {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.Replace(s, sep, ".", 1)
}

// looksLikeThousands reports whether a single separator groups exactly three
// trailing digits after a non-zero integer part, as in "1.500".
func looksLikeThousands(s, sep string) bool {
	i := strings.Index(s, sep)
	intPart, frac := s[:i], s[i+1:]
	return len(frac) == 3 && len(intPart) >= 1 && len(intPart) <= 3 && intPart[0] != '0'
}

func priceString(raw models.RawListing) string {
	v, ok := raw.Value(priceKeys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// priceFromValue prefers typed numbers over the string parse.
func priceFromValue(v any, parsed *float64) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return parsed
		}
		f = n
	default:
		return parsed
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
