// Package amount normalizes colloquial Colombian-peso expressions into whole
// pesos. It understands the shorthand people actually type in chat:
// "50 mil", "2 millones", "100k", "$1.500.000", "$10.000,50" and bare digits.
package amount

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-coach/internal/domain"
)

// The patterns are tried in order and the first match wins. Each pattern
// except bare digits requires a distinguishing suffix or punctuation, so the
// ordering below is the whole disambiguation story: more specific first,
// bare digits last.
var patterns = []struct {
	re   *regexp.Regexp
	mult int64
}{
	// "50 mil", "300 miles". The \b keeps this from eating "millones".
	{regexp.MustCompile(`(?i)(\d+)\s*mil(?:es)?\b`), 1_000},
	// "2 millones", "1 millón". Decimal shorthand like "1.5 millones" is a
	// known limitation: the digit run right before "millones" is the one
	// captured, so "1.5 millones" parses as 5 millones. Stored budgets
	// already depend on that behavior; see TestNormalize_DecimalMillionsLimitation.
	{regexp.MustCompile(`(?i)(\d+)\s*mill[oó]n(?:es)?\b`), 1_000_000},
	// "100k", "15K".
	{regexp.MustCompile(`(?i)(\d+)k\b`), 1_000},
}

// currencyRe matches numbers written with "." as thousands separator and an
// optional "," decimal part: "$800.000", "1.500.000", "$10.000,50".
var currencyRe = regexp.MustCompile(`\$?\s*(\d{1,3}(?:\.\d{3})+(?:,\d+)?)`)

// bareDigitsRe is the least specific pattern and is tried last.
var bareDigitsRe = regexp.MustCompile(`(\d+)`)

// Normalize extracts a peso amount from free text. The boolean reports
// whether any numeric expression was found; callers must treat (0, false)
// differently from a parsed zero.
func Normalize(text string) (domain.Pesos, bool) {
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				continue
			}
			return domain.Pesos(n * p.mult), true
		}
	}

	if m := currencyRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseCurrency(m[1]); ok {
			return v, true
		}
	}

	if m := bareDigitsRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return domain.Pesos(n), true
		}
	}

	return 0, false
}

// parseCurrency turns "10.000,50" into 10000. Decimal cents are truncated:
// Colombian pesos carry no usable sub-unit here.
func parseCurrency(s string) (domain.Pesos, bool) {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return domain.Pesos(d.IntPart()), true
}
