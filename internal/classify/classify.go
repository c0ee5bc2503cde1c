// Package classify maps a free-form Spanish profile-edit message to the
// profile field it targets and the proposed new value. Fields are evaluated
// in a fixed priority order: unambiguous enumerations first, generic numeric
// fields later, full name last. The first field whose pattern list matches
// wins; every pattern's precedence is therefore explicit in this file.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/dvloznov/finance-coach/internal/amount"
	"github.com/dvloznov/finance-coach/internal/domain"
)

// fieldPatterns binds one profile field to its ordered regex template list.
// Templates cover the three phrasings Colombian users actually produce:
// direct statement ("mi X es Y"), update request ("quiero actualizar X a Y")
// and imperative ("actualiza/cambia mi X a Y").
type fieldPatterns struct {
	field domain.Field
	res   []*regexp.Regexp
}

var civilStatusValues = regexp.MustCompile(
	`(?i)\b(soltero|soltera|casado|casada|viudo|viuda|divorciado|divorciada|uni[oó]n libre)\b`)

// classifiers is the priority-ordered pattern table. Order matters: civil
// status enumerations are unmistakable, so they go first; the numeric fields
// each carry their own vocabulary; full name is the loosest and goes last.
var classifiers = []fieldPatterns{
	{domain.FieldCivilStatus, []*regexp.Regexp{
		regexp.MustCompile(`(?i)estado civil`),
		civilStatusValues,
	}},
	{domain.FieldChildrenCount, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btengo\s+(\d+)\s+hij[oa]s?\b`),
		regexp.MustCompile(`(?i)\b(\d+)\s+hij[oa]s?\b`),
		regexp.MustCompile(`(?i)\bno tengo hijos\b`),
	}},
	{domain.FieldAge, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btengo\s+(\d+)\s+años\b`),
		regexp.MustCompile(`(?i)\bmi edad es\s+(\d+)\b`),
		regexp.MustCompile(`(?i)\b(?:actualiza|cambia)(?:r)?\s+mi edad a\s+(\d+)\b`),
	}},
	{domain.FieldMonthlyIncome, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bgano\b(.+)`),
		regexp.MustCompile(`(?i)\bmis? ingresos?(?: mensuales?)?\s+(?:es|son|de)\b(.+)`),
		regexp.MustCompile(`(?i)\bmi salario(?: mensual)?\s+es\b(.+)`),
		regexp.MustCompile(`(?i)\b(?:actualiza|cambia|actualizar|cambiar)\s+mis? ingresos? a\b(.+)`),
	}},
	{domain.FieldTotalAssets, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmis activos(?: ahora)?\s+(?:son|es|valen)\b(.+)`),
		regexp.MustCompile(`(?i)\bmi patrimonio(?: ahora)?\s+(?:es|son|vale)\b(.+)`),
		regexp.MustCompile(`(?i)\b(?:actualiza|cambia|actualizar|cambiar)\s+mis activos a\b(.+)`),
		regexp.MustCompile(`(?i)\bactivos\b.*?[:\s]((?:\$|\d).+)`),
	}},
	{domain.FieldTotalLiabilities, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmis (?:deudas|pasivos)(?: ahora)?\s+(?:son|es|suman)\b(.+)`),
		regexp.MustCompile(`(?i)\bdebo\b(.+)`),
		regexp.MustCompile(`(?i)\b(?:actualiza|cambia|actualizar|cambiar)\s+mis (?:deudas|pasivos) a\b(.+)`),
	}},
	{domain.FieldTotalSavings, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:tengo ahorrad[oa]s?|mis ahorros(?: ahora)?\s+(?:son|es|suman))\b(.+)`),
		regexp.MustCompile(`(?i)\b(?:actualiza|cambia|actualizar|cambiar)\s+mis ahorros a\b(.+)`),
	}},
	{domain.FieldFullName, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bme llamo\s+([\p{L} ]+)`),
		regexp.MustCompile(`(?i)\bmi nombre(?: completo)? es\s+([\p{L} ]+)`),
	}},
}

// fieldKeywords back the clarification fallback: a message that names a
// field's vocabulary but carries no resolvable value should produce a
// clarifying question, not silence. One-letter typos are tolerated.
var fieldKeywords = []string{
	"activos", "patrimonio", "pasivos", "deudas", "ahorros",
	"ingresos", "salario", "edad", "hijos", "nombre",
}

// Classify inspects a profile-edit message and returns the best matching
// field with its proposed value. It is a pure function over the message.
func Classify(message string) domain.ExtractedField {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return domain.ExtractedField{Field: domain.FieldNone, Tier: domain.ConfidenceLow}
	}

	for _, fp := range classifiers {
		for _, re := range fp.res {
			m := re.FindStringSubmatch(msg)
			if m == nil {
				continue
			}
			if f, ok := resolve(fp.field, msg, m); ok {
				return f
			}
			// A numeric field whose capture did not normalize is treated as
			// no match at all; later, less specific patterns still get a try.
		}
	}

	if hasFieldKeyword(msg) {
		return domain.ExtractedField{
			Field:   domain.FieldGeneralUpdate,
			Tier:    domain.ConfidenceMedium,
			Matched: false,
		}
	}

	return domain.ExtractedField{Field: domain.FieldNone, Tier: domain.ConfidenceLow}
}

// resolve turns a raw regex match into a final ExtractedField, running
// numeric captures through the amount normalizer.
func resolve(field domain.Field, msg string, m []string) (domain.ExtractedField, bool) {
	switch field {
	case domain.FieldCivilStatus:
		v := civilStatusValues.FindString(msg)
		if v == "" {
			return domain.ExtractedField{}, false
		}
		return domain.ExtractedField{
			Field: field, Value: strings.ToLower(v),
			Tier: domain.ConfidenceHigh, Matched: true,
		}, true

	case domain.FieldAge, domain.FieldChildrenCount:
		if len(m) < 2 || m[1] == "" {
			// "no tengo hijos" carries no capture group; it means zero.
			if field == domain.FieldChildrenCount {
				return domain.ExtractedField{
					Field: field, Value: "0",
					Tier: domain.ConfidenceHigh, Matched: true,
				}, true
			}
			return domain.ExtractedField{}, false
		}
		if _, err := strconv.Atoi(m[1]); err != nil {
			return domain.ExtractedField{}, false
		}
		return domain.ExtractedField{
			Field: field, Value: m[1],
			Tier: domain.ConfidenceHigh, Matched: true,
		}, true

	case domain.FieldFullName:
		name := strings.TrimSpace(m[1])
		if name == "" {
			return domain.ExtractedField{}, false
		}
		return domain.ExtractedField{
			Field: field, Value: name,
			Tier: domain.ConfidenceMedium, Matched: true,
		}, true

	default: // numeric peso fields
		if len(m) < 2 {
			return domain.ExtractedField{}, false
		}
		pesos, ok := amount.Normalize(m[1])
		if !ok {
			return domain.ExtractedField{}, false
		}
		return domain.ExtractedField{
			Field: field, Amount: pesos,
			Value:   strconv.FormatInt(int64(pesos), 10),
			Tier:    domain.ConfidenceHigh,
			Matched: true,
		}, true
	}
}

var wordRe = regexp.MustCompile(`[\p{L}]+`)

func hasFieldKeyword(msg string) bool {
	words := wordRe.FindAllString(strings.ToLower(msg), -1)
	for _, w := range words {
		for _, kw := range fieldKeywords {
			if w == kw || levenshtein.ComputeDistance(w, kw) <= 1 {
				return true
			}
		}
	}
	return false
}
