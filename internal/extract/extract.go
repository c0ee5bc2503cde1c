// Package extract turns one conversational answer into structured category
// tuples. Two strategies exist, selected by flow configuration per step:
//
//   - Direct: the whole user message is one amount bound to the field the
//     step asks about (onboarding).
//   - Hybrid: the assistant's own question fixes the category TYPE, the
//     user's message fixes the category VALUES. Classifying the question
//     instead of the answer keeps correctness independent of how the model
//     happened to phrase things.
package extract

import (
	"regexp"
	"strings"

	"github.com/dvloznov/finance-coach/internal/amount"
	"github.com/dvloznov/finance-coach/internal/domain"
)

// PromptKind is what the assistant's question is about, derived from its
// keywords only.
type PromptKind string

const (
	PromptIncome          PromptKind = "income"
	PromptFixedExpense    PromptKind = "fixed_expense"
	PromptVariableExpense PromptKind = "variable_expense"
	PromptSavings         PromptKind = "savings"
	PromptPeriod          PromptKind = "period"
	PromptRefinement      PromptKind = "refinement"
	PromptConfirmation    PromptKind = "confirmation"
	PromptUnknown         PromptKind = "unknown"
)

// ClassifyPrompt inspects the assistant's question text. Keyword order is
// significant: the compound markers ("gasto fijo") are checked before the
// loose ones ("ingreso").
func ClassifyPrompt(prompt string) PromptKind {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "gasto fijo") || strings.Contains(p, "gastos fijos"):
		return PromptFixedExpense
	case strings.Contains(p, "gasto variable") || strings.Contains(p, "gastos variables"):
		return PromptVariableExpense
	case strings.Contains(p, "desglos"):
		return PromptRefinement
	case strings.Contains(p, "confirma"):
		return PromptConfirmation
	case strings.Contains(p, "mes") && strings.Contains(p, "año"):
		return PromptPeriod
	case strings.Contains(p, "ahorr"):
		return PromptSavings
	case strings.Contains(p, "ingreso"):
		return PromptIncome
	default:
		return PromptUnknown
	}
}

// categoryTypeFor resolves the type for a budget step, preferring the
// assistant prompt's keywords and falling back to the step's canonical type
// for prompts that carry none (period, confirmation, unrecognized).
func categoryTypeFor(kind PromptKind, step int) domain.CategoryType {
	switch kind {
	case PromptIncome:
		return domain.CategoryIncome
	case PromptFixedExpense:
		return domain.CategoryFixedExpense
	case PromptVariableExpense:
		return domain.CategoryVariableExpense
	case PromptSavings:
		return domain.CategorySavings
	}
	switch step {
	case 1:
		return domain.CategoryIncome
	case 2:
		return domain.CategoryFixedExpense
	case 4:
		return domain.CategorySavings
	default:
		return domain.CategoryVariableExpense
	}
}

// fallbackNames gives the single-category fallback its name per type.
var fallbackNames = map[domain.CategoryType]string{
	domain.CategoryIncome:          "Otros Ingresos",
	domain.CategoryFixedExpense:    "Otros Gastos Fijos",
	domain.CategoryVariableExpense: "Otros Gastos Variables",
	domain.CategorySavings:         "Ahorros",
}

// segmentRe splits an answer into per-concept segments: commas, newlines and
// the connective " y ".
var segmentRe = regexp.MustCompile(`(?i)\s*(?:,|\n|;|\s+y\s+)\s*`)

// labelRe captures a leading run of letters/spaces (the label) that is not
// itself a number, optionally followed by ":" or "-". The label class admits
// "/" and "-" so "Transporte/Gasolina: 300 mil" and
// "Transporte - Gasolina 300 mil" keep their category/subcategory split.
var labelRe = regexp.MustCompile(`^([\p{L}][\p{L} /\-]*?)\s*[:\-]?\s*((?:\$|\d).*)$`)

// bareLabelRe matches a segment that is only words, no digits at all.
var bareLabelRe = regexp.MustCompile(`^[\p{L}][\p{L} /\-]*$`)

// subcatSeps split a label into category and subcategory.
var subcatSeps = []string{" subcategoría de ", "/", " - "}

// fillerWords are conversational lead-ins that must never become a category
// name: in "como unos 3 millones en total" the words before the amount are
// hedging, not a label.
var fillerWords = map[string]bool{
	"como": true, "unos": true, "unas": true, "un": true, "una": true,
	"aproximadamente": true, "aprox": true, "casi": true, "pues": true,
	"creo": true, "que": true, "yo": true, "tengo": true, "pago": true,
	"gano": true, "son": true, "es": true, "sería": true, "serían": true,
	"más": true, "menos": true, "o": true, "por": true, "ahí": true,
	"entre": true, "total": true, "de": true, "en": true, "el": true,
	"la": true, "los": true, "las": true,
}

// trimFiller strips leading filler words from a label candidate. An empty
// result means the segment carried no real label and must not mint a
// category.
func trimFiller(label string) string {
	words := strings.Fields(label)
	for len(words) > 0 && fillerWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// Direct normalizes the whole user message into at most one value for a
// single-amount step. It deliberately returns no tuples: direct steps bind
// to a profile field, not to a category list.
func Direct(userMessage string) (domain.Pesos, bool) {
	return amount.Normalize(userMessage)
}

// Hybrid extracts category tuples for a budget-building step. For any
// non-empty user message the result is never empty: an answer that resists
// splitting still produces the single prompt-named fallback category,
// because an empty extraction would silently stall the conversation.
func Hybrid(step int, assistantPrompt, userMessage string) []domain.CategoryTuple {
	msg := strings.TrimSpace(userMessage)
	if msg == "" {
		return nil
	}

	kind := ClassifyPrompt(assistantPrompt)
	ctype := categoryTypeFor(kind, step)

	var tuples []domain.CategoryTuple
	segments := segmentRe.Split(msg, -1)

	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}

		// "Transporte: Gasolina: 200.000" names category, subcategory and
		// amount with the same separator; peel the explicit form off first.
		if parts := strings.SplitN(seg, ":", 3); len(parts) == 3 {
			if pesos, ok := amount.Normalize(parts[2]); ok {
				tuples = append(tuples, domain.CategoryTuple{
					CategoryName:    strings.TrimSpace(parts[0]),
					SubcategoryName: strings.TrimSpace(parts[1]),
					Amount:          pesos,
					Type:            ctype,
				})
				continue
			}
		}

		if m := labelRe.FindStringSubmatch(seg); m != nil {
			label := trimFiller(strings.TrimSpace(m[1]))
			if label == "" {
				// All filler before the amount: no label to trust here, let
				// the prompt-named fallback hold the value instead.
				continue
			}
			if pesos, ok := amount.Normalize(m[2]); ok {
				cat, sub := splitSubcategory(label)
				tuples = append(tuples, domain.CategoryTuple{
					CategoryName:    cat,
					SubcategoryName: sub,
					Amount:          pesos,
					Type:            ctype,
				})
				continue
			}
		}

		// A bare term in a multi-concept answer ("salario, rentas, otros")
		// becomes a placeholder awaiting a follow-up amount.
		if len(segments) > 1 && bareLabelRe.MatchString(seg) {
			cat, sub := splitSubcategory(seg)
			tuples = append(tuples, domain.CategoryTuple{
				CategoryName:    cat,
				SubcategoryName: sub,
				Type:            ctype,
				NeedsAmount:     true,
			})
		}
	}

	if len(tuples) > 0 {
		return tuples
	}

	// Nothing split: one catch-all category holds whatever amount the
	// message carries (possibly none, flagged NeedsAmount).
	pesos, ok := amount.Normalize(msg)
	return []domain.CategoryTuple{{
		CategoryName: fallbackNames[ctype],
		Amount:       pesos,
		Type:         ctype,
		NeedsAmount:  !ok,
	}}
}

// splitSubcategory splits "Transporte / Gasolina" style labels. A label
// without a separator is a plain category.
func splitSubcategory(label string) (category, subcategory string) {
	lower := strings.ToLower(label)
	for _, sep := range subcatSeps {
		if idx := strings.Index(lower, sep); idx >= 0 {
			cat := strings.TrimSpace(label[:idx])
			sub := strings.TrimSpace(label[idx+len(sep):])
			if sep == " subcategoría de " {
				// "Gasolina subcategoría de Transporte" names the child first.
				return sub, cat
			}
			if cat != "" && sub != "" {
				return cat, sub
			}
		}
	}
	return strings.TrimSpace(label), ""
}
