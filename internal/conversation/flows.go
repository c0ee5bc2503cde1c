package conversation

import "github.com/dvloznov/finance-coach/internal/domain"

// The two scripted flows. The prompt texts double as the deterministic
// fallback when the generator is unavailable, so they are written to stand on
// their own, not as hints for a model.

// StepMode selects the extraction strategy for a step.
type StepMode string

const (
	// ModeDirect binds the whole message to one profile field.
	ModeDirect StepMode = "direct"
	// ModeHybrid extracts category tuples from the message, typed by the
	// assistant's question.
	ModeHybrid StepMode = "hybrid"
	// ModeFreeform stores the answer verbatim (names, status).
	ModeFreeform StepMode = "freeform"
)

// onboardingFields maps the amount steps of the onboarding interview to the
// profile field each one fills.
var onboardingFields = map[int]domain.Field{
	5: domain.FieldMonthlyIncome,
	6: domain.FieldTotalAssets,
	7: domain.FieldTotalLiabilities,
	8: domain.FieldTotalSavings,
}

// OnboardingFieldFor returns the profile field a direct-mode onboarding step
// binds to, or FieldNone for the free-text steps.
func OnboardingFieldFor(step int) domain.Field {
	if f, ok := onboardingFields[step]; ok {
		return f
	}
	return domain.FieldNone
}

// Onboarding is the nine-step profile interview.
func Onboarding() Config {
	return Config{
		Flow:       FlowOnboarding,
		TotalSteps: 9,
		Prompts: []string{
			"¡Hola! Soy tu coach financiero. Para empezar, ¿cuál es tu nombre completo?",
			"Mucho gusto. ¿Cuántos años tienes?",
			"¿Cuál es tu estado civil? (soltero, casado, unión libre, divorciado, viudo)",
			"¿Tienes hijos? ¿Cuántos?",
			"Hablemos de plata. ¿Cuáles son tus ingresos mensuales en total?",
			"¿Cuánto suman tus activos? (propiedades, vehículos, inversiones, todo lo que tienes)",
			"¿Y tus deudas o pasivos? ¿Cuánto debes en total?",
			"¿Cuánto tienes ahorrado hoy?",
			"Por último, ¿cuál es tu meta financiera principal para este año?",
		},
		CompletionPrompt: "¡Listo! Tu perfil financiero quedó completo. " +
			"Cuando quieras armamos tu presupuesto del mes.",
	}
}

// OnboardingStepMode reports how a given onboarding step's answer is
// extracted. Steps 5 through 8 are peso amounts; the rest are free text.
func OnboardingStepMode(step int) StepMode {
	if step >= 5 && step <= 8 {
		return ModeDirect
	}
	return ModeFreeform
}

// Budget is the four-step monthly budget interview. Every step's answer goes
// through hybrid category extraction.
func Budget() Config {
	return Config{
		Flow:       FlowBudget,
		TotalSteps: 4,
		Prompts: []string{
			"Armemos tu presupuesto. ¿Cuáles son tus fuentes de ingreso este mes y de cuánto es cada una?",
			"Ahora los gastos fijos: arriendo, servicios, cuotas... ¿cuáles tienes y de cuánto son?",
			"¿Qué gastos variables esperas este mes? (mercado, transporte, salidas)",
			"Para cerrar, ¿cuánto quieres ahorrar este mes?",
		},
		CompletionPrompt: "¡Tu presupuesto del mes quedó armado! " +
			"Puedes pedirme el resumen o ajustar cualquier categoría cuando quieras.",
	}
}

// ConfigFor returns the flow's configuration. Unknown flows get the budget
// script, the shorter and safer default.
func ConfigFor(flow Flow) Config {
	if flow == FlowOnboarding {
		return Onboarding()
	}
	return Budget()
}
