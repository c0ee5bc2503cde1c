package classify

import (
	"testing"

	"github.com/dvloznov/finance-coach/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		wantField  domain.Field
		wantAmount domain.Pesos
		wantValue  string
		wantMatch  bool
	}{
		{
			name:       "assets replacement statement",
			message:    "Mis activos ahora son 500 millones",
			wantField:  domain.FieldTotalAssets,
			wantAmount: 500_000_000,
			wantMatch:  true,
		},
		{
			name:       "income direct statement",
			message:    "gano 4 millones al mes",
			wantField:  domain.FieldMonthlyIncome,
			wantAmount: 4_000_000,
			wantMatch:  true,
		},
		{
			name:       "income imperative",
			message:    "actualiza mis ingresos a $5.500.000",
			wantField:  domain.FieldMonthlyIncome,
			wantAmount: 5_500_000,
			wantMatch:  true,
		},
		{
			name:       "liabilities",
			message:    "mis deudas son 80 millones",
			wantField:  domain.FieldTotalLiabilities,
			wantAmount: 80_000_000,
			wantMatch:  true,
		},
		{
			name:       "savings",
			message:    "tengo ahorrados 20 millones",
			wantField:  domain.FieldTotalSavings,
			wantAmount: 20_000_000,
			wantMatch:  true,
		},
		{
			name:      "civil status beats numeric fields",
			message:   "soy casado y gano 3 millones",
			wantField: domain.FieldCivilStatus,
			wantValue: "casado",
			wantMatch: true,
		},
		{
			name:      "age",
			message:   "tengo 34 años",
			wantField: domain.FieldAge,
			wantValue: "34",
			wantMatch: true,
		},
		{
			name:      "children count",
			message:   "tengo 2 hijos",
			wantField: domain.FieldChildrenCount,
			wantValue: "2",
			wantMatch: true,
		},
		{
			name:      "no children",
			message:   "no tengo hijos",
			wantField: domain.FieldChildrenCount,
			wantValue: "0",
			wantMatch: true,
		},
		{
			name:      "full name",
			message:   "me llamo Andrés Felipe Rojas",
			wantField: domain.FieldFullName,
			wantValue: "Andrés Felipe Rojas",
			wantMatch: true,
		},
		{
			name:      "keyword without value asks for clarification",
			message:   "quiero cambiar mis activos",
			wantField: domain.FieldGeneralUpdate,
			wantMatch: false,
		},
		{
			name:      "keyword with typo still clarifies",
			message:   "necesito revisar mi patrimonoo",
			wantField: domain.FieldGeneralUpdate,
			wantMatch: false,
		},
		{
			name:      "unrelated message",
			message:   "hola, ¿cómo estás?",
			wantField: domain.FieldNone,
			wantMatch: false,
		},
		{
			name:      "empty message",
			message:   "",
			wantField: domain.FieldNone,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.message)
			if got.Field != tt.wantField {
				t.Fatalf("Classify(%q).Field = %s, want %s", tt.message, got.Field, tt.wantField)
			}
			if got.Matched != tt.wantMatch {
				t.Errorf("Matched = %v, want %v", got.Matched, tt.wantMatch)
			}
			if tt.wantAmount != 0 && got.Amount != tt.wantAmount {
				t.Errorf("Amount = %d, want %d", got.Amount, tt.wantAmount)
			}
			if tt.wantValue != "" && got.Value != tt.wantValue {
				t.Errorf("Value = %q, want %q", got.Value, tt.wantValue)
			}
		})
	}
}

func TestClassify_ConfidenceTiers(t *testing.T) {
	if got := Classify("mis activos ahora son 100 millones"); got.Tier != domain.ConfidenceHigh {
		t.Errorf("resolved numeric field tier = %s, want high", got.Tier)
	}
	if got := Classify("algo con mis ahorros"); got.Tier != domain.ConfidenceMedium {
		t.Errorf("keyword-only tier = %s, want medium", got.Tier)
	}
	if got := Classify("nada que ver"); got.Tier != domain.ConfidenceLow {
		t.Errorf("no-match tier = %s, want low", got.Tier)
	}
}

func TestClassify_FailedNormalizationFallsThrough(t *testing.T) {
	// "gano" matches the income pattern but carries no number; the classifier
	// must not commit to a numeric field it cannot value.
	got := Classify("gano bien, la verdad")
	if got.Field == domain.FieldMonthlyIncome {
		t.Fatalf("classifier committed to monthly_income without a value")
	}
}
