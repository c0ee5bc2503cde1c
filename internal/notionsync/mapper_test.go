package notionsync

import (
	"testing"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-coach/internal/domain"
)

func TestCategoryToNotionProperties(t *testing.T) {
	cat := domain.Category{
		ID:               "cat-1",
		BudgetID:         "b1",
		Name:             "Transporte",
		Type:             domain.CategoryVariableExpense,
		BudgetedAmount:   700_000,
		HasSubcategories: true,
	}
	subs := []domain.Subcategory{
		{Name: "Gasolina", Amount: 400_000},
		{Name: "Peajes", Amount: 300_000},
	}

	props := CategoryToNotionProperties(cat, subs)

	title, ok := props["Categoría"].(notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 || title.Title[0].Text.Content != "Transporte" {
		t.Errorf("title property = %+v, want Transporte", props["Categoría"])
	}

	num, ok := props["Presupuesto"].(notionapi.NumberProperty)
	if !ok || num.Number != 700_000 {
		t.Errorf("amount property = %+v, want 700000", props["Presupuesto"])
	}

	sel, ok := props["Tipo"].(notionapi.SelectProperty)
	if !ok || sel.Select.Name != "Gasto Variable" {
		t.Errorf("type property = %+v, want Gasto Variable", props["Tipo"])
	}

	check, ok := props["Desglosada"].(notionapi.CheckboxProperty)
	if !ok || !check.Checkbox {
		t.Errorf("breakdown flag = %+v, want checked", props["Desglosada"])
	}

	breakdown, ok := props["Subcategorías"].(notionapi.RichTextProperty)
	if !ok || len(breakdown.RichText) != 2 {
		t.Fatalf("subcategory breakdown = %+v, want two lines", props["Subcategorías"])
	}
	if breakdown.RichText[0].Text.Content != "Gasolina: 400000\n" {
		t.Errorf("first line = %q", breakdown.RichText[0].Text.Content)
	}
}

func TestCategoryToNotionProperties_NoSubcategories(t *testing.T) {
	props := CategoryToNotionProperties(domain.Category{
		Name: "Arriendo", Type: domain.CategoryFixedExpense, BudgetedAmount: 800_000,
	}, nil)
	if _, ok := props["Subcategorías"]; ok {
		t.Error("flat category must not carry a breakdown property")
	}
}

func TestCategoryKey(t *testing.T) {
	a := CategoryKey(domain.Category{BudgetID: "b1", Name: "Transporte", Type: domain.CategoryFixedExpense})
	b := CategoryKey(domain.Category{BudgetID: "b1", Name: "Transporte", Type: domain.CategoryVariableExpense})
	if a == b {
		t.Error("keys must differ across category types")
	}
	if a != "b1|Transporte|fixed_expense" {
		t.Errorf("key = %q", a)
	}
}
