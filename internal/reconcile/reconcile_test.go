package reconcile

import (
	"errors"
	"testing"

	"github.com/dvloznov/finance-coach/internal/domain"
)

const budgetID = "budget-1"

func TestPlan_AccumulatesOnRepeat(t *testing.T) {
	tree := &Tree{}
	tuple := []domain.CategoryTuple{
		{CategoryName: "Activos", Amount: 100_000_000, Type: domain.CategoryIncome},
	}

	Plan(budgetID, tuple, tree)
	Plan(budgetID, tuple, tree)

	if len(tree.Categories) != 1 {
		t.Fatalf("got %d categories, want 1", len(tree.Categories))
	}
	if got := tree.Categories[0].BudgetedAmount; got != 200_000_000 {
		t.Errorf("amount after two reconciliations = %d, want 200000000 (accumulate, not overwrite)", got)
	}
}

func TestPlan_SubcategoryRollup(t *testing.T) {
	tree := &Tree{}
	res := Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "Transporte", SubcategoryName: "Gasolina", Amount: 400_000, Type: domain.CategoryVariableExpense},
		{CategoryName: "Transporte", SubcategoryName: "Peajes", Amount: 600_000, Type: domain.CategoryVariableExpense},
	}, tree)

	if len(tree.Categories) != 1 {
		t.Fatalf("got %d categories, want 1", len(tree.Categories))
	}
	cat := tree.Categories[0]
	if cat.BudgetedAmount != 1_000_000 {
		t.Errorf("parent total = %d, want 1000000", cat.BudgetedAmount)
	}
	if !cat.HasSubcategories {
		t.Error("parent must be marked as having subcategories")
	}
	if len(tree.Subcategories[cat.ID]) != 2 {
		t.Errorf("got %d subcategories, want 2", len(tree.Subcategories[cat.ID]))
	}
	if len(res.Changed) != 1 {
		t.Errorf("changed list has %d categories, want 1", len(res.Changed))
	}
}

func TestPlan_RolledUpCategoryRedirectsToOtros(t *testing.T) {
	tree := &Tree{}
	Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "Transporte", SubcategoryName: "Gasolina", Amount: 300_000, Type: domain.CategoryVariableExpense},
	}, tree)

	// A plain tuple against the now rolled-up parent must not overwrite its
	// computed total; it lands in "Otros" and the rollup stays exact.
	Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "Transporte", Amount: 100_000, Type: domain.CategoryVariableExpense},
	}, tree)

	cat := tree.Categories[0]
	if cat.BudgetedAmount != 400_000 {
		t.Errorf("parent total = %d, want 400000", cat.BudgetedAmount)
	}
	var otros *domain.Subcategory
	for i := range tree.Subcategories[cat.ID] {
		if tree.Subcategories[cat.ID][i].Name == OtrosSubcategory {
			otros = &tree.Subcategories[cat.ID][i]
		}
	}
	if otros == nil {
		t.Fatal("redirect must create an Otros subcategory")
	}
	if otros.Amount != 100_000 {
		t.Errorf("Otros amount = %d, want 100000", otros.Amount)
	}
}

func TestPlan_FlatAmountCarriedIntoOtrosOnFirstSubcategory(t *testing.T) {
	tree := &Tree{}
	Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "Mercado", Amount: 500_000, Type: domain.CategoryVariableExpense},
	}, tree)
	Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "Mercado", SubcategoryName: "Frutas", Amount: 200_000, Type: domain.CategoryVariableExpense},
	}, tree)

	cat := tree.Categories[0]
	if cat.BudgetedAmount != 700_000 {
		t.Errorf("parent total = %d, want 700000 (flat 500000 carried + 200000)", cat.BudgetedAmount)
	}
	if got := len(tree.Subcategories[cat.ID]); got != 2 {
		t.Fatalf("got %d subcategories, want Otros carry plus Frutas", got)
	}
}

func TestPlan_TypeBoundaryNeverMerges(t *testing.T) {
	tree := &Tree{}
	Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "Transporte", Amount: 300_000, Type: domain.CategoryFixedExpense},
		{CategoryName: "Transporte", Amount: 200_000, Type: domain.CategoryVariableExpense},
	}, tree)

	if len(tree.Categories) != 2 {
		t.Fatalf("same name across types must stay two categories, got %d", len(tree.Categories))
	}
	for _, c := range tree.Categories {
		switch c.Type {
		case domain.CategoryFixedExpense:
			if c.BudgetedAmount != 300_000 {
				t.Errorf("fixed Transporte = %d, want 300000", c.BudgetedAmount)
			}
		case domain.CategoryVariableExpense:
			if c.BudgetedAmount != 200_000 {
				t.Errorf("variable Transporte = %d, want 200000", c.BudgetedAmount)
			}
		}
	}
}

func TestPlan_PlaceholderNeverShadowsMeasuredValue(t *testing.T) {
	tree := &Tree{}
	Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "Salario", Amount: 5_000_000, Type: domain.CategoryIncome},
	}, tree)
	Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "Salario", Type: domain.CategoryIncome, NeedsAmount: true},
	}, tree)

	if got := tree.Categories[0].BudgetedAmount; got != 5_000_000 {
		t.Errorf("placeholder changed a measured amount: %d, want 5000000", got)
	}
}

func TestPlan_PlaceholderCreatesZeroCategory(t *testing.T) {
	tree := &Tree{}
	res := Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "rentas", Type: domain.CategoryIncome, NeedsAmount: true},
	}, tree)

	if len(tree.Categories) != 1 || tree.Categories[0].BudgetedAmount != 0 {
		t.Fatalf("placeholder must persist as an amount-0 category: %+v", tree.Categories)
	}
	if len(res.Ops) != 1 || res.Ops[0].Kind != OpInsertPlaceholder {
		t.Errorf("ops = %+v, want a single insert_placeholder", res.Ops)
	}
}

func TestPlan_CaseInsensitiveMatch(t *testing.T) {
	tree := &Tree{}
	Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "Arriendo", Amount: 800_000, Type: domain.CategoryFixedExpense},
	}, tree)
	Plan(budgetID, []domain.CategoryTuple{
		{CategoryName: "arriendo", Amount: 100_000, Type: domain.CategoryFixedExpense},
	}, tree)

	if len(tree.Categories) != 1 {
		t.Fatalf("case-variant names must merge, got %d categories", len(tree.Categories))
	}
	if got := tree.Categories[0].BudgetedAmount; got != 900_000 {
		t.Errorf("amount = %d, want 900000", got)
	}
}

func TestValidateStructured(t *testing.T) {
	err := ValidateStructured([]domain.CategoryTuple{
		{CategoryName: "Arriendo", Amount: 800_000, Type: domain.CategoryFixedExpense},
		{},
	})
	var invalid *InvalidStructuredPayloadError
	if !errors.As(err, &invalid) {
		t.Fatalf("want InvalidStructuredPayloadError, got %v", err)
	}
	if invalid.Index != 1 {
		t.Errorf("invalid entry index = %d, want 1", invalid.Index)
	}

	if err := ValidateStructured([]domain.CategoryTuple{
		{CategoryName: "Arriendo", Amount: 800_000},
		{Amount: 100_000}, // amount without a name is still reconcilable upstream
		{CategoryName: "rentas"},
	}); err != nil {
		t.Errorf("entries with a name or an amount must pass, got %v", err)
	}
}
