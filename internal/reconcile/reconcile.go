// Package reconcile merges freshly extracted category tuples into the
// persisted budget tree. It is a pure planner: given the tuples and a
// snapshot of the tree it returns the operations to apply and the resulting
// totals, and performs no I/O itself. Amounts accumulate rather than
// overwrite, because later conversational turns add detail to an earlier
// coarse total ("sumarle 100 millones" must add, not replace).
package reconcile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-coach/internal/domain"
)

// OtrosSubcategory is where plain-tuple edits against a rolled-up category
// are redirected: once a category has subcategories its own total is the sum
// of theirs and cannot be edited directly.
const OtrosSubcategory = "Otros"

// OpKind distinguishes the planned mutations.
type OpKind string

const (
	OpInsertCategory     OpKind = "insert_category"
	OpAddToCategory      OpKind = "add_to_category"
	OpInsertSubcategory  OpKind = "insert_subcategory"
	OpAddToSubcategory   OpKind = "add_to_subcategory"
	OpSetCategoryTotal   OpKind = "set_category_total"
	OpMarkSubcategorized OpKind = "mark_subcategorized"
	OpInsertPlaceholder  OpKind = "insert_placeholder"
)

// Op is one planned mutation against the persisted tree. The storage layer
// executes AddTo* kinds as atomic insert-or-add merges keyed by
// (budget_id, name, category_type), so two concurrent turns for the same
// budget serialize at the store instead of losing an update.
type Op struct {
	Kind          OpKind
	BudgetID      string
	CategoryID    string
	CategoryName  string
	CategoryType  domain.CategoryType
	SubcategoryID string
	Subcategory   string
	Amount        domain.Pesos
}

// Tree is the in-memory snapshot of one budget's persisted categories.
type Tree struct {
	Categories    []domain.Category
	Subcategories map[string][]domain.Subcategory // by category ID
}

// find returns the category matching the uniqueness key, if present. The
// same name may exist once per category type ("Transporte" as both a fixed
// and a variable expense), so the type is part of the key and merges never
// cross it.
func (t *Tree) find(name string, ctype domain.CategoryType) *domain.Category {
	for i := range t.Categories {
		c := &t.Categories[i]
		if strings.EqualFold(c.Name, name) && c.Type == ctype {
			return c
		}
	}
	return nil
}

func (t *Tree) findSub(categoryID, name string) *domain.Subcategory {
	for i := range t.Subcategories[categoryID] {
		s := &t.Subcategories[categoryID][i]
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

func (t *Tree) subSum(categoryID string) domain.Pesos {
	var sum domain.Pesos
	for _, s := range t.Subcategories[categoryID] {
		sum += s.Amount
	}
	return sum
}

// Result is what one planning pass produced.
type Result struct {
	Ops     []Op
	Changed []domain.Category // post-plan state of every touched category
}

// Plan merges tuples into the tree snapshot and returns the operations to
// persist. The snapshot is mutated in place so consecutive tuples in the same
// batch see each other's effects; callers wanting an untouched copy clone
// first. Placeholder tuples (NeedsAmount) create amount-0 categories awaiting
// a follow-up and never add to an existing total.
func Plan(budgetID string, tuples []domain.CategoryTuple, tree *Tree) Result {
	if tree.Subcategories == nil {
		tree.Subcategories = make(map[string][]domain.Subcategory)
	}

	var res Result
	touched := make(map[string]bool)

	for _, tu := range tuples {
		name := strings.TrimSpace(tu.CategoryName)
		if name == "" {
			continue
		}

		var cat *domain.Category
		switch {
		case tu.SubcategoryName != "":
			cat = planSubcategory(budgetID, tu, tree, &res)
		case tu.NeedsAmount:
			cat = planPlaceholder(budgetID, tu, tree, &res)
		default:
			cat = planCategory(budgetID, tu, tree, &res)
		}
		if cat != nil {
			touched[cat.ID] = true
		}
	}

	for _, c := range tree.Categories {
		if touched[c.ID] {
			res.Changed = append(res.Changed, c)
		}
	}
	return res
}

// planCategory handles a plain tuple: insert-or-add on the category itself,
// unless the category has rolled up subcategories, in which case the edit is
// redirected into the "Otros" subcategory to keep the rollup invariant.
func planCategory(budgetID string, tu domain.CategoryTuple, tree *Tree, res *Result) *domain.Category {
	cat := tree.find(tu.CategoryName, tu.Type)
	if cat == nil {
		cat = appendCategory(budgetID, tu.CategoryName, tu.Type, tu.Amount, tree)
		res.Ops = append(res.Ops, Op{
			Kind: OpInsertCategory, BudgetID: budgetID, CategoryID: cat.ID,
			CategoryName: cat.Name, CategoryType: cat.Type, Amount: tu.Amount,
		})
		return cat
	}

	if cat.HasSubcategories {
		redirected := tu
		redirected.SubcategoryName = OtrosSubcategory
		return planSubcategory(budgetID, redirected, tree, res)
	}

	cat.BudgetedAmount += tu.Amount
	res.Ops = append(res.Ops, Op{
		Kind: OpAddToCategory, BudgetID: budgetID, CategoryID: cat.ID,
		CategoryName: cat.Name, CategoryType: cat.Type, Amount: tu.Amount,
	})
	return cat
}

// planSubcategory upserts the subcategory, creating an amount-0 parent when
// absent, then recomputes the parent total as the exact subcategory sum.
func planSubcategory(budgetID string, tu domain.CategoryTuple, tree *Tree, res *Result) *domain.Category {
	cat := tree.find(tu.CategoryName, tu.Type)
	if cat == nil {
		cat = appendCategory(budgetID, tu.CategoryName, tu.Type, 0, tree)
		res.Ops = append(res.Ops, Op{
			Kind: OpInsertCategory, BudgetID: budgetID, CategoryID: cat.ID,
			CategoryName: cat.Name, CategoryType: cat.Type, Amount: 0,
		})
	}

	// The first subcategory folds the parent's previously flat amount into
	// "Otros" so no already-stated money silently disappears from the rollup.
	if !cat.HasSubcategories && cat.BudgetedAmount > 0 &&
		!strings.EqualFold(tu.SubcategoryName, OtrosSubcategory) {
		carry := domain.Subcategory{
			ID: uuid.NewString(), CategoryID: cat.ID,
			Name: OtrosSubcategory, Amount: cat.BudgetedAmount,
		}
		tree.Subcategories[cat.ID] = append(tree.Subcategories[cat.ID], carry)
		res.Ops = append(res.Ops, Op{
			Kind: OpInsertSubcategory, BudgetID: budgetID, CategoryID: cat.ID,
			CategoryName: cat.Name, CategoryType: cat.Type,
			SubcategoryID: carry.ID, Subcategory: carry.Name, Amount: carry.Amount,
		})
	}

	sub := tree.findSub(cat.ID, tu.SubcategoryName)
	if sub == nil {
		created := domain.Subcategory{
			ID: uuid.NewString(), CategoryID: cat.ID,
			Name: strings.TrimSpace(tu.SubcategoryName), Amount: tu.Amount,
		}
		tree.Subcategories[cat.ID] = append(tree.Subcategories[cat.ID], created)
		res.Ops = append(res.Ops, Op{
			Kind: OpInsertSubcategory, BudgetID: budgetID, CategoryID: cat.ID,
			CategoryName: cat.Name, CategoryType: cat.Type,
			SubcategoryID: created.ID, Subcategory: created.Name, Amount: tu.Amount,
		})
	} else {
		sub.Amount += tu.Amount
		res.Ops = append(res.Ops, Op{
			Kind: OpAddToSubcategory, BudgetID: budgetID, CategoryID: cat.ID,
			CategoryName: cat.Name, CategoryType: cat.Type,
			SubcategoryID: sub.ID, Subcategory: sub.Name, Amount: tu.Amount,
		})
	}

	if !cat.HasSubcategories {
		cat.HasSubcategories = true
		res.Ops = append(res.Ops, Op{
			Kind: OpMarkSubcategorized, BudgetID: budgetID, CategoryID: cat.ID,
			CategoryName: cat.Name, CategoryType: cat.Type,
		})
	}

	cat.BudgetedAmount = tree.subSum(cat.ID)
	res.Ops = append(res.Ops, Op{
		Kind: OpSetCategoryTotal, BudgetID: budgetID, CategoryID: cat.ID,
		CategoryName: cat.Name, CategoryType: cat.Type, Amount: cat.BudgetedAmount,
	})
	return cat
}

// planPlaceholder records a named category with no amount yet. An existing
// category is left untouched: a placeholder must never shadow a measured
// value.
func planPlaceholder(budgetID string, tu domain.CategoryTuple, tree *Tree, res *Result) *domain.Category {
	if cat := tree.find(tu.CategoryName, tu.Type); cat != nil {
		return nil
	}
	cat := appendCategory(budgetID, tu.CategoryName, tu.Type, 0, tree)
	res.Ops = append(res.Ops, Op{
		Kind: OpInsertPlaceholder, BudgetID: budgetID, CategoryID: cat.ID,
		CategoryName: cat.Name, CategoryType: cat.Type,
	})
	return cat
}

func appendCategory(budgetID, name string, ctype domain.CategoryType, amount domain.Pesos, tree *Tree) *domain.Category {
	tree.Categories = append(tree.Categories, domain.Category{
		ID:             uuid.NewString(),
		BudgetID:       budgetID,
		Name:           strings.TrimSpace(name),
		Type:           ctype,
		BudgetedAmount: amount,
	})
	return &tree.Categories[len(tree.Categories)-1]
}

// ValidateStructured checks a structured (non-conversational) payload of
// tuples. An entry missing both a name and an amount cannot be reconciled and
// is rejected with a message naming the entry; it is never silently dropped.
func ValidateStructured(tuples []domain.CategoryTuple) error {
	for i, tu := range tuples {
		if strings.TrimSpace(tu.CategoryName) == "" && tu.Amount == 0 {
			return &InvalidStructuredPayloadError{Index: i}
		}
	}
	return nil
}

// InvalidStructuredPayloadError identifies which structured entry was
// unusable. It is the only error this package surfaces to callers.
type InvalidStructuredPayloadError struct {
	Index int
}

func (e *InvalidStructuredPayloadError) Error() string {
	return fmt.Sprintf("entry %d has neither a category name nor an amount", e.Index+1)
}
