package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-coach/internal/domain"
	"github.com/dvloznov/finance-coach/internal/reconcile"
)

// FetchTree loads the full category tree for one budget.
func FetchTree(ctx context.Context, budgetID string) (*reconcile.Tree, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("FetchTree: bigquery client: %w", err)
	}
	defer client.Close()

	return FetchTreeWithClient(ctx, client, budgetID)
}

// FetchTreeWithClient loads the category tree using the provided client.
func FetchTreeWithClient(ctx context.Context, client *bigquery.Client, budgetID string) (*reconcile.Tree, error) {
	query := fmt.Sprintf(`
		SELECT
			category_id,
			budget_id,
			name,
			category_type,
			budgeted_amount,
			has_subcategories,
			created_ts,
			updated_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE budget_id = @budget_id
		ORDER BY created_ts
	`, projectID, datasetID, categoriesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "budget_id", Value: budgetID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchTreeWithClient: reading categories: %w", err)
	}

	tree := &reconcile.Tree{Subcategories: make(map[string][]domain.Subcategory)}
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FetchTreeWithClient: iterating categories: %w", err)
		}
		tree.Categories = append(tree.Categories, row.toDomain())
	}

	subQuery := fmt.Sprintf(`
		SELECT
			s.subcategory_id,
			s.category_id,
			s.name,
			s.amount,
			s.created_ts,
			s.updated_ts
		FROM `+"`%s.%s.%s`"+` s
		JOIN `+"`%s.%s.%s`"+` c ON c.category_id = s.category_id
		WHERE c.budget_id = @budget_id
		ORDER BY s.created_ts
	`, projectID, datasetID, subcategoriesTable, projectID, datasetID, categoriesTable)

	sq := client.Query(subQuery)
	sq.Parameters = []bigquery.QueryParameter{
		{Name: "budget_id", Value: budgetID},
	}

	sit, err := sq.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchTreeWithClient: reading subcategories: %w", err)
	}

	for {
		var row SubcategoryRow
		err := sit.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FetchTreeWithClient: iterating subcategories: %w", err)
		}
		tree.Subcategories[row.CategoryID] = append(tree.Subcategories[row.CategoryID], row.toDomain())
	}

	return tree, nil
}

// ApplyOps executes a reconciliation plan in order.
func ApplyOps(ctx context.Context, ops []reconcile.Op) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("ApplyOps: bigquery client: %w", err)
	}
	defer client.Close()

	return ApplyOpsWithClient(ctx, client, ops)
}

// ApplyOpsWithClient executes a reconciliation plan using the provided
// client. Category and subcategory amount changes run as MERGE statements
// keyed by the tree's uniqueness constraints, so a concurrent turn that
// already inserted the same row turns this op into an add instead of a
// duplicate insert.
func ApplyOpsWithClient(ctx context.Context, client *bigquery.Client, ops []reconcile.Op) error {
	for i, op := range ops {
		var err error
		switch op.Kind {
		case reconcile.OpInsertCategory, reconcile.OpAddToCategory:
			err = mergeCategoryAmount(ctx, client, op, true)
		case reconcile.OpInsertPlaceholder:
			// Insert-if-absent only; a placeholder must never add to an
			// existing measured amount.
			err = mergeCategoryAmount(ctx, client, op, false)
		case reconcile.OpInsertSubcategory, reconcile.OpAddToSubcategory:
			err = mergeSubcategoryAmount(ctx, client, op)
		case reconcile.OpSetCategoryTotal:
			err = setCategoryTotal(ctx, client, op)
		case reconcile.OpMarkSubcategorized:
			err = markSubcategorized(ctx, client, op)
		default:
			err = fmt.Errorf("unknown op kind %q", op.Kind)
		}
		if err != nil {
			return fmt.Errorf("ApplyOpsWithClient: op %d (%s %q): %w", i, op.Kind, op.CategoryName, err)
		}
	}
	return nil
}

// mergeCategoryAmount is the atomic insert-or-add on a category, keyed by
// (budget_id, name, category_type). Name matching is case-insensitive to
// mirror the planner. With addOnMatch false an existing row is left alone.
func mergeCategoryAmount(ctx context.Context, client *bigquery.Client, op reconcile.Op, addOnMatch bool) error {
	matched := ""
	if addOnMatch {
		matched = `
		WHEN MATCHED THEN UPDATE SET
			budgeted_amount = t.budgeted_amount + @amount,
			updated_ts = @now`
	}

	query := fmt.Sprintf(`
		MERGE `+"`%s.%s.%s`"+` t
		USING (SELECT @budget_id AS budget_id, @name AS name, @category_type AS category_type) s
		ON t.budget_id = s.budget_id
			AND LOWER(t.name) = LOWER(s.name)
			AND t.category_type = s.category_type%s
		WHEN NOT MATCHED THEN INSERT (
			category_id, budget_id, name, category_type,
			budgeted_amount, has_subcategories, created_ts, updated_ts
		) VALUES (
			@category_id, @budget_id, @name, @category_type,
			@amount, FALSE, @now, @now
		)
	`, projectID, datasetID, categoriesTable, matched)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "category_id", Value: op.CategoryID},
		{Name: "budget_id", Value: op.BudgetID},
		{Name: "name", Value: op.CategoryName},
		{Name: "category_type", Value: string(op.CategoryType)},
		{Name: "amount", Value: int64(op.Amount)},
		{Name: "now", Value: time.Now().UTC()},
	}
	return runJob(ctx, q)
}

// mergeSubcategoryAmount is the atomic insert-or-add on a subcategory, keyed
// by (category_id, name).
func mergeSubcategoryAmount(ctx context.Context, client *bigquery.Client, op reconcile.Op) error {
	query := fmt.Sprintf(`
		MERGE `+"`%s.%s.%s`"+` t
		USING (SELECT @category_id AS category_id, @name AS name) s
		ON t.category_id = s.category_id AND LOWER(t.name) = LOWER(s.name)
		WHEN MATCHED THEN UPDATE SET
			amount = t.amount + @amount,
			updated_ts = @now
		WHEN NOT MATCHED THEN INSERT (
			subcategory_id, category_id, name, amount, created_ts, updated_ts
		) VALUES (
			@subcategory_id, @category_id, @name, @amount, @now, @now
		)
	`, projectID, datasetID, subcategoriesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "subcategory_id", Value: op.SubcategoryID},
		{Name: "category_id", Value: op.CategoryID},
		{Name: "name", Value: op.Subcategory},
		{Name: "amount", Value: int64(op.Amount)},
		{Name: "now", Value: time.Now().UTC()},
	}
	return runJob(ctx, q)
}

// setCategoryTotal rewrites a rolled-up parent's total from the exact
// subcategory sum already present in the table, not from the planner's
// snapshot, so concurrent subcategory merges cannot leave a stale rollup.
func setCategoryTotal(ctx context.Context, client *bigquery.Client, op reconcile.Op) error {
	query := fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+` c
		SET budgeted_amount = (
			SELECT COALESCE(SUM(s.amount), 0)
			FROM `+"`%s.%s.%s`"+` s
			WHERE s.category_id = c.category_id
		),
		updated_ts = @now
		WHERE c.budget_id = @budget_id
			AND LOWER(c.name) = LOWER(@name)
			AND c.category_type = @category_type
	`, projectID, datasetID, categoriesTable, projectID, datasetID, subcategoriesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "budget_id", Value: op.BudgetID},
		{Name: "name", Value: op.CategoryName},
		{Name: "category_type", Value: string(op.CategoryType)},
		{Name: "now", Value: time.Now().UTC()},
	}
	return runJob(ctx, q)
}

func markSubcategorized(ctx context.Context, client *bigquery.Client, op reconcile.Op) error {
	query := fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+`
		SET has_subcategories = TRUE, updated_ts = @now
		WHERE budget_id = @budget_id
			AND LOWER(name) = LOWER(@name)
			AND category_type = @category_type
	`, projectID, datasetID, categoriesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "budget_id", Value: op.BudgetID},
		{Name: "name", Value: op.CategoryName},
		{Name: "category_type", Value: string(op.CategoryType)},
		{Name: "now", Value: time.Now().UTC()},
	}
	return runJob(ctx, q)
}

func runJob(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
