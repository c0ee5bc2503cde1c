// Package bigquery is the persistence layer for budgets, profiles and
// conversation transcripts. Mutations that two concurrent turns could race
// on are expressed as single MERGE statements keyed by the row's uniqueness
// constraint, so they serialize inside BigQuery instead of losing updates to
// a read-modify-write window.
package bigquery

import (
	"time"

	"github.com/dvloznov/finance-coach/internal/domain"
)

const (
	// There is no default project; Configure must run before any query.
	defaultProjectID = ""
	defaultDatasetID = "coach"

	categoriesTable    = "categories"
	subcategoriesTable = "subcategories"
	profilesTable      = "profiles"
	messagesTable      = "messages"
)

var (
	projectID = defaultProjectID
	datasetID = defaultDatasetID
)

// Configure overrides the project and dataset the package operates on.
// Called once from startup wiring before any repository is created.
func Configure(project, dataset string) {
	if project != "" {
		projectID = project
	}
	if dataset != "" {
		datasetID = dataset
	}
}

// CategoryRow mirrors one row of coach.categories.
type CategoryRow struct {
	CategoryID       string    `bigquery:"category_id"`
	BudgetID         string    `bigquery:"budget_id"`
	Name             string    `bigquery:"name"`
	CategoryType     string    `bigquery:"category_type"`
	BudgetedAmount   int64     `bigquery:"budgeted_amount"`
	HasSubcategories bool      `bigquery:"has_subcategories"`
	CreatedTS        time.Time `bigquery:"created_ts"`
	UpdatedTS        time.Time `bigquery:"updated_ts"`
}

// SubcategoryRow mirrors one row of coach.subcategories.
type SubcategoryRow struct {
	SubcategoryID string    `bigquery:"subcategory_id"`
	CategoryID    string    `bigquery:"category_id"`
	Name          string    `bigquery:"name"`
	Amount        int64     `bigquery:"amount"`
	CreatedTS     time.Time `bigquery:"created_ts"`
	UpdatedTS     time.Time `bigquery:"updated_ts"`
}

// ProfileRow mirrors one row of coach.profiles.
type ProfileRow struct {
	UserID           string    `bigquery:"user_id"`
	FullName         string    `bigquery:"full_name"`
	Age              int64     `bigquery:"age"`
	CivilStatus      string    `bigquery:"civil_status"`
	ChildrenCount    int64     `bigquery:"children_count"`
	MonthlyIncome    int64     `bigquery:"monthly_income"`
	TotalAssets      int64     `bigquery:"total_assets"`
	TotalLiabilities int64     `bigquery:"total_liabilities"`
	TotalSavings     int64     `bigquery:"total_savings"`
	UpdatedTS        time.Time `bigquery:"updated_ts"`
}

// MessageRow mirrors one row of coach.messages. Seq orders messages within
// a conversation; the progress derivation depends on replay order.
type MessageRow struct {
	MessageID      string    `bigquery:"message_id"`
	ConversationID string    `bigquery:"conversation_id"`
	Seq            int64     `bigquery:"seq"`
	Role           string    `bigquery:"role"`
	Content        string    `bigquery:"content"`
	CreatedTS      time.Time `bigquery:"created_ts"`
}

func (r *CategoryRow) toDomain() domain.Category {
	return domain.Category{
		ID:               r.CategoryID,
		BudgetID:         r.BudgetID,
		Name:             r.Name,
		Type:             domain.CategoryType(r.CategoryType),
		BudgetedAmount:   domain.Pesos(r.BudgetedAmount),
		HasSubcategories: r.HasSubcategories,
	}
}

func (r *SubcategoryRow) toDomain() domain.Subcategory {
	return domain.Subcategory{
		ID:         r.SubcategoryID,
		CategoryID: r.CategoryID,
		Name:       r.Name,
		Amount:     domain.Pesos(r.Amount),
	}
}
