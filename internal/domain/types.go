// Package domain holds the core types shared by the conversational
// extraction engine: peso amounts, category tuples, classified profile
// fields and the persisted budget category tree.
package domain

// Pesos is an amount of Colombian pesos. COP has no meaningful sub-unit in
// this system, so amounts are whole pesos, never cents. A Pesos value is
// never negative; zero means "no amount captured yet", not a measured zero.
type Pesos int64

// CategoryType partitions budget categories. The same category name may
// exist once per type (e.g. "Transporte" as both fixed and variable), so
// every category key includes its type.
type CategoryType string

const (
	CategoryIncome          CategoryType = "income"
	CategoryFixedExpense    CategoryType = "fixed_expense"
	CategoryVariableExpense CategoryType = "variable_expense"
	CategorySavings         CategoryType = "savings"
)

// CategoryTuple is one extracted category/subcategory/amount triple. Tuples
// are transient: they exist between extraction and reconciliation and are
// never persisted as-is.
type CategoryTuple struct {
	CategoryName    string
	SubcategoryName string // empty when the tuple targets the category itself
	Amount          Pesos
	Type            CategoryType

	// NeedsAmount marks a placeholder tuple: the user named the concept but
	// gave no number. The reconciler must persist it as a placeholder, never
	// as a measured zero.
	NeedsAmount bool
}

// Field identifies a profile field the classifier can target.
type Field string

const (
	FieldNone             Field = "none"
	FieldGeneralUpdate    Field = "general_update"
	FieldFullName         Field = "full_name"
	FieldAge              Field = "age"
	FieldCivilStatus      Field = "civil_status"
	FieldChildrenCount    Field = "children_count"
	FieldMonthlyIncome    Field = "monthly_income"
	FieldTotalAssets      Field = "total_assets"
	FieldTotalLiabilities Field = "total_liabilities"
	FieldTotalSavings     Field = "total_savings"
)

// NumericFields lists the profile fields whose values go through the amount
// normalizer.
var NumericFields = map[Field]bool{
	FieldMonthlyIncome:    true,
	FieldTotalAssets:      true,
	FieldTotalLiabilities: true,
	FieldTotalSavings:     true,
}

// ConfidenceTier grades how sure the classifier is about a match.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// ExtractedField is the classifier's recommendation for one inbound message.
// It is consumed immediately by the caller and never stored.
type ExtractedField struct {
	Field   Field
	Value   string // textual value (name, civil status, ...)
	Amount  Pesos  // set for numeric fields
	Tier    ConfidenceTier
	Matched bool
}

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation transcript.
type Message struct {
	Role    Role
	Content string
}

// UserMessageCount returns how many messages in the transcript were written
// by the user. Conversation progress is derived from this count alone.
func UserMessageCount(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Category is a persisted budget category, keyed by (BudgetID, Name, Type).
// When HasSubcategories is true its BudgetedAmount equals the exact sum of
// its subcategories and the category is not directly editable.
type Category struct {
	ID               string
	BudgetID         string
	Name             string
	Type             CategoryType
	BudgetedAmount   Pesos
	HasSubcategories bool
}

// Subcategory is a persisted sub-bucket, unique per (CategoryID, Name).
type Subcategory struct {
	ID         string
	CategoryID string
	Name       string
	Amount     Pesos
}

// Profile is the user's financial profile built by the onboarding flow.
// Classifier-driven updates replace field values (they never accumulate).
type Profile struct {
	UserID           string
	FullName         string
	Age              int
	CivilStatus      string
	ChildrenCount    int
	MonthlyIncome    Pesos
	TotalAssets      Pesos
	TotalLiabilities Pesos
	TotalSavings     Pesos
}
