package bigquery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-coach/internal/domain"
)

// profileColumns whitelists the field-to-column mapping; the column name is
// interpolated into SQL and must never come from user input.
var profileColumns = map[domain.Field]string{
	domain.FieldFullName:         "full_name",
	domain.FieldAge:              "age",
	domain.FieldCivilStatus:      "civil_status",
	domain.FieldChildrenCount:    "children_count",
	domain.FieldMonthlyIncome:    "monthly_income",
	domain.FieldTotalAssets:      "total_assets",
	domain.FieldTotalLiabilities: "total_liabilities",
	domain.FieldTotalSavings:     "total_savings",
}

// SetProfileField writes one field with replace semantics: a profile edit is
// a correction ("mis activos ahora son X"), never an accumulation.
func SetProfileField(ctx context.Context, userID string, field domain.Field, value string, pesos domain.Pesos) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("SetProfileField: bigquery client: %w", err)
	}
	defer client.Close()

	return SetProfileFieldWithClient(ctx, client, userID, field, value, pesos)
}

// SetProfileFieldWithClient writes one field using the provided client. The
// MERGE creates the profile row on first write so onboarding never needs a
// separate create step.
func SetProfileFieldWithClient(ctx context.Context, client *bigquery.Client, userID string, field domain.Field, value string, pesos domain.Pesos) error {
	column, ok := profileColumns[field]
	if !ok {
		return fmt.Errorf("SetProfileFieldWithClient: field %q has no profile column", field)
	}

	var paramValue interface{}
	switch field {
	case domain.FieldFullName, domain.FieldCivilStatus:
		paramValue = value
	case domain.FieldAge, domain.FieldChildrenCount:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("SetProfileFieldWithClient: %s value %q: %w", field, value, err)
		}
		paramValue = n
	default:
		paramValue = int64(pesos)
	}

	query := fmt.Sprintf(`
		MERGE `+"`%s.%s.%s`"+` t
		USING (SELECT @user_id AS user_id) s
		ON t.user_id = s.user_id
		WHEN MATCHED THEN UPDATE SET
			%s = @value,
			updated_ts = @now
		WHEN NOT MATCHED THEN INSERT (user_id, %s, updated_ts)
		VALUES (@user_id, @value, @now)
	`, projectID, datasetID, profilesTable, column, column)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "value", Value: paramValue},
		{Name: "now", Value: time.Now().UTC()},
	}
	return runJob(ctx, q)
}

// GetProfile fetches one user's profile, or nil when none exists yet.
func GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("GetProfile: bigquery client: %w", err)
	}
	defer client.Close()

	return GetProfileWithClient(ctx, client, userID)
}

// GetProfileWithClient fetches the profile using the provided client.
func GetProfileWithClient(ctx context.Context, client *bigquery.Client, userID string) (*domain.Profile, error) {
	query := fmt.Sprintf(`
		SELECT
			user_id,
			full_name,
			age,
			civil_status,
			children_count,
			monthly_income,
			total_assets,
			total_liabilities,
			total_savings,
			updated_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE user_id = @user_id
		LIMIT 1
	`, projectID, datasetID, profilesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetProfileWithClient: reading query: %w", err)
	}

	var row ProfileRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetProfileWithClient: iterating: %w", err)
	}

	return &domain.Profile{
		UserID:           row.UserID,
		FullName:         row.FullName,
		Age:              int(row.Age),
		CivilStatus:      row.CivilStatus,
		ChildrenCount:    int(row.ChildrenCount),
		MonthlyIncome:    domain.Pesos(row.MonthlyIncome),
		TotalAssets:      domain.Pesos(row.TotalAssets),
		TotalLiabilities: domain.Pesos(row.TotalLiabilities),
		TotalSavings:     domain.Pesos(row.TotalSavings),
	}, nil
}
