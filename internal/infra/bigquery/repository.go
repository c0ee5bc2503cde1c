package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-coach/internal/domain"
	"github.com/dvloznov/finance-coach/internal/reconcile"
)

// Repository bundles every persistence operation behind one shared BigQuery
// client so request handlers do not pay a connection per call. It satisfies
// the conversation runner's MessageStore, CategoryStore and ProfileStore
// contracts.
type Repository struct {
	client *bigquery.Client
}

// NewRepository creates a repository with a shared BigQuery client.
func NewRepository(ctx context.Context) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Messages delegates to ListMessagesWithClient with the shared client.
func (r *Repository) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return ListMessagesWithClient(ctx, r.client, conversationID)
}

// AppendMessage delegates to AppendMessageWithClient with the shared client.
func (r *Repository) AppendMessage(ctx context.Context, conversationID string, msg domain.Message) error {
	return AppendMessageWithClient(ctx, r.client, conversationID, msg)
}

// Tree delegates to FetchTreeWithClient with the shared client.
func (r *Repository) Tree(ctx context.Context, budgetID string) (*reconcile.Tree, error) {
	return FetchTreeWithClient(ctx, r.client, budgetID)
}

// Apply delegates to ApplyOpsWithClient with the shared client.
func (r *Repository) Apply(ctx context.Context, ops []reconcile.Op) error {
	return ApplyOpsWithClient(ctx, r.client, ops)
}

// SetField delegates to SetProfileFieldWithClient with the shared client.
func (r *Repository) SetField(ctx context.Context, userID string, field domain.Field, value string, pesos domain.Pesos) error {
	return SetProfileFieldWithClient(ctx, r.client, userID, field, value, pesos)
}

// Profile delegates to GetProfileWithClient with the shared client.
func (r *Repository) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	return GetProfileWithClient(ctx, r.client, userID)
}
