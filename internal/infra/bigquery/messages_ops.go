package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-coach/internal/domain"
)

// ListMessages replays one conversation's transcript in order.
func ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListMessages: bigquery client: %w", err)
	}
	defer client.Close()

	return ListMessagesWithClient(ctx, client, conversationID)
}

// ListMessagesWithClient replays the transcript using the provided client.
// Order is by seq, not timestamp: two messages appended in the same turn can
// share a timestamp and the progress derivation needs a stable replay.
func ListMessagesWithClient(ctx context.Context, client *bigquery.Client, conversationID string) ([]domain.Message, error) {
	query := fmt.Sprintf(`
		SELECT
			message_id,
			conversation_id,
			seq,
			role,
			content,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE conversation_id = @conversation_id
		ORDER BY seq
	`, projectID, datasetID, messagesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "conversation_id", Value: conversationID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListMessagesWithClient: reading query: %w", err)
	}

	var msgs []domain.Message
	for {
		var row MessageRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListMessagesWithClient: iterating: %w", err)
		}
		msgs = append(msgs, domain.Message{
			Role:    domain.Role(row.Role),
			Content: row.Content,
		})
	}

	return msgs, nil
}

// AppendMessage appends one message to a conversation, assigning the next
// seq inside the insert so concurrent appends cannot collide on it.
func AppendMessage(ctx context.Context, conversationID string, msg domain.Message) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("AppendMessage: bigquery client: %w", err)
	}
	defer client.Close()

	return AppendMessageWithClient(ctx, client, conversationID, msg)
}

// AppendMessageWithClient appends using the provided client.
func AppendMessageWithClient(ctx context.Context, client *bigquery.Client, conversationID string, msg domain.Message) error {
	query := fmt.Sprintf(`
		INSERT `+"`%s.%s.%s`"+` (
			message_id, conversation_id, seq, role, content, created_ts
		)
		SELECT
			@message_id,
			@conversation_id,
			COALESCE(MAX(seq), 0) + 1,
			@role,
			@content,
			@now
		FROM `+"`%s.%s.%s`"+`
		WHERE conversation_id = @conversation_id
	`, projectID, datasetID, messagesTable, projectID, datasetID, messagesTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "message_id", Value: uuid.NewString()},
		{Name: "conversation_id", Value: conversationID},
		{Name: "role", Value: string(msg.Role)},
		{Name: "content", Value: msg.Content},
		{Name: "now", Value: time.Now().UTC()},
	}
	return runJob(ctx, q)
}
