package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-coach/internal/logger"
	"github.com/dvloznov/finance-coach/internal/reconcile"
)

// SyncBudget pushes one budget's category tree to a Notion database:
// 1. Queries all existing pages in the database.
// 2. Archives stale pages (categories no longer in the tree).
// 3. Creates pages for new categories, updates pages whose amounts moved.
// The category key property tracks page identity across syncs.
func SyncBudget(ctx context.Context, tree *reconcile.Tree, notionClient NotionService, notionDBID string, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Bool("dry_run", dryRun).
		Int("category_count", len(tree.Categories)).
		Msg("Starting budget sync to Notion")

	validKeys := make(map[string]bool)
	for _, cat := range tree.Categories {
		validKeys[CategoryKey(cat)] = true
	}

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("SyncBudget: query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	// Map key -> page for update-in-place; archive everything unmatched.
	existingByKey := make(map[string]notionapi.Page)
	var deleted int
	for _, page := range notionPages {
		key := extractCategoryKey(page)

		if key == "" || !validKeys[key] {
			if dryRun {
				log.Info().
					Str("key", key).
					Str("page_id", string(page.ID)).
					Msg("[DRY RUN] Would archive stale Notion page")
				deleted++
				continue
			}
			if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
				log.Warn().
					Err(err).
					Str("key", key).
					Str("page_id", string(page.ID)).
					Msg("Failed to archive stale Notion page")
				continue
			}
			deleted++
			continue
		}
		existingByKey[key] = page
	}

	var created, updated int
	for _, cat := range tree.Categories {
		key := CategoryKey(cat)
		subs := tree.Subcategories[cat.ID]

		if dryRun {
			if _, ok := existingByKey[key]; ok {
				log.Info().Str("key", key).Msg("[DRY RUN] Would update Notion page")
				updated++
			} else {
				log.Info().Str("key", key).Msg("[DRY RUN] Would create Notion page")
				created++
			}
			continue
		}

		props := CategoryToNotionProperties(cat, subs)

		if page, ok := existingByKey[key]; ok {
			if _, err := notionClient.UpdatePage(ctx, string(page.ID), props); err != nil {
				log.Warn().
					Err(err).
					Str("key", key).
					Str("page_id", string(page.ID)).
					Msg("Failed to update Notion page")
				// Continue processing other categories
				continue
			}
			updated++
		} else {
			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().
					Err(err).
					Str("key", key).
					Msg("Failed to create Notion page")
				continue
			}
			log.Info().
				Str("key", key).
				Str("page_id", string(page.ID)).
				Msg("Created Notion page")
			created++
		}
	}

	log.Info().
		Int("deleted", deleted).
		Int("created", created).
		Int("updated", updated).
		Int("total", len(tree.Categories)).
		Msg("Budget sync completed")

	return nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// extractCategoryKey extracts the category key from a Notion page's
// properties. Returns empty string if not found.
func extractCategoryKey(page notionapi.Page) string {
	if prop, ok := page.Properties["Clave"]; ok {
		if richText, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(richText.RichText) > 0 {
				return richText.RichText[0].PlainText
			}
		}
	}
	return ""
}
