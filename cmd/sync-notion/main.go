package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/finance-coach/internal/config"
	infraBQ "github.com/dvloznov/finance-coach/internal/infra/bigquery"
	"github.com/dvloznov/finance-coach/internal/logger"
	"github.com/dvloznov/finance-coach/internal/notionsync"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	budgetID := flag.String("budget-id", "", "Budget ID to sync (required)")
	notionToken := flag.String("notion-token", "", "Notion API token (defaults to COACH_NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (defaults to COACH_NOTION_DATABASE)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *notionToken == "" {
		*notionToken = cfg.NotionToken
	}
	if *notionDBID == "" {
		*notionDBID = cfg.NotionDatabase
	}

	// Validate required flags
	if *budgetID == "" {
		log.Fatal().Msg("Error: --budget-id is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("budget_id", *budgetID).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	infraBQ.Configure(cfg.GCPProject, cfg.BigQueryDataset)

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
	}
	defer repo.Close()

	tree, err := repo.Tree(ctx, *budgetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load category tree")
	}

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(*notionToken)

	if err := notionsync.SyncBudget(ctx, tree, notionClient, *notionDBID, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Println("Sync completed successfully.")
}
