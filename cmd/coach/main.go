package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-coach/internal/config"
	"github.com/dvloznov/finance-coach/internal/conversation"
	"github.com/dvloznov/finance-coach/internal/domain"
	infraBQ "github.com/dvloznov/finance-coach/internal/infra/bigquery"
	"github.com/dvloznov/finance-coach/internal/llm"
	"github.com/dvloznov/finance-coach/internal/logger"
	"github.com/dvloznov/finance-coach/internal/notionsync"
	"github.com/dvloznov/finance-coach/internal/reconcile"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "onboarding":
		runOnboarding(log)
	case "budget":
		runBudget(log)
	case "show":
		runShow(log)
	case "export":
		runExport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Coach CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  coach <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  onboarding  Run the profile interview in the terminal")
	fmt.Println("  budget      Run the budget conversation in the terminal")
	fmt.Println("  show        Print a budget's category tree")
	fmt.Println("  export      Sync a budget's categories to Notion")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'coach <command> -h' for more information on a command.")
}

// buildRunner wires a conversation runner. Offline mode keeps everything in
// memory and skips Gemini, so the scripted prompts drive the whole flow.
func buildRunner(ctx context.Context, log zerolog.Logger, offline bool) (*conversation.Runner, func(), error) {
	if offline {
		mem := newMemStore()
		return conversation.NewRunner(nil, mem, mem, mem), func() {}, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	infraBQ.Configure(cfg.GCPProject, cfg.BigQueryDataset)

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	var gen conversation.Generator
	if gemini, err := llm.NewGemini(ctx, cfg.GeminiModel); err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable, using scripted prompts")
	} else {
		gen = gemini
	}

	return conversation.NewRunner(gen, repo, repo, repo), func() { repo.Close() }, nil
}

func runOnboarding(log zerolog.Logger) {
	fs := flag.NewFlagSet("onboarding", flag.ExitOnError)
	userID := fs.String("user", "local-user", "User ID for the profile")
	conversationID := fs.String("conversation", "cli-onboarding", "Conversation ID")
	offline := fs.Bool("offline", false, "Run fully in memory without GCP or Gemini")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	runner, cleanup, err := buildRunner(ctx, log, *offline)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up runner")
	}
	defer cleanup()

	fmt.Println(conversation.Onboarding().Prompts[0])
	repl(ctx, func(line string) (string, bool, error) {
		result, err := runner.OnboardingTurn(ctx, *conversationID, *userID, line)
		if err != nil {
			return "", false, err
		}
		return result.AssistantText, result.Progress.IsComplete, nil
	})
}

func runBudget(log zerolog.Logger) {
	fs := flag.NewFlagSet("budget", flag.ExitOnError)
	budgetID := fs.String("budget", "", "Budget ID to build")
	conversationID := fs.String("conversation", "cli-budget", "Conversation ID")
	offline := fs.Bool("offline", false, "Run fully in memory without GCP or Gemini")
	fs.Parse(os.Args[2:])

	if *budgetID == "" {
		log.Fatal().Msg("Error: --budget is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	runner, cleanup, err := buildRunner(ctx, log, *offline)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up runner")
	}
	defer cleanup()

	fmt.Println(conversation.Budget().Prompts[0])
	repl(ctx, func(line string) (string, bool, error) {
		result, err := runner.BudgetTurn(ctx, *conversationID, *budgetID, line)
		if err != nil {
			return "", false, err
		}
		for _, cat := range result.CategoriesChanged {
			fmt.Printf("  [%s] %s = %d\n", cat.Type, cat.Name, cat.BudgetedAmount)
		}
		return result.AssistantText, result.Progress.IsComplete, nil
	})
}

// repl reads user lines until EOF or flow completion, printing the assistant
// reply after each turn.
func repl(ctx context.Context, turn func(line string) (string, bool, error)) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		reply, done, err := turn(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(reply)
		if done {
			return
		}
	}
}

func runShow(log zerolog.Logger) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	budgetID := fs.String("budget", "", "Budget ID to print")
	fs.Parse(os.Args[2:])

	if *budgetID == "" {
		log.Fatal().Msg("Error: --budget is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	infraBQ.Configure(cfg.GCPProject, cfg.BigQueryDataset)

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	tree, err := repo.Tree(ctx, *budgetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load category tree")
	}

	printTree(tree)
}

func printTree(tree *reconcile.Tree) {
	fmt.Printf("\n=== Categories (%d) ===\n", len(tree.Categories))
	for _, cat := range tree.Categories {
		fmt.Printf("\n[%s] %s: %d\n", cat.Type, cat.Name, cat.BudgetedAmount)
		for _, sub := range tree.Subcategories[cat.ID] {
			fmt.Printf("    %s: %d\n", sub.Name, sub.Amount)
		}
	}
	fmt.Println()
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	budgetID := fs.String("budget", "", "Budget ID to export")
	dryRun := fs.Bool("dry-run", false, "Log what would change without touching Notion")
	fs.Parse(os.Args[2:])

	if *budgetID == "" {
		log.Fatal().Msg("Error: --budget is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.NotionToken == "" || cfg.NotionDatabase == "" {
		log.Fatal().Msg("COACH_NOTION_TOKEN and COACH_NOTION_DATABASE are required")
	}
	infraBQ.Configure(cfg.GCPProject, cfg.BigQueryDataset)

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	tree, err := repo.Tree(ctx, *budgetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load category tree")
	}

	notionClient := notionsync.NewNotionClient(cfg.NotionToken)
	if err := notionsync.SyncBudget(ctx, tree, notionClient, cfg.NotionDatabase, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Println("Export completed successfully.")
}

// memStore backs the offline mode: one process, one user, nothing persisted.
type memStore struct {
	msgs    map[string][]domain.Message
	tree    *reconcile.Tree
	profile map[domain.Field]string
}

func newMemStore() *memStore {
	return &memStore{
		msgs:    make(map[string][]domain.Message),
		tree:    &reconcile.Tree{Subcategories: make(map[string][]domain.Subcategory)},
		profile: make(map[domain.Field]string),
	}
}

func (m *memStore) Messages(_ context.Context, conversationID string) ([]domain.Message, error) {
	out := make([]domain.Message, len(m.msgs[conversationID]))
	copy(out, m.msgs[conversationID])
	return out, nil
}

func (m *memStore) AppendMessage(_ context.Context, conversationID string, msg domain.Message) error {
	m.msgs[conversationID] = append(m.msgs[conversationID], msg)
	return nil
}

func (m *memStore) Tree(_ context.Context, _ string) (*reconcile.Tree, error) {
	return m.tree, nil
}

// Apply is a no-op offline: Plan already mutated the shared tree in place.
func (m *memStore) Apply(_ context.Context, _ []reconcile.Op) error {
	return nil
}

func (m *memStore) SetField(_ context.Context, _ string, field domain.Field, value string, _ domain.Pesos) error {
	m.profile[field] = value
	return nil
}
