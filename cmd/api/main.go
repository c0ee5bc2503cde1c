package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/finance-coach/internal/api/handlers"
	"github.com/dvloznov/finance-coach/internal/api/middleware"
	"github.com/dvloznov/finance-coach/internal/attachments"
	"github.com/dvloznov/finance-coach/internal/config"
	"github.com/dvloznov/finance-coach/internal/conversation"
	infraBQ "github.com/dvloznov/finance-coach/internal/infra/bigquery"
	"github.com/dvloznov/finance-coach/internal/jobs"
	"github.com/dvloznov/finance-coach/internal/jobs/inmemory"
	"github.com/dvloznov/finance-coach/internal/llm"
	"github.com/dvloznov/finance-coach/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	infraBQ.Configure(cfg.GCPProject, cfg.BigQueryDataset)

	ctx := context.Background()

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	// The generator is optional: without it every turn serves the scripted
	// prompt for its step, which keeps the flows fully usable offline.
	var gen conversation.Generator
	gemini, err := llm.NewGemini(ctx, cfg.GeminiModel)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable - conversations will use scripted prompts")
	} else {
		gen = gemini
	}

	runner := conversation.NewRunner(gen, repo, repo, repo)

	var storage attachments.Storage
	if cfg.GCSBucket == "" {
		log.Warn().Msg("No GCS bucket configured - attachment uploads will be disabled")
	} else {
		storage = attachments.NewGCS(cfg.GCSBucket)
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, cfg.QueueWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Ingestion replays the attachment transcript as one conversational turn
	// of whichever flow the job belongs to.
	jobHandler := func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestAttachmentJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		jobLog := log.With().
			Str("job_id", ingestJob.JobID).
			Str("conversation_id", ingestJob.ConversationID).
			Str("gcs_uri", ingestJob.GCSURI).
			Logger()
		ctx = logger.WithContext(ctx, jobLog)

		jobLog.Info().Msg("Processing attachment ingestion")

		if ingestJob.Transcript == "" {
			// Transcription runs upstream; without a transcript there is no
			// turn to replay, only the stored attachment.
			jobLog.Warn().Msg("Attachment has no transcript, nothing to ingest")
			return nil
		}

		var err error
		if ingestJob.BudgetID != "" {
			_, err = runner.BudgetTurn(ctx, ingestJob.ConversationID, ingestJob.BudgetID, ingestJob.Transcript)
		} else {
			_, err = runner.OnboardingTurn(ctx, ingestJob.ConversationID, ingestJob.UserID, ingestJob.Transcript)
		}
		if err != nil {
			jobLog.Error().Err(err).Msg("Attachment ingestion failed")
			return err
		}

		jobLog.Info().Msg("Attachment ingestion completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting job workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job workers stopped with error")
		}
	}()

	// Initialize handlers
	conversationsHandler := handlers.NewConversationsHandler(runner, log)
	profileHandler := handlers.NewProfileHandler(runner, repo, log)
	budgetsHandler := handlers.NewBudgetsHandler(repo, log)
	attachmentsHandler := handlers.NewAttachmentsHandler(storage, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Conversation endpoints
	mux.HandleFunc("/api/conversations/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
		switch {
		case strings.HasSuffix(rest, "/messages"):
			conversationID := strings.TrimSuffix(rest, "/messages")
			if conversationID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Conversation ID is required")
				return
			}
			conversationsHandler.PostBudgetMessage(w, r, conversationID)
		case strings.HasSuffix(rest, "/onboarding"):
			conversationID := strings.TrimSuffix(rest, "/onboarding")
			if conversationID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Conversation ID is required")
				return
			}
			conversationsHandler.PostOnboardingMessage(w, r, conversationID)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	// Profile endpoints
	mux.HandleFunc("/api/profile/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			profileHandler.PostMessage(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/profile/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		userID := strings.TrimPrefix(r.URL.Path, "/api/profile/")
		if userID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "User ID is required")
			return
		}
		profileHandler.GetProfile(w, r, userID)
	})

	// Budget endpoints
	mux.HandleFunc("/api/budgets/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/budgets/")
		if !strings.HasSuffix(rest, "/categories") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		budgetID := strings.TrimSuffix(rest, "/categories")
		if budgetID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Budget ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			budgetsHandler.GetCategories(w, r, budgetID)
		case http.MethodPost:
			budgetsHandler.PostCategories(w, r, budgetID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Attachment endpoints
	mux.HandleFunc("/api/attachments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			attachmentsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
