// Package handlers contains the HTTP handlers for the coaching API:
// conversational turns, structured category submissions, attachment
// uploads and job status.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-coach/internal/api/middleware"
	"github.com/dvloznov/finance-coach/internal/attachments"
	"github.com/dvloznov/finance-coach/internal/conversation"
	"github.com/dvloznov/finance-coach/internal/domain"
	"github.com/dvloznov/finance-coach/internal/jobs"
	"github.com/dvloznov/finance-coach/internal/reconcile"
)

// CategoryStore is the persistence surface the budget handlers need.
type CategoryStore interface {
	Tree(ctx context.Context, budgetID string) (*reconcile.Tree, error)
	Apply(ctx context.Context, ops []reconcile.Op) error
}

// ProfileReader loads a stored profile for the profile endpoints.
type ProfileReader interface {
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
}

// ConversationsHandler serves the conversational turn endpoints.
type ConversationsHandler struct {
	runner *conversation.Runner
	log    zerolog.Logger
}

// NewConversationsHandler creates a new conversations handler.
func NewConversationsHandler(runner *conversation.Runner, log zerolog.Logger) *ConversationsHandler {
	return &ConversationsHandler{runner: runner, log: log}
}

// PostBudgetMessage handles POST /api/conversations/{id}/messages.
// One user message of the budget flow goes in, the next assistant message
// and the reconciliation outcome come back.
func (h *ConversationsHandler) PostBudgetMessage(w http.ResponseWriter, r *http.Request, conversationID string) {
	var req struct {
		BudgetID string `json:"budget_id"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BudgetID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "budget_id is required")
		return
	}
	if req.Message == "" {
		middleware.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.runner.BudgetTurn(r.Context(), conversationID, req.BudgetID, req.Message)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("Budget turn failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// PostOnboardingMessage handles POST /api/conversations/{id}/onboarding.
// One user answer of the profile interview.
func (h *ConversationsHandler) PostOnboardingMessage(w http.ResponseWriter, r *http.Request, conversationID string) {
	var req struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Message == "" {
		middleware.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.runner.OnboardingTurn(r.Context(), conversationID, req.UserID, req.Message)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("Onboarding turn failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// ProfileHandler serves the profile endpoints.
type ProfileHandler struct {
	runner   *conversation.Runner
	profiles ProfileReader
	log      zerolog.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(runner *conversation.Runner, profiles ProfileReader, log zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{runner: runner, profiles: profiles, log: log}
}

// PostMessage handles POST /api/profile/messages. A free-form correction
// ("mis activos ahora son 20 millones") is classified and, when matched,
// replaces the stored field value.
func (h *ProfileHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Message == "" {
		middleware.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	field, err := h.runner.ProfileEditTurn(r.Context(), req.UserID, req.Message)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Profile edit failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"matched": field.Matched,
		"field":   field.Field,
		"value":   field.Value,
		"amount":  field.Amount,
		"tier":    field.Tier,
	})
}

// GetProfile handles GET /api/profile/{userID}.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := h.profiles.Profile(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if profile == nil {
		middleware.WriteError(w, http.StatusNotFound, "Profile not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":           profile.UserID,
		"full_name":         profile.FullName,
		"age":               profile.Age,
		"civil_status":      profile.CivilStatus,
		"children_count":    profile.ChildrenCount,
		"monthly_income":    profile.MonthlyIncome,
		"total_assets":      profile.TotalAssets,
		"total_liabilities": profile.TotalLiabilities,
		"total_savings":     profile.TotalSavings,
	})
}

// BudgetsHandler serves the budget category tree endpoints.
type BudgetsHandler struct {
	cats CategoryStore
	log  zerolog.Logger
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(cats CategoryStore, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{cats: cats, log: log}
}

// categoryEntry is one entry of a structured category submission.
type categoryEntry struct {
	Category    string       `json:"category"`
	Subcategory string       `json:"subcategory,omitempty"`
	Amount      domain.Pesos `json:"amount"`
	Type        string       `json:"type"`
	NeedsAmount bool         `json:"needs_amount,omitempty"`
}

var categoryTypes = map[string]domain.CategoryType{
	string(domain.CategoryIncome):          domain.CategoryIncome,
	string(domain.CategoryFixedExpense):    domain.CategoryFixedExpense,
	string(domain.CategoryVariableExpense): domain.CategoryVariableExpense,
	string(domain.CategorySavings):         domain.CategorySavings,
}

// PostCategories handles POST /api/budgets/{id}/categories: a structured
// (non-conversational) submission of category entries. A malformed entry
// rejects the whole payload with a per-entry error, it is never silently
// dropped.
func (h *BudgetsHandler) PostCategories(w http.ResponseWriter, r *http.Request, budgetID string) {
	var req struct {
		Entries []categoryEntry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Entries) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "entries is required")
		return
	}

	tuples := make([]domain.CategoryTuple, 0, len(req.Entries))
	for i, e := range req.Entries {
		catType, ok := categoryTypes[e.Type]
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("entry %d has unknown category type %q", i, e.Type))
			return
		}
		if e.Amount < 0 {
			middleware.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("entry %d has a negative amount", i))
			return
		}
		tuples = append(tuples, domain.CategoryTuple{
			CategoryName:    e.Category,
			SubcategoryName: e.Subcategory,
			Amount:          e.Amount,
			Type:            catType,
			NeedsAmount:     e.NeedsAmount,
		})
	}

	if err := reconcile.ValidateStructured(tuples); err != nil {
		var payloadErr *reconcile.InvalidStructuredPayloadError
		if errors.As(err, &payloadErr) {
			middleware.WriteError(w, http.StatusBadRequest, payloadErr.Error())
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tree, err := h.cats.Tree(r.Context(), budgetID)
	if err != nil {
		h.log.Error().Err(err).Str("budget_id", budgetID).Msg("Failed to load category tree")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load categories")
		return
	}

	plan := reconcile.Plan(budgetID, tuples, tree)
	if len(plan.Ops) > 0 {
		if err := h.cats.Apply(r.Context(), plan.Ops); err != nil {
			h.log.Error().Err(err).Str("budget_id", budgetID).Msg("Failed to apply category plan")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to save categories")
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"budget_id":          budgetID,
		"categories_changed": plan.Changed,
	})
}

// GetCategories handles GET /api/budgets/{id}/categories, returning the
// category tree with its rolled-up amounts.
func (h *BudgetsHandler) GetCategories(w http.ResponseWriter, r *http.Request, budgetID string) {
	tree, err := h.cats.Tree(r.Context(), budgetID)
	if err != nil {
		h.log.Error().Err(err).Str("budget_id", budgetID).Msg("Failed to load category tree")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load categories")
		return
	}

	type subView struct {
		ID     string       `json:"id"`
		Name   string       `json:"name"`
		Amount domain.Pesos `json:"amount"`
	}
	type catView struct {
		ID               string       `json:"id"`
		Name             string       `json:"name"`
		Type             string       `json:"type"`
		BudgetedAmount   domain.Pesos `json:"budgeted_amount"`
		HasSubcategories bool         `json:"has_subcategories"`
		Subcategories    []subView    `json:"subcategories,omitempty"`
	}

	cats := make([]catView, 0, len(tree.Categories))
	for _, c := range tree.Categories {
		view := catView{
			ID:               c.ID,
			Name:             c.Name,
			Type:             string(c.Type),
			BudgetedAmount:   c.BudgetedAmount,
			HasSubcategories: c.HasSubcategories,
		}
		for _, s := range tree.Subcategories[c.ID] {
			view.Subcategories = append(view.Subcategories, subView{
				ID: s.ID, Name: s.Name, Amount: s.Amount,
			})
		}
		cats = append(cats, view)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"budget_id":  budgetID,
		"categories": cats,
		"count":      len(cats),
	})
}

// AttachmentsHandler serves attachment uploads and enqueues their ingestion.
type AttachmentsHandler struct {
	storage   attachments.Storage
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewAttachmentsHandler creates a new attachments handler.
func NewAttachmentsHandler(storage attachments.Storage, publisher jobs.Publisher, log zerolog.Logger) *AttachmentsHandler {
	return &AttachmentsHandler{storage: storage, publisher: publisher, log: log}
}

// Upload handles POST /api/attachments: a multipart form with the file plus
// conversation metadata. The attachment lands in GCS and an ingestion job is
// enqueued; the transcript field is optional and supplied by the upstream
// transcription service when present.
func (h *AttachmentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Attachment storage is not configured")
		return
	}

	// 32 MB in memory, the rest spills to temp files.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	conversationID := r.FormValue("conversation_id")
	if conversationID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	userID := r.FormValue("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	gcsURI, err := h.storage.Upload(r.Context(), conversationID, header.Filename, file)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("Attachment upload failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store attachment")
		return
	}

	job := &jobs.IngestAttachmentJob{
		JobID:          uuid.NewString(),
		ConversationID: conversationID,
		BudgetID:       r.FormValue("budget_id"),
		UserID:         userID,
		GCSURI:         gcsURI,
		Transcript:     r.FormValue("transcript"),
		Status:         jobs.JobStatusPending,
		CreatedAt:      time.Now(),
	}

	if err := h.publisher.PublishIngestAttachment(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("conversation_id", conversationID).
		Str("gcs_uri", gcsURI).
		Msg("Attachment uploaded and ingestion enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
		"status":  job.Status,
	})
}

// JobsHandler serves job status queries.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs with optional conversation_id, status,
// limit and offset query parameters.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		ConversationID: r.URL.Query().Get("conversation_id"),
		Status:         jobs.JobStatus(r.URL.Query().Get("status")),
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}
