package conversation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dvloznov/finance-coach/internal/classify"
	"github.com/dvloznov/finance-coach/internal/domain"
	"github.com/dvloznov/finance-coach/internal/extract"
	"github.com/dvloznov/finance-coach/internal/logger"
	"github.com/dvloznov/finance-coach/internal/reconcile"
)

// Generator produces the next assistant message from the transcript so far.
// Any error switches the turn onto the deterministic fallback prompt for the
// same step; the two paths always share step numbering.
type Generator interface {
	Generate(ctx context.Context, history []domain.Message) (string, error)
}

// MessageStore persists and replays one conversation's transcript.
type MessageStore interface {
	Messages(ctx context.Context, conversationID string) ([]domain.Message, error)
	AppendMessage(ctx context.Context, conversationID string, msg domain.Message) error
}

// CategoryStore is the persistence contract the reconciler's plan is applied
// through. Apply must execute add operations as atomic insert-or-add merges.
type CategoryStore interface {
	Tree(ctx context.Context, budgetID string) (*reconcile.Tree, error)
	Apply(ctx context.Context, ops []reconcile.Op) error
}

// ProfileStore applies replace-semantics field updates from onboarding and
// profile-edit messages.
type ProfileStore interface {
	SetField(ctx context.Context, userID string, field domain.Field, value string, pesos domain.Pesos) error
}

// Progress is the per-turn view of where the flow stands. CompletedNow fires
// only on the turn that crossed into the terminal state, so completion side
// effects run exactly once no matter how often the terminal state is
// observed afterwards.
type Progress struct {
	Step         int  `json:"step"`
	IsComplete   bool `json:"is_complete"`
	CompletedNow bool `json:"completed_now"`
}

// TurnResult is what the API layer receives from one processed user message.
type TurnResult struct {
	AssistantText     string                 `json:"assistant_text"`
	Tuples            []domain.CategoryTuple `json:"extracted_tuples,omitempty"`
	Progress          Progress               `json:"progress"`
	CategoriesChanged []domain.Category      `json:"categories_changed,omitempty"`
	UsedFallback      bool                   `json:"used_fallback"`
}

// Runner executes conversational turns against the stores.
type Runner struct {
	gen      Generator
	messages MessageStore
	cats     CategoryStore
	profile  ProfileStore
}

func NewRunner(gen Generator, messages MessageStore, cats CategoryStore, profile ProfileStore) *Runner {
	return &Runner{gen: gen, messages: messages, cats: cats, profile: profile}
}

// BudgetTurn processes one user message of the budget flow: derive the step
// the message answers, extract category tuples typed by the assistant's last
// question, reconcile them into the budget tree, then produce the next
// assistant message.
func (r *Runner) BudgetTurn(ctx context.Context, conversationID, budgetID, userMessage string) (*TurnResult, error) {
	log := logger.FromContext(ctx)
	cfg := Budget()

	history, err := r.messages.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("BudgetTurn: load history: %w", err)
	}

	before := Compute(history, cfg)
	if before.IsComplete {
		// Terminal state is idempotent: no extraction, no completion refire.
		return &TurnResult{
			AssistantText: cfg.CompletionPrompt,
			Progress:      Progress{Step: before.Step, IsComplete: true},
		}, nil
	}

	lastPrompt := lastAssistantMessage(history)
	if lastPrompt == "" {
		lastPrompt = before.NextPrompt
	}

	tuples := extract.Hybrid(before.Step, lastPrompt, userMessage)

	// The transcript append comes before the reconciliation write. A failure
	// between the two then loses one answer (the step advanced, no amounts
	// landed) instead of the reverse: amounts persisted on a stalled step,
	// where a client retry would re-apply the same tuples and double-count
	// them under accumulate semantics.
	userMsg := domain.Message{Role: domain.RoleUser, Content: userMessage}
	if err := r.messages.AppendMessage(ctx, conversationID, userMsg); err != nil {
		return nil, fmt.Errorf("BudgetTurn: append user message: %w", err)
	}
	history = append(history, userMsg)

	var changed []domain.Category
	if len(tuples) > 0 {
		tree, err := r.cats.Tree(ctx, budgetID)
		if err != nil {
			return nil, fmt.Errorf("BudgetTurn: load tree: %w", err)
		}
		plan := reconcile.Plan(budgetID, tuples, tree)
		if len(plan.Ops) > 0 {
			if err := r.cats.Apply(ctx, plan.Ops); err != nil {
				return nil, fmt.Errorf("BudgetTurn: apply plan: %w", err)
			}
		}
		changed = plan.Changed
	}

	after := Compute(history, cfg)
	assistantText, usedFallback := r.nextAssistantText(ctx, history, after)

	if err := r.messages.AppendMessage(ctx, conversationID, domain.Message{
		Role: domain.RoleAssistant, Content: assistantText,
	}); err != nil {
		return nil, fmt.Errorf("BudgetTurn: append assistant message: %w", err)
	}

	log.Info().
		Str("conversation_id", conversationID).
		Int("step", after.Step).
		Int("tuples", len(tuples)).
		Bool("fallback", usedFallback).
		Msg("budget turn processed")

	return &TurnResult{
		AssistantText:     assistantText,
		Tuples:            tuples,
		Progress:          progressFrom(before, after),
		CategoriesChanged: changed,
		UsedFallback:      usedFallback,
	}, nil
}

// OnboardingTurn processes one user message of the profile interview. Amount
// steps run the whole message through direct normalization; the remaining
// steps go through the field classifier first and fall back to storing the
// answer verbatim.
func (r *Runner) OnboardingTurn(ctx context.Context, conversationID, userID, userMessage string) (*TurnResult, error) {
	log := logger.FromContext(ctx)
	cfg := Onboarding()

	history, err := r.messages.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("OnboardingTurn: load history: %w", err)
	}

	before := Compute(history, cfg)
	if before.IsComplete {
		return &TurnResult{
			AssistantText: cfg.CompletionPrompt,
			Progress:      Progress{Step: before.Step, IsComplete: true},
		}, nil
	}

	if err := r.applyOnboardingAnswer(ctx, userID, before.Step, userMessage); err != nil {
		return nil, fmt.Errorf("OnboardingTurn: %w", err)
	}

	userMsg := domain.Message{Role: domain.RoleUser, Content: userMessage}
	if err := r.messages.AppendMessage(ctx, conversationID, userMsg); err != nil {
		return nil, fmt.Errorf("OnboardingTurn: append user message: %w", err)
	}
	history = append(history, userMsg)

	after := Compute(history, cfg)
	assistantText, usedFallback := r.nextAssistantText(ctx, history, after)

	if err := r.messages.AppendMessage(ctx, conversationID, domain.Message{
		Role: domain.RoleAssistant, Content: assistantText,
	}); err != nil {
		return nil, fmt.Errorf("OnboardingTurn: append assistant message: %w", err)
	}

	log.Info().
		Str("conversation_id", conversationID).
		Int("step", after.Step).
		Bool("fallback", usedFallback).
		Msg("onboarding turn processed")

	return &TurnResult{
		AssistantText: assistantText,
		Progress:      progressFrom(before, after),
		UsedFallback:  usedFallback,
	}, nil
}

// ProfileEditTurn handles a free-form profile-edit message outside any flow.
// Classifier updates replace the stored field value; amounts never
// accumulate here, "mis activos ahora son X" is a correction.
func (r *Runner) ProfileEditTurn(ctx context.Context, userID, userMessage string) (domain.ExtractedField, error) {
	field := classify.Classify(userMessage)
	if !field.Matched {
		return field, nil
	}
	if err := r.profile.SetField(ctx, userID, field.Field, field.Value, field.Amount); err != nil {
		return field, fmt.Errorf("ProfileEditTurn: set %s: %w", field.Field, err)
	}
	return field, nil
}

func (r *Runner) applyOnboardingAnswer(ctx context.Context, userID string, step int, userMessage string) error {
	if r.profile == nil {
		return nil
	}

	if OnboardingStepMode(step) == ModeDirect {
		pesos, ok := extract.Direct(userMessage)
		if !ok {
			// No amount found is not an error; the stored profile keeps its
			// previous value and the flow moves on.
			return nil
		}
		field := OnboardingFieldFor(step)
		return r.profile.SetField(ctx, userID, field, strconv.FormatInt(int64(pesos), 10), pesos)
	}

	if f := classify.Classify(userMessage); f.Matched {
		return r.profile.SetField(ctx, userID, f.Field, f.Value, f.Amount)
	}
	return nil
}

// nextAssistantText asks the generator for the next message; on any failure
// the step's scripted prompt substitutes, with identical numbering, so an
// outage cannot skip or repeat a question.
func (r *Runner) nextAssistantText(ctx context.Context, history []domain.Message, state State) (string, bool) {
	if state.IsComplete {
		return state.NextPrompt, false
	}
	if r.gen == nil {
		return state.NextPrompt, true
	}
	text, err := r.gen.Generate(ctx, history)
	if err != nil || text == "" {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Int("step", state.Step).
			Msg("generator unavailable, serving scripted prompt")
		return state.NextPrompt, true
	}
	return text, false
}

func progressFrom(before, after State) Progress {
	return Progress{
		Step:         after.Step,
		IsComplete:   after.IsComplete,
		CompletedNow: after.IsComplete && !before.IsComplete,
	}
}

func lastAssistantMessage(history []domain.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}
