// Package conversation derives flow progress from message history and runs
// one conversational turn end to end. Progress is a pure function of the
// transcript: there is no stored step counter to drift out of sync with the
// messages that actually exist.
package conversation

import (
	"github.com/dvloznov/finance-coach/internal/domain"
)

// Flow identifies one scripted conversation.
type Flow string

const (
	FlowOnboarding Flow = "onboarding"
	FlowBudget     Flow = "budget"
)

// Config is the static shape of one flow: the ordered prompt script and the
// message shown once every step has been answered.
type Config struct {
	Flow             Flow
	TotalSteps       int
	Prompts          []string // len == TotalSteps, index step-1
	CompletionPrompt string
}

// Debug carries the raw counters behind a derivation, for logs only.
type Debug struct {
	UserMessages      int
	AssistantMessages int
	TotalMessages     int
}

// State is the derived position in a flow. Step is always in [1, TotalSteps+1];
// TotalSteps+1 is the terminal step.
type State struct {
	Step       int
	IsComplete bool
	NextPrompt string
	Debug      Debug
}

// Compute derives the current state from the transcript. The step the user is
// about to answer is the one after all their prior answers, so step equals
// user-message count plus one. Recomputing over the same transcript always
// yields the same state, including after completion.
func Compute(messages []domain.Message, cfg Config) State {
	var userCount, assistantCount int
	for _, m := range messages {
		switch m.Role {
		case domain.RoleUser:
			userCount++
		case domain.RoleAssistant:
			assistantCount++
		}
	}

	step := userCount + 1
	if step > cfg.TotalSteps+1 {
		step = cfg.TotalSteps + 1
	}
	complete := userCount >= cfg.TotalSteps

	prompt := cfg.CompletionPrompt
	if !complete {
		// Prompt index is clamped so a malformed short script cannot panic.
		idx := step
		if idx > cfg.TotalSteps {
			idx = cfg.TotalSteps
		}
		if idx >= 1 && idx <= len(cfg.Prompts) {
			prompt = cfg.Prompts[idx-1]
		}
	}

	return State{
		Step:       step,
		IsComplete: complete,
		NextPrompt: prompt,
		Debug: Debug{
			UserMessages:      userCount,
			AssistantMessages: assistantCount,
			TotalMessages:     len(messages),
		},
	}
}
