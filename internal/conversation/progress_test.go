package conversation

import (
	"testing"

	"github.com/dvloznov/finance-coach/internal/domain"
)

func transcript(userCount int) []domain.Message {
	var msgs []domain.Message
	for i := 0; i < userCount; i++ {
		msgs = append(msgs,
			domain.Message{Role: domain.RoleAssistant, Content: "pregunta"},
			domain.Message{Role: domain.RoleUser, Content: "respuesta"},
		)
	}
	return msgs
}

func TestCompute_StepFollowsUserCount(t *testing.T) {
	cfg := Onboarding()
	tests := []struct {
		userCount    int
		wantStep     int
		wantComplete bool
	}{
		{0, 1, false},
		{1, 2, false},
		{8, 9, false},
		{9, 10, true},
		{15, 10, true}, // step is clamped at total+1
	}
	for _, tt := range tests {
		got := Compute(transcript(tt.userCount), cfg)
		if got.Step != tt.wantStep || got.IsComplete != tt.wantComplete {
			t.Errorf("Compute(%d user msgs) = step %d complete %v, want step %d complete %v",
				tt.userCount, got.Step, got.IsComplete, tt.wantStep, tt.wantComplete)
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	cfg := Budget()
	msgs := transcript(2)
	a := Compute(msgs, cfg)
	b := Compute(msgs, cfg)
	if a != b {
		t.Errorf("recomputation diverged: %+v vs %+v", a, b)
	}
}

func TestCompute_MonotonicStep(t *testing.T) {
	cfg := Budget()
	var msgs []domain.Message
	prev := Compute(msgs, cfg).Step
	for i := 0; i < cfg.TotalSteps; i++ {
		msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: "x"})
		cur := Compute(msgs, cfg).Step
		if cur != prev+1 {
			t.Fatalf("appending one user message moved step %d -> %d, want +1", prev, cur)
		}
		prev = cur
	}
}

func TestCompute_PromptSelection(t *testing.T) {
	cfg := Budget()

	if got := Compute(nil, cfg); got.NextPrompt != cfg.Prompts[0] {
		t.Errorf("fresh conversation prompt = %q, want first script prompt", got.NextPrompt)
	}
	if got := Compute(transcript(cfg.TotalSteps), cfg); got.NextPrompt != cfg.CompletionPrompt {
		t.Errorf("finished conversation prompt = %q, want completion prompt", got.NextPrompt)
	}
}

func TestCompute_AssistantMessagesDoNotAdvance(t *testing.T) {
	cfg := Budget()
	msgs := []domain.Message{
		{Role: domain.RoleAssistant, Content: "a"},
		{Role: domain.RoleAssistant, Content: "b"},
		{Role: domain.RoleAssistant, Content: "c"},
	}
	if got := Compute(msgs, cfg); got.Step != 1 {
		t.Errorf("assistant-only transcript step = %d, want 1", got.Step)
	}
}

func TestCompute_Debug(t *testing.T) {
	got := Compute(transcript(3), Budget())
	if got.Debug.UserMessages != 3 || got.Debug.AssistantMessages != 3 || got.Debug.TotalMessages != 6 {
		t.Errorf("debug counters = %+v, want 3/3/6", got.Debug)
	}
}

func TestOnboardingStepMode(t *testing.T) {
	for step := 1; step <= 9; step++ {
		want := ModeFreeform
		if step >= 5 && step <= 8 {
			want = ModeDirect
		}
		if got := OnboardingStepMode(step); got != want {
			t.Errorf("step %d mode = %s, want %s", step, got, want)
		}
	}
	if f := OnboardingFieldFor(5); f != domain.FieldMonthlyIncome {
		t.Errorf("step 5 field = %s, want monthly_income", f)
	}
	if f := OnboardingFieldFor(1); f != domain.FieldNone {
		t.Errorf("step 1 field = %s, want none", f)
	}
}
