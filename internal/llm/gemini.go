// Package llm wraps the Gemini text generator behind the conversation
// runner's Generator contract. Any failure here is not fatal to the flow:
// the runner substitutes the scripted prompt for the same step.
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-coach/internal/domain"
)

// DefaultModel is used when the configuration does not name one.
const DefaultModel = "gemini-2.0-flash"

// systemPrompt frames the model as the Spanish-speaking coach. Extraction
// never depends on how the model phrases things, so this is tone only.
const systemPrompt = "Eres un coach financiero colombiano, cercano y claro.\n" +
	"Conversas en español, una pregunta a la vez, sobre el perfil y el " +
	"presupuesto mensual del usuario.\n" +
	"Montos en pesos colombianos. No inventes cifras del usuario.\n" +
	"Responde SOLO con el texto del siguiente mensaje, sin Markdown y sin " +
	"comillas alrededor."

// Gemini generates assistant messages over the conversation transcript.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the generator. Vertex vs Gemini Dev is controlled via
// env vars (GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT,
// GOOGLE_CLOUD_LOCATION), same as the rest of the GCP surface.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		// API version v1 is what docs use for current Gemini models.
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate produces the next assistant message from the transcript.
func (g *Gemini) Generate(ctx context.Context, history []domain.Message) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: systemPrompt}},
	})
	for _, m := range history {
		contents = append(contents, &genai.Content{
			Role:  modelRole(m.Role),
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}

	text := cleanModelText(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}
	return text, nil
}

// modelRole maps transcript roles onto the wire roles the API accepts.
func modelRole(r domain.Role) string {
	if r == domain.RoleAssistant {
		return "model"
	}
	return "user"
}

// cleanModelText strips Markdown fences and surrounding quotes if the model
// ignored instructions.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```text ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```lang).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return strings.TrimSpace(strings.Trim(s, "`"))
		}
		s = strings.TrimSpace(s)
	}

	// Remove trailing ``` if present.
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Models occasionally quote the whole reply.
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	return s
}
