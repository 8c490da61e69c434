// Package advisor exposes the generative career-assistance services: fast
// tips, deep reasoning chat, resume drafting and analysis, and the
// search-grounded industry Q&A and opportunity discovery flows.
package advisor

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/careerdev-ai/careerdev/pkg/keyselect"
)

// Model identities per service tier.
const (
	// FastModel serves low-latency tips and resume section drafting.
	FastModel = "gemini-2.5-flash-lite-latest"
	// ReasoningModel serves deep chat and strategic resume audits.
	ReasoningModel = "gemini-3-pro-preview"
	// GroundedModel serves the search-grounded flows.
	GroundedModel = "gemini-3-flash-preview"

	// thinkingBudget is the token budget granted to the reasoning model
	// when deep thinking is requested.
	thinkingBudget int32 = 32768
)

// FallbackMessage replaces an empty or malformed model response.
const FallbackMessage = "I couldn't generate a response just now. Please try again."

// Source is one grounding reference attached to a generated answer.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// HistoryEntry is one prior turn of a chat conversation.
type HistoryEntry struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// generator abstracts the generative backend so service logic can be
// exercised without network access.
type generator interface {
	stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type genaiBackend struct {
	client *genai.Client
}

func (g genaiBackend) stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return g.client.Models.GenerateContentStream(ctx, model, contents, cfg)
}

func (g genaiBackend) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, cfg)
}

// Advisor provides the career-assistance generation services.
type Advisor struct {
	backend generator
	logger  *slog.Logger
}

// New builds an Advisor authenticated with the given API key.
func New(ctx context.Context, apiKey string, logger *slog.Logger) (*Advisor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("advisor: create client: %w", keyselect.Classify(err))
	}
	return &Advisor{backend: genaiBackend{client: client}, logger: logger}, nil
}

// CareerTipStream streams one ultra-concise career tip.
func (a *Advisor) CareerTipStream(ctx context.Context) *TextStream {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: textContent("You are the CareerDev Fast-Response Engine. Provide high-velocity, impactful student career advice."),
	}
	contents := genai.Text("Generate one unique, ultra-concise career tip for a student (max 15 words).")
	return a.startStream(ctx, FastModel, contents, cfg)
}

// ChatStream streams a deep-reasoning chat reply. History is folded into
// the prompt so every request is self-contained; a finished stream is not
// restartable, callers issue a new request to regenerate.
func (a *Advisor) ChatStream(ctx context.Context, message string, history []HistoryEntry, useThinking bool) *TextStream {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: textContent("You are the CareerDev Senior Strategist. For complex student career queries, leverage your deep reasoning capabilities. Always maintain context from the conversation history."),
	}
	if useThinking {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(thinkingBudget)}
	}

	prompt := message
	if len(history) > 0 {
		var b strings.Builder
		b.WriteString("Conversation history:\n")
		for _, h := range history {
			fmt.Fprintf(&b, "%s: %s\n", h.Role, h.Text)
		}
		b.WriteString("\nUser: ")
		b.WriteString(message)
		prompt = b.String()
	}
	return a.startStream(ctx, ReasoningModel, genai.Text(prompt), cfg)
}

// ResumeSectionStream streams generated resume copy for one section prompt.
func (a *Advisor) ResumeSectionStream(ctx context.Context, prompt string) *TextStream {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: textContent("You are a professional resume strategist. Generate high-impact, action-oriented text. Be fast and concise."),
	}
	return a.startStream(ctx, FastModel, genai.Text(prompt), cfg)
}

// ResumeContent is the material under analysis: plain text or an uploaded
// document passed inline.
type ResumeContent struct {
	Text     string
	Data     []byte
	MIMEType string
}

// AnalyzeResumeStream streams resume feedback. Deep mode runs a strategic
// audit on the reasoning model with the thinking budget; otherwise a quick
// review on the grounded-tier model.
func (a *Advisor) AnalyzeResumeStream(ctx context.Context, content ResumeContent, deep bool) *TextStream {
	var parts []*genai.Part
	if len(content.Data) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: content.Data, MIMEType: content.MIMEType}})
	} else {
		parts = append(parts, &genai.Part{Text: "Resume Content for Analysis:\n\n" + content.Text})
	}
	contents := []*genai.Content{{Parts: parts, Role: genai.RoleUser}}

	model := GroundedModel
	instruction := "Provide quick, constructive feedback on this resume. Identify clear areas for improvement."
	cfg := &genai.GenerateContentConfig{}
	if deep {
		model = ReasoningModel
		instruction = "Perform a 'Strategic Audit' of this resume. Analyze keyword density for modern recruiters, score the resume from 0-100%, and provide a roadmap for high-tier industry placement."
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(thinkingBudget)}
	}
	cfg.SystemInstruction = textContent(instruction)

	return a.startStream(ctx, model, contents, cfg)
}

func textContent(text string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}
