package advisor

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/careerdev-ai/careerdev/pkg/keyselect"
)

// IndustryQAStream streams a search-grounded answer to a question about a
// specific industry. Grounding sources accumulate on the stream and are
// available once it finishes.
func (a *Advisor) IndustryQAStream(ctx context.Context, field, question string) *TextStream {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		SystemInstruction: textContent(fmt.Sprintf(
			"You are a professional career counselor specializing in the %s industry. Provide actionable, data-driven advice. Always reference current trends.", field)),
	}
	prompt := fmt.Sprintf("I am a student interested in the %s industry. Question: %q", field, question)
	return a.startStream(ctx, GroundedModel, genai.Text(prompt), cfg)
}

// OpportunityKind narrows an opportunity search.
type OpportunityKind string

const (
	KindInternship OpportunityKind = "Internship"
	KindJob        OpportunityKind = "Job"
)

// OpportunityResult is a completed opportunity search: the model's summary
// plus the grounded listings it was built from.
type OpportunityResult struct {
	Summary string   `json:"summary"`
	Sources []Source `json:"sources"`
}

// SearchOpportunities runs a search-grounded discovery of current openings.
// Unlike the streaming services this is a single round trip; the listings in
// the result come from the grounding references of the response.
func (a *Advisor) SearchOpportunities(ctx context.Context, query, location string, kind OpportunityKind) (*OpportunityResult, error) {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		SystemInstruction: textContent(
			"You are CareerDev AI's real-time Opportunity Node. Your mission is to discover and present active career opportunities by grounding your response in Google Search."),
	}
	prompt := fmt.Sprintf(
		"Search for the latest %s openings for %q in %q. Focus on verified job boards and official company career pages. Provide direct application links.",
		kind, query, location)

	resp, err := a.backend.generate(ctx, GroundedModel, genai.Text(prompt), cfg)
	if err != nil {
		a.logger.Error("advisor: opportunity search", "err", err)
		return nil, keyselect.Classify(err)
	}

	result := &OpportunityResult{Summary: resp.Text()}
	if result.Summary == "" {
		result.Summary = FallbackMessage
	}
	result.Sources = appendSources(nil, map[string]bool{}, resp)
	return result, nil
}
