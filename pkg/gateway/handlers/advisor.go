package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/careerdev-ai/careerdev/pkg/advisor"
	"github.com/careerdev-ai/careerdev/pkg/gateway/metrics"
	"github.com/careerdev-ai/careerdev/pkg/gateway/sse"
)

// AdvisorHandler serves the streaming generative endpoints over SSE. Every
// stream emits zero or more "delta" events with text fragments, an optional
// "sources" event, and a terminal "done" or "error" event.
type AdvisorHandler struct {
	Advisor      Advisor
	Logger       *slog.Logger
	MaxBodyBytes int64
	Metrics      *metrics.Metrics

	PingInterval      time.Duration
	MaxStreamDuration time.Duration
}

type deltaEvent struct {
	Text string `json:"text"`
}

type errorEvent struct {
	Message string `json:"message"`
}

type sourcesEvent struct {
	Sources []advisor.Source `json:"sources"`
}

// stream relays one TextStream to the client. Client disconnects cancel the
// generation through the request context.
func (h AdvisorHandler) stream(w http.ResponseWriter, r *http.Request, service string, open func(ctx context.Context) *advisor.TextStream) {
	sw, err := sse.New(w)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if h.MaxStreamDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.MaxStreamDuration)
		defer cancel()
	}

	if h.Metrics != nil {
		h.Metrics.StreamsActive.Inc()
		defer h.Metrics.StreamsActive.Dec()
	}

	ts := open(ctx)

	ping := time.NewTicker(h.pingInterval())
	defer ping.Stop()

	for {
		select {
		case chunk, ok := <-ts.Chunks():
			if !ok {
				h.finish(sw, ts, service)
				return
			}
			if err := sw.Send("delta", deltaEvent{Text: chunk}); err != nil {
				return
			}
		case <-ping.C:
			if err := sw.Ping(); err != nil {
				return
			}
		case <-ctx.Done():
			// Drain so the generation goroutine observes cancellation.
			for range ts.Chunks() {
			}
			h.countStream(service, "cancelled")
			_ = sw.Send("error", errorEvent{Message: "stream cancelled"})
			return
		}
	}
}

func (h AdvisorHandler) finish(sw *sse.Writer, ts *advisor.TextStream, service string) {
	if err := ts.Err(); err != nil {
		h.Logger.Error("advisor stream", "err", err)
		h.countStream(service, "error")
		_ = sw.Send("error", errorEvent{Message: "generation failed"})
		return
	}
	if sources := ts.Sources(); len(sources) > 0 {
		_ = sw.Send("sources", sourcesEvent{Sources: sources})
	}
	h.countStream(service, "ok")
	_ = sw.Send("done", struct{}{})
}

func (h AdvisorHandler) countStream(service, outcome string) {
	if h.Metrics != nil {
		h.Metrics.StreamsTotal.WithLabelValues(service, outcome).Inc()
	}
}

func (h AdvisorHandler) pingInterval() time.Duration {
	if h.PingInterval > 0 {
		return h.PingInterval
	}
	return 15 * time.Second
}

// Tip streams one short career tip.
func (h AdvisorHandler) Tip(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, "tip", func(ctx context.Context) *advisor.TextStream {
		return h.Advisor.CareerTipStream(ctx)
	})
}

type chatRequest struct {
	Message     string                 `json:"message" validate:"required,max=8000"`
	History     []advisor.HistoryEntry `json:"history" validate:"max=100,dive"`
	UseThinking bool                   `json:"useThinking"`
}

// Chat streams a conversational reply.
func (h AdvisorHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.stream(w, r, "chat", func(ctx context.Context) *advisor.TextStream {
		return h.Advisor.ChatStream(ctx, req.Message, req.History, req.UseThinking)
	})
}

type sectionRequest struct {
	Prompt string `json:"prompt" validate:"required,max=8000"`
}

// Section streams generated resume copy.
func (h AdvisorHandler) Section(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := decodeJSON(r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.stream(w, r, "section", func(ctx context.Context) *advisor.TextStream {
		return h.Advisor.ResumeSectionStream(ctx, req.Prompt)
	})
}

type analyzeRequest struct {
	Text     string `json:"text" validate:"required_without=Data"`
	Data     []byte `json:"data" validate:"required_without=Text,max=10485760"`
	MIMEType string `json:"mimeType" validate:"max=100"`
	Deep     bool   `json:"deep"`
}

// Analyze streams resume feedback for inline text or an uploaded document.
func (h AdvisorHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	content := advisor.ResumeContent{Text: req.Text, Data: req.Data, MIMEType: req.MIMEType}
	h.stream(w, r, "analyze", func(ctx context.Context) *advisor.TextStream {
		return h.Advisor.AnalyzeResumeStream(ctx, content, req.Deep)
	})
}

type qaRequest struct {
	Field    string `json:"field" validate:"required,max=200"`
	Question string `json:"question" validate:"required,max=4000"`
}

// QA streams a search-grounded industry answer; grounding sources arrive in
// a trailing "sources" event.
func (h AdvisorHandler) QA(w http.ResponseWriter, r *http.Request) {
	var req qaRequest
	if err := decodeJSON(r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.stream(w, r, "qa", func(ctx context.Context) *advisor.TextStream {
		return h.Advisor.IndustryQAStream(ctx, req.Field, req.Question)
	})
}

type opportunitiesRequest struct {
	Query    string `json:"query" validate:"required,max=500"`
	Location string `json:"location" validate:"required,max=200"`
	Kind     string `json:"kind" validate:"required,oneof=Internship Job"`
}

// Opportunities runs the grounded opportunity search as one JSON round trip.
func (h AdvisorHandler) Opportunities(w http.ResponseWriter, r *http.Request) {
	var req opportunitiesRequest
	if err := decodeJSON(r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.Advisor.SearchOpportunities(r.Context(), req.Query, req.Location, advisor.OpportunityKind(req.Kind))
	if err != nil {
		h.Logger.Error("opportunity search", "err", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
