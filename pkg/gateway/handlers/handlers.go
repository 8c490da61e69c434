// Package handlers implements the gateway's HTTP endpoints: resume CRUD,
// the streaming advisor services, opportunity discovery, document export,
// and profile sync.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/careerdev-ai/careerdev/pkg/advisor"
	"github.com/careerdev-ai/careerdev/pkg/gateway/apierror"
	"github.com/careerdev-ai/careerdev/pkg/gateway/mw"
	"github.com/careerdev-ai/careerdev/pkg/store"
)

// validate is shared across handlers; validator instances cache struct
// metadata.
var validate = validator.New()

// Advisor is the generative service surface the handlers depend on.
type Advisor interface {
	CareerTipStream(ctx context.Context) *advisor.TextStream
	ChatStream(ctx context.Context, message string, history []advisor.HistoryEntry, useThinking bool) *advisor.TextStream
	ResumeSectionStream(ctx context.Context, prompt string) *advisor.TextStream
	AnalyzeResumeStream(ctx context.Context, content advisor.ResumeContent, deep bool) *advisor.TextStream
	IndustryQAStream(ctx context.Context, field, question string) *advisor.TextStream
	SearchOpportunities(ctx context.Context, query, location string, kind advisor.OpportunityKind) (*advisor.OpportunityResult, error)
}

// ResumeStore is the persistence surface the handlers depend on.
type ResumeStore interface {
	ListResumes(ctx context.Context, userID string) ([]store.Resume, error)
	GetResume(ctx context.Context, id string) (*store.Resume, error)
	SaveResume(ctx context.Context, r *store.Resume) error
	DeleteResume(ctx context.Context, id string) error
	UpsertUser(ctx context.Context, u *store.User) error
	RecordDownload(ctx context.Context, d *store.Download) error
	ListDownloads(ctx context.Context, userID string) ([]store.Download, error)
}

// BlobStore uploads exported documents.
type BlobStore interface {
	UploadPDF(ctx context.Context, fileName string, data []byte, contentType string) (string, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.Write(w, err, reqID)
}

// decodeJSON reads and validates a JSON request body.
func decodeJSON(r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierror.Invalid("invalid JSON body: "+err.Error(), "body")
	}
	if err := validate.Struct(dst); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apierror.Invalid("invalid value for "+fe.Field(), fe.Field())
		}
		return apierror.Invalid(err.Error(), "body")
	}
	return nil
}

type NotFoundHandler struct{}

func (NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, &apierror.Error{Type: apierror.ErrNotFound, Message: "not found"})
}

type HealthHandler struct{}

func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
