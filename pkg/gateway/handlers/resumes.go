package handlers

import (
	"log/slog"
	"net/http"

	"github.com/careerdev-ai/careerdev/pkg/gateway/apierror"
	"github.com/careerdev-ai/careerdev/pkg/store"
)

// ResumesHandler serves resume CRUD.
type ResumesHandler struct {
	Store        ResumeStore
	Logger       *slog.Logger
	MaxBodyBytes int64
}

func (h ResumesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, r, apierror.Invalid("user_id is required", "user_id"))
		return
	}
	resumes, err := h.Store.ListResumes(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list resumes", "err", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resumes": resumes})
}

func (h ResumesHandler) Get(w http.ResponseWriter, r *http.Request) {
	resume, err := h.Store.GetResume(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

type saveResumeRequest struct {
	ID         string             `json:"id"`
	UserID     string             `json:"userId" validate:"required"`
	Title      string             `json:"title" validate:"max=200"`
	FullName   string             `json:"fullName" validate:"max=200"`
	Email      string             `json:"email" validate:"omitempty,email"`
	Phone      string             `json:"phone" validate:"max=50"`
	LinkedIn   string             `json:"linkedin" validate:"max=500"`
	GitHub     string             `json:"github" validate:"max=500"`
	Summary    string             `json:"summary"`
	Education  []store.Education  `json:"education" validate:"max=50"`
	Experience []store.Experience `json:"experience" validate:"max=50"`
	Skills     string             `json:"skills"`
}

func (h ResumesHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveResumeRequest
	if err := decodeJSON(r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resume := store.Resume{
		ID:         req.ID,
		UserID:     req.UserID,
		Title:      req.Title,
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		LinkedIn:   req.LinkedIn,
		GitHub:     req.GitHub,
		Summary:    req.Summary,
		Education:  req.Education,
		Experience: req.Experience,
		Skills:     req.Skills,
	}
	if err := h.Store.SaveResume(r.Context(), &resume); err != nil {
		h.Logger.Error("save resume", "err", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

func (h ResumesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteResume(r.Context(), r.PathValue("id")); err != nil {
		h.Logger.Error("delete resume", "err", err)
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
