package handlers

import (
	"log/slog"
	"net/http"

	"github.com/careerdev-ai/careerdev/pkg/store"
)

// ProfileHandler synchronizes account profiles from the auth layer.
type ProfileHandler struct {
	Store        ResumeStore
	Logger       *slog.Logger
	MaxBodyBytes int64
}

type profileRequest struct {
	ID       string `json:"id" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"fullName" validate:"max=200"`
}

func (h ProfileHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user := store.User{ID: req.ID, Email: req.Email, FullName: req.FullName}
	if err := h.Store.UpsertUser(r.Context(), &user); err != nil {
		h.Logger.Error("upsert user", "err", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
