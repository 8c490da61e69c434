package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/careerdev-ai/careerdev/pkg/gateway/apierror"
	"github.com/careerdev-ai/careerdev/pkg/gateway/metrics"
	"github.com/careerdev-ai/careerdev/pkg/store"
)

// UploadsHandler stores exported resume documents and records them against
// the owning user.
type UploadsHandler struct {
	Store          ResumeStore
	Blob           BlobStore
	Logger         *slog.Logger
	MaxUploadBytes int64
	Metrics        *metrics.Metrics
}

// Upload accepts one multipart document, pushes it to blob storage, and
// records the resulting public URL as a download.
func (h UploadsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apierror.Invalid("upload exceeds size limit", "file"))
			return
		}
		writeError(w, r, apierror.Invalid("invalid multipart body", "body"))
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		writeError(w, r, apierror.Invalid("user_id is required", "user_id"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apierror.Invalid("file is required", "file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apierror.Invalid("unreadable file", "file"))
		return
	}

	url, err := h.Blob.UploadPDF(r.Context(), header.Filename, data, header.Header.Get("Content-Type"))
	if err != nil {
		h.Logger.Error("blob upload", "err", err)
		writeError(w, r, err)
		return
	}

	download := store.Download{UserID: userID, FileName: header.Filename, FileURL: url}
	if err := h.Store.RecordDownload(r.Context(), &download); err != nil {
		h.Logger.Error("record download", "err", err, "url", url)
		writeError(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.UploadsTotal.Inc()
		h.Metrics.UploadBytesTotal.Add(float64(len(data)))
	}
	writeJSON(w, http.StatusCreated, download)
}

// Downloads lists a user's export records, newest first.
func (h UploadsHandler) Downloads(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, r, apierror.Invalid("user_id is required", "user_id"))
		return
	}
	downloads, err := h.Store.ListDownloads(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list downloads", "err", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"downloads": downloads})
}
